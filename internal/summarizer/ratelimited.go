package summarizer

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited bounds how often the wrapped summarizer is called.
type RateLimited struct {
	next    Summarizer
	limiter *rate.Limiter
}

// NewRateLimited returns next unchanged when perMinute is not positive.
func NewRateLimited(next Summarizer, perMinute, burst int) Summarizer {
	if perMinute <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
	}
}

func (r *RateLimited) Summarize(ctx context.Context, in Input) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", unavailable(err)
	}
	return r.next.Summarize(ctx, in)
}
