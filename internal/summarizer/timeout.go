package summarizer

import (
	"context"
	"time"
)

// Timeout bounds a whole call through the wrapped chain, including any time
// spent waiting for a rate limit token.
type Timeout struct {
	next    Summarizer
	timeout time.Duration
}

// NewTimeout returns next unchanged when d is not positive.
func NewTimeout(next Summarizer, d time.Duration) Summarizer {
	if d <= 0 {
		return next
	}
	return &Timeout{next: next, timeout: d}
}

func (t *Timeout) Summarize(ctx context.Context, in Input) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	out, err := t.next.Summarize(ctx, in)
	if err != nil {
		return "", unavailable(err)
	}
	return out, nil
}
