package summarizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cached remembers successful results for identical inputs. Failures are not
// cached.
type Cached struct {
	next  Summarizer
	cache *expirable.LRU[string, string]
}

// NewCached returns next unchanged when size is not positive.
func NewCached(next Summarizer, size int, ttl time.Duration) Summarizer {
	if size <= 0 {
		return next
	}
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

func (c *Cached) Summarize(ctx context.Context, in Input) (string, error) {
	key := cacheKey(in)
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}
	res, err := c.next.Summarize(ctx, in)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, res)
	return res, nil
}

func cacheKey(in Input) string {
	h := sha256.New()
	h.Write([]byte(in.Title))
	h.Write([]byte{0})
	h.Write([]byte(in.Prior))
	for _, c := range in.Comments {
		h.Write([]byte{0})
		h.Write([]byte(c))
	}
	return "summary:" + hex.EncodeToString(h.Sum(nil))
}
