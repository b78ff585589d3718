// Package lease serializes summary recomputes for one novel across processes.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/readweb/internal/config"
)

// Locker hands out short-lived exclusive leases. TryLock never blocks: ok is
// false when another holder owns key. unlock must be called once the holder
// is done; it is a no-op when ok is false.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

// Local is used when a single process serves all traffic; in-process
// serialization is already handled by the caller.
type Local struct{}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) TryLock(ctx context.Context, key string) (func(), bool, error) {
	return func() {}, true, nil
}

// New builds the locker selected by cfg.
func New(cfg config.LeaseConfig) (Locker, error) {
	switch cfg.Type {
	case "", config.LeaseLocal:
		return NewLocal(), nil
	case config.LeaseRedis:
		return NewRedisFromURL(cfg.RedisURL, time.Duration(cfg.TTLSeconds)*time.Second)
	default:
		return nil, fmt.Errorf("unsupported lease type: %s", cfg.Type)
	}
}
