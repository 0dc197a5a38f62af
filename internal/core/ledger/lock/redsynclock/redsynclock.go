// Package redsynclock provides a redis backed per account lock for the
// ledger, serializing writes across service instances.
package redsynclock

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	redis "github.com/redis/go-redis/v9"
)

type Locker struct {
	rs *redsync.Redsync
}

func New(client redis.UniversalClient) *Locker {
	pool := goredis.NewPool(client)
	return &Locker{rs: redsync.New(pool)}
}

func (l *Locker) Lock(ctx context.Context, name string) (func() error, error) {
	mu := l.rs.NewMutex("lock:"+name, redsync.WithExpiry(8*time.Second))
	if err := mu.LockContext(ctx); err != nil {
		return nil, err
	}

	unlock := func() error {
		_, err := mu.UnlockContext(ctx)
		return err
	}
	return unlock, nil
}
