// Package lock serializes migration runs per graph. The local locker
// covers a single process (CLI, tests); the etcd locker coordinates
// several gfm-server or worker instances sharing one cluster.
package lock

import (
	"context"
	"sync"
)

// Locker grants exclusive access to a key. Acquire blocks until the
// lock is held or the context is done; the returned release function is
// safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
	Close() error
}

// NewLocal creates an in-process locker
func NewLocal() Locker {
	return &localLocker{locks: make(map[string]chan struct{})}
}

type localLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func (l *localLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *localLocker) Close() error {
	return nil
}
