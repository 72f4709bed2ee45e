package lock

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

const lockPrefix = "/gfm/locks/"

// EtcdConfig configures the distributed locker
type EtcdConfig struct {
	Endpoints   []string
	Username    string
	Password    string
	DialTimeout time.Duration
	// TTL is the session lease in seconds. A crashed holder releases
	// the lock after the lease expires.
	TTL int
}

// EtcdLocker implements Locker over an etcd cluster
type EtcdLocker struct {
	client *clientv3.Client
	ttl    int
}

// NewEtcd connects to etcd and returns a distributed locker
func NewEtcd(cfg EtcdConfig) (*EtcdLocker, error) {
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 60
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	return &EtcdLocker{client: client, ttl: ttl}, nil
}

// Acquire takes the cluster-wide lock for key. Each acquisition uses
// its own session so one stuck run cannot hold leases for others.
func (l *EtcdLocker) Acquire(ctx context.Context, key string) (func(), error) {
	session, err := concurrency.NewSession(l.client, concurrency.WithTTL(l.ttl), concurrency.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd session: %w", err)
	}

	mutex := concurrency.NewMutex(session, lockPrefix+key)
	if err := mutex.Lock(ctx); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	release := func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mutex.Unlock(unlockCtx)
		_ = session.Close()
	}
	return release, nil
}

// Close closes the etcd client
func (l *EtcdLocker) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}
