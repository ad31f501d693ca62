package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	"go.uber.org/zap"

	"github.com/selivandex/forecastr/pkg/logger"
)

// RefreshLock is the RedLock-backed single-writer lock for featured writes
type RefreshLock struct {
	manager *redlock.RedLock
}

// NewRefreshLock creates refresh lock
func (c *Client) NewRefreshLock() *RefreshLock {
	return &RefreshLock{manager: c.lockManager}
}

// Lock acquires name for ttl. The returned func releases it.
func (l *RefreshLock) Lock(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	expiry, err := l.manager.Lock(ctx, name, ttl)
	if err != nil {
		return nil, fmt.Errorf("lock %s held elsewhere: %w", name, err)
	}
	if expiry <= 0 {
		return nil, fmt.Errorf("failed to acquire lock %s: invalid expiry %v", name, expiry)
	}

	logger.Debug("lock acquired", zap.String("lock", name), zap.Duration("expiry", expiry))
	return func() {
		// Use a fresh context so release still happens after request cancellation
		uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.manager.UnLock(uctx, name); err != nil {
			logger.Warn("failed to release lock (may have expired)", zap.String("lock", name), zap.Error(err))
		}
	}, nil
}

// MockLocker is an in-process lock for tests and single-node runs
type MockLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMockLocker creates in-process locker
func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]bool)}
}

// Lock fails immediately when name is already held
func (m *MockLocker) Lock(_ context.Context, name string, _ time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held[name] {
		return nil, fmt.Errorf("lock %s already held", name)
	}
	m.held[name] = true
	return func() {
		m.mu.Lock()
		delete(m.held, name)
		m.mu.Unlock()
	}, nil
}
