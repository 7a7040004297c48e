// internal/database/lock.go
package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock(hashtextextended($1, 0))`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock(hashtextextended($1, 0))`
)

// Locker implements named cross-process locks with Postgres session-level advisory locks.
// An acquired lock pins one pool connection until Release.
type Locker struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	mu   sync.Mutex
	held map[string]*pgxpool.Conn
}

func NewLocker(pool *pgxpool.Pool, logger *slog.Logger) *Locker {
	return &Locker{
		pool:   pool,
		logger: logger,
		held:   make(map[string]*pgxpool.Conn),
	}
}

// TryAcquire attempts to take key without waiting. A key already held by this process reports false.
func (l *Locker) TryAcquire(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return false, nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquiring connection for lock %q: %w", key, err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return false, fmt.Errorf("trying advisory lock %q: %w", key, err)
	}
	if !acquired {
		conn.Release()
		return false, nil
	}

	l.held[key] = conn
	return true, nil
}

// Release unlocks key and returns its connection to the pool. If unlocking fails the
// connection is closed, which ends the session and with it the lock.
func (l *Locker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	conn, ok := l.held[key]
	delete(l.held, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	var unlocked bool
	err := conn.QueryRow(ctx, advisoryUnlockSQL, key).Scan(&unlocked)
	if err == nil && !unlocked {
		l.logger.Warn("Advisory lock was not held at release", "key", key)
	}
	if err != nil {
		_ = conn.Conn().Close(context.WithoutCancel(ctx))
		conn.Release()
		return fmt.Errorf("releasing advisory lock %q: %w", key, err)
	}

	conn.Release()
	return nil
}
