// Package pglock provides named leader-election locks backed by Postgres
// session advisory locks. A lock is held by one database session; any number
// of worker processes can race for it and exactly one wins.
package pglock

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Lock is a named, non-blocking advisory lock. The lock is bound to the
// pooled connection that acquired it, so the connection is pinned until
// Release is called. Safe for concurrent use within a process.
type Lock struct {
	pool *pgxpool.Pool
	key  int64

	mu   sync.Mutex
	conn *pgxpool.Conn
}

// New creates a lock for the given name. The name is hashed to the 64-bit
// key space Postgres advisory locks use; every process must use the same
// name for the same concern.
func New(pool *pgxpool.Pool, name string) *Lock {
	return &Lock{pool: pool, key: keyFor(name)}
}

// TryAcquire attempts to take the lock without blocking. It returns false
// when another session already holds it, or when this process still does;
// callers treat both as "skip this cycle", not as an error.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return false, nil
	}
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("pglock: acquire connection: %w", err)
	}
	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&locked); err != nil {
		conn.Release()
		return false, fmt.Errorf("pglock: try advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release unlocks and returns the pinned connection to the pool. It is safe
// to call when the lock is not held.
func (l *Lock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil
	defer conn.Release()
	var unlocked bool
	if err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", l.key).Scan(&unlocked); err != nil {
		return fmt.Errorf("pglock: advisory unlock: %w", err)
	}
	if !unlocked {
		return fmt.Errorf("pglock: advisory unlock reported not held")
	}
	return nil
}

func keyFor(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}
