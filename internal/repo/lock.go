package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ImporterLockKey: ключ advisory lock импортёра inbound определений.
const ImporterLockKey int64 = 0x636f6e6e // "conn"

// AdvisoryLocker: лидерская блокировка на pg_try_advisory_lock.
//
// Блокировка сессионная, поэтому держится на выделенном соединении пула
// до Unlock. Реализует inbound.Locker.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
	key  int64

	mu   sync.Mutex
	conn *pgxpool.Conn
}

// NewAdvisoryLocker создаёт AdvisoryLocker.
func NewAdvisoryLocker(pool *pgxpool.Pool, key int64) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool, key: key}
}

// TryLock пытается захватить блокировку. Повторный вызов у владельца возвращает true.
func (l *AdvisoryLocker) TryLock(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		return true, nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire conn: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, "select pg_try_advisory_lock($1)", l.key).Scan(&ok); err != nil {
		conn.Release()
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Unlock освобождает блокировку и возвращает соединение в пул.
func (l *AdvisoryLocker) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return ErrLockNotHeld
	}
	defer func() {
		l.conn.Release()
		l.conn = nil
	}()

	if _, err := l.conn.Exec(ctx, "select pg_advisory_unlock($1)", l.key); err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return nil
}
