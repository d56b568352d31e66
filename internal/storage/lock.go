package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const tryAdvisoryLockSQL = `SELECT pg_try_advisory_xact_lock($1);`

// AdvisoryLocker serialises refresh cycles across processes.
type AdvisoryLocker interface {
	WithAdvisoryLock(ctx context.Context, key int64, fn func(ctx context.Context) error) (bool, error)
}

var _ AdvisoryLocker = (*Store)(nil)

// WithAdvisoryLock runs fn while holding a transaction-scoped advisory lock.
// When another process holds the lock, fn is skipped and acquired is false.
func (s *Store) WithAdvisoryLock(ctx context.Context, key int64, fn func(ctx context.Context) error) (bool, error) {
	acquired := false
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !acquired {
			return nil
		}
		return fn(ctx)
	})
	return acquired, err
}
