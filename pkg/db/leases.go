package db

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
	"github.com/chainsafe/ledger-ingest/pkg/db/dao"
)

// Acquire implements ingest.Leaser. The upsert only takes over an existing
// row when it has expired or already belongs to owner, so of two racing
// runs exactly one sees a row affected.
func (s *Store) Acquire(ctx context.Context, address, owner string, ttl time.Duration) error {
	now := s.now().UTC()
	lease := &dao.IngestLeaseDao{
		Address:    address,
		Owner:      owner,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	res, err := s.db.NewInsert().
		Model(lease).
		On("CONFLICT (address) DO UPDATE").
		Set("owner = EXCLUDED.owner").
		Set("acquired_at = EXCLUDED.acquired_at").
		Set("expires_at = EXCLUDED.expires_at").
		Where("?TableAlias.expires_at <= ? OR ?TableAlias.owner = EXCLUDED.owner", now).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire lease: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to acquire lease: %w", err)
	}
	if n == 0 {
		return apperrors.ConcurrentRunError(ErrLeaseHeld, "address "+address)
	}
	return nil
}

// Release implements ingest.Leaser. Releasing a lease that was taken over
// after expiry is a no-op.
func (s *Store) Release(ctx context.Context, address, owner string) error {
	_, err := s.db.NewDelete().
		Model((*dao.IngestLeaseDao)(nil)).
		Where("address = ?", address).
		Where("owner = ?", owner).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}
