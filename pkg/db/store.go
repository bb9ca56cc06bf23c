// Package db implements the checkpoint, record and lease stores on
// PostgreSQL.
package db

import (
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"github.com/chainsafe/ledger-ingest/pkg/ingest"
)

var (
	_ ingest.CheckpointStore = (*Store)(nil)
	_ ingest.RecordStore     = (*Store)(nil)
	_ ingest.Leaser          = (*Store)(nil)
)

// ErrLeaseHeld is returned when another owner holds an unexpired lease
var ErrLeaseHeld = errors.New("lease held by another run")

// Store is the postgres implementation of the ingest stores
type Store struct {
	db     *bun.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates a new postgres store
func NewStore(db *bun.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// DB returns the underlying connection
func (s *Store) DB() *bun.DB {
	return s.db
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is SQLSTATE 23505
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.IntegrityViolation() && pgErr.Field('C') == "23505"
}
