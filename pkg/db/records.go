package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
	"github.com/chainsafe/ledger-ingest/pkg/db/dao"
	"github.com/chainsafe/ledger-ingest/pkg/ingest"
)

// Insert implements ingest.RecordStore. The primary key constraint rejects
// a second insert of the same id; that rejection is AlreadyExists.
func (s *Store) Insert(ctx context.Context, rec *ingest.Record) (ingest.InsertOutcome, error) {
	model, err := recordModel(rec)
	if err != nil {
		return ingest.Inserted, apperrors.StorageFailureError(err, "")
	}

	_, err = s.db.NewInsert().
		Model(model).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			s.logger.Debug("Record already exists",
				zap.String("kind", string(rec.Kind)),
				zap.String("id", rec.ID))
			return ingest.AlreadyExists, nil
		}
		return ingest.Inserted, apperrors.StorageFailureError(err, fmt.Sprintf("failed to insert %s %s", rec.Kind, rec.ID))
	}
	return ingest.Inserted, nil
}

func recordModel(rec *ingest.Record) (any, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("record has empty id")
	}
	switch rec.Kind {
	case ingest.KindTransaction:
		return &dao.TransactionRecordDao{
			ID:        rec.ID,
			Network:   rec.Network,
			FetchedAt: rec.FetchedAt,
			Sender:    rec.Sender,
			Amount:    rec.Amount,
			Raw:       rec.Raw,
		}, nil
	case ingest.KindEvent:
		return &dao.EventRecordDao{
			ID:        rec.ID,
			Network:   rec.Network,
			FetchedAt: rec.FetchedAt,
			Sender:    rec.Sender,
			Amount:    rec.Amount,
			EventType: rec.EventType,
			Raw:       rec.Raw,
		}, nil
	default:
		return nil, fmt.Errorf("unknown record kind %q", rec.Kind)
	}
}

// CountRecords returns the number of stored records of kind
func (s *Store) CountRecords(ctx context.Context, kind ingest.RecordKind) (int, error) {
	var model any
	switch kind {
	case ingest.KindTransaction:
		model = (*dao.TransactionRecordDao)(nil)
	case ingest.KindEvent:
		model = (*dao.EventRecordDao)(nil)
	default:
		return 0, fmt.Errorf("unknown record kind %q", kind)
	}
	n, err := s.db.NewSelect().Model(model).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s records: %w", kind, err)
	}
	return n, nil
}
