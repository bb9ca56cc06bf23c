package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
	"github.com/chainsafe/ledger-ingest/pkg/db/dao"
	"github.com/chainsafe/ledger-ingest/pkg/ingest"
)

var errCursorNotJSON = errors.New("cursor is not a JSON document")

// CheckpointInfo is a stored checkpoint as listed by the ops API
type CheckpointInfo struct {
	Address   string       `json:"address"`
	Style     ingest.Style `json:"style"`
	Position  string       `json:"position"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Load implements ingest.CheckpointStore
func (s *Store) Load(ctx context.Context, address string, style ingest.Style) (ingest.Position, error) {
	switch style {
	case ingest.StyleOffset:
		return s.loadOffset(ctx, address)
	case ingest.StyleCursor:
		return s.loadCursor(ctx, address)
	default:
		return ingest.Position{}, fmt.Errorf("unknown position style %q", style)
	}
}

func (s *Store) loadOffset(ctx context.Context, address string) (ingest.Position, error) {
	row := new(dao.OffsetCheckpointDao)
	err := s.db.NewSelect().
		Model(row).
		Where("address = ?", address).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ingest.StartPosition(ingest.StyleOffset), nil
		}
		return ingest.Position{}, fmt.Errorf("failed to load offset checkpoint: %w", err)
	}
	if row.Offset < 0 {
		s.logger.Warn("Negative stored offset, resetting to start",
			zap.String("address", address),
			zap.Int64("offset", row.Offset))
		pos := ingest.StartPosition(ingest.StyleOffset)
		pos.Recovered = true
		return pos, nil
	}
	return ingest.Position{Style: ingest.StyleOffset, Offset: row.Offset}, nil
}

func (s *Store) loadCursor(ctx context.Context, address string) (ingest.Position, error) {
	row := new(dao.CursorCheckpointDao)
	err := s.db.NewSelect().
		Model(row).
		Where("address = ?", address).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ingest.StartPosition(ingest.StyleCursor), nil
		}
		return ingest.Position{}, fmt.Errorf("failed to load cursor checkpoint: %w", err)
	}

	if row.Cursor == nil || *row.Cursor == "" {
		return ingest.StartPosition(ingest.StyleCursor), nil
	}
	text := *row.Cursor
	if !json.Valid([]byte(text)) {
		err := apperrors.CorruptCheckpointError(errCursorNotJSON, "load cursor checkpoint")
		s.logger.Warn("Stored cursor is unreadable, resetting to start",
			zap.String("address", address),
			zap.String("raw", text),
			zap.Error(err))
		pos := ingest.StartPosition(ingest.StyleCursor)
		pos.Recovered = true
		return pos, nil
	}
	if text == "null" {
		return ingest.StartPosition(ingest.StyleCursor), nil
	}
	return ingest.Position{Style: ingest.StyleCursor, Cursor: ingest.Cursor(text)}, nil
}

// Save implements ingest.CheckpointStore. The row is replaced in a single
// upsert statement.
func (s *Store) Save(ctx context.Context, address string, pos ingest.Position) error {
	now := s.now().UTC()
	switch pos.Style {
	case ingest.StyleOffset:
		if pos.Offset < 0 {
			return fmt.Errorf("refusing to save negative offset %d", pos.Offset)
		}
		row := &dao.OffsetCheckpointDao{Address: address, Offset: pos.Offset, UpdatedAt: now}
		_, err := s.db.NewInsert().
			Model(row).
			On("CONFLICT (address) DO UPDATE").
			Set(`"offset" = EXCLUDED."offset"`).
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save offset checkpoint: %w", err)
		}
		return nil

	case ingest.StyleCursor:
		row := &dao.CursorCheckpointDao{Address: address, UpdatedAt: now}
		if len(pos.Cursor) > 0 {
			if !json.Valid(pos.Cursor) {
				return errCursorNotJSON
			}
			text := string(pos.Cursor)
			row.Cursor = &text
		}
		_, err := s.db.NewInsert().
			Model(row).
			On("CONFLICT (address) DO UPDATE").
			Set("cursor = EXCLUDED.cursor").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save cursor checkpoint: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown position style %q", pos.Style)
	}
}

// ListCheckpoints returns every stored checkpoint of both styles
func (s *Store) ListCheckpoints(ctx context.Context) ([]CheckpointInfo, error) {
	var offsets []dao.OffsetCheckpointDao
	if err := s.db.NewSelect().Model(&offsets).Order("address ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list offset checkpoints: %w", err)
	}
	var cursors []dao.CursorCheckpointDao
	if err := s.db.NewSelect().Model(&cursors).Order("address ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list cursor checkpoints: %w", err)
	}

	out := make([]CheckpointInfo, 0, len(offsets)+len(cursors))
	for _, row := range offsets {
		out = append(out, CheckpointInfo{
			Address:   row.Address,
			Style:     ingest.StyleOffset,
			Position:  fmt.Sprintf("%d", row.Offset),
			UpdatedAt: row.UpdatedAt,
		})
	}
	for _, row := range cursors {
		info := CheckpointInfo{
			Address:   row.Address,
			Style:     ingest.StyleCursor,
			UpdatedAt: row.UpdatedAt,
		}
		if row.Cursor != nil {
			info.Position = *row.Cursor
		}
		out = append(out, info)
	}
	return out, nil
}
