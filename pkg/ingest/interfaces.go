package ingest

import (
	"context"
	"encoding/json"
	"time"
)

// Source defines the paginated read API of a ledger node or indexer
type Source interface {
	// FetchPage returns up to limit items for address starting at pos.
	FetchPage(ctx context.Context, address string, pos Position, limit int) (*Page, error)
}

// Extractor maps one raw source item to the fields to persist. It must be
// pure: no I/O, and a missing optional field yields nil, not an error.
type Extractor interface {
	Extract(raw json.RawMessage) (*Record, error)
}

// ExtractorFunc adapts a function to the Extractor interface
type ExtractorFunc func(raw json.RawMessage) (*Record, error)

// Extract calls f(raw)
func (f ExtractorFunc) Extract(raw json.RawMessage) (*Record, error) {
	return f(raw)
}

// CheckpointStore persists one position per monitored address
type CheckpointStore interface {
	// Load returns the stored position, or StartPosition(style) if there is
	// none or the stored value is unreadable.
	Load(ctx context.Context, address string, style Style) (Position, error)
	// Save upserts the position for address.
	Save(ctx context.Context, address string, pos Position) error
}

// RecordStore persists write-once records keyed by id
type RecordStore interface {
	// Insert stores rec. A duplicate id is reported as AlreadyExists, not
	// as an error.
	Insert(ctx context.Context, rec *Record) (InsertOutcome, error)
}

// Leaser grants single-writer access to an address for the duration of a run
type Leaser interface {
	Acquire(ctx context.Context, address, owner string, ttl time.Duration) error
	Release(ctx context.Context, address, owner string) error
}
