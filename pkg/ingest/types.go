package ingest

import (
	"encoding/json"
	"fmt"
	"time"
)

// Style selects how a job tracks its position in the source.
type Style string

const (
	// StyleOffset counts items already consumed.
	StyleOffset Style = "offset"
	// StyleCursor keeps the continuation token returned by the source.
	StyleCursor Style = "cursor"
)

// AdvancePolicy decides how far an offset checkpoint moves after a page.
type AdvancePolicy string

const (
	// AdvanceReturned moves past every returned item, including items that
	// failed to store. Those items are not fetched again.
	AdvanceReturned AdvancePolicy = "returned"
	// AdvanceStoredPrefix moves only past the leading items that were
	// inserted or already present. The first failed item is fetched again.
	AdvanceStoredPrefix AdvancePolicy = "stored_prefix"
)

// Cursor is an opaque continuation token. It is round-tripped verbatim and
// never interpreted outside the source that produced it.
type Cursor []byte

// Position is a point in a paginated source.
type Position struct {
	Style  Style
	Offset int64
	Cursor Cursor

	// Recovered is set by the checkpoint store when the stored position
	// was unreadable and the start position was returned instead.
	Recovered bool
}

// StartPosition returns the canonical "nothing consumed yet" position.
func StartPosition(style Style) Position {
	return Position{Style: style}
}

// IsStart reports whether p is the canonical start position.
func (p Position) IsStart() bool {
	if p.Style == StyleCursor {
		return len(p.Cursor) == 0
	}
	return p.Offset == 0
}

// Equal compares two positions byte for byte.
func (p Position) Equal(o Position) bool {
	return p.Style == o.Style && p.Offset == o.Offset && string(p.Cursor) == string(o.Cursor)
}

func (p Position) String() string {
	if p.Style == StyleCursor {
		if len(p.Cursor) == 0 {
			return "cursor=<start>"
		}
		return fmt.Sprintf("cursor=%s", string(p.Cursor))
	}
	return fmt.Sprintf("offset=%d", p.Offset)
}

// Page is one response of the source.
type Page struct {
	Items       []json.RawMessage
	HasNextPage bool
	NextCursor  Cursor
}

// RecordKind selects the table a record is written to.
type RecordKind string

const (
	KindTransaction RecordKind = "transaction"
	KindEvent       RecordKind = "event"
)

// Record is one ingested source item. Records are write-once.
type Record struct {
	Kind      RecordKind
	ID        string
	Network   string
	Sender    *string
	Amount    *string
	EventType *string
	Raw       json.RawMessage
	FetchedAt time.Time
}

// InsertOutcome is the result of a successful insert call.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	AlreadyExists
)

func (o InsertOutcome) String() string {
	if o == AlreadyExists {
		return "already_exists"
	}
	return "inserted"
}
