package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
)

// memCheckpoints is an in-memory CheckpointStore
type memCheckpoints struct {
	mu      sync.Mutex
	rows    map[string]Position
	corrupt map[string]bool
	saves   int

	LoadErr error
	SaveErr error
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{rows: map[string]Position{}, corrupt: map[string]bool{}}
}

func (m *memCheckpoints) Load(_ context.Context, address string, style Style) (Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return Position{}, m.LoadErr
	}
	if m.corrupt[address] {
		pos := StartPosition(style)
		pos.Recovered = true
		return pos, nil
	}
	pos, ok := m.rows[address]
	if !ok {
		return StartPosition(style), nil
	}
	return pos, nil
}

func (m *memCheckpoints) Save(_ context.Context, address string, pos Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.saves++
	delete(m.corrupt, address)
	m.rows[address] = pos
	return nil
}

// memRecords is an in-memory RecordStore keyed by id
type memRecords struct {
	mu      sync.Mutex
	rows    map[string]*Record
	order   []string
	failIDs map[string]error
}

func newMemRecords() *memRecords {
	return &memRecords{rows: map[string]*Record{}, failIDs: map[string]error{}}
}

func (m *memRecords) Insert(_ context.Context, rec *Record) (InsertOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failIDs[rec.ID]; ok {
		return Inserted, err
	}
	if _, ok := m.rows[rec.ID]; ok {
		return AlreadyExists, nil
	}
	cp := *rec
	m.rows[rec.ID] = &cp
	m.order = append(m.order, rec.ID)
	return Inserted, nil
}

func (m *memRecords) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// sliceSource serves an offset-paginated list of items
type sliceSource struct {
	items    []json.RawMessage
	calls    int
	lastPos  Position
	FetchErr error
}

func (s *sliceSource) FetchPage(ctx context.Context, _ string, pos Position, limit int) (*Page, error) {
	s.calls++
	s.lastPos = pos
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := int(pos.Offset)
	if start >= len(s.items) {
		return &Page{}, nil
	}
	end := start + limit
	if end > len(s.items) {
		end = len(s.items)
	}
	return &Page{Items: s.items[start:end]}, nil
}

// cursorSource replays scripted pages
type cursorSource struct {
	pages   []*Page
	calls   int
	cursors []Cursor
}

func (s *cursorSource) FetchPage(_ context.Context, _ string, pos Position, _ int) (*Page, error) {
	s.cursors = append(s.cursors, pos.Cursor)
	if s.calls >= len(s.pages) {
		return &Page{}, nil
	}
	p := s.pages[s.calls]
	s.calls++
	return p, nil
}

// MockLeaser is a function-field Leaser
type MockLeaser struct {
	AcquireFunc func(ctx context.Context, address, owner string, ttl time.Duration) error
	ReleaseFunc func(ctx context.Context, address, owner string) error
}

func (m *MockLeaser) Acquire(ctx context.Context, address, owner string, ttl time.Duration) error {
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx, address, owner, ttl)
	}
	return nil
}

func (m *MockLeaser) Release(ctx context.Context, address, owner string) error {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, address, owner)
	}
	return nil
}

type testItem struct {
	ID     string `json:"id"`
	Sender string `json:"sender,omitempty"`
}

// idExtractor reads {"id": ...} items
var idExtractor = ExtractorFunc(func(raw json.RawMessage) (*Record, error) {
	var it testItem
	if err := json.Unmarshal(raw, &it); err != nil {
		return nil, err
	}
	if it.ID == "" {
		return nil, apperrors.InvalidItemError(nil, "item has no id")
	}
	rec := &Record{Kind: KindTransaction, ID: it.ID, Raw: raw}
	if it.Sender != "" {
		rec.Sender = &it.Sender
	}
	return rec, nil
})

func makeItems(from, n int) []json.RawMessage {
	items := make([]json.RawMessage, 0, n)
	for i := from; i < from+n; i++ {
		items = append(items, json.RawMessage(fmt.Sprintf(`{"id":"%d","sender":"0xabc"}`, i)))
	}
	return items
}

var errDisk = errors.New("disk full")
