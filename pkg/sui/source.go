package sui

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
	"github.com/chainsafe/ledger-ingest/pkg/ingest"
)

// EventsClient is the subset of Client used by Source
type EventsClient interface {
	QueryEvents(ctx context.Context, sender string, cursor json.RawMessage, limit int) (*EventPage, error)
}

// Source serves sender events as cursor-paginated pages
type Source struct {
	client EventsClient
}

// NewSource creates a cursor-style ingest source
func NewSource(client EventsClient) *Source {
	return &Source{client: client}
}

// FetchPage implements ingest.Source
func (s *Source) FetchPage(ctx context.Context, address string, pos ingest.Position, limit int) (*ingest.Page, error) {
	if pos.Style != ingest.StyleCursor {
		return nil, fmt.Errorf("sui source requires cursor positions, got %q", pos.Style)
	}
	page, err := s.client.QueryEvents(ctx, address, json.RawMessage(pos.Cursor), limit)
	if err != nil {
		return nil, apperrors.SourceUnavailableError(err, "sui query events")
	}

	out := &ingest.Page{
		Items:       page.Data,
		HasNextPage: page.HasNextPage,
	}
	if !isNull(page.NextCursor) {
		out.NextCursor = ingest.Cursor(page.NextCursor)
	}
	return out, nil
}
