package aptos

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
	"github.com/chainsafe/ledger-ingest/pkg/ingest"
)

// TransactionsClient is the subset of Client used by Source
type TransactionsClient interface {
	AccountTransactions(ctx context.Context, address string, start int64, limit int) ([]json.RawMessage, error)
}

// Source serves account transactions as offset-paginated pages
type Source struct {
	client TransactionsClient
}

// NewSource creates an offset-style ingest source
func NewSource(client TransactionsClient) *Source {
	return &Source{client: client}
}

// FetchPage implements ingest.Source
func (s *Source) FetchPage(ctx context.Context, address string, pos ingest.Position, limit int) (*ingest.Page, error) {
	if pos.Style != ingest.StyleOffset {
		return nil, fmt.Errorf("aptos source requires offset positions, got %q", pos.Style)
	}
	txs, err := s.client.AccountTransactions(ctx, NormalizeAddress(address), pos.Offset, limit)
	if err != nil {
		return nil, apperrors.SourceUnavailableError(err, "aptos account transactions")
	}
	return &ingest.Page{Items: txs}, nil
}
