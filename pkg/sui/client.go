// Package sui reads events and transaction blocks from a Sui fullnode over
// JSON-RPC.
package sui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
)

const (
	// MainnetURL is the public Sui mainnet fullnode JSON-RPC endpoint
	MainnetURL = "https://fullnode.mainnet.sui.io:443"
	// TestnetURL is the public Sui testnet fullnode JSON-RPC endpoint
	TestnetURL = "https://fullnode.testnet.sui.io:443"
	// DevnetURL is the public Sui devnet fullnode JSON-RPC endpoint
	DevnetURL = "https://fullnode.devnet.sui.io:443"

	methodQueryEvents         = "suix_queryEvents"
	methodGetTransactionBlock = "sui_getTransactionBlock"
)

// FullnodeURL maps a network name to its public fullnode. Unknown names are
// returned unchanged so a custom URL can be passed through.
func FullnodeURL(network string) string {
	switch network {
	case "mainnet", "":
		return MainnetURL
	case "testnet":
		return TestnetURL
	case "devnet":
		return DevnetURL
	default:
		return network
	}
}

// RPCCaller is the subset of *rpc.Client used here
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

// Client is a thin typed wrapper over a JSON-RPC connection
type Client struct {
	rpc    RPCCaller
	logger *zap.Logger
}

// Option configures Dial
type Option func(*dialOptions)

type dialOptions struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// WithHTTPClient sets the HTTP client used by the JSON-RPC transport
func WithHTTPClient(hc *http.Client) Option {
	return func(o *dialOptions) { o.httpClient = hc }
}

// WithLogger sets a logger for request tracing
func WithLogger(l *zap.Logger) Option {
	return func(o *dialOptions) { o.logger = l }
}

// Dial connects to the fullnode at url
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	o := dialOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	var rpcOpts []rpc.ClientOption
	if o.httpClient != nil {
		rpcOpts = append(rpcOpts, rpc.WithHTTPClient(o.httpClient))
	}
	rc, err := rpc.DialOptions(ctx, url, rpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial sui rpc %s: %w", url, err)
	}
	return NewClient(rc, o.logger), nil
}

// NewClient wraps an existing JSON-RPC connection
func NewClient(caller RPCCaller, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{rpc: caller, logger: logger}
}

// Close closes the underlying connection
func (c *Client) Close() {
	c.rpc.Close()
}

// QueryEvents returns up to limit events emitted by transactions sent from
// sender, in ascending order, starting after cursor. A nil cursor starts at
// the oldest event.
func (c *Client) QueryEvents(ctx context.Context, sender string, cursor json.RawMessage, limit int) (*EventPage, error) {
	var cursorArg interface{}
	if !isNull(cursor) {
		cursorArg = cursor
	}

	c.logger.Debug("Querying events",
		zap.String("sender", sender),
		zap.ByteString("cursor", cursor),
		zap.Int("limit", limit))

	var page EventPage
	err := c.rpc.CallContext(ctx, &page, methodQueryEvents,
		EventFilter{Sender: sender}, cursorArg, limit, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", methodQueryEvents, err)
	}
	if isNull(page.NextCursor) {
		page.NextCursor = nil
	}
	return &page, nil
}

// GetTransactionBlock fetches one transaction with its effects and events
func (c *Client) GetTransactionBlock(ctx context.Context, digest string) (*TransactionBlock, error) {
	opts := TransactionBlockOptions{ShowEffects: true, ShowEvents: true}

	var tx TransactionBlock
	if err := c.rpc.CallContext(ctx, &tx, methodGetTransactionBlock, digest, opts); err != nil {
		if isMissingTransaction(err) {
			return nil, apperrors.NotFoundError(err, "transaction "+digest)
		}
		return nil, fmt.Errorf("%s: %w", methodGetTransactionBlock, err)
	}
	return &tx, nil
}

// isMissingTransaction matches the fullnode's RPC error for an unknown or
// not yet finalized digest.
func isMissingTransaction(err error) bool {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return false
	}
	return strings.Contains(strings.ToLower(rpcErr.Error()), "could not find the referenced transaction")
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
