// Package aptos reads account transactions from an Aptos fullnode REST API.
package aptos

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// MainnetURL is the public Aptos mainnet fullnode REST endpoint
	MainnetURL = "https://fullnode.mainnet.aptoslabs.com/v1"
	// TestnetURL is the public Aptos testnet fullnode REST endpoint
	TestnetURL = "https://fullnode.testnet.aptoslabs.com/v1"
	// DevnetURL is the public Aptos devnet fullnode REST endpoint
	DevnetURL = "https://fullnode.devnet.aptoslabs.com/v1"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4096
)

// APIError is a non-2xx response of the fullnode
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
	ErrorCode  string `json:"error_code"`
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("aptos api: http %d: %s (%s)", e.StatusCode, e.Message, e.ErrorCode)
	}
	return fmt.Sprintf("aptos api: http %d: %s", e.StatusCode, e.Message)
}

// NetworkURL maps a network name to its public fullnode. Unknown names are
// returned unchanged so a custom URL can be passed through.
func NetworkURL(network string) string {
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

// Client is a minimal Aptos REST client
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets a logger for request tracing
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the fullnode at baseURL (including /v1)
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = MainnetURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// AccountTransactions returns up to limit committed transactions sent by
// address, starting at the given account sequence offset. Each item is the
// undecoded JSON object returned by the node.
func (c *Client) AccountTransactions(ctx context.Context, address string, start int64, limit int) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("start", strconv.FormatInt(start, 10))
	q.Set("limit", strconv.Itoa(limit))
	endpoint := fmt.Sprintf("%s/accounts/%s/transactions?%s", c.baseURL, url.PathEscape(address), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Requesting account transactions",
		zap.String("address", address),
		zap.Int64("start", start),
		zap.Int("limit", limit))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return nil, apiErr
	}

	var txs []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&txs); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return txs, nil
}

// NormalizeAddress returns addr as 0x followed by 64 lowercase hex digits.
func NormalizeAddress(addr string) string {
	hex := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(addr), "0x"))
	if len(hex) < 64 {
		hex = strings.Repeat("0", 64-len(hex)) + hex
	}
	return "0x" + hex
}
