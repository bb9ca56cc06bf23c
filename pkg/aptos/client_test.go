package aptos

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
	"github.com/chainsafe/ledger-ingest/pkg/ingest"
)

const testAddr = "0x611b75fc39f8103eaaf3105ee4805fb23c00881d5022fcf963d982596e643c20"

func TestClient_AccountTransactions(t *testing.T) {
	var gotPath, gotStart, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotStart = r.URL.Query().Get("start")
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"version":"10","sender":"0x1"},{"version":"11","sender":"0x1"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/v1/")
	txs, err := c.AccountTransactions(context.Background(), testAddr, 7, 10)
	require.NoError(t, err)

	assert.Equal(t, "/v1/accounts/"+testAddr+"/transactions", gotPath)
	assert.Equal(t, "7", gotStart)
	assert.Equal(t, "10", gotLimit)
	require.Len(t, txs, 2)
	assert.JSONEq(t, `{"version":"10","sender":"0x1"}`, string(txs[0]))
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Account not found","error_code":"account_not_found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).AccountTransactions(context.Background(), testAddr, 0, 10)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "account_not_found", apiErr.ErrorCode)
	assert.Contains(t, err.Error(), "Account not found")
}

func TestClient_PlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).AccountTransactions(context.Background(), testAddr, 0, 10)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).AccountTransactions(context.Background(), testAddr, 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

type stubTxClient struct {
	gotAddr  string
	gotStart int64
	gotLimit int
	txs      []json.RawMessage
	err      error
}

func (s *stubTxClient) AccountTransactions(_ context.Context, address string, start int64, limit int) ([]json.RawMessage, error) {
	s.gotAddr, s.gotStart, s.gotLimit = address, start, limit
	return s.txs, s.err
}

func TestSource_FetchPage(t *testing.T) {
	stub := &stubTxClient{txs: []json.RawMessage{json.RawMessage(`{"version":"1"}`)}}
	src := NewSource(stub)

	page, err := src.FetchPage(context.Background(), "0x1", ingest.Position{Style: ingest.StyleOffset, Offset: 4}, 25)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, NormalizeAddress("0x1"), stub.gotAddr)
	assert.Equal(t, int64(4), stub.gotStart)
	assert.Equal(t, 25, stub.gotLimit)
}

func TestSource_FetchPageErrors(t *testing.T) {
	src := NewSource(&stubTxClient{err: errors.New("connection refused")})
	_, err := src.FetchPage(context.Background(), "0x1", ingest.StartPosition(ingest.StyleOffset), 10)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindSourceUnavailable))

	_, err = src.FetchPage(context.Background(), "0x1", ingest.StartPosition(ingest.StyleCursor), 10)
	require.Error(t, err)
	assert.False(t, apperrors.Is(err, apperrors.KindSourceUnavailable))
}

func TestNetworkURL(t *testing.T) {
	assert.Equal(t, MainnetURL, NetworkURL("mainnet"))
	assert.Equal(t, TestnetURL, NetworkURL("testnet"))
	assert.Equal(t, DevnetURL, NetworkURL("devnet"))
	assert.Equal(t, "http://127.0.0.1:8080/v1", NetworkURL("http://127.0.0.1:8080/v1"))
}
