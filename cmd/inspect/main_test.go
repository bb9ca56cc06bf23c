package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/ledger-ingest/pkg/sui"
)

func TestRecordView_JSONKeys(t *testing.T) {
	rec, err := sui.Extract(json.RawMessage(`{
		"id": {"txDigest": "Fyud", "eventSeq": "2"},
		"sender": "0xabc",
		"type": "0x2::pool::OrderFilled",
		"parsedJson": {"base_quantity": "15"}
	}`))
	require.NoError(t, err)

	out, err := json.Marshal(newRecordView(rec))
	require.NoError(t, err)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, `"event"`, string(got["kind"]))
	assert.Equal(t, `"Fyud_2"`, string(got["id"]))
	assert.Equal(t, `"0xabc"`, string(got["sender"]))
	assert.Contains(t, got, "amount")
	assert.Contains(t, got, "event_type")
	assert.Contains(t, got, "raw")
	assert.NotContains(t, got, "ID")
}

func TestNotFoundHint(t *testing.T) {
	hint := notFoundHint("Fyud", "testnet", "")
	assert.Contains(t, hint, `"Fyud" not found on testnet network`)

	hint = notFoundHint("Fyud", "mainnet", "http://localhost:9000")
	assert.Contains(t, hint, "not found on http://localhost:9000")
}
