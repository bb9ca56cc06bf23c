package aptos

import (
	"encoding/json"
	"errors"
	"strings"

	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
	"github.com/chainsafe/ledger-ingest/pkg/ingest"
)

// amountArgIndex is the payload argument conventionally holding the amount
// of a transfer entry function call (recipient, amount). This is a
// positional convention, not a parse of the function ABI.
const amountArgIndex = 1

var errNoVersion = errors.New("transaction has no version")

// Extract maps one transaction object to a record. Only a missing version
// fails; sender and amount degrade to nil.
func Extract(raw json.RawMessage) (*ingest.Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, apperrors.InvalidItemError(err, "decode aptos transaction")
	}

	version := versionString(fields["version"])
	if version == "" {
		return nil, apperrors.InvalidItemError(errNoVersion, "")
	}

	return &ingest.Record{
		Kind:   ingest.KindTransaction,
		ID:     version,
		Sender: ingest.OptionalString(fields["sender"]),
		Amount: payloadAmount(fields["payload"]),
		Raw:    raw,
	}, nil
}

// Extractor is Extract as an ingest.Extractor
var Extractor = ingest.ExtractorFunc(Extract)

// versionString accepts the node's string encoding of u64 and bare numbers.
func versionString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}

func payloadAmount(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var payload struct {
		Arguments []json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	if len(payload.Arguments) <= amountArgIndex {
		return nil
	}
	return ingest.DecimalString(payload.Arguments[amountArgIndex])
}
