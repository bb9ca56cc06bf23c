package sui

import (
	"encoding/json"
	"errors"

	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
	"github.com/chainsafe/ledger-ingest/pkg/ingest"
)

var errNoEventID = errors.New("event has no id")

type rawEvent struct {
	ID         json.RawMessage `json:"id"`
	Sender     json.RawMessage `json:"sender"`
	Type       json.RawMessage `json:"type"`
	ParsedJSON json.RawMessage `json:"parsedJson"`
}

// Extract maps one event object to a record. The id is the transaction
// digest and event sequence joined by an underscore. Sender, amount and
// type degrade to nil when missing or malformed.
func Extract(raw json.RawMessage) (*ingest.Record, error) {
	var ev rawEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, apperrors.InvalidItemError(err, "decode sui event")
	}

	id, ok := eventID(ev.ID)
	if !ok {
		return nil, apperrors.InvalidItemError(errNoEventID, "")
	}

	return &ingest.Record{
		Kind:      ingest.KindEvent,
		ID:        id,
		Sender:    ingest.OptionalString(ev.Sender),
		Amount:    quantity(ev.ParsedJSON),
		EventType: ingest.OptionalString(ev.Type),
		Raw:       raw,
	}, nil
}

// Extractor is Extract as an ingest.Extractor
var Extractor = ingest.ExtractorFunc(Extract)

func eventID(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var id struct {
		TxDigest json.RawMessage `json:"txDigest"`
		EventSeq json.RawMessage `json:"eventSeq"`
	}
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", false
	}
	digest := ingest.OptionalString(id.TxDigest)
	seq := ingest.DecimalString(id.EventSeq)
	if digest == nil || seq == nil || *seq == "" {
		return "", false
	}
	return *digest + "_" + *seq, true
}

// quantity prefers a non-zero executed_quantity and falls back to
// original_quantity.
func quantity(parsedJSON json.RawMessage) *string {
	if len(parsedJSON) == 0 {
		return nil
	}
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(parsedJSON, &parsed); err != nil {
		return nil
	}

	if executed := ingest.DecimalString(parsed["executed_quantity"]); executed != nil && *executed != "" && *executed != "0" {
		return executed
	}
	if original := ingest.DecimalString(parsed["original_quantity"]); original != nil && *original != "" {
		return original
	}
	return nil
}
