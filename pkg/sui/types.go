package sui

import "encoding/json"

// EventFilter selects events by the sender of the emitting transaction
type EventFilter struct {
	Sender string `json:"Sender"`
}

// EventPage is the suix_queryEvents result. NextCursor is kept undecoded so
// it can be stored and sent back verbatim.
type EventPage struct {
	Data        []json.RawMessage `json:"data"`
	NextCursor  json.RawMessage   `json:"nextCursor"`
	HasNextPage bool              `json:"hasNextPage"`
}

// EventID identifies an event within its transaction
type EventID struct {
	TxDigest string `json:"txDigest"`
	EventSeq string `json:"eventSeq"`
}

// TransactionBlockOptions selects the sections of sui_getTransactionBlock
type TransactionBlockOptions struct {
	ShowInput          bool `json:"showInput"`
	ShowEffects        bool `json:"showEffects"`
	ShowEvents         bool `json:"showEvents"`
	ShowObjectChanges  bool `json:"showObjectChanges"`
	ShowBalanceChanges bool `json:"showBalanceChanges"`
}

// ExecutionStatus is the effects status of a transaction
type ExecutionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// TransactionEffects is the subset of effects we read
type TransactionEffects struct {
	Status ExecutionStatus `json:"status"`
}

// TransactionBlock is the sui_getTransactionBlock result
type TransactionBlock struct {
	Digest  string              `json:"digest"`
	Effects *TransactionEffects `json:"effects,omitempty"`
	Events  []json.RawMessage   `json:"events,omitempty"`
}

// Succeeded reports whether the effects status is success
func (t *TransactionBlock) Succeeded() bool {
	return t.Effects != nil && t.Effects.Status.Status == "success"
}
