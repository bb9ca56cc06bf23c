// Package errors contains the error kinds produced by an ingestion run and
// helpers to classify them.
package errors

import (
	"errors"
)

// Kind defines the error kind of an ingestion failure
type Kind int

const (
	// KindUnknown is an unclassified failure. Treated as fatal.
	KindUnknown Kind = iota
	// KindSourceUnavailable The remote ledger API failed while fetching a page.
	// Fatal for the run, nothing is mutated, the next run retries.
	KindSourceUnavailable
	// KindDuplicateRecord The record id is already stored. Expected in steady state.
	KindDuplicateRecord
	// KindStorageFailure A non-duplicate insert or update error.
	// Recovered per item, the run continues.
	KindStorageFailure
	// KindCorruptCheckpoint The stored position could not be read back.
	// Recovered by starting from the beginning.
	KindCorruptCheckpoint
	// KindConcurrentRun Another run holds the lease for the same address.
	KindConcurrentRun
	// KindInvalidItem A source item violates the extractor contract (e.g. no id).
	KindInvalidItem
	// KindNotFound An ops API lookup matched nothing.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindSourceUnavailable:
		return "SourceUnavailable"
	case KindDuplicateRecord:
		return "DuplicateRecord"
	case KindStorageFailure:
		return "StorageFailure"
	case KindCorruptCheckpoint:
		return "CorruptCheckpoint"
	case KindConcurrentRun:
		return "ConcurrentRunCollision"
	case KindInvalidItem:
		return "InvalidItem"
	case KindNotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// IngestError is the error type returned by the ingestion components.
type IngestError struct {
	Kind    Kind
	Message string
	Err     error
}

// Error method to comply with error interface
func (err *IngestError) Error() string {
	if err.Err != nil {
		if err.Message == "" {
			return err.Err.Error()
		}
		return err.Message + ": " + err.Err.Error()
	}
	return err.Message
}

// Unwrap returns the underlying error
func (err *IngestError) Unwrap() error {
	return err.Err
}

// Is checks that provided error is an IngestError with desired Kind
func Is(err error, kind Kind) bool {
	var ingestErr *IngestError
	if errors.As(err, &ingestErr) && ingestErr.Kind == kind {
		return true
	}
	return false
}

// KindOf returns the kind of err, KindUnknown if err is not an IngestError.
func KindOf(err error) Kind {
	var ingestErr *IngestError
	if errors.As(err, &ingestErr) {
		return ingestErr.Kind
	}
	return KindUnknown
}

// IsFatal reports whether err must turn into a non-zero process outcome.
// Duplicate records, per item storage failures and recovered checkpoints
// are steady state conditions.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindDuplicateRecord, KindStorageFailure, KindCorruptCheckpoint, KindInvalidItem, KindNotFound:
		return false
	default:
		return true
	}
}

func newError(kind Kind, err error, message string) error {
	if err == nil {
		err = errors.New(message)
		message = ""
	}
	return &IngestError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// SourceUnavailableError wraps a failure of the remote ledger API
func SourceUnavailableError(err error, message string) error {
	return newError(KindSourceUnavailable, err, message)
}

// DuplicateRecordError reports an id that is already stored
func DuplicateRecordError(err error, message string) error {
	return newError(KindDuplicateRecord, err, message)
}

// StorageFailureError wraps a non-duplicate storage error
func StorageFailureError(err error, message string) error {
	return newError(KindStorageFailure, err, message)
}

// CorruptCheckpointError reports a stored position that cannot be decoded
func CorruptCheckpointError(err error, message string) error {
	return newError(KindCorruptCheckpoint, err, message)
}

// ConcurrentRunError reports a lease held by another run
func ConcurrentRunError(err error, message string) error {
	return newError(KindConcurrentRun, err, message)
}

// InvalidItemError reports a source item the extractor cannot map
func InvalidItemError(err error, message string) error {
	return newError(KindInvalidItem, err, message)
}

// NotFoundError reports an unknown job or address
func NotFoundError(err error, message string) error {
	return newError(KindNotFound, err, message)
}
