package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_WrappedKind(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("fetch page: %w", SourceUnavailableError(base, "aptos"))

	assert.True(t, Is(err, KindSourceUnavailable))
	assert.False(t, Is(err, KindStorageFailure))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "fetch page: aptos: connection refused", err.Error())
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"source", SourceUnavailableError(nil, "down"), true},
		{"lease", ConcurrentRunError(nil, "held"), true},
		{"unclassified", errors.New("boom"), true},
		{"duplicate", DuplicateRecordError(nil, "dup"), false},
		{"storage", StorageFailureError(nil, "disk"), false},
		{"corrupt", CorruptCheckpointError(nil, "bad json"), false},
		{"invalid item", InvalidItemError(nil, "no id"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestNilCause_UsesMessage(t *testing.T) {
	err := ConcurrentRunError(nil, "lease held by another run")
	assert.Equal(t, "lease held by another run", err.Error())
	assert.Equal(t, KindConcurrentRun, KindOf(err))
	assert.Equal(t, "ConcurrentRunCollision", KindOf(err).String())
}
