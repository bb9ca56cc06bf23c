// Package http provides HTTP utilities including chi-compatible error handling
package http

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
)

// HandlerFunc defines a function that returns an error for clean error handling
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// HandleError wraps an error-returning HandlerFunc into a standard http.HandlerFunc
//
// Usage with chi:
//
//	r.Get("/jobs/{name}", http.HandleError(h.getJob))
func HandleError(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			DefaultErrorHandler(w, err)
		}
	}
}

type errorResponse struct {
	ErrMsg     string `json:"error"`
	ErrMsgCode int    `json:"code"`
	Kind       string `json:"kind,omitempty"`
}

// DefaultErrorHandler handles errors returned from HTTP handlers
func DefaultErrorHandler(w http.ResponseWriter, err error) {
	code := StatusCode(err)
	resp := &errorResponse{ErrMsg: "Unexpected Service Error", ErrMsgCode: code}
	if kind := apperrors.KindOf(err); kind != apperrors.KindUnknown {
		resp.ErrMsg = err.Error()
		resp.Kind = kind.String()
	}
	WriteJSON(w, code, resp)
}

// StatusCode maps an ingestion error kind to an HTTP status
func StatusCode(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConcurrentRun, apperrors.KindDuplicateRecord:
		return http.StatusConflict
	case apperrors.KindSourceUnavailable:
		return http.StatusBadGateway
	case apperrors.KindInvalidItem:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON encodes v with the given status code
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
