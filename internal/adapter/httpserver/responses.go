// Package httpserver contains HTTP handlers and middleware for the matching
// API: recommendations, skill-chat suggestions, resume upload, and analysis
// retrieval.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jobfindr/matchengine/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, _ *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
		codeStr = "NOT_FOUND"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		code = http.StatusUnsupportedMediaType
		codeStr = "UNSUPPORTED_FORMAT"
	case errors.Is(err, domain.ErrCorruptDocument):
		code = http.StatusUnprocessableEntity
		codeStr = "CORRUPT_DOCUMENT"
	case errors.Is(err, domain.ErrBackendUnconfigured):
		code = http.StatusServiceUnavailable
		codeStr = "BACKEND_UNCONFIGURED"
	case errors.Is(err, domain.ErrBackendUnavailable):
		code = http.StatusServiceUnavailable
		codeStr = "BACKEND_UNAVAILABLE"
	case errors.Is(err, domain.ErrBackendMalformed):
		code = http.StatusBadGateway
		codeStr = "BACKEND_MALFORMED"
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: err.Error(), Details: details}})
}
