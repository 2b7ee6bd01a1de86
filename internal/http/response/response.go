// Package response writes the versioned JSON envelope for handlers that live
// outside huma: the push stream's error replies and the router fallbacks.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/listenupapp/labelsync/internal/errors"
)

// Version is the envelope format version sent as "v".
const Version = 1

// Envelope wraps every successful response.
type Envelope struct {
	Data    any  `json:"data,omitempty"`
	Version int  `json:"v"`
	Success bool `json:"success"`
}

// ErrorEnvelope wraps every failed response.
type ErrorEnvelope struct {
	Details any    `json:"details,omitempty"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Version int    `json:"v"`
	Success bool   `json:"success"`
}

// Success builds a success envelope around data.
func Success(data any) Envelope {
	return Envelope{Version: Version, Success: true, Data: data}
}

// Failure builds an error envelope.
func Failure(code, message string, details any) ErrorEnvelope {
	return ErrorEnvelope{Version: Version, Error: message, Code: code, Details: details}
}

// JSON writes data in a success envelope.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	write(w, status, Success(data), logger)
}

// Error writes an error envelope with the code derived from status.
func Error(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	code := domainerrors.CodeInternal
	switch status {
	case http.StatusBadRequest:
		code = domainerrors.CodeValidation
	case http.StatusUnauthorized:
		code = domainerrors.CodeUnauthorized
	case http.StatusForbidden:
		code = domainerrors.CodeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		code = domainerrors.CodeNotFound
	case http.StatusConflict:
		code = domainerrors.CodeConflict
	case http.StatusTooManyRequests:
		code = domainerrors.CodeRateLimited
	}
	write(w, status, Failure(string(code), message, nil), logger)
}

// HandleError maps err to a response. Domain errors keep their code, message
// and details; anything else becomes a 500 without leaking its text.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		write(w, domainErr.HTTPStatus(), Failure(string(domainErr.Code), domainErr.Message, domainErr.Details), logger)
		return
	}

	if logger != nil {
		logger.Error("unhandled error", "error", err)
	}
	write(w, http.StatusInternalServerError, Failure(string(domainerrors.CodeInternal), "internal server error", nil), logger)
}

// NotFound is a router fallback for unknown paths.
func NotFound(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		Error(w, http.StatusNotFound, "route not found", logger)
	}
}

// MethodNotAllowed is a router fallback for known paths with the wrong method.
func MethodNotAllowed(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		Error(w, http.StatusMethodNotAllowed, "method not allowed", logger)
	}
}

func write(w http.ResponseWriter, status int, body any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil && logger != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
