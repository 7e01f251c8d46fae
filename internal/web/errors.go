package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err, statusFor(err))
//  3. Error is mapped via core.MapError to get user-friendly message
//  4. Technical error + context is logged with request ID for correlation
//  5. User message is written as JSON

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/csvimport/internal/charset"
	"github.com/JonMunkholm/csvimport/internal/core"
	"github.com/JonMunkholm/csvimport/internal/logging"
)

var (
	errNoFile       = errors.New("no file provided")
	errBadBody      = errors.New("invalid request body")
	errTooManyFiles = errors.New("too many files")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for an error returned by the service.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError

	switch {
	case errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrTemplateNotFound),
		errors.Is(err, core.ErrUnknownTarget):
		return http.StatusNotFound
	case errors.Is(err, core.ErrFileTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUnmappedRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTemplateExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrInvalidOptions),
		errors.Is(err, core.ErrUnknownField),
		errors.Is(err, core.ErrUnknownColumn),
		errors.Is(err, core.ErrTemplateName),
		errors.Is(err, charset.ErrUnsupportedEncoding),
		errors.Is(err, errNoFile),
		errors.Is(err, errBadBody),
		errors.Is(err, errTooManyFiles):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the technical error and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	writeJSON(w, statusCode, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// fail is respondError with the status derived from err.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, err, statusFor(err))
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
