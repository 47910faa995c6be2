package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//   - Given a status code the REST data source maps back to engine errors
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. Status is derived from the error's type, the message via grid.MapError
//  4. Technical error + context is logged with request ID for correlation

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/gridkit/internal/grid"
	"github.com/JonMunkholm/gridkit/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Action  string                 `json:"action,omitempty"`
	Code    string                 `json:"code"`
	Fields  []grid.ValidationError `json:"fields,omitempty"`
}

// respondError logs err and writes its user-facing JSON form.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := grid.MapError(err)

	log := logging.FromContext(r.Context())
	if status >= 500 {
		log.Error("request error",
			"path", r.URL.Path, "method", r.Method, "status", status,
			"error", err.Error(), "code", userMsg.Code)
	} else {
		log.Warn("request rejected",
			"path", r.URL.Path, "method", r.Method, "status", status,
			"error", err.Error(), "code", userMsg.Code)
	}

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}
	var verrs grid.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Fields = verrs
	}
	writeJSON(w, status, resp)
}

// writeError writes a plain error for failures that carry no engine error.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	logging.FromContext(r.Context()).Warn("request rejected",
		"path", r.URL.Path, "method", r.Method, "status", status, "error", message)
	writeJSON(w, status, ErrorResponse{Error: message, Message: message, Code: http.StatusText(status)})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	var verrs grid.ValidationErrors
	switch {
	case errors.Is(err, grid.ErrUnknownGrid), errors.Is(err, grid.ErrRowNotFound):
		return http.StatusNotFound
	case errors.Is(err, grid.ErrUnsupportedOperation):
		return http.StatusNotImplemented
	case errors.Is(err, grid.ErrInvalidPagination):
		return http.StatusBadRequest
	case errors.Is(err, grid.ErrColumnNotEditable), errors.As(err, &verrs):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate key") {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
