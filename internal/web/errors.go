package web

// errors.go renders every failed request the same way: the technical error
// is logged with the request id, and the client receives the mapped
// exchange.UserMessage as JSON, or as an HTML fragment for HTMX requests.

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/assessx/internal/catalog"
	"github.com/JonMunkholm/assessx/internal/exchange"
	"github.com/JonMunkholm/assessx/internal/logging"
	"github.com/JonMunkholm/assessx/internal/requests"
	"github.com/JonMunkholm/assessx/internal/wizard"
)

var (
	errRateLimited     = errors.New("rate limit exceeded")
	errNoFile          = errors.New("no file provided")
	errFileTooLarge    = errors.New("file too large or invalid form")
	errUnknownRole     = errors.New("unknown role")
	errExportFormat    = errors.New("unsupported export format")
	errStreamingFailed = errors.New("streaming not supported")
)

// ErrorResponse is the JSON body of a failed API request.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Action  string            `json:"action,omitempty"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// requestError is a malformed request body. Fields maps JSON field names
// to the failed validation rule.
type requestError struct {
	Fields map[string]string
	Err    error
}

func (e *requestError) Error() string {
	if e.Err != nil {
		return "invalid request: " + e.Err.Error()
	}
	return fmt.Sprintf("invalid request: %v", e.Fields)
}

func (e *requestError) Unwrap() error {
	return e.Err
}

// statusFor picks the HTTP status for err when the handler did not.
func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, wizard.ErrSessionNotFound),
		errors.Is(err, wizard.ErrEntryNotFound),
		errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, wizard.ErrImportBlocked),
		errors.Is(err, wizard.ErrImportStarted),
		errors.Is(err, catalog.ErrNameTaken):
		return http.StatusConflict
	case errors.Is(err, wizard.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, requests.ErrTooManyRequests), errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, exchange.ErrEmptyFile),
		errors.Is(err, exchange.ErrUnsupportedFormat),
		errors.Is(err, errNoFile),
		errors.Is(err, errUnknownRole),
		errors.Is(err, errExportFormat):
		return http.StatusBadRequest
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user message. A zero
// status is derived from err.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	msg := exchange.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{"path", r.URL.Path, "method", r.Method, "status", status, "code", msg.Code, "error", err}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = errorAlert(msg).Render(r.Context(), w)
		return
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		resp.Fields = reqErr.Fields
	}
	// Blocked imports and column problems carry a precise sentence of
	// their own; keep it for the client.
	if errors.Is(err, wizard.ErrImportBlocked) || errors.Is(err, exchange.ErrEmptyFile) {
		resp.Error = err.Error()
	}
	writeJSON(w, status, resp)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
