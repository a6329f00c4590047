// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses and the mapping
// from domain errors to status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"spendguard/internal/auth"
	"spendguard/internal/core"
	"spendguard/internal/ledger"
	applog "spendguard/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body sends none.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal_error","message":"response encoding failed"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(payload, '\n'))
}

// errorBody is the payload of every non-2xx response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorBody{Error: code, Message: message})
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "not_found", "resource not found")
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

// UnauthorizedError creates a 401 response asking for a bearer token.
func UnauthorizedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "unauthorized", "valid bearer token required").
		Header("WWW-Authenticate", `Bearer realm="spendguard"`)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later")
}

// StatusClientClosedRequest is the non-standard status for requests the
// client abandoned. It stays below 500 so it is not logged as a failure.
const StatusClientClosedRequest = 499

// ErrorFor maps err to a response. Store and internal failures never leak
// their detail to the caller.
func ErrorFor(err error) *JSONResponseBuilder {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return NewJSONResponse().
			Status(http.StatusUnprocessableEntity).
			Body(errorBody{Error: "validation_error", Message: ve.Err.Error(), Field: ve.Field})
	case errors.Is(err, auth.ErrNotAuthenticated):
		return UnauthorizedError()
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads this body.
		return ErrorResponse(StatusClientClosedRequest, "client_closed", "request cancelled")
	case errors.Is(err, ledger.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(http.StatusServiceUnavailable, "store_unavailable", "storage temporarily unavailable")
	default:
		return ErrorResponse(http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// writeError logs server-side failures and writes the mapped response.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFor(err)
	if resp.statusCode >= http.StatusInternalServerError {
		errorType := applog.ErrorTypeInternal
		if resp.statusCode == http.StatusServiceUnavailable {
			errorType = applog.ErrorTypeDatabase
		}
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, errorType, applog.ComponentHTTP, op)
	}
	resp.Write(w)
}
