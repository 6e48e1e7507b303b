// Package errors provides the error model shared by the wave gateway.
//
// Every failure that reaches an HTTP client is a *WaveError serialized as JSON.
// Provider and parse failures are normally swallowed by the chat pipeline and
// only show up in logs, so the HTTP surface mostly emits validation errors.
//
// Basic usage:
//
//	errors.ErrorWithType(w, "message is required", errors.ValidationError, http.StatusBadRequest)
//
//	err := errors.NewValidationError(requestID, "Invalid chat request", map[string]interface{}{
//	    "field": "messages",
//	    "error": "no user message",
//	})
//	errors.WriteError(w, err)
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the package-level logger used by the server bootstrap.
// It starts as a production logger and can be replaced with SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger replaces DefaultLogger. A nil logger is ignored.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType categorizes a WaveError.
type ErrorType string

const (
	// ValidationError is a malformed client request (missing message, bad JSON).
	ValidationError ErrorType = "validation_error"

	// ConfigError is missing or invalid configuration, such as absent provider credentials.
	ConfigError ErrorType = "config_error"

	// ProviderError is a failed call to an LLM provider.
	ProviderError ErrorType = "provider_error"

	// ParseError is structured LLM output that could not be decoded.
	ParseError ErrorType = "parse_error"

	// InternalError is anything unexpected.
	InternalError ErrorType = "internal_error"

	// RateLimitError is returned by the rate limit middleware.
	RateLimitError ErrorType = "rate_limit_error"

	// NotFoundError is an unknown route or resource.
	NotFoundError ErrorType = "not_found"

	// TimeoutError is a request that exceeded its deadline.
	TimeoutError ErrorType = "timeout_error"
)

// WaveError carries an error category, an HTTP status and request context.
// It is serialized as the JSON body of every error response.
type WaveError struct {
	// Type categorizes the error for client handling
	Type ErrorType `json:"type"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"request_id"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	err error
}

// Error implements the error interface.
func (e *WaveError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *WaveError) Unwrap() error {
	return e.err
}

// Is matches on Type only, so errors.Is(err, &WaveError{Type: ProviderError})
// recognizes any provider error.
func (e *WaveError) Is(target error) bool {
	t, ok := target.(*WaveError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WriteError writes err as a JSON response with its status code.
func WriteError(w http.ResponseWriter, err *WaveError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
}

// Error is a drop-in replacement for http.Error that writes an InternalError.
// The request ID is taken from the X-Request-ID response header when present.
func Error(w http.ResponseWriter, message string, code int) {
	ErrorWithType(w, message, InternalError, code)
}

// ErrorWithType is like Error but with an explicit error type.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	WriteError(w, &WaveError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}
