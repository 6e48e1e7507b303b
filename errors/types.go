package errors

import (
	"net/http"
)

// NewError creates a WaveError with full control over its fields.
// Prefer the specialized constructors below.
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *WaveError {
	return &WaveError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewValidationError reports a malformed client request. These are the only
// errors the chat and diary endpoints surface to callers.
//
//	err := NewValidationError("req_123", "Invalid chat request", map[string]interface{}{
//	    "field": "message",
//	    "error": "required",
//	})
func NewValidationError(requestID, message string, validationDetails map[string]interface{}) *WaveError {
	return &WaveError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   validationDetails,
	}
}

// NewConfigError reports missing or invalid configuration. A provider without
// credentials produces one of these and is never attempted.
func NewConfigError(requestID, message string, err error) *WaveError {
	return &WaveError{
		Type:      ConfigError,
		Message:   message,
		Code:      http.StatusServiceUnavailable,
		RequestID: requestID,
		err:       err,
	}
}

// NewProviderError wraps a failed provider call: a non-2xx status, an empty
// body, a transport error or a timeout.
func NewProviderError(requestID string, message string, err error) *WaveError {
	return &WaveError{
		Type:      ProviderError,
		Message:   message,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewParseError wraps structured provider output that could not be decoded.
func NewParseError(requestID string, message string, err error) *WaveError {
	return &WaveError{
		Type:      ParseError,
		Message:   message,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewRateLimitError tells the client to back off for retryAfter seconds.
func NewRateLimitError(requestID string, retryAfter int) *WaveError {
	return &WaveError{
		Type:      RateLimitError,
		Message:   "Rate limit exceeded",
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		Details: map[string]interface{}{
			"retry_after": retryAfter,
		},
	}
}

// NewNotFoundError reports an unknown resource.
func NewNotFoundError(requestID, message string) *WaveError {
	return &WaveError{
		Type:      NotFoundError,
		Message:   message,
		Code:      http.StatusNotFound,
		RequestID: requestID,
	}
}

// NewInternalError is the catch-all for panics and unexpected failures.
func NewInternalError(requestID string, err error) *WaveError {
	return &WaveError{
		Type:      InternalError,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}
