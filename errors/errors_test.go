package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWaveError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *WaveError
		want string
	}{
		{
			name: "without wrapped error",
			err: &WaveError{
				Type:    ValidationError,
				Message: "message is required",
			},
			want: "validation_error: message is required",
		},
		{
			name: "with wrapped error",
			err: &WaveError{
				Type:    ProviderError,
				Message: "hyperclova failed",
				err:     errors.New("status 503"),
			},
			want: "provider_error: hyperclova failed: status 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("WaveError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWaveError_Is(t *testing.T) {
	err1 := &WaveError{Type: ParseError, Message: "bad json"}
	err2 := &WaveError{Type: ParseError, Message: "no object"}
	err3 := &WaveError{Type: ValidationError, Message: "missing"}

	if !errors.Is(err1, err2) {
		t.Error("expected errors of the same type to match")
	}
	if errors.Is(err1, err3) {
		t.Error("expected errors of different types not to match")
	}

	wrapped := fmt.Errorf("diary: %w", err1)
	if !errors.Is(wrapped, &WaveError{Type: ParseError}) {
		t.Error("expected wrapped parse error to match by type")
	}
}

func TestWaveError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewProviderError("req", "ollama failed", inner)

	if err.Unwrap() != inner {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), inner)
	}

	var target *WaveError
	if !As(fmt.Errorf("gateway: %w", err), &target) {
		t.Fatal("expected As to find the WaveError")
	}
	if target.Type != ProviderError {
		t.Errorf("As() type = %v, want %v", target.Type, ProviderError)
	}
}

func TestConstructors(t *testing.T) {
	inner := errors.New("boom")
	tests := []struct {
		name     string
		err      *WaveError
		wantType ErrorType
		wantCode int
	}{
		{"validation", NewValidationError("r", "bad", nil), ValidationError, http.StatusBadRequest},
		{"config", NewConfigError("r", "no key", inner), ConfigError, http.StatusServiceUnavailable},
		{"provider", NewProviderError("r", "upstream", inner), ProviderError, http.StatusBadGateway},
		{"parse", NewParseError("r", "json", inner), ParseError, http.StatusBadGateway},
		{"rate limit", NewRateLimitError("r", 60), RateLimitError, http.StatusTooManyRequests},
		{"not found", NewNotFoundError("r", "no route"), NotFoundError, http.StatusNotFound},
		{"internal", NewInternalError("r", inner), InternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("type = %v, want %v", tt.err.Type, tt.wantType)
			}
			if tt.err.Code != tt.wantCode {
				t.Errorf("code = %v, want %v", tt.err.Code, tt.wantCode)
			}
			if tt.err.RequestID != "r" {
				t.Errorf("request id = %v, want r", tt.err.RequestID)
			}
		})
	}

	if got := NewRateLimitError("r", 60).Details["retry_after"]; got != 60 {
		t.Errorf("retry_after = %v, want 60", got)
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name           string
		err            *WaveError
		expectedCode   int
		expectedFields []string
	}{
		{
			name:           "plain",
			err:            NewNotFoundError("test-id", "no such character"),
			expectedCode:   http.StatusNotFound,
			expectedFields: []string{"type", "message", "request_id"},
		},
		{
			name: "with details",
			err: NewValidationError("test-id", "Invalid chat request", map[string]interface{}{
				"field": "message",
			}),
			expectedCode:   http.StatusBadRequest,
			expectedFields: []string{"type", "message", "request_id", "details"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, tt.err)

			if rr.Code != tt.expectedCode {
				t.Errorf("status = %v, want %v", rr.Code, tt.expectedCode)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content-type = %v, want application/json", ct)
			}

			var body map[string]interface{}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			for _, field := range tt.expectedFields {
				if _, ok := body[field]; !ok {
					t.Errorf("missing field %s", field)
				}
			}
			if _, ok := body["Code"]; ok {
				t.Error("status code must not be serialized")
			}
		})
	}
}

func TestErrorWithType_UsesRequestIDHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Header().Set("X-Request-ID", "abc")

	ErrorWithType(rr, "message is required", ValidationError, http.StatusBadRequest)

	var body WaveError
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.RequestID != "abc" {
		t.Errorf("request_id = %q, want abc", body.RequestID)
	}
	if body.Type != ValidationError {
		t.Errorf("type = %q, want %q", body.Type, ValidationError)
	}
}
