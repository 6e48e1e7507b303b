package provider

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConfigured marks a provider without credentials.
	ErrNotConfigured = errors.New("provider not configured")

	// ErrAllProvidersFailed is matched by the error Gateway.Generate returns
	// when no provider produced a response.
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrUnknownProvider is returned for names the gateway does not know.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrEmptyResponse marks a 2xx reply with no usable content.
	ErrEmptyResponse = errors.New("empty response")
)

// ProviderError is a failed call to one provider.
type ProviderError struct {
	Provider   string
	StatusCode int // zero for transport errors
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Attempt records why one provider in the chain did not answer.
type Attempt struct {
	Provider string
	Err      error
}

// AllFailedError carries every attempt made for one request.
type AllFailedError struct {
	Attempts []Attempt
}

func (e *AllFailedError) Error() string {
	if len(e.Attempts) == 0 {
		return ErrAllProvidersFailed.Error() + ": no providers in preference list"
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Provider + ": " + a.Err.Error()
	}
	return ErrAllProvidersFailed.Error() + " (" + strings.Join(parts, "; ") + ")"
}

func (e *AllFailedError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

func (e *AllFailedError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}
