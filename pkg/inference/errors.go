package inference

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoAPIKey is returned when API key is required but missing.
	ErrNoAPIKey = errors.New("inference: API key required")

	// ErrProviderUnavailable is returned when no provider offers a capability.
	ErrProviderUnavailable = errors.New("inference: provider unavailable")

	// ErrEmptyResult is returned when a provider answers with nothing usable.
	ErrEmptyResult = errors.New("inference: empty result")

	// ErrInvalidRequest is returned for requests that cannot be sent.
	ErrInvalidRequest = errors.New("inference: invalid request")
)

// APIError represents an error response from an inference API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("inference [%s]: API error %d (%s): %s",
			e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("inference [%s]: API error %d: %s",
		e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsUnauthorized returns true for HTTP 401 and 403.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || (e.StatusCode >= 500 && e.StatusCode < 600)
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("inference [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// ChainError aggregates errors from all providers in a chain.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "inference chain: no errors recorded"
	case 1:
		return fmt.Sprintf("inference chain: %v", e.Errors[0])
	default:
		return fmt.Sprintf("inference chain: all %d providers failed, last error: %v",
			len(e.Errors), e.Errors[len(e.Errors)-1])
	}
}

// Unwrap exposes every provider error to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	return e.Errors
}

// TranscriptionError is returned when speech cannot be turned into text.
type TranscriptionError struct{ Err error }

func (e *TranscriptionError) Error() string { return "transcription failed: " + e.Err.Error() }
func (e *TranscriptionError) Unwrap() error { return e.Err }

// InferenceError is returned when the agent reply cannot be generated.
type InferenceError struct{ Err error }

func (e *InferenceError) Error() string { return "response generation failed: " + e.Err.Error() }
func (e *InferenceError) Unwrap() error { return e.Err }

// SynthesisError is returned when reply text cannot be turned into speech.
type SynthesisError struct{ Err error }

func (e *SynthesisError) Error() string { return "speech synthesis failed: " + e.Err.Error() }
func (e *SynthesisError) Unwrap() error { return e.Err }
