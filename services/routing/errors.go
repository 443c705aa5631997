package routing

import (
	"errors"
	"fmt"
)

var (
	// ErrNoProviderAvailable is returned when no provider has a credential
	// even after a global health reset. The text is shown to end users.
	ErrNoProviderAvailable = errors.New("No available AI providers. Please check your API keys.") //nolint:staticcheck

	// ErrUnknownProvider is returned when forcing a key that is not registered
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrProviderNotConfigured is returned when forcing a provider without a credential
	ErrProviderNotConfigured = errors.New("provider has no API key configured")
)

// AttemptsExhaustedError is returned when every attempt of the stateful router failed
type AttemptsExhaustedError struct {
	Attempts int
	Last     error
}

func (e *AttemptsExhaustedError) Error() string {
	msg := "Unknown error"
	if e.Last != nil {
		msg = e.Last.Error()
	}
	return fmt.Sprintf("Failed to get AI response after %d attempts. Last error: %s", e.Attempts, msg)
}

func (e *AttemptsExhaustedError) Unwrap() error {
	return e.Last
}

// AllProvidersFailedError is returned when the last fallback entry failed
type AllProvidersFailedError struct {
	Last error
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("All AI providers failed. Last error: %s. Please check your API keys or try again later.", e.Last.Error())
}

func (e *AllProvidersFailedError) Unwrap() error {
	return e.Last
}
