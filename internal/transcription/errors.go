package transcription

import (
	"errors"
	"fmt"
)

// ErrEmptyResult indicates the provider answered successfully but returned no text
var ErrEmptyResult = errors.New("transcription service returned no text")

// ErrNoCredential indicates no API key was supplied by the caller and no
// process-wide default is configured
var ErrNoCredential = errors.New("OpenAI API key is not configured")

// AuthError indicates the provider rejected the supplied credential
type AuthError struct {
	Err error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	return "invalid or expired OpenAI API key"
}

// Unwrap returns the underlying provider error
func (e *AuthError) Unwrap() error {
	return e.Err
}

// ProviderError carries the provider's status code and raw diagnostic body
// for any non-success response that is not an auth failure
type ProviderError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	return fmt.Sprintf("transcription service error (status %d): %s", e.StatusCode, e.Body)
}
