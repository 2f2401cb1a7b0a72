// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"strings"
	"time"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (username or email taken).
	ErrAlreadyExists = errors.New("username or email already exists")

	// ErrValidation indicates malformed input rejected before touching the store.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials is returned for every login failure: unknown identifier and
	// wrong password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned for every token failure: malformed, bad signature,
	// expired or unknown subject.
	ErrInvalidToken = errors.New("invalid token")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrPadding indicates a decrypt failure: wrong key or corrupted ciphertext.
	ErrPadding = errors.New("wrong key or corrupted ciphertext")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string
	Message string
	Kind    string
}

// ValidationError collects field errors. errors.Is(err, ErrValidation) reports true for it.
type ValidationError struct {
	Fields []FieldError
}

// Add appends a field error.
func (e *ValidationError) Add(field, kind, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Kind: kind, Message: msg})
}

// OrNil returns e when it holds at least one field error, nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// RateLimitError is ErrRateLimited with the remaining lockout.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return ErrRateLimited.Error() }

// Unwrap lets errors.Is match ErrRateLimited.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
