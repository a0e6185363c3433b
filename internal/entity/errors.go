package entity

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidURL is returned when a target URL is not a well-formed absolute
	// URL with an allowed scheme.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidCode is returned when a custom short code has a forbidden shape.
	ErrInvalidCode = errors.New("invalid short code")
	// ErrInvalidExpiry is returned when a requested expiry is not in the future.
	ErrInvalidExpiry = errors.New("expiry must be in the future")
	// ErrShortCodeExists is returned by stores when a code is already present.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrCodeAlreadyTaken is returned when a requested custom code is in use.
	ErrCodeAlreadyTaken = errors.New("short code already taken")
	// ErrCodeSpaceExhausted is returned when every generated candidate collided.
	// It signals that the code length or alphabet must be enlarged.
	ErrCodeSpaceExhausted = errors.New("short code space exhausted")
	// ErrURLNotFound is returned when a code is unknown or expired.
	ErrURLNotFound = errors.New("url not found")
	// ErrRateLimited is returned when an identity exceeded its request quota.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// RateLimitError carries the retry hint of a rejected request.
// It matches ErrRateLimited with errors.Is.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
