// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Image errors.
	ErrImageFetch     = errors.New("image fetch failed")
	ErrImageTooLarge  = errors.New("image payload too large")
	ErrNotAnImage     = errors.New("content is not an image")
	ErrFetchRateLimit = errors.New("image host rate limit exceeded")

	// Deduplication errors.
	ErrDetectionFailed       = errors.New("duplicate detection failed")
	ErrReviewAlreadyResolved = errors.New("review item already resolved")

	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
