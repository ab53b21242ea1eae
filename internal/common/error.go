// Package common defines shared constants and sentinel errors used across
// stashkeeper components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Validation errors, detected before any storage mutation is attempted.
	ErrInvalidCategory = errors.New("invalid category")
	ErrEmptyPayload    = errors.New("empty payload")

	// Service-level errors (generic/internal flow control).
	ErrInternal = errors.New("internal error")
)
