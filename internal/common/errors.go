// Package common defines shared constants and sentinel errors used across
// the Eggs Regaco client and gateway layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Cache/repository-level errors.
	ErrNotFound = errors.New("not found")

	// Transport-level errors.
	ErrUnavailable = errors.New("server unavailable")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")

	// Confirmation-workflow errors.
	ErrPermissionDenied = errors.New("permission denied")
	ErrAlreadyVerified  = errors.New("event already verified")
	ErrNotVerified      = errors.New("event not verified")
	ErrEventDenied      = errors.New("event was denied")
)
