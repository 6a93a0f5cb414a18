package services

import "errors"

// Sentinel error kinds surfaced by the service layer. Handlers map these to
// HTTP statuses instead of matching on message strings.
var (
	// ErrNotFound covers both genuinely missing resources and resources
	// belonging to another organization, so existence never leaks across
	// tenants.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals a duplicate resource (e.g. email already registered).
	ErrConflict = errors.New("conflict")

	// ErrInvalidSignature signals a webhook whose signature failed
	// verification. Nothing is mutated in that case.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrDelivery signals a failed call to an external collaborator
	// (email, PDF, payment provider).
	ErrDelivery = errors.New("delivery failed")
)

// ValidationError carries field-level violations. It is returned before any
// mutation happens.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "validation failed" }
