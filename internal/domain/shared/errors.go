// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "concept", "mastery", "journey"
	Op      string // Operation that failed, e.g., "Resolve", "RecordAttempt"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Concept taxonomy errors
var (
	ErrConceptNotFound      = NewDomainError("concept", "Resolve", ErrNotFound, "concept not found")
	ErrConceptAlreadyExists = NewDomainError("concept", "Create", ErrAlreadyExists, "concept already exists")
	ErrInvalidConceptName   = NewDomainError("concept", "Validate", ErrEmptyValue, "concept name cannot be empty")
	ErrInvalidRelationKind  = NewDomainError("concept", "Validate", ErrInvalidInput, "unknown relationship kind")
	ErrInvalidStrength      = NewDomainError("concept", "Validate", ErrValueOutOfRange, "strength must be within [0,1]")
	ErrInvalidConfidence    = NewDomainError("concept", "Validate", ErrValueOutOfRange, "confidence must be within [0,1]")
	ErrSelfRelationship     = NewDomainError("concept", "Relate", ErrInvalidInput, "concept cannot relate to itself")
)

// Mastery ledger errors
var (
	ErrMasteryRecordNotFound = NewDomainError("mastery", "Find", ErrNotFound, "mastery record not found")
	ErrInvalidAttemptState   = NewDomainError("mastery", "RecordAttempt", ErrInvalidInput, "attempt is missing required identity")
	ErrPersistenceConflict   = NewDomainError("mastery", "Save", ErrConcurrentModification, "concurrent write to the same mastery record")
)

// Journey and milestone errors
var (
	ErrJourneyNotFound        = NewDomainError("journey", "Find", ErrNotFound, "learning journey not found")
	ErrMilestoneAlreadyExists = NewDomainError("journey", "RecordMilestone", ErrAlreadyProcessed, "milestone already recorded")
)

// Propagation errors
var (
	ErrPropagationFailure = NewDomainError("realtime", "Push", ErrExternalService, "failed to push event to delivery channel")
	ErrChannelUnavailable = NewDomainError("realtime", "Push", ErrServiceUnavailable, "delivery channel is unavailable")
)

// External collaborator errors
var (
	ErrRequirementsUnavailable = NewDomainError("assignments", "Request", ErrServiceUnavailable, "assignment collaborator is unavailable")
	ErrRequirementsMalformed   = NewDomainError("assignments", "Parse", ErrInvalidFormat, "invalid response from assignment collaborator")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsConflict checks if the error is a concurrent-modification conflict.
// Conflicts are retried internally by the write path and must never
// reach callers of RecordAttempt.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
