// Package services - errors.go defines the typed errors returned by the review workflow.
// The HTTP layer maps them onto status codes with errors.As.
package services

import "fmt"

// AuthorizationError means the acting role may not perform the operation
type AuthorizationError struct {
	Action string
	Role   string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q is not allowed to %s", e.Role, e.Action)
}

// NotFoundError means a referenced record does not exist
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError means the operation clashes with the record's current state
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// ValidationError means the request carried a malformed value
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}
