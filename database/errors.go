package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// pqUniqueViolation is the PostgreSQL SQLSTATE for a duplicate key.
const pqUniqueViolation = "23505"

// DBError wraps a failed repository operation
type DBError struct {
	Operation string
	Err       error
}

func (e *DBError) Error() string {
	return fmt.Sprintf("database error in %s: %v", e.Operation, e.Err)
}

func (e *DBError) Unwrap() error {
	return e.Err
}

// ConflictError reports a write that collided with an existing row, such as a COPY of a
// date already stored in sep_events.
type ConflictError struct {
	Operation  string
	Constraint string
	Err        error
}

func (e *ConflictError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("%s: duplicate key violates %s", e.Operation, e.Constraint)
	}
	return fmt.Sprintf("%s: duplicate key", e.Operation)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a missing row
type NotFoundError struct {
	Resource string
	ID       interface{}
}

func (e *NotFoundError) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("%s not found: %v", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// ValidationError reports a rejected query argument
type ValidationError struct {
	Field  string
	Reason string
	Value  interface{}
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("invalid %s: %s (value: %v)", e.Field, e.Reason, e.Value)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// WrapDBError attaches the operation name to err. Duplicate key errors from PostgreSQL or
// gorm become a ConflictError.
func WrapDBError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return &ConflictError{Operation: operation, Constraint: pqErr.Constraint, Err: err}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &ConflictError{Operation: operation, Err: err}
	}
	return &DBError{Operation: operation, Err: err}
}

// NewNotFoundErrorWithID creates a NotFoundError for resource id
func NewNotFoundErrorWithID(resource string, id interface{}) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// NewValidationErrorWithValue creates a ValidationError carrying the offending value
func NewValidationErrorWithValue(field, reason string, value interface{}) error {
	return &ValidationError{Field: field, Reason: reason, Value: value}
}
