package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrNotFound              = errors.New("order not found")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrForbidden             = errors.New("privileged access required")
	ErrDuplicateTrackingCode = errors.New("duplicate tracking code")
	ErrPersistence           = errors.New("persistence failure")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violated field, never only the first one.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when nothing was added, so callers can `return v.OrNil()`.
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
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + ErrPersistence.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// StorageError classifies an error coming back from the store: expected outcomes
// (not found, duplicate code, already classified errors) pass through, anything
// else becomes a PersistenceError for op.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrDuplicateTrackingCode, ErrValidation, ErrInvalidTransition, ErrForbidden, ErrPersistence} {
		if errors.Is(err, known) {
			return err
		}
	}
	return NewPersistenceError(op, err)
}
