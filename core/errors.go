package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError reports a key that does not resolve to an entity.
type NotFoundError struct {
	message string
}

func NewNotFoundError(format string, args ...interface{}) error {
	return &NotFoundError{message: fmt.Sprintf(format, args...)}
}

func (err NotFoundError) Error() string { return err.message }

// UnauthorizedError reports a missing or invalid credential, a wrong identity or a wrong role.
type UnauthorizedError struct {
	message string
}

func NewUnauthorizedError(format string, args ...interface{}) error {
	return &UnauthorizedError{message: fmt.Sprintf(format, args...)}
}

func (err UnauthorizedError) Error() string { return err.message }

// ConflictError reports a duplicate value of a unique key.
type ConflictError struct {
	message string
}

func NewConflictError(format string, args ...interface{}) error {
	return &ConflictError{message: fmt.Sprintf(format, args...)}
}

func (err ConflictError) Error() string { return err.message }

func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

func IsUnauthorized(err error) bool {
	var uErr *UnauthorizedError
	return errors.As(err, &uErr)
}

func IsConflict(err error) bool {
	var cErr *ConflictError
	return errors.As(err, &cErr)
}

func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
