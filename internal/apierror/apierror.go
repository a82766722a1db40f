// Package apierror provides the response envelope and the error taxonomy shared
// by services and handlers. All errors returned to clients go through this
// package so storage details (SQL text, driver errors) never leak.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Envelope is the canonical body for every HTTP response.
type Envelope struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Error   bool        `json:"error"`
	Success bool        `json:"success"`
}

// OK builds a success envelope.
func OK(msg string, data interface{}) Envelope {
	return Envelope{Message: msg, Data: data, Success: true}
}

// New builds an error envelope with no payload.
func New(msg string) Envelope {
	return Envelope{Message: msg, Error: true}
}

// ValidationError carries per-field validator failures.
type ValidationError struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
	Error   bool              `json:"error"`
	Success bool              `json:"success"`
}

func NewValidation(fields map[string]string) ValidationError {
	return ValidationError{Message: "Validation failed", Fields: fields, Error: true}
}

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
)

// NotFound wraps ErrNotFound with the missing entity.
func NotFound(entity string, id interface{}) error {
	return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
}

// InvalidArgument wraps ErrInvalidArgument with a caller-facing reason.
func InvalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

// StorageError marks a failed persistence call. Op names the repository
// operation so logs can be correlated without exposing the driver error.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a *StorageError. A nil err stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorage reports whether err came from the persistence layer.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// Status maps a service error to its HTTP status code.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text safe to show a client for err.
func Message(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}
