package club

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
)

// Machine-readable authentication failure codes.
const (
	AuthUnknownUser = "unknown_user"
	AuthBadPassword = "bad_password"
)

// ValidationError carries a message meant for the caller. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string        { return e.Msg }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

type AuthError struct {
	Code string
}

func (e *AuthError) Error() string { return "authentication failed: " + e.Code }

// StorageError wraps a backend failure. Its message is for logs only.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// storageErr wraps backend failures and lets domain errors raised inside a
// store transaction through untouched.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var auth *AuthError
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrValidation) || errors.As(err, &auth) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
