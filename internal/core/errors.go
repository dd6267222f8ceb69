package core

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyExists is returned by stores when a create collides with an existing id.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnknownSession is returned when a check-in names a session that does not exist.
	ErrUnknownSession = errors.New("unknown check-in session")
)

// NotFoundError reports a missing participant, record, dataset, or session.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Kind + " not found"
	}
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFound builds a *NotFoundError.
func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsNotFound reports whether err is or wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// StoreError wraps a persistence failure. Callers receive it unmodified and
// nothing in this package retries.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// storeErr wraps err as a *StoreError unless it already carries a domain meaning.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if IsNotFound(err) || errors.Is(err, ErrAlreadyExists) || errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	if errors.As(err, &ve) {
		return true
	}
	var ves ValidationErrors
	return errors.As(err, &ves)
}
