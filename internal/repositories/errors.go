package repositories

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a StoreError.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindConflict
	KindUnavailable
)

// StoreError is the RepositoryError returned by non-Firestore stores.
type StoreError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *StoreError) Error() string {
	msg := "repository error"
	switch e.Kind {
	case KindNotFound:
		msg = "not found"
	case KindConflict:
		msg = "conflict"
	case KindUnavailable:
		msg = "unavailable"
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) IsNotFound() bool    { return e.Kind == KindNotFound }
func (e *StoreError) IsConflict() bool    { return e.Kind == KindConflict }
func (e *StoreError) IsUnavailable() bool { return e.Kind == KindUnavailable }

// NotFound builds a not-found StoreError for op.
func NotFound(op string) error {
	return &StoreError{Op: op, Kind: KindNotFound}
}

// Conflict builds a conflict StoreError for op.
func Conflict(op string, err error) error {
	return &StoreError{Op: op, Kind: KindConflict, Err: err}
}

// IsNotFound reports whether err is a RepositoryError for a missing record.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err is a RepositoryError for a conflicting write.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err is a transient RepositoryError.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}
