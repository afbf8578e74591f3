package store

import (
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrorKind classifies database failures so callers can pick a recovery
// strategy without matching on driver-specific codes.
type ErrorKind int

const (
	// ErrGeneric is any failure without a more specific classification.
	ErrGeneric ErrorKind = iota
	// ErrConstraint is a unique or foreign-key violation.
	ErrConstraint
	// ErrBusy is a transient locking failure, safe to retry.
	ErrBusy
	// ErrCorrupt means the database file is damaged.
	ErrCorrupt
)

func (k ErrorKind) String() string {
	switch k {
	case ErrConstraint:
		return "constraint"
	case ErrBusy:
		return "busy"
	case ErrCorrupt:
		return "corrupt"
	default:
		return "generic"
	}
}

// Error wraps a driver error with its classification.
type Error struct {
	Kind ErrorKind
	err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sqlite %s error: %v", e.Kind, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// classifyError maps a driver error to a store Error. nil stays nil.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return &Error{Kind: ErrGeneric, err: err}
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_CONSTRAINT:
		return &Error{Kind: ErrConstraint, err: err}
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return &Error{Kind: ErrBusy, err: err}
	case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
		return &Error{Kind: ErrCorrupt, err: err}
	default:
		return &Error{Kind: ErrGeneric, err: err}
	}
}

// IsKind reports whether err is a store Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
