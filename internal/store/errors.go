package store

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when no row matched the requested id or state.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("duplicate")
	// ErrNotDeleted is returned when purging a record that was never soft-deleted.
	ErrNotDeleted = errors.New("record is not deleted")
	// ErrDeletionTimeUnknown is returned when a deleted record has no usable deleted_at.
	ErrDeletionTimeUnknown = errors.New("deletion time unknown")
	// ErrGraceExpired is returned when the purge grace window has closed.
	ErrGraceExpired = errors.New("purge grace window expired")
)

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
