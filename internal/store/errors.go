package store

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned by owner-scoped mutations that matched no row.
	ErrNotFound = errors.New("not found")
	// ErrConstraint is returned when a CHECK or NOT NULL constraint rejects a row.
	ErrConstraint = errors.New("constraint violation")
	// ErrDuplicate is returned when a primary key or unique index rejects a row.
	ErrDuplicate = errors.New("duplicate key")
)

// classify maps SQLite constraint failures onto the package sentinels and
// returns nil for anything else.
func classify(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return nil
	}

	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return ErrDuplicate
	}
	if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return ErrConstraint
	}
	return nil
}

// wrap annotates err and keeps any constraint sentinel reachable through errors.Is.
func wrap(doing string, err error) error {
	if sentinel := classify(err); sentinel != nil {
		return fmt.Errorf("%s: %w: %w", doing, sentinel, err)
	}
	return fmt.Errorf("%s: %w", doing, err)
}
