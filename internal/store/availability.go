package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// Availability is the store's readiness state. It is checked once at the
// top of every public operation.
type Availability int

const (
	Unknown Availability = iota
	Available
	UnavailablePermanent
	UnavailableTransient
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case UnavailablePermanent:
		return "unavailable-permanent"
	case UnavailableTransient:
		return "unavailable-transient"
	default:
		return "unknown"
	}
}

// UnavailableKind identifies why Init could not open the store.
type UnavailableKind string

const (
	// KindNoCapability: the platform cannot host a local database at all.
	KindNoCapability UnavailableKind = "NO_CAPABILITY"

	// KindCorrupted: the database file is damaged beyond repair.
	KindCorrupted UnavailableKind = "CORRUPTED"

	// KindVersionMismatch: the on-disk schema is newer than this build.
	KindVersionMismatch UnavailableKind = "VERSION_MISMATCH"

	// KindLocked: another session held the database lock through a retry.
	KindLocked UnavailableKind = "LOCKED"
)

// UnavailableError reports a classified Init failure.
type UnavailableError struct {
	Kind UnavailableKind
	Path string
	Err  error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store unavailable (%s) at %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("store unavailable (%s) at %s", e.Kind, e.Path)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Permanent reports whether the failure can never clear in this process.
func (e *UnavailableError) Permanent() bool {
	return e.Kind == KindNoCapability || e.Kind == KindCorrupted
}

// IsPermanent reports whether err is a permanent UnavailableError.
func IsPermanent(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue) && ue.Permanent()
}

// IsTransient reports whether err is a transient UnavailableError.
func IsTransient(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue) && !ue.Permanent()
}

// IsKind reports whether err is an UnavailableError of the given kind.
func IsKind(err error, kind UnavailableKind) bool {
	var ue *UnavailableError
	return errors.As(err, &ue) && ue.Kind == kind
}

// classify maps a raw open/upgrade failure to its kind. The boolean is
// false when the error does not fit any known terminal condition; such
// errors are treated as corruption since nothing in-process can repair them.
func classify(err error) (UnavailableKind, bool) {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return KindLocked, true
		case sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
			return KindCorrupted, true
		case sqlite3.ErrCantOpen, sqlite3.ErrPerm, sqlite3.ErrReadonly, sqlite3.ErrNoLFS:
			return KindNoCapability, true
		}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unknown driver"), strings.Contains(msg, "unable to open database file"):
		return KindNoCapability, true
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "database table is locked"):
		return KindLocked, true
	case strings.Contains(msg, "file is not a database"), strings.Contains(msg, "malformed"):
		return KindCorrupted, true
	}
	return KindCorrupted, false
}
