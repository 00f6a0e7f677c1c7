package classify

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrorKind names a failure class a retry policy can opt into.
type ErrorKind string

const (
	KindUnknown          ErrorKind = "unknown"
	KindCanceled         ErrorKind = "canceled"
	KindTimeout          ErrorKind = "timeout"
	KindTransientStorage ErrorKind = "transient_storage"
)

// ParseErrorKind maps a config string onto an ErrorKind.
func ParseErrorKind(s string) (ErrorKind, bool) {
	switch ErrorKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindTransientStorage:
		return KindTransientStorage, true
	case KindTimeout:
		return KindTimeout, true
	case KindCanceled:
		return KindCanceled, true
	case KindUnknown:
		return KindUnknown, true
	default:
		return "", false
	}
}

// transient is implemented by errors that know whether they are temporary.
type transient interface {
	Transient() bool
}

type transientError struct {
	err error
}

func (e *transientError) Error() string   { return e.err.Error() }
func (e *transientError) Unwrap() error   { return e.err }
func (e *transientError) Transient() bool { return true }

// MarkTransient wraps err so that KindOf reports KindTransientStorage.
// It is meant for storage adapters whose driver errors are not recognised natively.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Postgres SQLSTATEs that indicate the server could not be reached or is
// refusing connections for now.
var pqTransientCodes = map[pq.ErrorCode]struct{}{
	"53300": {}, // too_many_connections
	"57P01": {}, // admin_shutdown
	"57P02": {}, // crash_shutdown
	"57P03": {}, // cannot_connect_now
}

// KindOf reports the failure class of err.
//
// Storage connectivity failures are recognised for lib/pq (connection
// exception class 08 plus shutdown/overload codes), modernc sqlite
// (BUSY/LOCKED), database/sql's ErrBadConn, refused/reset sockets, network
// errors including dial timeouts, and any error in the chain implementing Transient() bool.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	var t transient
	if errors.As(err, &t) && t.Transient() {
		return KindTransientStorage
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "08" {
			return KindTransientStorage
		}
		if _, ok := pqTransientCodes[pqErr.Code]; ok {
			return KindTransientStorage
		}
		return KindUnknown
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return KindTransientStorage
		}
		return KindUnknown
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return KindTransientStorage
	}

	// context.DeadlineExceeded satisfies net.Error, so it is checked first.
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransientStorage
	}
	return KindUnknown
}
