package pgsql

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an Error. errors.Is matches two *Error values by Kind.
type Kind int

const (
	KindBackend Kind = iota + 1
	KindResultFreed
	KindInvalidArgument
	KindNotFound
	KindCountUnavailable
	KindInvalidState
	KindUnsupported
	KindConnection
	KindLOBSource
)

func (k Kind) String() string {
	switch k {
	case KindBackend:
		return "backend error"
	case KindResultFreed:
		return "result freed"
	case KindInvalidArgument:
		return "invalid argument"
	case KindNotFound:
		return "not found"
	case KindCountUnavailable:
		return "count unavailable"
	case KindInvalidState:
		return "invalid state"
	case KindUnsupported:
		return "unsupported"
	case KindConnection:
		return "connection error"
	case KindLOBSource:
		return "lob source error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned by every operation in this package. SQLState is set when
// the failure came from the server.
type Error struct {
	Kind     Kind
	Op       string
	Message  string
	SQLState string
	Err      error
}

// Error implements the error interface
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("pgsql: ")
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	if e.SQLState != "" {
		sb.WriteString("[")
		sb.WriteString(e.SQLState)
		sb.WriteString("] ")
	}
	if e.Message != "" {
		sb.WriteString(e.Message)
	} else {
		sb.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for use with errors.Is.
var (
	ErrBackend          = &Error{Kind: KindBackend}
	ErrResultFreed      = &Error{Kind: KindResultFreed}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrCountUnavailable = &Error{Kind: KindCountUnavailable}
	ErrInvalidState     = &Error{Kind: KindInvalidState}
	ErrUnsupported      = &Error{Kind: KindUnsupported}
	ErrConnection       = &Error{Kind: KindConnection}
	ErrLOBSource        = &Error{Kind: KindLOBSource}
)

func newError(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

func resultFreed(op string) *Error {
	return newError(KindResultFreed, op, "resultset has already been freed")
}

// DropTableError is returned by DropTable when both the plain and the
// CASCADE drop failed. Err is the first failure, CascadeErr the second.
type DropTableError struct {
	Table      string
	Err        error
	CascadeErr error
}

func (e *DropTableError) Error() string {
	return fmt.Sprintf("pgsql: drop table %s: %v; cascade: %v", e.Table, e.Err, e.CascadeErr)
}

// Unwrap exposes both failures to errors.Is / errors.As.
func (e *DropTableError) Unwrap() []error {
	return []error{e.CascadeErr, e.Err}
}

// SQLSTATE codes and classes used by the helpers below.
// See https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	// SQLStateClassConnection is the class of connection exceptions (08xxx)
	SQLStateClassConnection   = "08"
	SQLStateConnectionFailure = "08006"

	SQLStateDependentObjects = "2BP01"

	// Transaction rollback (40xxx)
	SQLStateSerializationFailure = "40001"
	SQLStateDeadlock             = "40P01"

	SQLStateUndefinedTable = "42P01"
	SQLStateAdminShutdown  = "57P01"
)

func sqlState(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.SQLState
	}
	return ""
}

// IsConnectionError reports whether err indicates a connection problem:
// a collaborator connection failure or a SQLSTATE of class 08.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnection) {
		return true
	}
	state := sqlState(err)
	return strings.HasPrefix(state, SQLStateClassConnection)
}

// IsUndefinedTable reports whether err is a "relation does not exist" error.
func IsUndefinedTable(err error) bool {
	return sqlState(err) == SQLStateUndefinedTable
}

// IsDependentObjects reports whether err was caused by objects depending on
// the one being dropped.
func IsDependentObjects(err error) bool {
	return sqlState(err) == SQLStateDependentObjects
}

// IsRetryable reports whether err represents a transient error that may
// succeed if retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch sqlState(err) {
	case SQLStateSerializationFailure, SQLStateDeadlock, SQLStateAdminShutdown:
		return true
	}
	return IsConnectionError(err)
}
