package pgsql

import "context"

// Connection is an acquired backend connection.
type Connection interface {
	// NextResult returns the next pending result of a multi-statement
	// response, or nil when none remains.
	NextResult() (NativeResult, error)
}

// Session is the connection-level collaborator that statements and result
// cursors run against. *Conn is the libpq implementation.
type Session interface {
	// Connection returns the active connection, connecting if needed.
	Connection() (Connection, error)
	// Connected reports whether the session still holds a live connection.
	Connected() bool
	// DoQuery dispatches sql. A nil NativeResult with a nil error means the
	// backend produced no result.
	DoQuery(ctx context.Context, sql string, isManip bool, conn Connection) (NativeResult, error)
	// AffectedRows returns the row count reported for a mutating statement.
	AffectedRows(conn Connection, res NativeResult) (int64, error)
	// Quote renders value as a literal of the declared type.
	Quote(value any, typ Type) (string, error)
	// QuoteIdentifier renders name as a quoted identifier.
	QuoteIdentifier(name string) string
	// Options returns the session-wide options.
	Options() *Options
	// SetLastQuery records the last executed query text.
	SetLastQuery(query string)
	// Debug receives execution diagnostics.
	Debug(ev DebugEvent)
}

// DebugEvent describes one execution step.
type DebugEvent struct {
	Query   string
	Scope   string // "execute", "query", "deallocate"
	When    string // "pre" or "post"
	IsManip bool
	Params  map[string]any
	Err     error
}
