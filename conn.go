package pgsql

import (
	"context"
	"database/sql/driver"
	"strings"
	"sync"
	"unsafe"

	"go.uber.org/zap"
)

// Conn is a libpq connection. It implements Session for statements and
// cursors, and driver.Conn for database/sql.
type Conn struct {
	pg        unsafe.Pointer
	opts      Options
	inTx      bool
	mu        sync.Mutex
	closed    bool
	pending   bool // results of the last PQsendQuery not yet read
	lastQuery string
}

// Connect opens a connection using a libpq conninfo string or URI, e.g.
// "host=localhost dbname=test user=app" or "postgres://app@localhost/test".
func Connect(ctx context.Context, dsn string, opts ...Option) (*Conn, error) {
	if err := initLibpq(); err != nil {
		return nil, &Error{Kind: KindConnection, Op: "connect", Message: "libpq is not available", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pg := pqConnectdb(dsn)
	if pg == nil {
		return nil, newError(KindConnection, "connect", "could not allocate connection")
	}
	if pqStatus(pg) != connectionOK {
		err := &Error{
			Kind:     KindConnection,
			Op:       "connect",
			Message:  strings.TrimSpace(copyCString(pqErrorMessage(pg))),
			SQLState: SQLStateConnectionFailure,
		}
		pqFinish(pg)
		return nil, err
	}
	c := &Conn{pg: pg, opts: NewOptions(opts...)}
	c.opts.logger().Debug("connected", zap.String("dsn", redactDSN(dsn)))
	return c, nil
}

// redactDSN hides the password of a conninfo string or URI for logging.
func redactDSN(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		rest := dsn[i+3:]
		at := strings.LastIndexByte(rest, '@')
		if at < 0 {
			return dsn
		}
		if colon := strings.IndexByte(rest[:at], ':'); colon >= 0 {
			return dsn[:i+3] + rest[:colon] + ":xxxxx" + rest[at:]
		}
		return dsn
	}
	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(strings.ToLower(f), "password=") {
			fields[i] = "password=xxxxx"
		}
	}
	return strings.Join(fields, " ")
}

// Connection returns c; it fails once c is closed.
func (c *Conn) Connection() (Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, connClosed("connect")
	}
	return c, nil
}

// Connected reports whether the connection is open and healthy.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.pg != nil && pqStatus(c.pg) == connectionOK
}

// DoQuery sends sql and returns its first result. Further results of a
// multi-statement query stay pending for NextResult; for mutating queries
// they are discarded.
func (c *Conn) DoQuery(ctx context.Context, sql string, isManip bool, _ Connection) (NativeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, connClosed("query")
	}
	c.drainLocked()
	if pqSendQuery(c.pg, sql) == 0 {
		return nil, c.connErrorLocked("query")
	}
	c.pending = true

	ptr := pqGetResult(c.pg)
	if ptr == nil {
		c.pending = false
		return nil, nil
	}
	res := &pqResult{ptr: ptr}
	if err := res.err("query"); err != nil {
		res.Clear()
		c.drainLocked()
		return nil, err
	}
	if isEmptyStatement(res.status()) {
		res.Clear()
		c.drainLocked()
		return nil, nil
	}
	if isManip {
		c.drainLocked()
	}
	return res, nil
}

// isEmptyStatement reports whether status is that of a query with no
// statement in it; such a query has no result.
func isEmptyStatement(status int32) bool {
	return status == pgresEmptyQuery
}

// NextResult returns the next pending result, or nil when none remains.
func (c *Conn) NextResult() (NativeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, connClosed("nextResult")
	}
	if !c.pending {
		return nil, nil
	}
	ptr := pqGetResult(c.pg)
	if ptr == nil {
		c.pending = false
		return nil, nil
	}
	res := &pqResult{ptr: ptr}
	if err := res.err("nextResult"); err != nil {
		res.Clear()
		return nil, err
	}
	return res, nil
}

// drainLocked discards pending results. c.mu must be held.
func (c *Conn) drainLocked() {
	for c.pending {
		ptr := pqGetResult(c.pg)
		if ptr == nil {
			c.pending = false
			return
		}
		pqClear(ptr)
	}
}

func (c *Conn) connErrorLocked(op string) error {
	kind := KindBackend
	state := ""
	if pqStatus(c.pg) != connectionOK {
		kind = KindConnection
		state = SQLStateConnectionFailure
	}
	return &Error{Kind: kind, Op: op, Message: strings.TrimSpace(copyCString(pqErrorMessage(c.pg))), SQLState: state}
}

// AffectedRows returns the PQcmdTuples count of res.
func (c *Conn) AffectedRows(_ Connection, res NativeResult) (int64, error) {
	pr, ok := res.(*pqResult)
	if !ok || pr == nil || pr.ptr == nil {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := pr.cmdTuples()
	if err != nil {
		return 0, &Error{Kind: KindBackend, Op: "affectedRows", Message: "Could not get affected rows", Err: err}
	}
	return n, nil
}

// Quote renders value as a literal of type typ.
func (c *Conn) Quote(value any, typ Type) (string, error) {
	return QuoteLiteral(value, typ)
}

// QuoteIdentifier renders name as a quoted identifier.
func (c *Conn) QuoteIdentifier(name string) string {
	return QuoteIdentifier(name)
}

// Options returns the connection options. Changes apply to later calls.
func (c *Conn) Options() *Options {
	return &c.opts
}

// SetLastQuery records query as the last executed query.
func (c *Conn) SetLastQuery(query string) {
	c.mu.Lock()
	c.lastQuery = query
	c.mu.Unlock()
}

// LastQuery returns the last executed query text.
func (c *Conn) LastQuery() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastQuery
}

// Debug logs ev at debug level.
func (c *Conn) Debug(ev DebugEvent) {
	logDebugEvent(c.opts.logger(), ev)
}

func logDebugEvent(logger *zap.Logger, ev DebugEvent) {
	ce := logger.Check(zap.DebugLevel, ev.Scope)
	if ce == nil {
		return
	}
	fields := []zap.Field{
		zap.String("query", ev.Query),
		zap.String("when", ev.When),
		zap.Bool("is_manip", ev.IsManip),
	}
	if len(ev.Params) > 0 {
		fields = append(fields, zap.Int("params", len(ev.Params)))
	}
	if ev.Err != nil {
		fields = append(fields, zap.Error(ev.Err))
	}
	ce.Write(fields...)
}

// Exec runs a mutating query and returns the affected row count.
func (c *Conn) Exec(ctx context.Context, query string) (int64, error) {
	c.SetLastQuery(query)
	c.Debug(DebugEvent{Query: query, Scope: "query", When: "pre", IsManip: true})
	if c.opts.DisableQuery {
		return 0, nil
	}
	native, err := c.DoQuery(ctx, query, true, c)
	if err != nil {
		c.Debug(DebugEvent{Query: query, Scope: "query", When: "post", IsManip: true, Err: err})
		return 0, err
	}
	if native != nil {
		defer native.Clear()
	}
	n, err := c.AffectedRows(c, native)
	c.Debug(DebugEvent{Query: query, Scope: "query", When: "post", IsManip: true, Err: err})
	return n, err
}

// Query runs a query and returns a cursor over its result, buffered or
// streaming according to Options.ResultBuffering unless overridden.
func (c *Conn) Query(ctx context.Context, query string, opts ...ExecOption) (Cursor, error) {
	cfg := execConfig{buffered: c.opts.ResultBuffering}
	for _, opt := range opts {
		opt(&cfg)
	}
	c.SetLastQuery(query)
	c.Debug(DebugEvent{Query: query, Scope: "query", When: "pre"})
	// with queries disabled the cursor is over an absent result
	var native NativeResult
	if !c.opts.DisableQuery {
		var err error
		native, err = c.DoQuery(ctx, query, false, c)
		c.Debug(DebugEvent{Query: query, Scope: "query", When: "post", Err: err})
		if err != nil {
			return nil, err
		}
	}
	var cur Cursor
	if cfg.buffered {
		cur = NewBufferedResult(c, native, TypeMap{}, 0, 0)
	} else {
		cur = NewResult(c, native, TypeMap{}, 0, 0)
	}
	if cfg.wrap != nil {
		cur = cfg.wrap(cur)
	}
	return cur, nil
}

// PrepareStatement prepares query on the server and returns the statement.
// With Options.EmulatePrepare no PREPARE is issued; values are quoted into
// the query text on each execution instead.
func (c *Conn) PrepareStatement(ctx context.Context, query string, opts ...StatementOption) (*Statement, error) {
	parsed, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}
	isManip := IsManip(query)
	if c.opts.EmulatePrepare {
		opts = append(opts, WithFragments(parsed.Fragments))
		return NewStatement(c, "", query, parsed.Occurrences, isManip, opts...), nil
	}

	stmt := NewStatement(c, statementName(), query, parsed.Names, isManip, opts...)
	sql := prepareSQL(stmt.name, parsed, stmt.types)
	c.Debug(DebugEvent{Query: query, Scope: "prepare", When: "pre", IsManip: isManip})
	err = execSQL(ctx, c, sql)
	c.Debug(DebugEvent{Query: query, Scope: "prepare", When: "post", IsManip: isManip, Err: err})
	if err != nil {
		return nil, err
	}
	return stmt, nil
}

// emulated returns a client-side statement for a one-shot query.
func (c *Conn) emulated(query string) (*Statement, error) {
	parsed, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}
	return NewStatement(c, "", query, parsed.Occurrences, IsManip(query), WithFragments(parsed.Fragments)), nil
}

// Close closes the connection
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.pg != nil {
		c.drainLocked()
		pqFinish(c.pg)
		c.pg = nil
	}
	return nil
}

// Prepare prepares a statement for database/sql
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

// PrepareContext prepares a statement with context support
func (c *Conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if c.isClosed() {
		return nil, driver.ErrBadConn
	}
	stmt, err := c.PrepareStatement(ctx, query)
	if err != nil {
		return nil, err
	}
	return &sqlStmt{conn: c, stmt: stmt}, nil
}

// Begin starts a new transaction (deprecated, use BeginTx)
func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping verifies the connection is still alive
func (c *Conn) Ping(ctx context.Context) error {
	if c.isClosed() {
		return driver.ErrBadConn
	}
	if _, err := c.Exec(ctx, "SELECT 1"); err != nil {
		if IsConnectionError(err) {
			return driver.ErrBadConn
		}
		return err
	}
	return nil
}

// ExecContext executes a query without returning rows. Arguments are
// quoted client side; no server-side statement is created.
func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if c.isClosed() {
		return nil, driver.ErrBadConn
	}
	stmt, err := c.emulated(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Free(ctx)
	return (&sqlStmt{conn: c, stmt: stmt}).ExecContext(ctx, args)
}

// QueryContext executes a query that returns rows
func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if c.isClosed() {
		return nil, driver.ErrBadConn
	}
	stmt, err := c.emulated(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Free(ctx)
	return (&sqlStmt{conn: c, stmt: stmt}).QueryContext(ctx, args)
}

// ResetSession is called before a connection is reused
func (c *Conn) ResetSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.inTx {
		return driver.ErrBadConn
	}
	return nil
}

// IsValid returns true if the connection is valid
func (c *Conn) IsValid() bool {
	return c.Connected()
}

// CheckNamedValue accepts every value; Statement quoting validates them.
func (c *Conn) CheckNamedValue(nv *driver.NamedValue) error {
	return nil
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func connClosed(op string) error {
	return &Error{Kind: KindConnection, Op: op, Message: "connection is closed", Err: driver.ErrBadConn}
}

// Ensure Conn implements the required interfaces
var (
	_ Session                   = (*Conn)(nil)
	_ Connection                = (*Conn)(nil)
	_ driver.Conn               = (*Conn)(nil)
	_ driver.ConnPrepareContext = (*Conn)(nil)
	_ driver.ConnBeginTx        = (*Conn)(nil)
	_ driver.Pinger             = (*Conn)(nil)
	_ driver.ExecerContext      = (*Conn)(nil)
	_ driver.QueryerContext     = (*Conn)(nil)
	_ driver.SessionResetter    = (*Conn)(nil)
	_ driver.Validator          = (*Conn)(nil)
	_ driver.NamedValueChecker  = (*Conn)(nil)
)
