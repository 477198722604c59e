package pgsql

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Statement is a prepared statement bound to a Session. It is created by
// Conn.Prepare (or NewStatement), executed any number of times and
// released with Free, after which every call fails with ErrInvalidState.
type Statement struct {
	session Session
	// name of the server-side prepared statement; empty when the query is
	// executed by substituting quoted values into fragments
	name      string
	query     string
	fragments []string
	isManip   bool

	positions   []string
	values      map[string]any
	types       map[string]Type
	resultTypes TypeMap
	limit       int
	offset      int
}

// StatementOption configures a Statement
type StatementOption func(*Statement)

// WithParamTypes declares placeholder types
func WithParamTypes(types map[string]Type) StatementOption {
	return func(s *Statement) {
		for k, v := range types {
			s.types[k] = v
		}
	}
}

// WithResultTypes declares the types of the result columns
func WithResultTypes(types TypeMap) StatementOption {
	return func(s *Statement) {
		s.resultTypes = types
	}
}

// WithLimit restricts results to limit rows starting at offset
func WithLimit(limit, offset int) StatementOption {
	return func(s *Statement) {
		s.limit = limit
		s.offset = offset
	}
}

// WithFragments supplies the query split around its placeholders, used when
// the statement has no server-side name.
func WithFragments(fragments []string) StatementOption {
	return func(s *Statement) {
		s.fragments = fragments
	}
}

// NewStatement returns a statement for the server-side prepared statement
// name. positions lists the placeholder names in the order the server
// expects them.
func NewStatement(session Session, name, query string, positions []string, isManip bool, opts ...StatementOption) *Statement {
	s := &Statement{
		session:   session,
		name:      name,
		query:     query,
		isManip:   isManip,
		positions: append(make([]string, 0, len(positions)), positions...),
		values:    make(map[string]any),
		types:     make(map[string]Type),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the server-side statement name.
func (s *Statement) Name() string {
	return s.name
}

// Query returns the query text the statement was prepared from.
func (s *Statement) Query() string {
	return s.query
}

// IsManip reports whether the statement modifies data or schema.
func (s *Statement) IsManip() bool {
	return s.isManip
}

// Positions returns the placeholder names in order.
func (s *Statement) Positions() []string {
	return append([]string(nil), s.positions...)
}

// Freed reports whether Free has been called.
func (s *Statement) Freed() bool {
	return s.positions == nil
}

func (s *Statement) hasPlaceholder(name string) bool {
	for _, p := range s.positions {
		if p == name {
			return true
		}
	}
	return false
}

// BindValue binds value to placeholder name, optionally with a declared type.
func (s *Statement) BindValue(name string, value any, typ ...Type) error {
	if s.Freed() {
		return statementFreed("bindValue")
	}
	if !s.hasPlaceholder(name) {
		return newError(KindNotFound, "bindValue", "Unable to bind to missing placeholder: "+name)
	}
	s.values[name] = value
	if len(typ) > 0 {
		if !typ[0].valid() {
			return newError(KindInvalidArgument, "bindValue", fmt.Sprintf("type %q is not defined", typ[0]))
		}
		s.types[name] = typ[0]
	}
	return nil
}

// BindValues binds each entry of values.
func (s *Statement) BindValues(values map[string]any) error {
	for name, v := range values {
		if err := s.BindValue(name, v); err != nil {
			return err
		}
	}
	return nil
}

// BindArgs binds args to the placeholders in order. With numbered
// placeholders args[i] binds $i+1; otherwise args follow the order in
// which the names first appear.
func (s *Statement) BindArgs(args ...any) error {
	if s.Freed() {
		return statementFreed("bindValue")
	}
	names, numbered := s.uniqueNames()
	if len(args) > len(names) {
		return newError(KindInvalidArgument, "bindValue", fmt.Sprintf("got %d args, want %d", len(args), len(names)))
	}
	for i, v := range args {
		name := names[i]
		if numbered {
			name = strconv.Itoa(i + 1)
		}
		if err := s.BindValue(name, v); err != nil {
			return err
		}
	}
	return nil
}

// uniqueNames returns the placeholder names in first-appearance order and
// whether every name is a number.
func (s *Statement) uniqueNames() ([]string, bool) {
	seen := make(map[string]struct{}, len(s.positions))
	names := make([]string, 0, len(s.positions))
	numbered := len(s.positions) > 0
	for _, p := range s.positions {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		names = append(names, p)
		if _, err := strconv.Atoi(p); err != nil {
			numbered = false
		}
	}
	return names, numbered
}

// ExecResult is the outcome of Execute: an affected-row count for mutating
// statements, a cursor for queries. Result is nil for mutating statements;
// with query execution disabled a query gets a cursor with no rows.
type ExecResult struct {
	Affected int64
	Result   Cursor
}

type execConfig struct {
	buffered bool
	wrap     func(Cursor) Cursor
}

// ExecOption configures a single Execute call
type ExecOption func(*execConfig)

// WithBuffered overrides Options.ResultBuffering for this execution
func WithBuffered(buffered bool) ExecOption {
	return func(c *execConfig) {
		c.buffered = buffered
	}
}

// WithWrap wraps the returned cursor, e.g. in an iterator type
func WithWrap(wrap func(Cursor) Cursor) ExecOption {
	return func(c *execConfig) {
		c.wrap = wrap
	}
}

// Execute runs the statement with the bound values.
func (s *Statement) Execute(ctx context.Context, opts ...ExecOption) (ExecResult, error) {
	if s.Freed() {
		return ExecResult{}, statementFreed("execute")
	}
	options := s.session.Options()
	cfg := execConfig{buffered: options.ResultBuffering}
	for _, opt := range opts {
		opt(&cfg)
	}

	s.session.SetLastQuery(s.query)
	s.session.Debug(DebugEvent{Query: s.query, Scope: "execute", When: "pre", IsManip: s.isManip, Params: s.boundValues()})
	if options.DisableQuery {
		if s.isManip {
			return ExecResult{}, nil
		}
		return s.cursor(nil, cfg), nil
	}
	if err := ctx.Err(); err != nil {
		return ExecResult{}, err
	}

	conn, err := s.session.Connection()
	if err != nil {
		return ExecResult{}, err
	}
	params, err := s.quotedParams(ctx, options)
	if err != nil {
		return ExecResult{}, err
	}
	query, err := s.render(params)
	if err != nil {
		return ExecResult{}, err
	}
	native, err := s.session.DoQuery(ctx, query, s.isManip, conn)
	if err != nil {
		return ExecResult{}, err
	}

	res, err := s.route(conn, native, cfg)
	s.session.Debug(DebugEvent{Query: s.query, Scope: "execute", When: "post", IsManip: s.isManip, Err: err})
	return res, err
}

func (s *Statement) boundValues() map[string]any {
	values := make(map[string]any, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	return values
}

// quotedParams resolves and quotes every placeholder in order. A repeated
// name is resolved once, so a reader is consumed a single time.
func (s *Statement) quotedParams(ctx context.Context, opts *Options) ([]string, error) {
	params := make([]string, 0, len(s.positions))
	quotedByName := make(map[string]string, len(s.positions))
	for _, name := range s.positions {
		if quoted, ok := quotedByName[name]; ok {
			params = append(params, quoted)
			continue
		}
		value, ok := s.values[name]
		if !ok {
			return nil, newError(KindNotFound, "execute", "Unable to bind to missing placeholder: "+name)
		}
		typ := s.types[name]
		if isLOBCandidate(opts, value, typ) {
			v, err := materializeLOB(ctx, opts, name, value, typ)
			if err != nil {
				return nil, err
			}
			value = v
		}
		quoted, err := s.session.Quote(value, typ)
		if err != nil {
			return nil, err
		}
		quotedByName[name] = quoted
		params = append(params, quoted)
	}
	return params, nil
}

// render builds the SQL sent to the server: EXECUTE for a server-side
// statement, the fragments interleaved with the values otherwise.
func (s *Statement) render(params []string) (string, error) {
	if s.name != "" {
		query := "EXECUTE " + s.name
		if len(params) > 0 {
			query += " (" + strings.Join(params, ", ") + ")"
		}
		return query, nil
	}
	if len(s.fragments) != len(params)+1 {
		return "", newError(KindUnsupported, "execute", "statement was not prepared")
	}
	var sb strings.Builder
	for i, p := range params {
		sb.WriteString(s.fragments[i])
		sb.WriteString(p)
	}
	sb.WriteString(s.fragments[len(params)])
	return sb.String(), nil
}

func (s *Statement) route(conn Connection, native NativeResult, cfg execConfig) (ExecResult, error) {
	if s.isManip {
		if native != nil {
			defer native.Clear()
		}
		n, err := s.session.AffectedRows(conn, native)
		if err != nil {
			return ExecResult{}, err
		}
		return ExecResult{Affected: n}, nil
	}
	return s.cursor(native, cfg), nil
}

// cursor wraps native in the configured cursor; a nil native gives a
// cursor over an absent result.
func (s *Statement) cursor(native NativeResult, cfg execConfig) ExecResult {
	var cur Cursor
	if cfg.buffered {
		cur = NewBufferedResult(s.session, native, s.resultTypes, s.limit, s.offset)
	} else {
		cur = NewResult(s.session, native, s.resultTypes, s.limit, s.offset)
	}
	if cfg.wrap != nil {
		cur = cfg.wrap(cur)
	}
	return ExecResult{Result: cur}
}

// Free deallocates the server-side statement and clears the bound state.
// The statement is freed even when DEALLOCATE fails; that error is
// returned.
func (s *Statement) Free(ctx context.Context) error {
	if s.Freed() {
		return statementFreed("free")
	}
	var err error
	if s.name != "" {
		err = execSQL(ctx, s.session, "DEALLOCATE PREPARE "+s.name)
	}
	s.positions = nil
	s.values = nil
	s.types = nil
	s.fragments = nil
	return err
}

// DropTable drops table name, retrying with CASCADE when the plain drop
// fails. The result of the CASCADE attempt is returned; when it fails too,
// a *DropTableError carrying both failures is returned.
func (s *Statement) DropTable(ctx context.Context, name string) error {
	return DropTable(ctx, s.session, name)
}

// DropTable is Statement.DropTable without a statement.
func DropTable(ctx context.Context, session Session, name string) error {
	quoted := session.QuoteIdentifier(name)
	err := execSQL(ctx, session, "DROP TABLE "+quoted)
	if err == nil {
		return nil
	}
	cascadeErr := execSQL(ctx, session, "DROP TABLE "+quoted+" CASCADE")
	if cascadeErr == nil {
		return nil
	}
	return &DropTableError{Table: name, Err: err, CascadeErr: cascadeErr}
}

// execSQL runs a mutating statement and discards its result.
func execSQL(ctx context.Context, session Session, sql string) error {
	conn, err := session.Connection()
	if err != nil {
		return err
	}
	native, err := session.DoQuery(ctx, sql, true, conn)
	if native != nil {
		native.Clear()
	}
	return err
}

func statementFreed(op string) error {
	return newError(KindInvalidState, op, "Prepared statement has already been freed")
}
