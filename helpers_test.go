package pgsql

import (
	"context"
	"errors"
)

// fakeResult is an in-memory NativeResult. A nil cell is SQL NULL.
type fakeResult struct {
	columns []string
	rows    [][]any

	noRows   bool // NumRows unavailable
	noFields bool // NumFields unavailable
	clearErr error
	cleared  int
}

func newFakeResult(columns []string, rows ...[]any) *fakeResult {
	return &fakeResult{columns: columns, rows: rows}
}

func (r *fakeResult) NumRows() (int, bool) {
	if r.noRows {
		return 0, false
	}
	return len(r.rows), true
}

func (r *fakeResult) NumFields() (int, bool) {
	if r.noFields {
		return 0, false
	}
	return len(r.columns), true
}

func (r *fakeResult) FieldName(i int) string {
	return r.columns[i]
}

func (r *fakeResult) Value(row, col int) (string, bool) {
	v := r.rows[row][col]
	if v == nil {
		return "", true
	}
	return v.(string), false
}

func (r *fakeResult) Clear() error {
	r.cleared++
	return r.clearErr
}

type queryResponse struct {
	res NativeResult
	err error
}

// fakeSession records what statements and cursors ask of their session.
type fakeSession struct {
	opts      Options
	connected bool
	connErr   error
	quoteErr  error
	affected  int64

	responses []queryResponse // returned by DoQuery in order
	pending   []NativeResult  // returned by NextResult in order
	nextErr   error

	queries   []string
	manip     []bool
	lastQuery string
	events    []DebugEvent
}

func newFakeSession(opts ...Option) *fakeSession {
	return &fakeSession{opts: NewOptions(opts...), connected: true}
}

func (s *fakeSession) respond(res NativeResult, err error) *fakeSession {
	s.responses = append(s.responses, queryResponse{res: res, err: err})
	return s
}

func (s *fakeSession) Connection() (Connection, error) {
	if s.connErr != nil {
		return nil, s.connErr
	}
	return s, nil
}

func (s *fakeSession) Connected() bool {
	return s.connected
}

func (s *fakeSession) DoQuery(ctx context.Context, sql string, isManip bool, conn Connection) (NativeResult, error) {
	s.queries = append(s.queries, sql)
	s.manip = append(s.manip, isManip)
	if len(s.responses) == 0 {
		return nil, nil
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	return r.res, r.err
}

func (s *fakeSession) AffectedRows(conn Connection, res NativeResult) (int64, error) {
	return s.affected, nil
}

func (s *fakeSession) Quote(value any, typ Type) (string, error) {
	if s.quoteErr != nil {
		return "", s.quoteErr
	}
	return QuoteLiteral(value, typ)
}

func (s *fakeSession) QuoteIdentifier(name string) string {
	return QuoteIdentifier(name)
}

func (s *fakeSession) Options() *Options {
	return &s.opts
}

func (s *fakeSession) SetLastQuery(query string) {
	s.lastQuery = query
}

func (s *fakeSession) Debug(ev DebugEvent) {
	s.events = append(s.events, ev)
}

func (s *fakeSession) NextResult() (NativeResult, error) {
	if s.nextErr != nil {
		return nil, s.nextErr
	}
	if len(s.pending) == 0 {
		return nil, nil
	}
	r := s.pending[0]
	s.pending = s.pending[1:]
	return r, nil
}

var errBackendFailure = errors.New("backend failure")

// people is a small result used across cursor tests.
func people() *fakeResult {
	return newFakeResult([]string{"Id", "UserName", "Note"},
		[]any{"1", "alice", "first  "},
		[]any{"2", "bob", ""},
		[]any{"3", "carol", nil},
	)
}

var (
	_ NativeResult = (*fakeResult)(nil)
	_ Session      = (*fakeSession)(nil)
	_ Connection   = (*fakeSession)(nil)
)
