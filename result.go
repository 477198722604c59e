package pgsql

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Cursor is a forward-readable result set. FetchRow returns io.EOF once no
// row remains; a freed cursor fails with ErrResultFreed.
//
// The concrete type of a fetched row depends on the fetch mode: []any for
// FetchOrdered, map[string]any for FetchAssoc and the Options.ObjectFactory
// value for FetchObject.
type Cursor interface {
	FetchRow(mode FetchMode) (any, error)
	FetchRowAt(mode FetchMode, rownum int) (any, error)
	FetchOne(col int) (any, error)
	FetchCol(col int) ([]any, error)
	FetchAll(mode FetchMode) ([]any, error)
	NumCols() (int, error)
	ColumnNames() (map[string]int, error)
	ColumnList() ([]string, error)
	BindColumn(column any, dest *any)
	SetResultTypes(types TypeMap) error
	NextResult() (bool, error)
	RowNum() int
	Free() error
}

// SeekableCursor is a Cursor over a fully materialized result that supports
// random access and knows its row count.
type SeekableCursor interface {
	Cursor
	Seek(rownum int) error
	NumRows() (int, error)
	Valid() (bool, error)
}

// cursor carries the state shared by Result and BufferedResult.
type cursor struct {
	session Session
	handle  *resultHandle
	rownum  int
	types   TypeMap
	binds   columnBindings
	names   []string
}

func newCursor(session Session, native NativeResult, types TypeMap, limit, offset int) *cursor {
	return &cursor{
		session: session,
		handle:  newHandle(native, offset, limit),
		rownum:  -1,
		types:   types,
	}
}

// Result is the streaming (forward-only) cursor.
type Result struct {
	*cursor
}

// NewResult wraps native into a streaming cursor. A nil native result
// yields a cursor over an absent result. limit and offset select a window
// of the native rows; zero means no window.
func NewResult(session Session, native NativeResult, types TypeMap, limit, offset int) *Result {
	return &Result{cursor: newCursor(session, native, types, limit, offset)}
}

// FetchRow fetches the next row.
func (r *Result) FetchRow(mode FetchMode) (any, error) {
	return r.fetch(mode)
}

// FetchRowAt fetches row rownum. Streaming cursors can only move forward:
// rows before rownum are skipped, moving backwards fails with
// ErrUnsupported.
func (r *Result) FetchRowAt(mode FetchMode, rownum int) (any, error) {
	if err := r.skipTo(rownum); err != nil {
		return nil, err
	}
	return r.fetch(mode)
}

// FetchOne fetches the next row and returns column col.
func (r *Result) FetchOne(col int) (any, error) {
	return r.fetchOne(r.fetch, col)
}

// FetchCol fetches every remaining row and returns column col.
func (r *Result) FetchCol(col int) ([]any, error) {
	return r.fetchCol(r.fetch, col)
}

// FetchAll fetches every remaining row.
func (r *Result) FetchAll(mode FetchMode) ([]any, error) {
	return r.fetchAll(r.fetch, mode)
}

func (c *cursor) skipTo(rownum int) error {
	target := rownum - 1
	if c.rownum > target {
		return newError(KindUnsupported, "seek", "seeking is not supported")
	}
	for c.rownum < target {
		if _, _, ok := c.handle.fetch(); !ok {
			if c.handle.state == handleFreed {
				return resultFreed("seek")
			}
			return nil
		}
		c.rownum++
	}
	return nil
}

func (c *cursor) options() *Options {
	return c.session.Options()
}

func (c *cursor) fetch(mode FetchMode) (any, error) {
	opts := c.options()
	mode = opts.fetchMode(mode)
	values, nulls, ok := c.handle.fetch()
	if !ok {
		if c.handle.state == handleFreed {
			return nil, resultFreed("fetchRow")
		}
		return nil, io.EOF
	}
	row, err := decodeRow(opts, rawRow{names: c.fieldNames(), values: values, nulls: nulls}, mode, c.types, c.binds)
	if err != nil {
		c.handle.unfetch()
		return nil, err
	}
	c.rownum++
	return row, nil
}

func (c *cursor) fetchOne(fetch func(FetchMode) (any, error), col int) (any, error) {
	row, err := fetch(FetchOrdered)
	if err != nil {
		return nil, err
	}
	values := row.([]any)
	if col < 0 || col >= len(values) {
		return nil, columnNotDefined(col)
	}
	return values[col], nil
}

func (c *cursor) fetchCol(fetch func(FetchMode) (any, error), col int) ([]any, error) {
	var out []any
	for {
		row, err := fetch(FetchOrdered)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		values := row.([]any)
		if col < 0 || col >= len(values) {
			return nil, columnNotDefined(col)
		}
		out = append(out, values[col])
	}
}

func (c *cursor) fetchAll(fetch func(FetchMode) (any, error), mode FetchMode) ([]any, error) {
	var out []any
	for {
		row, err := fetch(mode)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
}

func columnNotDefined(col int) error {
	return newError(KindInvalidArgument, "fetchCol", fmt.Sprintf("column is not defined in the result set: %d", col))
}

// fieldNames caches the native column names of the current result.
func (c *cursor) fieldNames() []string {
	if c.names != nil {
		return c.names
	}
	n, ok := c.handle.numFields()
	if !ok {
		return nil
	}
	names := make([]string, n)
	for i := range names {
		names[i] = c.handle.fieldName(i)
	}
	c.names = names
	return names
}

// NumCols returns the column count. For an absent result the number of
// declared result types is returned instead.
func (c *cursor) NumCols() (int, error) {
	n, ok := c.handle.numFields()
	if ok {
		return n, nil
	}
	switch c.handle.state {
	case handleFreed:
		return 0, resultFreed("numCols")
	case handleAbsent:
		return c.types.Len(), nil
	}
	return 0, newError(KindCountUnavailable, "numCols", "Could not get column count")
}

// ColumnNames maps each column name (case-folded when PortabilityFixCase
// is set) to its position.
func (c *cursor) ColumnNames() (map[string]int, error) {
	names, err := c.columnNames()
	if err != nil {
		return nil, err
	}
	columns := make(map[string]int, len(names))
	for i, name := range names {
		columns[name] = i
	}
	return columns, nil
}

// ColumnList returns the column names in position order.
func (c *cursor) ColumnList() ([]string, error) {
	return c.columnNames()
}

func (c *cursor) columnNames() ([]string, error) {
	n, err := c.NumCols()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, n)
	if c.handle.state == handleActive {
		names = append(names, c.fieldNames()...)
	}
	opts := c.options()
	if opts.Portability.Has(PortabilityFixCase) {
		names = foldNames(names, opts.FieldCase)
	}
	return names, nil
}

// BindColumn makes every fetch store column (an int position or a column
// name) into dest.
func (c *cursor) BindColumn(column any, dest *any) {
	if c.binds == nil {
		c.binds = make(columnBindings)
	}
	c.binds[column] = dest
}

// SetResultTypes declares the types used to convert fetched values.
func (c *cursor) SetResultTypes(types TypeMap) error {
	if err := types.validate(); err != nil {
		return err
	}
	c.types = types
	return nil
}

// RowNum returns the position of the last fetched row, -1 before the first.
func (c *cursor) RowNum() int {
	return c.rownum
}

// NextResult moves to the next result set of a multi-statement response.
// It returns false, without error, when no result remains; the cursor is
// then freed.
func (c *cursor) NextResult() (bool, error) {
	conn, err := c.session.Connection()
	if err != nil {
		return false, err
	}
	native, err := conn.NextResult()
	if err != nil {
		return false, err
	}
	if err := c.handle.release(c.session.Connected()); err != nil {
		c.options().logger().Debug("free previous result failed", zap.Error(err))
	}
	c.handle.replace(native)
	c.rownum = -1
	c.names = nil
	return native != nil, nil
}

// Free releases the native result. It is safe to call more than once.
func (c *cursor) Free() error {
	held := c.handle.state == handleActive
	if err := c.handle.release(held && c.session.Connected()); err != nil {
		return &Error{Kind: KindBackend, Op: "free", Message: "Could not free result", Err: err}
	}
	return nil
}

var (
	_ Cursor         = (*Result)(nil)
	_ SeekableCursor = (*BufferedResult)(nil)
)
