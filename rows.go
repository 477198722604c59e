package pgsql

import (
	"database/sql/driver"
	"io"
)

// Rows implements driver.Rows over a Cursor
type Rows struct {
	cur     Cursor
	columns []string
	closed  bool

	// NextResult advances the cursor, so HasNextResultSet does the move and
	// NextResultSet reports it
	advanced bool
	hasNext  bool
	nextErr  error
}

func newRows(cur Cursor) *Rows {
	return &Rows{cur: cur}
}

// Columns returns the column names
func (r *Rows) Columns() []string {
	if r.columns == nil && r.cur != nil {
		r.columns, _ = r.cur.ColumnList()
	}
	return r.columns
}

// Close frees the cursor
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.cur == nil {
		return nil
	}
	return r.cur.Free()
}

// Next fetches the next row
func (r *Rows) Next(dest []driver.Value) error {
	if r.closed || r.cur == nil {
		return io.EOF
	}
	row, err := r.cur.FetchRow(FetchOrdered)
	if err != nil {
		return err
	}
	values, _ := row.([]any)
	for i := range dest {
		if i < len(values) {
			dest[i] = values[i]
		} else {
			dest[i] = nil
		}
	}
	return nil
}

// HasNextResultSet checks if there are more result sets
func (r *Rows) HasNextResultSet() bool {
	if r.closed || r.cur == nil {
		return false
	}
	if !r.advanced {
		r.hasNext, r.nextErr = r.cur.NextResult()
		r.advanced = true
	}
	return r.hasNext || r.nextErr != nil
}

// NextResultSet advances to the next result set
func (r *Rows) NextResultSet() error {
	if !r.HasNextResultSet() {
		return io.EOF
	}
	r.advanced = false
	if r.nextErr != nil {
		return r.nextErr
	}
	r.columns = nil
	return nil
}

// Ensure Rows implements the required interfaces
var (
	_ driver.Rows              = (*Rows)(nil)
	_ driver.RowsNextResultSet = (*Rows)(nil)
)
