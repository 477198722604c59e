package pgsql

import "fmt"

// BufferedResult is the seekable cursor over a fully materialized result.
type BufferedResult struct {
	*cursor
}

// NewBufferedResult wraps native into a seekable cursor. See NewResult.
func NewBufferedResult(session Session, native NativeResult, types TypeMap, limit, offset int) *BufferedResult {
	return &BufferedResult{cursor: newCursor(session, native, types, limit, offset)}
}

// FetchRow fetches the next row.
func (r *BufferedResult) FetchRow(mode FetchMode) (any, error) {
	return r.fetch(mode)
}

// FetchRowAt seeks to rownum and fetches it.
func (r *BufferedResult) FetchRowAt(mode FetchMode, rownum int) (any, error) {
	if err := r.Seek(rownum); err != nil {
		return nil, err
	}
	return r.fetch(mode)
}

// FetchOne fetches the next row and returns column col.
func (r *BufferedResult) FetchOne(col int) (any, error) {
	return r.fetchOne(r.fetch, col)
}

// FetchCol fetches every remaining row and returns column col.
func (r *BufferedResult) FetchCol(col int) ([]any, error) {
	return r.fetchCol(r.fetch, col)
}

// FetchAll fetches every remaining row.
func (r *BufferedResult) FetchAll(mode FetchMode) ([]any, error) {
	return r.fetchAll(r.fetch, mode)
}

// Seek positions the cursor so that the next fetch returns row rownum.
// Seeking an absent result is a no-op.
func (r *BufferedResult) Seek(rownum int) error {
	if r.handle.state == handleFreed {
		return resultFreed("seek")
	}
	if r.rownum != rownum-1 && !r.handle.seek(rownum) {
		if r.handle.state == handleAbsent {
			return nil
		}
		return newError(KindInvalidArgument, "seek", fmt.Sprintf("tried to seek to an invalid row number (%d)", rownum))
	}
	r.rownum = rownum - 1
	return nil
}

// NumRows returns the number of rows; 0 for an absent result.
func (r *BufferedResult) NumRows() (int, error) {
	n, ok := r.handle.numRows()
	if ok {
		return n, nil
	}
	switch r.handle.state {
	case handleFreed:
		return 0, resultFreed("numRows")
	case handleAbsent:
		return 0, nil
	}
	return 0, newError(KindCountUnavailable, "numRows", "Could not get row count")
}

// Valid reports whether rows remain after the current position.
func (r *BufferedResult) Valid() (bool, error) {
	n, err := r.NumRows()
	if err != nil {
		return false, err
	}
	return r.rownum < n-1, nil
}
