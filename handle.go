package pgsql

// NativeResult is the set of backend primitives a result handle needs.
// *pqResult implements it over libpq; tests supply fakes.
type NativeResult interface {
	// NumRows returns the row count; ok is false when it is unavailable.
	NumRows() (n int, ok bool)
	// NumFields returns the column count; ok is false when it is unavailable.
	NumFields() (n int, ok bool)
	// FieldName returns the name of column i.
	FieldName(i int) string
	// Value returns the text value at (row, col) and whether it is NULL.
	Value(row, col int) (value string, null bool)
	// Clear releases the native result.
	Clear() error
}

type handleState int

const (
	// handleAbsent: the statement produced no result (e.g. empty query)
	handleAbsent handleState = iota
	// handleActive: a native result is held
	handleActive
	// handleFreed: released, or never obtained
	handleFreed
)

func (s handleState) String() string {
	switch s {
	case handleAbsent:
		return "absent"
	case handleActive:
		return "active"
	case handleFreed:
		return "freed"
	}
	return "unknown"
}

// resultHandle owns one NativeResult and the row pointer used by
// sequential fetches. Row numbers are relative to the offset/limit window.
// release is safe to call any number of times.
type resultHandle struct {
	state  handleState
	native NativeResult
	next   int
	offset int
	limit  int
}

func newHandle(native NativeResult, offset, limit int) *resultHandle {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	h := &resultHandle{offset: offset, limit: limit}
	h.replace(native)
	if native == nil {
		h.state = handleAbsent
	}
	return h
}

// numRows returns the number of rows inside the window.
func (h *resultHandle) numRows() (int, bool) {
	if h.state != handleActive {
		return 0, false
	}
	n, ok := h.native.NumRows()
	if !ok {
		return 0, false
	}
	n -= h.offset
	if n < 0 {
		n = 0
	}
	if h.limit > 0 && n > h.limit {
		n = h.limit
	}
	return n, true
}

// fetch returns the raw row at the row pointer and advances it. ok is
// false when no row is available.
func (h *resultHandle) fetch() (values []string, nulls []bool, ok bool) {
	rows, known := h.numRows()
	if !known || h.next >= rows {
		return nil, nil, false
	}
	cols, _ := h.native.NumFields()
	values = make([]string, cols)
	nulls = make([]bool, cols)
	row := h.offset + h.next
	for c := 0; c < cols; c++ {
		values[c], nulls[c] = h.native.Value(row, c)
	}
	h.next++
	return values, nulls, true
}

// unfetch steps the row pointer back after a row failed to decode.
func (h *resultHandle) unfetch() {
	if h.next > 0 {
		h.next--
	}
}

// seek moves the row pointer; ok is false when the handle is not active or
// row is outside the window.
func (h *resultHandle) seek(row int) bool {
	rows, known := h.numRows()
	if !known || row < 0 || row >= rows {
		return false
	}
	h.next = row
	return true
}

func (h *resultHandle) numFields() (int, bool) {
	if h.state != handleActive {
		return 0, false
	}
	return h.native.NumFields()
}

func (h *resultHandle) fieldName(i int) string {
	if h.state != handleActive {
		return ""
	}
	return h.native.FieldName(i)
}

// release clears the native result if held. When clear is false the
// native result is dropped without calling Clear (owning connection gone).
func (h *resultHandle) release(clear bool) error {
	native := h.native
	held := h.state == handleActive
	h.state = handleFreed
	h.native = nil
	h.next = 0
	if held && clear {
		return native.Clear()
	}
	return nil
}

// replace installs the next native result of a multi-statement response.
// A nil result leaves the handle freed.
func (h *resultHandle) replace(native NativeResult) {
	h.native = native
	h.next = 0
	if native == nil {
		h.state = handleFreed
		return
	}
	h.state = handleActive
}
