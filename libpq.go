package pgsql

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	pqLib    uintptr
	initOnce sync.Once
	initErr  error
)

// ConnStatusType values
const (
	connectionOK  = 0
	connectionBad = 1
)

// ExecStatusType values
const (
	pgresEmptyQuery    = 0
	pgresCommandOK     = 1
	pgresTuplesOK      = 2
	pgresCopyOut       = 3
	pgresCopyIn        = 4
	pgresBadResponse   = 5
	pgresNonfatalError = 6
	pgresFatalError    = 7
	pgresCopyBoth      = 8
	pgresSingleTuple   = 9
)

// PG_DIAG_SQLSTATE
const pgDiagSQLState = 'C'

// libpq function pointers - populated by purego
var (
	pqConnectdb          func(conninfo string) unsafe.Pointer
	pqFinish             func(conn unsafe.Pointer)
	pqStatus             func(conn unsafe.Pointer) int32
	pqErrorMessage       func(conn unsafe.Pointer) unsafe.Pointer
	pqSendQuery          func(conn unsafe.Pointer, query string) int32
	pqGetResult          func(conn unsafe.Pointer) unsafe.Pointer
	pqResultStatus       func(res unsafe.Pointer) int32
	pqResultErrorMessage func(res unsafe.Pointer) unsafe.Pointer
	pqResultErrorField   func(res unsafe.Pointer, fieldcode int32) unsafe.Pointer
	pqNtuples            func(res unsafe.Pointer) int32
	pqNfields            func(res unsafe.Pointer) int32
	pqFname              func(res unsafe.Pointer, col int32) unsafe.Pointer
	pqGetvalue           func(res unsafe.Pointer, row, col int32) unsafe.Pointer
	pqGetisnull          func(res unsafe.Pointer, row, col int32) int32
	pqGetlength          func(res unsafe.Pointer, row, col int32) int32
	pqCmdTuples          func(res unsafe.Pointer) unsafe.Pointer
	pqClear              func(res unsafe.Pointer)
)

// getLibraryPath returns the platform-specific libpq path.
// The PGSQL_LIBRARY_PATH environment variable can override the default path.
func getLibraryPath() string {
	if path := os.Getenv("PGSQL_LIBRARY_PATH"); path != "" {
		return path
	}

	switch runtime.GOOS {
	case "windows":
		return "libpq.dll"
	case "darwin":
		paths := []string{
			"/opt/homebrew/opt/libpq/lib/libpq.5.dylib", // Apple Silicon Homebrew
			"/usr/local/opt/libpq/lib/libpq.5.dylib",    // Intel Homebrew
			"/opt/homebrew/lib/libpq.5.dylib",
			"/usr/local/lib/libpq.5.dylib",
		}
		for _, p := range paths {
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
		return "libpq.5.dylib"
	default:
		return "libpq.so.5"
	}
}

// initLibpq loads libpq and registers the functions used by Conn.
// If loading fails, set PGSQL_LIBRARY_PATH to the library location.
func initLibpq() error {
	initOnce.Do(func() {
		libPath := getLibraryPath()

		pqLib, initErr = loadLibrary(libPath)
		if initErr != nil {
			initErr = fmt.Errorf("failed to load libpq %q: %w (set PGSQL_LIBRARY_PATH to override)", libPath, initErr)
			return
		}

		// connection
		purego.RegisterLibFunc(&pqConnectdb, pqLib, "PQconnectdb")
		purego.RegisterLibFunc(&pqFinish, pqLib, "PQfinish")
		purego.RegisterLibFunc(&pqStatus, pqLib, "PQstatus")
		purego.RegisterLibFunc(&pqErrorMessage, pqLib, "PQerrorMessage")

		// async query
		purego.RegisterLibFunc(&pqSendQuery, pqLib, "PQsendQuery")
		purego.RegisterLibFunc(&pqGetResult, pqLib, "PQgetResult")

		// results
		purego.RegisterLibFunc(&pqResultStatus, pqLib, "PQresultStatus")
		purego.RegisterLibFunc(&pqResultErrorMessage, pqLib, "PQresultErrorMessage")
		purego.RegisterLibFunc(&pqResultErrorField, pqLib, "PQresultErrorField")
		purego.RegisterLibFunc(&pqNtuples, pqLib, "PQntuples")
		purego.RegisterLibFunc(&pqNfields, pqLib, "PQnfields")
		purego.RegisterLibFunc(&pqFname, pqLib, "PQfname")
		purego.RegisterLibFunc(&pqGetvalue, pqLib, "PQgetvalue")
		purego.RegisterLibFunc(&pqGetisnull, pqLib, "PQgetisnull")
		purego.RegisterLibFunc(&pqGetlength, pqLib, "PQgetlength")
		purego.RegisterLibFunc(&pqCmdTuples, pqLib, "PQcmdTuples")
		purego.RegisterLibFunc(&pqClear, pqLib, "PQclear")
	})
	return initErr
}

// copyCString copies a NUL-terminated C string into Go memory.
func copyCString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(p), n))
}

// pqResult is a PGresult. It implements NativeResult.
type pqResult struct {
	ptr unsafe.Pointer
}

func (r *pqResult) status() int32 {
	return pqResultStatus(r.ptr)
}

// NumRows returns PQntuples; the count is only meaningful for tuple results.
func (r *pqResult) NumRows() (int, bool) {
	if r.ptr == nil {
		return 0, false
	}
	switch r.status() {
	case pgresTuplesOK, pgresSingleTuple:
		return int(pqNtuples(r.ptr)), true
	case pgresCommandOK, pgresEmptyQuery:
		return 0, true
	}
	return 0, false
}

func (r *pqResult) NumFields() (int, bool) {
	if r.ptr == nil {
		return 0, false
	}
	switch r.status() {
	case pgresBadResponse, pgresFatalError:
		return 0, false
	}
	return int(pqNfields(r.ptr)), true
}

func (r *pqResult) FieldName(i int) string {
	return copyCString(pqFname(r.ptr, int32(i)))
}

// Value copies the text value at (row, col). Values are read with
// PQgetlength so embedded NULs survive.
func (r *pqResult) Value(row, col int) (string, bool) {
	if pqGetisnull(r.ptr, int32(row), int32(col)) == 1 {
		return "", true
	}
	n := int(pqGetlength(r.ptr, int32(row), int32(col)))
	p := pqGetvalue(r.ptr, int32(row), int32(col))
	if p == nil || n == 0 {
		return "", false
	}
	return string(unsafe.Slice((*byte)(p), n)), false
}

// Clear releases the PGresult. Calling it twice is a no-op.
func (r *pqResult) Clear() error {
	if r.ptr == nil {
		return nil
	}
	pqClear(r.ptr)
	r.ptr = nil
	return nil
}

// cmdTuples parses PQcmdTuples; commands that report no count yield 0.
func (r *pqResult) cmdTuples() (int64, error) {
	s := copyCString(pqCmdTuples(r.ptr))
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// err returns the backend error carried by a failed result, or nil.
func (r *pqResult) err(op string) error {
	switch r.status() {
	case pgresBadResponse, pgresNonfatalError, pgresFatalError:
	default:
		return nil
	}
	return &Error{
		Kind:     KindBackend,
		Op:       op,
		Message:  strings.TrimSpace(copyCString(pqResultErrorMessage(r.ptr))),
		SQLState: copyCString(pqResultErrorField(r.ptr, pgDiagSQLState)),
	}
}

var _ NativeResult = (*pqResult)(nil)
