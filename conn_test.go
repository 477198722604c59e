package pgsql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// closedConn returns a Conn that never reaches libpq.
func closedConn(opts ...Option) *Conn {
	return &Conn{opts: NewOptions(opts...), closed: true}
}

// =============================================================================
// Connection String Tests (conn.go)
// =============================================================================

func TestRedactDSN(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"host=db user=app password=secret dbname=x", "host=db user=app password=xxxxx dbname=x"},
		{"host=db PASSWORD=secret", "host=db password=xxxxx"},
		{"host=db user=app", "host=db user=app"},
		{"postgres://app:secret@db:5432/x?sslmode=disable", "postgres://app:xxxxx@db:5432/x?sslmode=disable"},
		{"postgresql://app@db/x", "postgresql://app@db/x"},
		{"postgres://db/x", "postgres://db/x"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.expected, redactDSN(tt.input))
	}
}

// =============================================================================
// Debug Logging Tests (conn.go)
// =============================================================================

func TestLogDebugEvent(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	logDebugEvent(logger, DebugEvent{
		Query:   "SELECT :a",
		Scope:   "execute",
		When:    "post",
		Params:  map[string]any{"a": 1},
		Err:     errBackendFailure,
		IsManip: false,
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "execute", entries[0].Message)
	require.Equal(t, zapcore.DebugLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	require.Equal(t, "SELECT :a", fields["query"])
	require.Equal(t, "post", fields["when"])
	require.Equal(t, int64(1), fields["params"])
	require.Equal(t, errBackendFailure.Error(), fields["error"])
}

func TestLogDebugEvent_DisabledLevel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logDebugEvent(zap.New(core), DebugEvent{Query: "SELECT 1", Scope: "query", When: "pre"})
	require.Zero(t, logs.Len())
}

func TestConn_DebugUsesOptionsLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := closedConn(WithLogger(zap.New(core)))

	_, err := c.Exec(context.Background(), "DELETE FROM t")
	require.Error(t, err)
	require.Equal(t, 2, logs.FilterMessage("query").Len())
	require.Equal(t, "DELETE FROM t", c.LastQuery())
}

// =============================================================================
// Closed Connection Tests (conn.go, tx.go)
// =============================================================================

func TestConn_Closed(t *testing.T) {
	c := closedConn()
	ctx := context.Background()

	require.False(t, c.Connected())
	require.False(t, c.IsValid())
	require.NoError(t, c.Close())

	_, err := c.Connection()
	require.ErrorIs(t, err, ErrConnection)
	require.True(t, errors.Is(err, driver.ErrBadConn))

	_, err = c.DoQuery(ctx, "SELECT 1", false, c)
	require.ErrorIs(t, err, driver.ErrBadConn)

	_, err = c.NextResult()
	require.ErrorIs(t, err, ErrConnection)

	_, err = c.Query(ctx, "SELECT 1")
	require.True(t, IsConnectionError(err))

	require.Equal(t, driver.ErrBadConn, c.Ping(ctx))
	require.Equal(t, driver.ErrBadConn, c.ResetSession(ctx))

	_, err = c.PrepareContext(ctx, "SELECT 1")
	require.Equal(t, driver.ErrBadConn, err)
	_, err = c.ExecContext(ctx, "DELETE FROM t", nil)
	require.Equal(t, driver.ErrBadConn, err)
	_, err = c.QueryContext(ctx, "SELECT 1", nil)
	require.Equal(t, driver.ErrBadConn, err)
	_, err = c.BeginTx(ctx, driver.TxOptions{})
	require.Equal(t, driver.ErrBadConn, err)
}

func TestConn_DisableQuery(t *testing.T) {
	c := closedConn(WithDisableQuery(true))

	n, err := c.Exec(context.Background(), "DELETE FROM t")
	require.NoError(t, err)
	require.Zero(t, n)

	cur, err := c.Query(context.Background(), "SELECT 1")
	require.NoError(t, err)
	require.IsType(t, &BufferedResult{}, cur)
	_, err = cur.FetchRow(FetchOrdered)
	require.ErrorIs(t, err, io.EOF)

	cur, err = c.Query(context.Background(), "SELECT 1", WithBuffered(false))
	require.NoError(t, err)
	require.IsType(t, &Result{}, cur)
	_, err = cur.FetchRow(FetchOrdered)
	require.ErrorIs(t, err, io.EOF)
}

func TestIsEmptyStatement(t *testing.T) {
	tests := []struct {
		status   int32
		expected bool
	}{
		{pgresEmptyQuery, true},
		{pgresCommandOK, false},
		{pgresTuplesOK, false},
		{pgresFatalError, false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.expected, isEmptyStatement(tt.status))
	}
}

func TestConn_AffectedRowsWithoutNativeResult(t *testing.T) {
	c := closedConn()
	n, err := c.AffectedRows(c, nil)
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = c.AffectedRows(c, people())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestConn_PrepareStatementEmulated(t *testing.T) {
	c := closedConn(WithEmulatePrepare(true))

	stmt, err := c.PrepareStatement(context.Background(), "UPDATE t SET a = :a WHERE b = :b OR c = :a")
	require.NoError(t, err)
	require.Empty(t, stmt.Name())
	require.True(t, stmt.IsManip())
	require.Equal(t, []string{"a", "b", "a"}, stmt.Positions())

	require.NoError(t, stmt.BindValues(map[string]any{"a": 1, "b": 2}))
	_, err = stmt.Execute(context.Background())
	require.ErrorIs(t, err, ErrConnection)

	// nothing to deallocate on the server
	require.NoError(t, stmt.Free(context.Background()))
}

func TestConn_PrepareStatementParseError(t *testing.T) {
	c := closedConn()
	_, err := c.PrepareStatement(context.Background(), "SELECT ?, :a")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestConn_PrepareStatementServerFails(t *testing.T) {
	c := closedConn()
	_, err := c.PrepareStatement(context.Background(), "SELECT :a")
	require.ErrorIs(t, err, ErrConnection)
}

func TestTx_EndTwice(t *testing.T) {
	c := closedConn()
	tx := &Tx{conn: c}
	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback())
}

func TestBeginSQL(t *testing.T) {
	tests := []struct {
		opts     driver.TxOptions
		expected string
	}{
		{driver.TxOptions{}, "BEGIN"},
		{driver.TxOptions{ReadOnly: true}, "BEGIN READ ONLY"},
		{driver.TxOptions{Isolation: driver.IsolationLevel(sql.LevelReadCommitted)}, "BEGIN ISOLATION LEVEL READ COMMITTED"},
		{driver.TxOptions{Isolation: driver.IsolationLevel(sql.LevelReadUncommitted)}, "BEGIN ISOLATION LEVEL READ UNCOMMITTED"},
		{driver.TxOptions{Isolation: driver.IsolationLevel(sql.LevelSnapshot)}, "BEGIN ISOLATION LEVEL REPEATABLE READ"},
		{driver.TxOptions{Isolation: driver.IsolationLevel(sql.LevelSerializable), ReadOnly: true}, "BEGIN ISOLATION LEVEL SERIALIZABLE READ ONLY"},
	}

	for _, tt := range tests {
		got, err := beginSQL(tt.opts)
		require.NoError(t, err)
		require.Equal(t, tt.expected, got)
	}

	_, err := beginSQL(driver.TxOptions{Isolation: driver.IsolationLevel(42)})
	require.ErrorIs(t, err, ErrUnsupported)
}
