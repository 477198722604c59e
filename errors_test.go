package pgsql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// Error Tests (errors.go)
// =============================================================================

func TestError_Error(t *testing.T) {
	tests := []struct {
		err      *Error
		expected string
	}{
		{newError(KindNotFound, "bindValue", "Unable to bind to missing placeholder: id"), "pgsql: bindValue: Unable to bind to missing placeholder: id"},
		{&Error{Kind: KindBackend, Op: "execute", SQLState: "42P01", Message: `relation "t" does not exist`}, `pgsql: execute: [42P01] relation "t" does not exist`},
		{&Error{Kind: KindUnsupported}, "pgsql: unsupported"},
		{&Error{Kind: KindLOBSource, Message: "cannot read", Err: errors.New("short read")}, "pgsql: cannot read: short read"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.expected, tt.err.Error())
	}
}

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", resultFreed("fetchRow"))
	require.ErrorIs(t, err, ErrResultFreed)
	require.NotErrorIs(t, err, ErrInvalidState)

	cause := errors.New("disk on fire")
	wrapped := &Error{Kind: KindLOBSource, Err: cause}
	require.ErrorIs(t, wrapped, cause)
	require.ErrorIs(t, wrapped, ErrLOBSource)
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "result freed", KindResultFreed.String())
	require.Equal(t, "Kind(99)", Kind(99).String())
}

func TestDropTableError_UnwrapsBoth(t *testing.T) {
	first := &Error{Kind: KindBackend, SQLState: SQLStateDependentObjects, Message: "cannot drop table"}
	second := &Error{Kind: KindConnection, Message: "connection lost"}
	err := &DropTableError{Table: "t", Err: first, CascadeErr: second}

	require.ErrorIs(t, err, ErrBackend)
	require.ErrorIs(t, err, ErrConnection)
	require.Contains(t, err.Error(), "drop table t")

	var pgErr *Error
	require.True(t, errors.As(err, &pgErr))
	require.Equal(t, KindConnection, pgErr.Kind)
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{&Error{Kind: KindBackend, SQLState: "08006"}, true},
		{&Error{Kind: KindBackend, SQLState: "08001"}, true},
		{&Error{Kind: KindConnection}, true},
		{fmt.Errorf("ping: %w", &Error{Kind: KindBackend, SQLState: "08003"}), true},
		{&Error{Kind: KindBackend, SQLState: "42601"}, false},
		{&Error{Kind: KindBackend, SQLState: "0"}, false},
		{errors.New("plain"), false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.expected, IsConnectionError(tt.err), "%v", tt.err)
	}
}

func TestSQLStatePredicates(t *testing.T) {
	undefined := &Error{Kind: KindBackend, SQLState: SQLStateUndefinedTable}
	dependent := &Error{Kind: KindBackend, SQLState: SQLStateDependentObjects}

	require.True(t, IsUndefinedTable(undefined))
	require.False(t, IsUndefinedTable(dependent))
	require.True(t, IsDependentObjects(dependent))

	require.True(t, IsRetryable(&Error{Kind: KindBackend, SQLState: SQLStateSerializationFailure}))
	require.True(t, IsRetryable(&Error{Kind: KindBackend, SQLState: SQLStateDeadlock}))
	require.True(t, IsRetryable(&Error{Kind: KindConnection}))
	require.False(t, IsRetryable(undefined))
	require.False(t, IsRetryable(nil))
}
