package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	pgsql "github.com/slingdata-io/gopgsql"
)

func TestFormatRow(t *testing.T) {
	columns := []string{"id", "name", "data"}

	require.Equal(t, "1\tNULL\t\\xcafe", formatRow(columns, []any{int64(1), nil, []byte{0xca, 0xfe}}))
	require.Equal(t, "2\tbob\tNULL", formatRow(columns, map[string]any{"id": 2, "name": "bob"}))
	require.Equal(t, "3\tcarol\tNULL", formatRow(columns, pgsql.Object{"id": 3, "name": "carol"}))
	require.Equal(t, "raw", formatRow(columns, "raw"))
}

func TestSessionOptions(t *testing.T) {
	fetchMode, emulate, configFiles = "assoc", true, nil
	defer func() { fetchMode, emulate = "", false }()

	opts, err := sessionOptions()
	require.NoError(t, err)
	got := pgsql.NewOptions(opts...)
	require.Equal(t, pgsql.FetchAssoc, got.FetchMode)
	require.True(t, got.EmulatePrepare)

	fetchMode = "sideways"
	_, err = sessionOptions()
	require.Error(t, err)
}
