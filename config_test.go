package pgsql

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Options Tests (options.go, config.go)
// =============================================================================

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	require.Equal(t, FetchOrdered, opts.FetchMode)
	require.Equal(t, PortabilityAll, opts.Portability)
	require.Equal(t, CaseLower, opts.FieldCase)
	require.Equal(t, DefaultLOBBufferLength, opts.LOBBufferLength)
	require.True(t, opts.ResultBuffering)
	require.False(t, opts.DisableQuery)
	require.False(t, opts.EmulatePrepare)
	require.NotNil(t, opts.ObjectFactory)
	require.NotNil(t, opts.Logger)
}

func TestOptions_FetchModeResolution(t *testing.T) {
	opts := NewOptions(WithFetchMode(FetchAssoc))
	require.Equal(t, FetchAssoc, opts.fetchMode(FetchDefault))
	require.Equal(t, FetchObject, opts.fetchMode(FetchObject))

	opts = NewOptions(WithFetchMode(FetchDefault))
	require.Equal(t, FetchOrdered, opts.fetchMode(FetchDefault))
}

func TestOptions_LOBBufferLengthFallback(t *testing.T) {
	opts := NewOptions(WithLOBBufferLength(0))
	require.Equal(t, DefaultLOBBufferLength, opts.lobBufferLength())
}

func TestWithOptions_KeepsLoggerAndFactory(t *testing.T) {
	logger := zap.NewExample()
	decoded, err := DecodeOptions(map[string]interface{}{"fetchmode": "assoc"})
	require.NoError(t, err)
	decoded.Logger = nil
	decoded.ObjectFactory = nil

	opts := NewOptions(WithLogger(logger), WithOptions(decoded))
	require.Equal(t, FetchAssoc, opts.FetchMode)
	require.Same(t, logger, opts.Logger)
	require.NotNil(t, opts.ObjectFactory)
}

func TestDecodeOptions(t *testing.T) {
	opts, err := DecodeOptions(map[string]interface{}{
		"fetchmode":             "object",
		"portability":           "rtrim|empty_to_null",
		"field_case":            "upper",
		"lob_buffer_length":     "1024",
		"lob_allow_url_include": true,
		"disable_query":         "true",
		"result_buffering":      false,
		"emulate_prepared":      1,
	})
	require.NoError(t, err)
	require.Equal(t, FetchObject, opts.FetchMode)
	require.Equal(t, PortabilityRTrim|PortabilityEmptyToNull, opts.Portability)
	require.Equal(t, CaseUpper, opts.FieldCase)
	require.Equal(t, 1024, opts.LOBBufferLength)
	require.True(t, opts.LOBAllowURLInclude)
	require.True(t, opts.DisableQuery)
	require.False(t, opts.ResultBuffering)
	require.True(t, opts.EmulatePrepare)
	require.NotNil(t, opts.Logger)
}

func TestDecodeOptions_Numbers(t *testing.T) {
	opts, err := DecodeOptions(map[string]interface{}{
		"fetchmode":   int64(FetchAssoc),
		"portability": int(PortabilityFixCase),
	})
	require.NoError(t, err)
	require.Equal(t, FetchAssoc, opts.FetchMode)
	require.Equal(t, PortabilityFixCase, opts.Portability)
}

func TestDecodeOptions_Invalid(t *testing.T) {
	_, err := DecodeOptions(map[string]interface{}{"fetchmode": "sideways"})
	require.Error(t, err)

	_, err = DecodeOptions(map[string]interface{}{"portability": "everything"})
	require.Error(t, err)
}

func TestLoadOptions_TOML(t *testing.T) {
	t.Setenv("PGSQL_TEST_FIELD_CASE", "upper")
	path := filepath.Join(t.TempDir(), "pgsql.toml")
	content := `
[pgsql]
fetchmode = "assoc"
portability = "fix_case"
field_case = "${PGSQL_TEST_FIELD_CASE}"
lob_buffer_length = 512
emulate_prepared = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	require.Equal(t, FetchAssoc, opts.FetchMode)
	require.Equal(t, PortabilityFixCase, opts.Portability)
	require.Equal(t, CaseUpper, opts.FieldCase)
	require.Equal(t, 512, opts.LOBBufferLength)
	require.True(t, opts.EmulatePrepare)
	require.True(t, opts.ResultBuffering)
}

func TestLoadOptions_TopLevelKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opts.toml")
	require.NoError(t, os.WriteFile(path, []byte("disable_query = true\n"), 0o600))

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	require.True(t, opts.DisableQuery)
	require.Equal(t, FetchOrdered, opts.FetchMode)
}

func TestLoadOptionsInto_KeepsBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opts.toml")
	require.NoError(t, os.WriteFile(path, []byte("lob_buffer_length = 1024\n"), 0o600))

	base := NewOptions(WithPortability(PortabilityNone), WithFetchMode(FetchAssoc))
	opts, err := LoadOptionsInto(base, path)
	require.NoError(t, err)
	require.Equal(t, 1024, opts.LOBBufferLength)
	require.Equal(t, PortabilityNone, opts.Portability)
	require.Equal(t, FetchAssoc, opts.FetchMode)
}

func TestDecodeOptionsInto(t *testing.T) {
	base := NewOptions(WithPortability(PortabilityRTrim))
	opts, err := DecodeOptionsInto(base, map[string]interface{}{"emulate_prepared": true})
	require.NoError(t, err)
	require.True(t, opts.EmulatePrepare)
	require.Equal(t, PortabilityRTrim, opts.Portability)
}

func TestLoadOptions_MissingFile(t *testing.T) {
	_, err := LoadOptions(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
