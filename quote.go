package pgsql

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// inferType picks a declared type for a value bound without one.
func inferType(value any) Type {
	switch value.(type) {
	case bool:
		return TypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInteger
	case float32, float64:
		return TypeFloat
	case []byte:
		return TypeBlob
	case time.Time:
		return TypeTimestamp
	default:
		return TypeText
	}
}

// QuoteLiteral renders value as a PostgreSQL literal of type typ. A nil
// value renders NULL whatever the type. TypeNone infers the type from the
// Go value. Text containing a NUL byte cannot be stored by PostgreSQL and
// fails with ErrInvalidArgument; bind such data as TypeBlob.
func QuoteLiteral(value any, typ Type) (string, error) {
	if value == nil {
		return "NULL", nil
	}
	if typ == TypeNone {
		typ = inferType(value)
	}
	switch typ {
	case TypeText, TypeClob:
		return quoteText(textOf(value))
	case TypeInteger:
		return quoteInteger(value)
	case TypeFloat:
		return quoteFloat(value)
	case TypeDecimal:
		return quoteDecimal(value)
	case TypeBoolean:
		return quoteBoolean(value)
	case TypeDate:
		return quoteTime(value, "2006-01-02")
	case TypeTime:
		return quoteTime(value, "15:04:05.999999999")
	case TypeTimestamp:
		return quoteTime(value, "2006-01-02 15:04:05.999999999Z07:00")
	case TypeBlob:
		return quoteBytea(value), nil
	}
	return "", newError(KindInvalidArgument, "quote", fmt.Sprintf("type %q is not defined", typ))
}

// QuoteIdentifier renders name as a double-quoted identifier.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func textOf(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func quoteText(s string) (string, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return "", newError(KindInvalidArgument, "quote", "text value contains a NUL byte")
	}
	return quoteString(s), nil
}

// quoteString doubles single quotes; backslashes switch to the E'' form so
// the literal reads the same under either standard_conforming_strings.
func quoteString(s string) string {
	if !strings.Contains(s, `\`) {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "E'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteInteger(value any) (string, error) {
	switch v := value.(type) {
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case float32:
		return strconv.FormatInt(int64(v), 10), nil
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	}
	s := strings.TrimSpace(textOf(value))
	if _, err := strconv.ParseInt(s, 10, 64); err != nil {
		return "", quoteError(TypeInteger, value, err)
	}
	return s, nil
}

func quoteFloat(value any) (string, error) {
	var f float64
	switch v := value.(type) {
	case float32:
		f = float64(v)
	case float64:
		f = v
	default:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(textOf(value)), 64)
		if err != nil {
			return "", quoteError(TypeFloat, value, err)
		}
		f = parsed
	}
	switch {
	case math.IsNaN(f):
		return "'NaN'", nil
	case math.IsInf(f, 1):
		return "'Infinity'", nil
	case math.IsInf(f, -1):
		return "'-Infinity'", nil
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

func quoteDecimal(value any) (string, error) {
	switch value.(type) {
	case float32, float64:
		return quoteFloat(value)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return quoteInteger(value)
	}
	s := strings.TrimSpace(textOf(value))
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return "", quoteError(TypeDecimal, value, err)
	}
	return s, nil
}

func quoteBoolean(value any) (string, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		b, err := parseBool(v)
		if err != nil {
			return "", quoteError(TypeBoolean, value, err)
		}
		return quoteBoolean(b)
	}
	if s, err := quoteInteger(value); err == nil {
		return quoteBoolean(s != "0")
	}
	return "", quoteError(TypeBoolean, value, nil)
}

func quoteTime(value any, layout string) (string, error) {
	if t, ok := value.(time.Time); ok {
		return quoteString(t.Format(layout)), nil
	}
	return quoteText(textOf(value))
}

func quoteBytea(value any) string {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	default:
		b = []byte(textOf(value))
	}
	return `E'\\x` + hex.EncodeToString(b) + `'::bytea`
}

func quoteError(typ Type, value any, err error) error {
	return &Error{
		Kind:    KindInvalidArgument,
		Op:      "quote",
		Message: fmt.Sprintf("cannot quote %v as %s", value, typ),
		Err:     err,
	}
}
