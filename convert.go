package pgsql

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layouts accepted for date/time/timestamp columns in PostgreSQL text output.
var (
	dateLayouts = []string{"2006-01-02"}
	timeLayouts = []string{
		"15:04:05.999999999-07:00",
		"15:04:05.999999999-07",
		"15:04:05.999999999",
		"15:04:05",
		"15:04",
	}
	timestampLayouts = []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999-07",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
)

// convertValue converts one raw text value through its declared type.
// rtrim applies to text-like types only.
func convertValue(raw any, typ Type, rtrim bool) (any, error) {
	s, ok := raw.(string)
	if !ok {
		// nil (SQL NULL or empty-to-null) passes through
		return raw, nil
	}
	switch typ {
	case TypeNone:
		return s, nil
	case TypeText, TypeClob:
		if rtrim {
			s = strings.TrimRight(s, " \t\n\r\x00\x0B")
		}
		return s, nil
	case TypeInteger:
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, convertError(typ, s, err)
		}
		return i, nil
	case TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, convertError(typ, s, err)
		}
		return f, nil
	case TypeDecimal:
		// kept as text to preserve precision
		return strings.TrimSpace(s), nil
	case TypeBoolean:
		return parseBool(s)
	case TypeDate:
		return parseTime(typ, s, dateLayouts)
	case TypeTime:
		return parseTime(typ, s, timeLayouts)
	case TypeTimestamp:
		return parseTime(typ, s, timestampLayouts)
	case TypeBlob:
		return unescapeBytea(s)
	}
	return nil, newError(KindInvalidArgument, "convert", fmt.Sprintf("type %q is not defined", typ))
}

func convertError(typ Type, s string, err error) error {
	return &Error{
		Kind:    KindInvalidArgument,
		Op:      "convert",
		Message: fmt.Sprintf("cannot convert %q to %s", s, typ),
		Err:     err,
	}
}

func parseBool(s string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "true", "y", "yes", "on", "1":
		return true, nil
	case "f", "false", "n", "no", "off", "0":
		return false, nil
	}
	return nil, convertError(TypeBoolean, s, nil)
}

func parseTime(typ Type, s string, layouts []string) (any, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return nil, convertError(typ, s, nil)
}

// unescapeBytea decodes bytea text output in hex ("\x...") or the legacy
// escape format.
func unescapeBytea(s string) ([]byte, error) {
	if strings.HasPrefix(s, `\x`) {
		b, err := hex.DecodeString(s[2:])
		if err != nil {
			return nil, convertError(TypeBlob, s, err)
		}
		return b, nil
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		if i+1 < len(s) && s[i+1] == '\\' {
			out = append(out, '\\')
			i++
			continue
		}
		if i+3 < len(s) {
			n, err := strconv.ParseUint(s[i+1:i+4], 8, 8)
			if err == nil {
				out = append(out, byte(n))
				i += 3
				continue
			}
		}
		return nil, convertError(TypeBlob, s, nil)
	}
	return out, nil
}
