package pgsql

import (
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Object is the default FetchObject row: a plain field container keyed by
// (case-folded) column name.
type Object map[string]any

func newObject(row map[string]any) (any, error) {
	return Object(row), nil
}

// DecodeInto returns an ObjectFactory that decodes each associative row
// into a fresh value from newFn (a pointer to a struct). Fields are matched
// by their `db` tag, falling back to a case-insensitive field name match.
func DecodeInto(newFn func() any) ObjectFactory {
	return func(row map[string]any) (any, error) {
		out := newFn()
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "db",
			WeaklyTypedInput: true,
			Result:           out,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(row); err != nil {
			return nil, &Error{Kind: KindInvalidArgument, Op: "fetchRow", Message: "cannot build row object", Err: err}
		}
		return out, nil
	}
}

// rawRow is one native row before decoding.
type rawRow struct {
	names  []string
	values []string
	nulls  []bool
}

// decodeRow turns a raw row into the shape selected by mode, applying
// portability normalization and the declared types.
func decodeRow(opts *Options, raw rawRow, mode FetchMode, types TypeMap, binds columnBindings) (any, error) {
	names := raw.names
	if (mode == FetchAssoc || mode == FetchObject) && opts.Portability.Has(PortabilityFixCase) {
		names = foldNames(names, opts.FieldCase)
	}

	values := make([]any, len(raw.values))
	for i, v := range raw.values {
		if raw.nulls[i] {
			values[i] = nil
			continue
		}
		values[i] = v
	}

	typed := types.applies(mode)
	rtrim := opts.Portability.Has(PortabilityRTrim)
	emptyToNull := opts.Portability.Has(PortabilityEmptyToNull)
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if emptyToNull && s == "" {
			values[i] = nil
			continue
		}
		if rtrim && !typed {
			values[i] = strings.TrimRight(s, " \t\n\r\x00\x0B")
		}
	}

	if typed {
		for i, v := range values {
			name := ""
			if i < len(names) {
				name = names[i]
			}
			// undeclared columns pass through as fetched
			typ, declared := types.lookup(i, name, mode)
			if !declared {
				continue
			}
			converted, err := convertValue(v, typ, rtrim)
			if err != nil {
				return nil, err
			}
			values[i] = converted
		}
	}

	binds.assign(names, values)

	switch mode {
	case FetchAssoc:
		return assocRow(names, values), nil
	case FetchObject:
		factory := opts.ObjectFactory
		if factory == nil {
			factory = newObject
		}
		return factory(assocRow(names, values))
	default:
		return values, nil
	}
}

func assocRow(names []string, values []any) map[string]any {
	row := make(map[string]any, len(values))
	for i, v := range values {
		if i < len(names) {
			row[names[i]] = v
		}
	}
	return row
}

func foldNames(names []string, c Case) []string {
	folded := make([]string, len(names))
	for i, n := range names {
		folded[i] = c.fold(n)
	}
	return folded
}

// columnBindings maps a column (int position or string name) to a caller
// variable updated on every fetch.
type columnBindings map[any]*any

func (b columnBindings) assign(names []string, values []any) {
	if len(b) == 0 {
		return
	}
	for column, dest := range b {
		switch c := column.(type) {
		case int:
			if c >= 0 && c < len(values) {
				*dest = values[c]
			}
		case string:
			for i, n := range names {
				if n == c && i < len(values) {
					*dest = values[i]
					break
				}
			}
		}
	}
}
