package pgsql

import (
	"fmt"
	"strings"
)

// FetchMode selects the shape of a fetched row
type FetchMode int

const (
	// FetchDefault resolves to Options.FetchMode
	FetchDefault FetchMode = iota
	// FetchOrdered returns rows as []any indexed by column position
	FetchOrdered
	// FetchAssoc returns rows as map[string]any keyed by column name
	FetchAssoc
	// FetchObject returns rows built by Options.ObjectFactory
	FetchObject
)

func (m FetchMode) String() string {
	switch m {
	case FetchDefault:
		return "default"
	case FetchOrdered:
		return "ordered"
	case FetchAssoc:
		return "assoc"
	case FetchObject:
		return "object"
	default:
		return fmt.Sprintf("FetchMode(%d)", int(m))
	}
}

// ParseFetchMode parses the names accepted in option files and on the CLI.
func ParseFetchMode(s string) (FetchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return FetchDefault, nil
	case "ordered", "positional", "row":
		return FetchOrdered, nil
	case "assoc", "associative":
		return FetchAssoc, nil
	case "object", "obj":
		return FetchObject, nil
	}
	return FetchDefault, fmt.Errorf("unknown fetch mode %q", s)
}

// Portability is a bit set of cross-backend normalizations
type Portability int

const (
	PortabilityNone Portability = 0
	// PortabilityFixCase folds associative keys to Options.FieldCase
	PortabilityFixCase Portability = 1 << iota
	// PortabilityRTrim right-trims text values
	PortabilityRTrim
	// PortabilityEmptyToNull turns empty strings into nil
	PortabilityEmptyToNull

	PortabilityAll = PortabilityFixCase | PortabilityRTrim | PortabilityEmptyToNull
)

var portabilityNames = map[string]Portability{
	"none":          PortabilityNone,
	"fix_case":      PortabilityFixCase,
	"rtrim":         PortabilityRTrim,
	"empty_to_null": PortabilityEmptyToNull,
	"all":           PortabilityAll,
}

// ParsePortability parses a "|" or "," separated list of flag names, e.g.
// "fix_case|rtrim".
func ParsePortability(s string) (Portability, error) {
	var p Portability
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		flag, ok := portabilityNames[strings.ToLower(strings.TrimSpace(part))]
		if !ok {
			return PortabilityNone, fmt.Errorf("unknown portability flag %q", part)
		}
		p |= flag
	}
	return p, nil
}

// Has reports whether every bit of flag is set.
func (p Portability) Has(flag Portability) bool {
	return p&flag == flag
}

// Case is the target case for PortabilityFixCase
type Case int

const (
	CaseLower Case = iota
	CaseUpper
)

// ParseCase parses "lower" or "upper".
func ParseCase(s string) (Case, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lower", "":
		return CaseLower, nil
	case "upper":
		return CaseUpper, nil
	}
	return CaseLower, fmt.Errorf("unknown field case %q", s)
}

func (c Case) fold(s string) string {
	if c == CaseUpper {
		return strings.ToUpper(s)
	}
	return strings.ToLower(s)
}

// Type is a declared logical column or parameter type
type Type string

const (
	TypeNone      Type = ""
	TypeText      Type = "text"
	TypeInteger   Type = "integer"
	TypeBoolean   Type = "boolean"
	TypeDecimal   Type = "decimal"
	TypeFloat     Type = "float"
	TypeDate      Type = "date"
	TypeTime      Type = "time"
	TypeTimestamp Type = "timestamp"
	TypeBlob      Type = "blob"
	TypeClob      Type = "clob"
)

// IsLOB reports whether t is a large-object type.
func (t Type) IsLOB() bool {
	return t == TypeBlob || t == TypeClob
}

func (t Type) textual() bool {
	return t == TypeText || t == TypeClob
}

func (t Type) valid() bool {
	switch t {
	case TypeNone, TypeText, TypeInteger, TypeBoolean, TypeDecimal, TypeFloat,
		TypeDate, TypeTime, TypeTimestamp, TypeBlob, TypeClob:
		return true
	}
	return false
}

// TypeMap declares result column types, either by position or by name.
// Named types only apply to associative and object fetches.
type TypeMap struct {
	ordered []Type
	named   map[string]Type
}

// Positional builds a TypeMap keyed by column position.
func Positional(types ...Type) TypeMap {
	return TypeMap{ordered: append([]Type(nil), types...)}
}

// Named builds a TypeMap keyed by column name.
func Named(types map[string]Type) TypeMap {
	named := make(map[string]Type, len(types))
	for k, v := range types {
		named[k] = v
	}
	return TypeMap{named: named}
}

// Len returns the number of declared types.
func (m TypeMap) Len() int {
	if len(m.ordered) > 0 {
		return len(m.ordered)
	}
	return len(m.named)
}

// IsEmpty reports whether no type is declared.
func (m TypeMap) IsEmpty() bool {
	return m.Len() == 0
}

func (m TypeMap) validate() error {
	for _, t := range m.ordered {
		if !t.valid() {
			return newError(KindInvalidArgument, "types", fmt.Sprintf("type %q is not defined", t))
		}
	}
	for _, t := range m.named {
		if !t.valid() {
			return newError(KindInvalidArgument, "types", fmt.Sprintf("type %q is not defined", t))
		}
	}
	return nil
}

// lookup returns the type of column i (named name) for the given mode.
func (m TypeMap) lookup(i int, name string, mode FetchMode) (Type, bool) {
	if len(m.ordered) > 0 {
		if i < len(m.ordered) {
			return m.ordered[i], true
		}
		return TypeNone, false
	}
	if mode == FetchAssoc || mode == FetchObject {
		t, ok := m.named[name]
		return t, ok
	}
	return TypeNone, false
}

// applies reports whether conversion runs for mode.
func (m TypeMap) applies(mode FetchMode) bool {
	if len(m.ordered) > 0 {
		return true
	}
	return len(m.named) > 0 && (mode == FetchAssoc || mode == FetchObject)
}
