package pgsql

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ParsedQuery is a query split around its placeholders.
type ParsedQuery struct {
	// Query is the query with PostgreSQL $n placeholders, the form sent in
	// PREPARE. A repeated named placeholder reuses its first $n.
	Query string

	// Names contains the placeholder names in order of first appearance.
	// Positional ? placeholders are named "1", "2", ... and $n placeholders
	// are named n.
	Names []string

	// Occurrences contains one name per placeholder occurrence.
	Occurrences []string

	// Fragments holds the literal text around the placeholders; it always
	// has len(Occurrences)+1 entries.
	Fragments []string
}

// ParseQuery scans query for ?, $n and :name placeholders; one query uses
// a single style. String literals, quoted identifiers, dollar-quoted
// strings, comments and :: casts are skipped.
func ParseQuery(query string) (*ParsedQuery, error) {
	p := &ParsedQuery{}
	index := make(map[string]int)
	var out, frag strings.Builder
	positional, named, numbered := 0, false, false

	emit := func(s string) {
		out.WriteString(s)
		frag.WriteString(s)
	}
	placeholder := func(name string) {
		n, ok := index[name]
		if !ok {
			p.Names = append(p.Names, name)
			n = len(p.Names)
			index[name] = n
		}
		p.Occurrences = append(p.Occurrences, name)
		p.Fragments = append(p.Fragments, frag.String())
		frag.Reset()
		out.WriteString("$" + strconv.Itoa(n))
	}

	i := 0
	for i < len(query) {
		c := query[i]

		// string literals; E'' strings allow backslash escapes
		if c == '\'' {
			escapes := i > 0 && (query[i-1] == 'E' || query[i-1] == 'e')
			end := scanQuoted(query, i, '\'', escapes)
			emit(query[i:end])
			i = end
			continue
		}

		// quoted identifiers
		if c == '"' {
			end := scanQuoted(query, i, '"', false)
			emit(query[i:end])
			i = end
			continue
		}

		// -- comments
		if c == '-' && i+1 < len(query) && query[i+1] == '-' {
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = len(query) - i
			}
			emit(query[i : i+end])
			i += end
			continue
		}

		// /* */ comments
		if c == '/' && i+1 < len(query) && query[i+1] == '*' {
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				end = len(query)
			} else {
				end = i + 2 + end + 2
			}
			emit(query[i:end])
			i = end
			continue
		}

		// $tag$ ... $tag$ strings
		if c == '$' {
			if tag := dollarTag(query[i:]); tag != "" {
				end := strings.Index(query[i+len(tag):], tag)
				if end < 0 {
					end = len(query)
				} else {
					end = i + len(tag) + end + len(tag)
				}
				emit(query[i:end])
				i = end
				continue
			}
		}

		// $n placeholders
		if c == '$' && i+1 < len(query) && query[i+1] >= '1' && query[i+1] <= '9' {
			if named || positional > 0 {
				return nil, mixedPlaceholders()
			}
			numbered = true
			end := i + 1
			for end < len(query) && query[end] >= '0' && query[end] <= '9' {
				end++
			}
			placeholder(query[i+1 : end])
			i = end
			continue
		}

		// :: casts
		if c == ':' && i+1 < len(query) && query[i+1] == ':' {
			emit("::")
			i += 2
			continue
		}

		if c == '?' {
			if named || numbered {
				return nil, mixedPlaceholders()
			}
			positional++
			placeholder(strconv.Itoa(positional))
			i++
			continue
		}

		if c == ':' && i+1 < len(query) && isIdentStart(query[i+1]) {
			if positional > 0 || numbered {
				return nil, mixedPlaceholders()
			}
			named = true
			end := i + 1
			for end < len(query) && isIdentChar(query[end]) {
				end++
			}
			placeholder(query[i+1 : end])
			i = end
			continue
		}

		emit(query[i : i+1])
		i++
	}

	p.Query = out.String()
	p.Fragments = append(p.Fragments, frag.String())
	return p, nil
}

// scanQuoted returns the index just past the literal opened at query[start].
// A doubled quote character is an escaped quote.
func scanQuoted(query string, start int, quote byte, escapes bool) int {
	i := start + 1
	for i < len(query) {
		switch {
		case escapes && query[i] == '\\':
			i += 2
			continue
		case query[i] == quote:
			if i+1 < len(query) && query[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(query)
}

// dollarTag returns the opening $tag$ at the start of s, or "".
func dollarTag(s string) string {
	for i := 1; i < len(s); i++ {
		if s[i] == '$' {
			return s[:i+1]
		}
		if !isIdentChar(s[i]) || (i == 1 && !isIdentStart(s[i])) {
			return ""
		}
	}
	return ""
}

func mixedPlaceholders() error {
	return newError(KindInvalidArgument, "prepare", "positional and named placeholders cannot be mixed")
}

// isIdentStart returns true if c is a valid identifier start character
func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

// isIdentChar returns true if c is a valid identifier character
func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

var manipPattern = regexp.MustCompile(`(?is)^\s*(INSERT|UPDATE|DELETE|REPLACE|MERGE|CREATE|DROP|ALTER|TRUNCATE|GRANT|REVOKE|COMMENT|LOCK|COPY|VACUUM|ANALYZE|REINDEX|CLUSTER|SET|RESET|BEGIN|START|COMMIT|END|ROLLBACK|SAVEPOINT|RELEASE|DEALLOCATE|PREPARE|LISTEN|UNLISTEN|NOTIFY|DISCARD|SELECT\s.*\sINTO\s.*\sFROM)\b`)

// IsManip reports whether query modifies data or schema rather than
// returning rows. A RETURNING clause makes a mutating query a row query.
func IsManip(query string) bool {
	if !manipPattern.MatchString(query) {
		return false
	}
	return !returningPattern.MatchString(query)
}

var returningPattern = regexp.MustCompile(`(?is)\sRETURNING\s`)

// pgTypeNames maps declared placeholder types to the types named in PREPARE.
var pgTypeNames = map[Type]string{
	TypeText:      "text",
	TypeClob:      "text",
	TypeInteger:   "bigint",
	TypeBoolean:   "boolean",
	TypeDecimal:   "numeric",
	TypeFloat:     "double precision",
	TypeDate:      "date",
	TypeTime:      "time",
	TypeTimestamp: "timestamp",
	TypeBlob:      "bytea",
}

// prepareSQL renders PREPARE name [(types)] AS query. The type list is only
// included when every placeholder has a declared type.
func prepareSQL(name string, parsed *ParsedQuery, types map[string]Type) string {
	var sb strings.Builder
	sb.WriteString("PREPARE ")
	sb.WriteString(name)
	if len(parsed.Names) > 0 && len(types) > 0 {
		pgTypes := make([]string, 0, len(parsed.Names))
		for _, n := range parsed.Names {
			t, ok := pgTypeNames[types[n]]
			if !ok {
				pgTypes = nil
				break
			}
			pgTypes = append(pgTypes, t)
		}
		if pgTypes != nil {
			sb.WriteString(" (" + strings.Join(pgTypes, ", ") + ")")
		}
	}
	sb.WriteString(" AS ")
	sb.WriteString(parsed.Query)
	return sb.String()
}

// statementName returns a unique server-side statement name.
func statementName() string {
	return "pgsql_stmt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
