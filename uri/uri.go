// Package uri parses the pipe-delimited layer URI this module's layers
// are opened from: `<dbfile>|table=<t>|geometrycolumn=<g>|key=<k>|sql=<subset>`.
package uri

import (
	"fmt"
	"strings"
)

// ErrInvalidURI is returned when a required URI field is missing or the
// URI cannot be parsed at all.
type ErrInvalidURI struct {
	URI    string
	Reason string
}

func (e ErrInvalidURI) Error() string {
	return fmt.Sprintf("uri: invalid layer uri %q: %s", e.URI, e.Reason)
}

// Layer is a parsed layer URI.
type Layer struct {
	// DBFile is the path to the database file, taken verbatim from the
	// segment before the first "|".
	DBFile string
	// Table is the table, view, or parenthesised-subquery expression
	// named by "table=".
	Table string
	// GeometryColumn is the geometry column named by "geometrycolumn=".
	GeometryColumn string
	// Key is the optional primary-key column named by "key=".
	Key string
	// Subset is the optional SQL subset clause named by "sql=". Never
	// re-quoted; the caller is responsible for its contents (§9 open
	// question on inlined SQL applies equally here).
	Subset string
}

const (
	prefixTable  = "table="
	prefixGeom   = "geometrycolumn="
	prefixKey    = "key="
	prefixSubset = "sql="
)

// Parse splits raw into a Layer. DBFile, Table, and GeometryColumn are
// required; Key and Subset are optional. Segments are matched by prefix
// case-sensitively, in the order the grammar in §6 lists them, but Parse
// tolerates any order since real callers have been observed to reorder
// them.
func Parse(raw string) (Layer, error) {
	parts := strings.Split(raw, "|")
	if len(parts) < 2 {
		return Layer{}, ErrInvalidURI{URI: raw, Reason: "expected at least a dbfile and table segment"}
	}

	l := Layer{DBFile: parts[0]}
	if l.DBFile == "" {
		return Layer{}, ErrInvalidURI{URI: raw, Reason: "missing database file path"}
	}

	for _, seg := range parts[1:] {
		switch {
		case strings.HasPrefix(seg, prefixTable):
			l.Table = strings.TrimPrefix(seg, prefixTable)
		case strings.HasPrefix(seg, prefixGeom):
			l.GeometryColumn = strings.TrimPrefix(seg, prefixGeom)
		case strings.HasPrefix(seg, prefixKey):
			l.Key = strings.TrimPrefix(seg, prefixKey)
		case strings.HasPrefix(seg, prefixSubset):
			l.Subset = strings.TrimPrefix(seg, prefixSubset)
		default:
			return Layer{}, ErrInvalidURI{URI: raw, Reason: fmt.Sprintf("unrecognized uri segment %q", seg)}
		}
	}

	if l.Table == "" {
		return Layer{}, ErrInvalidURI{URI: raw, Reason: "missing table="}
	}
	if l.GeometryColumn == "" {
		return Layer{}, ErrInvalidURI{URI: raw, Reason: "missing geometrycolumn="}
	}
	return l, nil
}

// IsSubquery reports whether Table is a parenthesised SELECT expression
// rather than a bare table/view name (§4.F).
func (l Layer) IsSubquery() bool {
	t := strings.TrimSpace(l.Table)
	return strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")")
}

// String reassembles the canonical form of the URI, primarily for log
// messages and error wrapping.
func (l Layer) String() string {
	var b strings.Builder
	b.WriteString(l.DBFile)
	fmt.Fprintf(&b, "|table=%s|geometrycolumn=%s", l.Table, l.GeometryColumn)
	if l.Key != "" {
		fmt.Fprintf(&b, "|key=%s", l.Key)
	}
	if l.Subset != "" {
		fmt.Fprintf(&b, "|sql=%s", l.Subset)
	}
	return b.String()
}
