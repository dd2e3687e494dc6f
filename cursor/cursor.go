// Package cursor composes and drives the SELECT a layer iterates over:
// bbox predicates routed through whichever spatial index the catalog
// advertises, attribute projection, and extended→3D geometry decoding on
// the read path (§4.G).
package cursor

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/vectorlayer/spatialite/catalog"
	"github.com/vectorlayer/spatialite/internal/log"
	"github.com/vectorlayer/spatialite/wkb"
)

// State is one of the three states a Cursor can be in (§4.G state
// machine).
type State int

const (
	Idle State = iota
	Prepared
	Exhausted
)

// Extent is an axis-aligned bounding box in the layer's native SRID.
type Extent struct {
	MinX, MinY, MaxX, MaxY float64
}

func (e Extent) empty() bool {
	return e == Extent{}
}

// Field names one projected attribute column.
type Field struct {
	Name string
}

// ErrSQLPrepareFailed and ErrSQLStepFailed wrap the underlying database
// error for a failed prepare or step, per §7.
type ErrSQLPrepareFailed struct {
	Query string
	Err   error
}

func (e ErrSQLPrepareFailed) Error() string {
	return fmt.Sprintf("cursor: preparing %q: %v", e.Query, e.Err)
}
func (e ErrSQLPrepareFailed) Unwrap() error { return e.Err }

type ErrSQLStepFailed struct{ Err error }

func (e ErrSQLStepFailed) Error() string  { return fmt.Sprintf("cursor: stepping cursor: %v", e.Err) }
func (e ErrSQLStepFailed) Unwrap() error { return e.Err }

// Options configures a Select call.
type Options struct {
	PKExpr         string // "ROWID" for base tables, the declared pk column otherwise
	GeomColumn     string
	Fields         []Field // attribute columns to project, in order
	FetchGeom      bool
	BBox           Extent
	UseIntersect   bool
	Subset         string
	TargetDim      wkb.Dim // the layer's declared dimensionality; stored on the cursor but not used by Next, which always decodes to the 3D dialect
}

// Cursor drives one prepared statement over a layer's rows.
type Cursor struct {
	db      *sql.DB
	stmt    *sql.Stmt
	rows    *sql.Rows
	state   State
	nFields int
	fetch   bool
	dim     wkb.Dim
}

// Select builds and prepares the SELECT described by opts against info's
// resolved FROM-clause expression, returning a cursor in the Prepared
// state.
func Select(db *sql.DB, info *catalog.Info, opts Options) (*Cursor, error) {
	query, args := buildQuery(info, opts)
	log.Debugf("cursor: qtext: %v", query)

	stmt, err := db.Prepare(query)
	if err != nil {
		return nil, ErrSQLPrepareFailed{Query: query, Err: err}
	}
	rows, err := stmt.Query(args...)
	if err != nil {
		stmt.Close()
		return nil, ErrSQLStepFailed{Err: err}
	}

	c := &Cursor{
		db:      db,
		stmt:    stmt,
		rows:    rows,
		state:   Prepared,
		nFields: len(opts.Fields),
		fetch:   opts.FetchGeom,
		dim:     opts.TargetDim,
	}
	return c, nil
}

func buildQuery(info *catalog.Info, opts Options) (string, []interface{}) {
	cols := []string{opts.PKExpr}
	for _, f := range opts.Fields {
		cols = append(cols, quoteIdent(f.Name))
	}
	if opts.FetchGeom {
		cols = append(cols, fmt.Sprintf("AsBinary(%s)", quoteIdent(opts.GeomColumn)))
	}

	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), info.Query)

	var preds []string
	if !opts.BBox.empty() {
		preds = append(preds, bboxPredicate(info, opts))
	}

	var whereAdded bool
	if len(preds) > 0 {
		q += " WHERE " + strings.Join(preds, " AND ")
		whereAdded = true
	}
	if opts.Subset != "" {
		if whereAdded {
			q += fmt.Sprintf(" AND (%s)", opts.Subset)
		} else {
			q += fmt.Sprintf(" WHERE (%s)", opts.Subset)
		}
	}
	return q, nil
}

func bboxPredicate(info *catalog.Info, opts Options) string {
	mbr := fmt.Sprintf("BuildMbr(%s,%s,%s,%s)",
		fmtCoord(opts.BBox.MinX), fmtCoord(opts.BBox.MinY), fmtCoord(opts.BBox.MaxX), fmtCoord(opts.BBox.MaxY))
	geom := quoteIdent(opts.GeomColumn)

	var idxPred string
	switch {
	case info.Class == catalog.VirtualShape:
		idxPred = fmt.Sprintf("MbrIntersects(%s, %s)", geom, mbr)
	case info.Index == catalog.IndexRTree:
		idxPred = fmt.Sprintf(
			"%s IN (SELECT pkid FROM idx_%s_%s WHERE xmin <= %s AND xmax >= %s AND ymin <= %s AND ymax >= %s)",
			opts.PKExpr, stripQuotes(info.Query), opts.GeomColumn,
			fmtCoord(opts.BBox.MaxX), fmtCoord(opts.BBox.MinX), fmtCoord(opts.BBox.MaxY), fmtCoord(opts.BBox.MinY))
	case info.Index == catalog.IndexMBRCache:
		idxPred = fmt.Sprintf(
			"%s IN (SELECT rowid FROM cache_%s_%s WHERE mbr = FilterMbrIntersects(%s,%s,%s,%s))",
			opts.PKExpr, stripQuotes(info.Query), opts.GeomColumn,
			fmtCoord(opts.BBox.MinX), fmtCoord(opts.BBox.MinY), fmtCoord(opts.BBox.MaxX), fmtCoord(opts.BBox.MaxY))
	default:
		idxPred = fmt.Sprintf("MbrIntersects(%s, %s)", geom, mbr)
	}

	if opts.UseIntersect {
		return fmt.Sprintf("Intersects(%s, %s) AND %s", geom, mbr, idxPred)
	}
	return idxPred
}

func fmtCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func stripQuotes(s string) string {
	return strings.Trim(s, `"`)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Row is one iterated feature: an id, positional attribute values
// (parallel to the Fields the cursor was built with), and optionally a
// 3D-dialect geometry blob.
type Row struct {
	ID     int64
	Values []interface{}
	Geom   []byte
}

// Next advances the cursor. ok is false once the underlying statement is
// exhausted, at which point the cursor transitions to Exhausted and
// subsequent calls to Next are no-ops. A malformed geometry blob
// mid-cursor does not abort iteration (§7): the row is returned with a
// nil Geom and the error logged.
func (c *Cursor) Next() (row Row, ok bool, err error) {
	if c.state != Prepared {
		return Row{}, false, nil
	}
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			c.finalize()
			return Row{}, false, ErrSQLStepFailed{Err: err}
		}
		c.finalize()
		c.state = Exhausted
		return Row{}, false, nil
	}

	dest := make([]interface{}, 1+c.nFields)
	var geomBlob []byte
	if c.fetch {
		dest = append(dest, &geomBlob)
	}
	dest[0] = &row.ID
	vals := make([]interface{}, c.nFields)
	for i := range vals {
		dest[1+i] = &vals[i]
	}
	if err := c.rows.Scan(dest...); err != nil {
		c.finalize()
		return Row{}, false, ErrSQLStepFailed{Err: err}
	}
	row.Values = vals

	if c.fetch && geomBlob != nil {
		native, convErr := wkb.ConvertToNative(geomBlob)
		if convErr != nil {
			log.Errorf("cursor: malformed geometry, returning row %d with no geometry: %v", row.ID, convErr)
		} else {
			row.Geom = native
		}
	}
	return row, true, nil
}

// Rewind finalizes the current statement, returning the cursor to Idle.
// A subsequent Select call is required to iterate again.
func (c *Cursor) Rewind() {
	c.finalize()
	c.state = Idle
}

// State reports the cursor's current state.
func (c *Cursor) State() State { return c.state }

func (c *Cursor) finalize() {
	if c.rows != nil {
		c.rows.Close()
		c.rows = nil
	}
	if c.stmt != nil {
		c.stmt.Close()
		c.stmt = nil
	}
}
