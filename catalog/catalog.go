// Package catalog introspects a SpatiaLite database's spatial catalogs
// to classify a layer as a table, view, virtual foreign-table, or
// ad-hoc subquery, and to discover its geometry column's tag, SRID,
// declared dimensionality, and spatial-index kind (§4.F).
package catalog

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/vectorlayer/spatialite/internal/log"
	"github.com/vectorlayer/spatialite/uri"
	"github.com/vectorlayer/spatialite/wkb"
)

// Classification is the one category a layer's source resolves to.
type Classification int

const (
	Table Classification = iota + 1
	View
	VirtualShape
	Subquery
)

func (c Classification) String() string {
	switch c {
	case Table:
		return "table"
	case View:
		return "view"
	case VirtualShape:
		return "virtual-shape"
	case Subquery:
		return "subquery"
	default:
		return "unknown"
	}
}

// IndexKind is the spatial index the catalog advertises for a layer's
// geometry column.
type IndexKind int

const (
	IndexNone IndexKind = iota
	IndexRTree
	IndexMBRCache
)

// ErrLayerInvalid is returned when classification is ambiguous (zero or
// more than one catalog hit), the geometry tag is unknown, or the SRID
// has no matching spatial_ref_sys row.
type ErrLayerInvalid struct {
	Table  string
	Reason string
}

func (e ErrLayerInvalid) Error() string {
	return fmt.Sprintf("catalog: layer %q is invalid: %s", e.Table, e.Reason)
}

// Info is everything classification discovers about a layer's source.
type Info struct {
	Class      Classification
	Query      string // the FROM-clause expression: table name, view name, or "(<select>) AS subQueryN"
	Shape      wkb.Shape
	SRID       int
	Dim        wkb.Dim
	Index      IndexKind
	ReadOnly   bool
	Projection string // spatial_ref_sys.proj4text for SRID (no srtext fallback)
}

type probeRow struct {
	geomType  string
	srid      int
	spatial   int
	coordDim  string
	authorize sql.NullInt64 // from geometry_columns_auth.read_only, table probe only
}

// Classify runs the three catalog probes plus the subquery fallback, in
// the order §4.F specifies, and returns the single classification that
// matched. More than one match, or none, is ErrLayerInvalid.
func Classify(db *sql.DB, l uri.Layer) (*Info, error) {
	if l.IsSubquery() {
		return classifySubquery(db, l)
	}

	var hits []*Info

	if info, err := probeTable(db, l); err != nil {
		return nil, err
	} else if info != nil {
		hits = append(hits, info)
	}
	if info, err := probeViewOrVirts(db, l, "views_geometry_columns", View); err != nil {
		return nil, err
	} else if info != nil {
		hits = append(hits, info)
	}
	if info, err := probeViewOrVirts(db, l, "virts_geometry_columns", VirtualShape); err != nil {
		return nil, err
	} else if info != nil {
		hits = append(hits, info)
	}

	switch len(hits) {
	case 1:
		info := hits[0]
		if err := resolveProjection(db, info); err != nil {
			return nil, err
		}
		log.Debugf("catalog: classified %q as %s", l.Table, info.Class)
		return info, nil
	case 0:
		return nil, ErrLayerInvalid{Table: l.Table, Reason: "no catalog row matched in geometry_columns, views_geometry_columns, or virts_geometry_columns"}
	default:
		return nil, ErrLayerInvalid{Table: l.Table, Reason: fmt.Sprintf("%d catalog rows matched; exactly one is required", len(hits))}
	}
}

func probeTable(db *sql.DB, l uri.Layer) (*Info, error) {
	// geometry_columns_auth is optional; LEFT JOIN tolerates its absence
	// (and its absence as a table at all is tolerated by falling back to
	// the plain query below on error).
	const withAuth = `
		SELECT gc.type, gc.srid, gc.spatial_index_enabled, gc.coord_dimension, a.read_only
		FROM geometry_columns gc
		LEFT JOIN geometry_columns_auth a
			ON a.f_table_name = gc.f_table_name AND a.f_geometry_column = gc.f_geometry_column
		WHERE gc.f_table_name = ? AND gc.f_geometry_column = ?`
	const withoutAuth = `
		SELECT type, srid, spatial_index_enabled, coord_dimension, NULL
		FROM geometry_columns
		WHERE f_table_name = ? AND f_geometry_column = ?`

	row, err := queryOneRow(db, withAuth, l.Table, l.GeometryColumn)
	if err != nil && isNoSuchTable(err) {
		row, err = queryOneRow(db, withoutAuth, l.Table, l.GeometryColumn)
	}
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "catalog: probing geometry_columns for %q", l.Table)
	}

	shape, dim, readOnly, idx, srid, err := parseProbeRow(row)
	if err != nil {
		return nil, err
	}
	// A table is read-only only when the catalog explicitly marks it so
	// via geometry_columns_auth.read_only (§3 invariants); absence of
	// the auth row means read_only defaults to false.
	return &Info{Class: Table, Query: quoteIdent(l.Table), Shape: shape, SRID: srid, Dim: dim, Index: idx, ReadOnly: readOnly}, nil
}

func probeViewOrVirts(db *sql.DB, l uri.Layer, table string, class Classification) (*Info, error) {
	col := "f_table_name"
	if table == "views_geometry_columns" {
		col = "view_name"
	} else {
		col = "virt_name"
	}
	geomCol := "f_geometry_column"
	if table == "views_geometry_columns" {
		geomCol = "view_geometry"
	} else {
		geomCol = "virt_geometry"
	}

	q := fmt.Sprintf(`
		SELECT type, srid, spatial_index_enabled, coord_dimension, NULL
		FROM %s
		WHERE %s = ? AND %s = ?`, table, col, geomCol)

	row, err := queryOneRow(db, q, l.Table, l.GeometryColumn)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		if isNoSuchTable(err) {
			// The catalog table itself may not exist in a database that
			// never created any views/virtual-shapes — that's simply a
			// non-match, not a failure.
			return nil, nil
		}
		return nil, errors.Wrapf(err, "catalog: probing %s for %q", table, l.Table)
	}

	shape, dim, _, idx, srid, err := parseProbeRow(row)
	if err != nil {
		return nil, err
	}
	return &Info{Class: class, Query: quoteIdent(l.Table), Shape: shape, SRID: srid, Dim: dim, Index: idx, ReadOnly: true}, nil
}

func classifySubquery(db *sql.DB, l uri.Layer) (*Info, error) {
	alias := pickSubqueryAlias(l.Table)
	expr := strings.TrimSpace(l.Table)
	query := fmt.Sprintf("%s AS %s", expr, alias)

	validateRows, err := db.Query(fmt.Sprintf("SELECT 0 FROM %s LIMIT 1", query))
	if err != nil {
		return nil, ErrLayerInvalid{Table: l.Table, Reason: errors.Wrap(err, "subquery did not validate").Error()}
	}
	validateRows.Close()

	shape, err := subqueryGeometryType(db, query, l.GeometryColumn)
	if err != nil {
		return nil, err
	}

	return &Info{Class: Subquery, Query: query, Shape: shape, ReadOnly: true}, nil
}

// pickSubqueryAlias picks "subQueryN" for the smallest N not already
// present (case-insensitively) in expr, guarding against alias collision
// (§4.F).
func pickSubqueryAlias(expr string) string {
	lower := strings.ToLower(expr)
	for n := 0; ; n++ {
		alias := fmt.Sprintf("subQuery%d", n)
		if !strings.Contains(lower, strings.ToLower(alias)) {
			return alias
		}
	}
}

func subqueryGeometryType(db *sql.DB, query, geomCol string) (wkb.Shape, error) {
	var kind string
	row := db.QueryRow(fmt.Sprintf("SELECT GeometryType(%s) FROM %s LIMIT 1", geomCol, query))
	if err := row.Scan(&kind); err != nil {
		return 0, errors.Wrap(err, "catalog: reading GeometryType() for subquery")
	}
	if kind != "GEOMETRY" {
		shape, err := wkb.ShapeFromName(kind)
		if err != nil {
			return 0, ErrLayerInvalid{Table: query, Reason: err.Error()}
		}
		return shape, nil
	}

	// Generic GEOMETRY: collapse every row's kind to its least upper
	// bound (point/line/polygon) and require exactly one distinct value.
	rows, err := db.Query(fmt.Sprintf(
		`SELECT DISTINCT CASE
			WHEN GeometryType(%[1]s) IN ('POINT','MULTIPOINT') THEN 'POINT'
			WHEN GeometryType(%[1]s) IN ('LINESTRING','MULTILINESTRING') THEN 'LINESTRING'
			WHEN GeometryType(%[1]s) IN ('POLYGON','MULTIPOLYGON') THEN 'POLYGON'
			ELSE GeometryType(%[1]s)
		END FROM %[2]s`, geomCol, query))
	if err != nil {
		return 0, errors.Wrap(err, "catalog: collapsing subquery geometry kinds")
	}
	defer rows.Close()

	var kinds []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return 0, errors.Wrap(err, "catalog: reading collapsed geometry kind")
		}
		kinds = append(kinds, k)
	}
	if err := rows.Err(); err != nil {
		return 0, errors.Wrap(err, "catalog: iterating collapsed geometry kinds")
	}
	if len(kinds) != 1 {
		return 0, ErrLayerInvalid{Table: query, Reason: fmt.Sprintf("subquery mixes %d distinct geometry kinds", len(kinds))}
	}
	return wkb.ShapeFromName(kinds[0])
}

func parseProbeRow(r probeRow) (shape wkb.Shape, dim wkb.Dim, readOnly bool, idx IndexKind, srid int, err error) {
	shape, err = wkb.ShapeFromName(r.geomType)
	if err != nil {
		return 0, 0, false, 0, 0, ErrLayerInvalid{Reason: err.Error()}
	}
	dim, err = wkb.DimFromName(r.coordDim)
	if err != nil {
		return 0, 0, false, 0, 0, ErrLayerInvalid{Reason: err.Error()}
	}
	switch r.spatial {
	case 1:
		idx = IndexRTree
	case 2:
		idx = IndexMBRCache
	default:
		idx = IndexNone
	}
	readOnly = r.authorize.Valid && r.authorize.Int64 != 0
	return shape, dim, readOnly, idx, r.srid, nil
}

func queryOneRow(db *sql.DB, q string, args ...interface{}) (probeRow, error) {
	var r probeRow
	row := db.QueryRow(q, args...)
	err := row.Scan(&r.geomType, &r.srid, &r.spatial, &r.coordDim, &r.authorize)
	return r, err
}

func isNoSuchTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

func resolveProjection(db *sql.DB, info *Info) error {
	var proj sql.NullString
	row := db.QueryRow(`SELECT proj4text FROM spatial_ref_sys WHERE srid = ?`, info.SRID)
	if err := row.Scan(&proj); err != nil {
		if err == sql.ErrNoRows {
			return ErrLayerInvalid{Reason: fmt.Sprintf("no spatial_ref_sys row for srid %d", info.SRID)}
		}
		return errors.Wrap(err, "catalog: resolving projection")
	}
	info.Projection = proj.String
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
