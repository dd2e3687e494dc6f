// Package layer ties the catalog, cursor, mutate, and pool packages
// together behind the layer handle §3 describes: a URI-addressed handle
// caching extent/count/field schema and exposing the capabilities
// bitmask and read/write operations a consumer drives (§4.I).
package layer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dhconnelly/rtreego"
	"github.com/go-spatial/geom"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/vectorlayer/spatialite/catalog"
	"github.com/vectorlayer/spatialite/cursor"
	"github.com/vectorlayer/spatialite/internal/log"
	"github.com/vectorlayer/spatialite/mutate"
	"github.com/vectorlayer/spatialite/pool"
	"github.com/vectorlayer/spatialite/uri"
	"github.com/vectorlayer/spatialite/wkb"
)

// Capability is one bit of the capabilities bitmask a layer reports.
type Capability uint16

const (
	CapSelectByID Capability = 1 << iota
	CapSelectGeometry
	CapDelete
	CapUpdateGeom
	CapUpdateAttr
	CapInsert
	CapAddColumn
)

// Has reports whether c includes every bit in want.
func (c Capability) Has(want Capability) bool { return c&want == want }

// Field is one column of the layer's ordered field schema (§3).
type Field struct {
	Index        int
	Name         string
	Kind         mutate.FieldKind
	DeclaredType string
	IsPrimaryKey bool
}

// Layer is an open, classified data source: a table, view,
// virtual-shape, or subquery, plus its cached metadata.
type Layer struct {
	handle *pool.Handle
	db     *sql.DB
	info   *catalog.Info
	src    uri.Layer

	fields   []Field
	pkColumn string // "" means ROWID is used as the identity column

	extent cursor.Extent
	count  int64
	caps   Capability

	rindex *rtreego.Rtree // optional in-memory acceleration over an mbr-cache index
}

// classifyCache memoizes catalog.Classify results per handle key +
// layer URI, so repeatedly opening the same layer (a config reload, a
// worker pool each starting its own Layer over a shared pooled
// connection) doesn't re-run the geometry_columns probing every time.
// Only the classification is cached: Open still reads PRAGMA table_info
// and the extent/count on every call. 256 entries is generous for any
// single process's registered layer count.
var classifyCache, _ = lru.New[string, *catalog.Info](256)

func classifyCacheKey(handleKey string, src uri.Layer) string {
	return handleKey + "#" + src.String()
}

func classify(db *sql.DB, handleKey string, src uri.Layer) (*catalog.Info, error) {
	key := classifyCacheKey(handleKey, src)
	if info, ok := classifyCache.Get(key); ok {
		return info, nil
	}
	info, err := catalog.Classify(db, src)
	if err != nil {
		return nil, err
	}
	classifyCache.Add(key, info)
	return info, nil
}

// Open parses rawURI, resolves its database file through backend,
// shares a pooled connection, classifies the layer, and loads its field
// schema and cached metadata. The returned Layer is only valid if
// classification succeeded; on any error no resources are leaked.
func Open(ctx context.Context, p *pool.Pool, backend pool.Backend, rawURI string) (*Layer, error) {
	src, err := uri.Parse(rawURI)
	if err != nil {
		return nil, err
	}

	h, err := p.OpenBackend(ctx, backend)
	if err != nil {
		return nil, err
	}

	l := &Layer{handle: h, db: h.DB(), src: src}

	info, err := classify(l.db, h.Key(), src)
	if err != nil {
		h.Release()
		return nil, err
	}
	l.info = info

	if err := l.loadFields(); err != nil {
		h.Release()
		return nil, err
	}
	if err := l.refreshMetadata(); err != nil {
		h.Release()
		return nil, err
	}
	l.computeCapabilities()

	if info.Index == catalog.IndexMBRCache {
		if err := l.buildMBRIndex(); err != nil {
			// Acceleration is optional: the SQL-pushed-down cache-table
			// predicate cursor already builds still works without it.
			log.Errorf("layer: failed to build in-memory mbr-cache index for %q: %v", src.Table, err)
		}
	}

	return l, nil
}

// Close releases this layer's reference on the shared connection.
func (l *Layer) Close() error {
	return l.handle.Release()
}

// Capabilities reports the operations this layer instance supports.
func (l *Layer) Capabilities() Capability { return l.caps }

// Extent returns the cached layer extent.
func (l *Layer) Extent() cursor.Extent { return l.extent }

// GeomExtent returns the cached layer extent as a go-spatial/geom
// Extent, for consumers (the HTTP transport, a provider embedder) that
// already work in terms of that package's geometry types rather than
// this module's own cursor.Extent.
func (l *Layer) GeomExtent() geom.Extent {
	return geom.Extent{l.extent.MinX, l.extent.MinY, l.extent.MaxX, l.extent.MaxY}
}

// Count returns the cached feature count.
func (l *Layer) Count() int64 { return l.count }

// Fields returns the ordered field schema.
func (l *Layer) Fields() []Field { return l.fields }

// Dim returns the layer's declared coordinate dimensionality.
func (l *Layer) Dim() wkb.Dim { return l.info.Dim }

// Info exposes the classification result for callers (e.g. the provider
// plugin surface) that need the raw catalog answer.
func (l *Layer) Info() *catalog.Info { return l.info }

func (l *Layer) pkExpr() string {
	if l.pkColumn == "" {
		return "ROWID"
	}
	return quoteIdent(l.pkColumn)
}

func (l *Layer) computeCapabilities() {
	caps := CapSelectByID | CapSelectGeometry
	if l.info.Class == catalog.Table && !l.info.ReadOnly {
		caps |= CapDelete | CapUpdateGeom | CapUpdateAttr | CapInsert | CapAddColumn
	}
	l.caps = caps
}

func (l *Layer) loadFields() error {
	rows, err := l.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(stripAlias(l.info.Query))))
	if err != nil {
		// Subqueries have no table_info; fields stay empty and callers
		// project none by default, matching a read-only ad-hoc source.
		log.Debugf("layer: no column metadata available for %q: %v", l.src.Table, err)
		return nil
	}
	defer rows.Close()

	type rawCol struct {
		name, declType string
		pk             int
	}
	var cols []rawCol
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dfltValue  sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &pk); err != nil {
			return errors.Wrap(err, "layer: reading table_info")
		}
		if strings.EqualFold(name, l.src.GeometryColumn) {
			continue
		}
		cols = append(cols, rawCol{name: name, declType: typ, pk: pk})
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "layer: iterating table_info")
	}

	var pkCandidates []string
	for _, c := range cols {
		if c.pk != 0 {
			pkCandidates = append(pkCandidates, c.name)
		}
	}
	if len(pkCandidates) == 1 {
		l.pkColumn = pkCandidates[0]
	}
	if l.src.Key != "" {
		l.pkColumn = l.src.Key
	}

	l.fields = make([]Field, 0, len(cols))
	for i, c := range cols {
		l.fields = append(l.fields, Field{
			Index:        i,
			Name:         c.name,
			Kind:         classifyKind(c.declType),
			DeclaredType: c.declType,
			IsPrimaryKey: c.name == l.pkColumn,
		})
	}
	return nil
}

// classifyKind maps a declared SQL type name to the three logical
// attribute types §3 defines, by case-insensitive matching.
func classifyKind(declared string) mutate.FieldKind {
	switch strings.ToLower(strings.TrimSpace(declared)) {
	case "int", "integer", "bigint", "smallint", "tinyint", "boolean":
		return mutate.KindInteger
	case "real", "double", "double precision", "float":
		return mutate.KindDouble
	default:
		return mutate.KindText
	}
}

// refreshMetadata re-runs the extent/count query honouring the current
// subset (§4.I); called at open time and whenever the subset changes.
func (l *Layer) refreshMetadata() error {
	q := fmt.Sprintf(
		"SELECT Min(MbrMinX), Min(MbrMinY), Max(MbrMaxX), Max(MbrMaxY), Count(*) FROM %s",
		l.info.Query)
	if l.src.Subset != "" {
		q += fmt.Sprintf(" WHERE (%s)", l.src.Subset)
	}

	var minX, minY, maxX, maxY sql.NullFloat64
	var count int64
	row := l.db.QueryRow(q)
	if err := row.Scan(&minX, &minY, &maxX, &maxY, &count); err != nil {
		return errors.Wrap(err, "layer: computing extent and count")
	}
	l.extent = cursor.Extent{MinX: minX.Float64, MinY: minY.Float64, MaxX: maxX.Float64, MaxY: maxY.Float64}
	l.count = count
	return nil
}

// SetSubset replaces the layer's subset clause, re-reading extent and
// count against it. If the new subset is invalid, the previous subset
// is restored and its extent/count re-read, and the validation error is
// returned to the caller (§8 S6).
func (l *Layer) SetSubset(subset string) error {
	prev := l.src.Subset
	l.src.Subset = subset
	if err := l.refreshMetadata(); err != nil {
		l.src.Subset = prev
		if revertErr := l.refreshMetadata(); revertErr != nil {
			log.Errorf("layer: failed to restore previous subset metadata: %v", revertErr)
		}
		return err
	}
	return nil
}

// Select builds and runs a feature cursor. attrNames selects which
// fields to project, in order; fetchGeom requests the geometry column.
func (l *Layer) Select(bbox cursor.Extent, attrNames []string, fetchGeom, useIntersect bool) (*cursor.Cursor, error) {
	fields := make([]cursor.Field, len(attrNames))
	for i, n := range attrNames {
		fields[i] = cursor.Field{Name: n}
	}
	opts := cursor.Options{
		PKExpr:       l.pkExpr(),
		GeomColumn:   l.src.GeometryColumn,
		Fields:       fields,
		FetchGeom:    fetchGeom,
		BBox:         bbox,
		UseIntersect: useIntersect,
		Subset:       l.src.Subset,
		TargetDim:    l.info.Dim,
	}
	return cursor.Select(l.db, l.info, opts)
}

func (l *Layer) requireCapability(c Capability) error {
	if !l.caps.Has(c) {
		return mutate.ErrReadOnlyViolation{Table: l.src.Table}
	}
	return nil
}

// Insert adds features to the layer, returning the number inserted.
func (l *Layer) Insert(features []mutate.Feature) (int, error) {
	if err := l.requireCapability(CapInsert); err != nil {
		return 0, err
	}
	cols := make([]string, len(l.fields))
	kinds := make([]mutate.FieldKind, len(l.fields))
	for i, f := range l.fields {
		cols[i] = f.Name
		kinds[i] = f.Kind
	}
	n, err := mutate.InsertBatch(l.db, l.info, l.src.Table, l.src.GeometryColumn, l.info.SRID, l.info.Dim, cols, kinds, features)
	if err == nil {
		l.count += int64(n)
	}
	return n, err
}

// Delete removes the named features, returning the number deleted.
func (l *Layer) Delete(ids []int64) (int, error) {
	if err := l.requireCapability(CapDelete); err != nil {
		return 0, err
	}
	n, err := mutate.DeleteSet(l.db, l.info, l.src.Table, ids)
	if err == nil {
		l.count -= int64(n)
	}
	return n, err
}

// UpdateGeometries rewrites the named features' geometries.
func (l *Layer) UpdateGeometries(updates []mutate.GeomUpdate) error {
	if err := l.requireCapability(CapUpdateGeom); err != nil {
		return err
	}
	return mutate.UpdateGeometries(l.db, l.info, l.src.Table, l.src.GeometryColumn, l.info.SRID, l.info.Dim, updates)
}

// UpdateAttributes rewrites the named features' attribute values.
func (l *Layer) UpdateAttributes(updates []mutate.AttrUpdate) error {
	if err := l.requireCapability(CapUpdateAttr); err != nil {
		return err
	}
	return mutate.UpdateAttributes(l.db, l.info, l.src.Table, updates)
}

// AddColumns adds columns to the layer's table and reloads its field
// schema (§4.H).
func (l *Layer) AddColumns(cols []mutate.Column) error {
	if err := l.requireCapability(CapAddColumn); err != nil {
		return err
	}
	if err := mutate.AddColumns(l.db, l.info, l.src.Table, cols); err != nil {
		return err
	}
	return l.loadFields()
}

// mbrItem adapts one cache_<table>_<geom> row into rtreego's Spatial
// interface for in-memory bbox acceleration.
type mbrItem struct {
	id   int64
	rect rtreego.Rect
}

func (m mbrItem) Bounds() rtreego.Rect { return m.rect }

func (l *Layer) buildMBRIndex() error {
	cacheTable := fmt.Sprintf("cache_%s_%s", stripAlias(l.info.Query), l.src.GeometryColumn)
	rows, err := l.db.Query(fmt.Sprintf("SELECT rowid, mbr_min_x, mbr_min_y, mbr_max_x, mbr_max_y FROM %s", quoteIdent(cacheTable)))
	if err != nil {
		return errors.Wrapf(err, "layer: reading %s", cacheTable)
	}
	defer rows.Close()

	tree := rtreego.NewTree(2, 25, 50)
	for rows.Next() {
		var id int64
		var minX, minY, maxX, maxY float64
		if err := rows.Scan(&id, &minX, &minY, &maxX, &maxY); err != nil {
			return errors.Wrap(err, "layer: scanning mbr-cache row")
		}
		lengths := []float64{maxX - minX, maxY - minY}
		for i, v := range lengths {
			if v <= 0 {
				lengths[i] = 1e-9
			}
		}
		rect, err := rtreego.NewRect(rtreego.Point{minX, minY}, lengths)
		if err != nil {
			continue
		}
		tree.Insert(mbrItem{id: id, rect: rect})

	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "layer: iterating mbr-cache rows")
	}
	l.rindex = tree
	return nil
}

// CandidateIDs returns the feature ids whose cached MBR intersects bbox,
// using the in-memory index built over an mbr-cache layer's cache table.
// Returns (nil, false) when no in-memory index was built — the cursor's
// SQL-pushed-down predicate remains the primary path; this is purely an
// optional accelerator for repeated queries against the same bbox shape.
func (l *Layer) CandidateIDs(bbox cursor.Extent) ([]int64, bool) {
	if l.rindex == nil {
		return nil, false
	}
	lengths := []float64{bbox.MaxX - bbox.MinX, bbox.MaxY - bbox.MinY}
	for i, v := range lengths {
		if v <= 0 {
			lengths[i] = 1e-9
		}
	}
	rect, err := rtreego.NewRect(rtreego.Point{bbox.MinX, bbox.MinY}, lengths)
	if err != nil {
		return nil, false
	}
	hits := l.rindex.SearchIntersect(rect)
	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		if m, ok := h.(mbrItem); ok {
			ids = append(ids, m.id)
		}
	}
	return ids, true
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// stripAlias strips surrounding quotes from a simple quoted table
// identifier, or the " AS subQueryN" suffix catalog.Classify appends to
// a subquery expression — table_info and cache-table naming both want
// the bare name, not the FROM-clause expression.
func stripAlias(query string) string {
	if idx := strings.LastIndex(strings.ToUpper(query), " AS "); idx >= 0 {
		return strings.Trim(query[idx+4:], `" `)
	}
	return strings.Trim(query, `"`)
}
