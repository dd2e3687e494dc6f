package cursor

import (
	"strings"
	"testing"

	"github.com/vectorlayer/spatialite/catalog"
)

func TestBuildQueryS4RTree(t *testing.T) {
	info := &catalog.Info{Class: catalog.Table, Query: `"cities"`, Index: catalog.IndexRTree}
	opts := Options{
		PKExpr:     "pk",
		GeomColumn: "geom",
		FetchGeom:  true,
		BBox:       Extent{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10},
	}
	q, _ := buildQuery(info, opts)
	want := "pk IN (SELECT pkid FROM idx_cities_geom WHERE xmin <= 10.000000 AND xmax >= 0.000000 AND ymin <= 10.000000 AND ymax >= 0.000000)"
	if !strings.Contains(q, want) {
		t.Errorf("S4: query %q does not contain expected predicate %q", q, want)
	}
}

func TestBuildQueryMBRCache(t *testing.T) {
	info := &catalog.Info{Class: catalog.Table, Query: `"cities"`, Index: catalog.IndexMBRCache}
	opts := Options{PKExpr: "pk", GeomColumn: "geom", BBox: Extent{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}}
	q, _ := buildQuery(info, opts)
	want := "pk IN (SELECT rowid FROM cache_cities_geom WHERE mbr = FilterMbrIntersects(1.000000,2.000000,3.000000,4.000000))"
	if !strings.Contains(q, want) {
		t.Errorf("query %q does not contain expected predicate %q", q, want)
	}
}

func TestBuildQueryVirtualShapeAlwaysMbrIntersects(t *testing.T) {
	info := &catalog.Info{Class: catalog.VirtualShape, Query: `"shapes"`, Index: catalog.IndexRTree}
	opts := Options{PKExpr: "ROWID", GeomColumn: "geom", BBox: Extent{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}}
	q, _ := buildQuery(info, opts)
	if !strings.Contains(q, "MbrIntersects(") || strings.Contains(q, "idx_") {
		t.Errorf("virtual-shape layers must always use MbrIntersects, got %q", q)
	}
}

func TestBuildQueryUseIntersect(t *testing.T) {
	info := &catalog.Info{Class: catalog.Table, Query: `"cities"`, Index: catalog.IndexNone}
	opts := Options{PKExpr: "ROWID", GeomColumn: "geom", BBox: Extent{MaxX: 1, MaxY: 1}, UseIntersect: true}
	q, _ := buildQuery(info, opts)
	if !strings.Contains(q, "Intersects(\"geom\", BuildMbr(") || !strings.Contains(q, ") AND MbrIntersects(") {
		t.Errorf("expected Intersects(...) AND <index predicate> when UseIntersect is set, got %q", q)
	}
}

func TestBuildQuerySubsetWithoutBBox(t *testing.T) {
	info := &catalog.Info{Class: catalog.Table, Query: `"cities"`}
	opts := Options{PKExpr: "ROWID", Subset: "pop > 1000"}
	q, _ := buildQuery(info, opts)
	if !strings.Contains(q, "WHERE (pop > 1000)") {
		t.Errorf("expected a bare WHERE clause for a subset with no bbox, got %q", q)
	}
}

func TestBuildQuerySubsetWithBBox(t *testing.T) {
	info := &catalog.Info{Class: catalog.Table, Query: `"cities"`, Index: catalog.IndexNone}
	opts := Options{PKExpr: "ROWID", GeomColumn: "geom", BBox: Extent{MaxX: 1, MaxY: 1}, Subset: "pop > 1000"}
	q, _ := buildQuery(info, opts)
	if !strings.Contains(q, "AND (pop > 1000)") {
		t.Errorf("expected the subset appended with AND when a bbox predicate exists, got %q", q)
	}
}

func TestBuildQueryProjectsPKFirst(t *testing.T) {
	info := &catalog.Info{Class: catalog.Table, Query: `"cities"`}
	opts := Options{PKExpr: "ROWID", Fields: []Field{{Name: "pop"}, {Name: "name"}}}
	q, _ := buildQuery(info, opts)
	if !strings.HasPrefix(q, `SELECT ROWID, "pop", "name" FROM "cities"`) {
		t.Errorf("got %q", q)
	}
}
