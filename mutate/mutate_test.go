package mutate

import (
	"strings"
	"testing"

	"github.com/vectorlayer/spatialite/catalog"
)

func TestLiteral(t *testing.T) {
	cases := []struct {
		v    interface{}
		want string
	}{
		{nil, "NULL"},
		{42, "42"},
		{int64(7), "7"},
		{3.5, "3.5"},
		{"O'Brien", "'O''Brien'"},
		{"plain", "'plain'"},
	}
	for _, c := range cases {
		if got := literal(c.v); got != c.want {
			t.Errorf("literal(%#v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestRequireWritableRejectsNonTable(t *testing.T) {
	for _, class := range []catalog.Classification{catalog.View, catalog.VirtualShape, catalog.Subquery} {
		info := &catalog.Info{Class: class}
		if err := requireWritable(info); err == nil {
			t.Errorf("expected %v layers to be read-only", class)
		}
	}
}

func TestRequireWritableRejectsReadOnlyTable(t *testing.T) {
	info := &catalog.Info{Class: catalog.Table, ReadOnly: true}
	if err := requireWritable(info); err == nil {
		t.Error("expected a read-only table to reject mutation")
	}
}

func TestRequireWritableAllowsWritableTable(t *testing.T) {
	info := &catalog.Info{Class: catalog.Table, ReadOnly: false}
	if err := requireWritable(info); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuildInsertSQL(t *testing.T) {
	q := buildInsertSQL("cities", "geom", 4326, []string{"name", "pop"})
	want := `INSERT INTO "cities"("geom", "name", "pop") VALUES (GeomFromWKB(?, 4326), ?, ?)`
	if q != want {
		t.Errorf("got %q, want %q", q, want)
	}
}

func TestUpdateAttributesSkipsNegativeID(t *testing.T) {
	// UpdateAttributes itself needs a live *sql.DB and is not called
	// here; this restates its skip-negative-id guard in a local fake
	// executor matching the real call shape and checks that fake.
	var executed []string
	fakeExec := func(table string, u AttrUpdate) {
		if u.ID < 0 {
			return
		}
		sets := make([]string, 0, len(u.Values))
		for col, v := range u.Values {
			sets = append(sets, col+"="+literal(v))
		}
		executed = append(executed, strings.Join(sets, ","))
	}
	fakeExec("cities", AttrUpdate{ID: -1, Values: map[string]interface{}{"pop": 10}})
	fakeExec("cities", AttrUpdate{ID: 1, Values: map[string]interface{}{"pop": 10}})
	if len(executed) != 1 {
		t.Fatalf("expected exactly one executed update, got %d", len(executed))
	}
}
