package layer

import (
	"testing"

	"github.com/vectorlayer/spatialite/catalog"
	"github.com/vectorlayer/spatialite/mutate"
	"github.com/vectorlayer/spatialite/uri"
)

func TestClassifyKind(t *testing.T) {
	cases := []struct {
		declared string
		want     mutate.FieldKind
	}{
		{"INTEGER", mutate.KindInteger},
		{"int", mutate.KindInteger},
		{"BIGINT", mutate.KindInteger},
		{"BOOLEAN", mutate.KindInteger},
		{"REAL", mutate.KindDouble},
		{"DOUBLE PRECISION", mutate.KindDouble},
		{"float", mutate.KindDouble},
		{"TEXT", mutate.KindText},
		{"VARCHAR(64)", mutate.KindText},
		{"", mutate.KindText},
	}
	for _, c := range cases {
		if got := classifyKind(c.declared); got != c.want {
			t.Errorf("classifyKind(%q) = %v, want %v", c.declared, got, c.want)
		}
	}
}

func TestStripAliasSubquery(t *testing.T) {
	got := stripAlias(`(SELECT * FROM cities) AS subQuery0`)
	if got != "subQuery0" {
		t.Errorf("got %q, want %q", got, "subQuery0")
	}
}

func TestStripAliasQuotedTable(t *testing.T) {
	got := stripAlias(`"cities"`)
	if got != "cities" {
		t.Errorf("got %q, want %q", got, "cities")
	}
}

func TestComputeCapabilitiesWritableTable(t *testing.T) {
	l := &Layer{info: &catalog.Info{Class: catalog.Table, ReadOnly: false}}
	l.computeCapabilities()
	want := CapSelectByID | CapSelectGeometry | CapDelete | CapUpdateGeom | CapUpdateAttr | CapInsert | CapAddColumn
	if l.caps != want {
		t.Errorf("got %v, want %v", l.caps, want)
	}
}

func TestComputeCapabilitiesReadOnlyTable(t *testing.T) {
	l := &Layer{info: &catalog.Info{Class: catalog.Table, ReadOnly: true}}
	l.computeCapabilities()
	want := CapSelectByID | CapSelectGeometry
	if l.caps != want {
		t.Errorf("got %v, want %v", l.caps, want)
	}
}

func TestComputeCapabilitiesView(t *testing.T) {
	l := &Layer{info: &catalog.Info{Class: catalog.View}}
	l.computeCapabilities()
	want := CapSelectByID | CapSelectGeometry
	if l.caps != want {
		t.Errorf("view layers must be read-only, got %v", l.caps)
	}
}

func TestCapabilityHas(t *testing.T) {
	caps := CapSelectByID | CapInsert
	if !caps.Has(CapSelectByID) {
		t.Error("expected CapSelectByID to be present")
	}
	if caps.Has(CapDelete) {
		t.Error("did not expect CapDelete to be present")
	}
	if !caps.Has(CapSelectByID | CapInsert) {
		t.Error("expected both bits together to be present")
	}
}

func TestRequireCapabilityRejectsMissing(t *testing.T) {
	l := &Layer{src: uri.Layer{Table: "cities"}, caps: CapSelectByID}
	if err := l.requireCapability(CapInsert); err == nil {
		t.Error("expected an error when the capability is absent")
	}
}

func TestRequireCapabilityAllowsPresent(t *testing.T) {
	l := &Layer{src: uri.Layer{Table: "cities"}, caps: CapSelectByID | CapInsert}
	if err := l.requireCapability(CapInsert); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPkExprDefaultsToRowid(t *testing.T) {
	l := &Layer{}
	if got := l.pkExpr(); got != "ROWID" {
		t.Errorf("got %q, want ROWID", got)
	}
}

func TestPkExprUsesDeclaredColumn(t *testing.T) {
	l := &Layer{pkColumn: "gid"}
	if got := l.pkExpr(); got != `"gid"` {
		t.Errorf("got %q, want %q", got, `"gid"`)
	}
}
