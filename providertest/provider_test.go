package providertest

import (
	"testing"

	"github.com/vectorlayer/spatialite/internal/dict"
	"github.com/vectorlayer/spatialite/provider"
)

func TestFixtureURI(t *testing.T) {
	fx := New(t)
	uri := fx.URI()
	if uri == "" {
		t.Fatal("expected a non-empty layer uri")
	}
}

func TestFixtureOpensSeededLayer(t *testing.T) {
	fx := New(t)
	if fx.DB == nil {
		t.Fatal("expected a non-nil *sql.DB")
	}
	var n int
	if err := fx.DB.QueryRow("SELECT Count(*) FROM fixture_points").Scan(&n); err != nil {
		t.Fatalf("unexpected error counting seeded rows: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 seeded row, got %d", n)
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	Cleanup()
	before := Count

	p, err := provider.For(Name, dict.Dict{})
	if err != nil {
		t.Skipf("providertest driver unavailable: %v", err)
	}
	if Count != before+1 {
		t.Errorf("expected Count to increment, got %d want %d", Count, before+1)
	}
	if p.ProviderKey() != Name {
		t.Errorf("got provider key %q, want %q", p.ProviderKey(), Name)
	}
	if !p.IsProvider() {
		t.Error("expected IsProvider to report true")
	}
	if p.Description() == "" {
		t.Error("expected a non-empty description")
	}
	Cleanup()
}

func TestDriversIncludesProviderTest(t *testing.T) {
	found := false
	for _, name := range provider.Drivers() {
		if name == Name {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %q among registered drivers, got %v", Name, provider.Drivers())
	}
}
