package config

import (
	"io/ioutil"
	"os"
	"testing"
)

// replaceEnvVars's own substitution semantics are covered by
// TestReplaceEnvVars in config_internal_test.go, kept from the
// teacher's original config package.

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.toml"); err == nil {
		t.Fatal("expected an error loading a missing config file")
	}
}

func TestLoadAndValidate(t *testing.T) {
	f, err := ioutil.TempFile("", "spatialite-config-*.toml")
	if err != nil {
		t.Fatalf("unexpected error creating temp file: %v", err)
	}
	defer os.Remove(f.Name())

	contents := `
[webserver]
hostname = "localhost"
port = ":8080"

[[providers]]
name = "cities"
type = "spatialite"

[providers.params]
filepath = "/tmp/cities.sqlite"
`
	if _, err := f.WriteString(contents); err != nil {
		t.Fatalf("unexpected error writing temp file: %v", err)
	}
	f.Close()

	cfg, err := Load(f.Name())
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if len(cfg.Providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(cfg.Providers))
	}
	if cfg.Providers[0].Name != "cities" {
		t.Errorf("got provider name %q, want %q", cfg.Providers[0].Name, "cities")
	}
	d := cfg.Providers[0].AsDict()
	if d["filepath"] != "/tmp/cities.sqlite" {
		t.Errorf("got filepath param %v, want %q", d["filepath"], "/tmp/cities.sqlite")
	}
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	cfg := &Config{
		Providers: []Provider{
			{Name: "cities", Type: "spatialite"},
			{Name: "cities", Type: "spatialite"},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for duplicate provider names")
	}
}

func TestValidateRejectsMissingType(t *testing.T) {
	cfg := &Config{Providers: []Provider{{Name: "cities"}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a provider missing its type")
	}
}
