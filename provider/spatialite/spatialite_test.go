package spatialite

import (
	"testing"

	"github.com/vectorlayer/spatialite/internal/dict"
)

func TestNewProviderRequiresFilePath(t *testing.T) {
	_, err := NewProvider(dict.Dict{})
	if err == nil {
		t.Fatal("expected an error when filepath is missing for the local backend")
	}
}

func TestNewProviderDefaultsToLocalBackend(t *testing.T) {
	p, err := NewProvider(dict.Dict{ConfigKeyFilePath: "/tmp/does-not-matter.sqlite"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ProviderKey() != Name {
		t.Errorf("got %q, want %q", p.ProviderKey(), Name)
	}
	if !p.IsProvider() {
		t.Error("expected IsProvider to report true")
	}
}

func TestNewProviderUnknownBackend(t *testing.T) {
	_, err := NewProvider(dict.Dict{ConfigKeyBackend: "gcs", ConfigKeyFilePath: "/tmp/x.sqlite"})
	if err == nil {
		t.Fatal("expected an error for an unrecognized backend")
	}
}

func TestNewProviderS3RequiresFields(t *testing.T) {
	_, err := NewProvider(dict.Dict{ConfigKeyBackend: "s3"})
	if err == nil {
		t.Fatal("expected an error when s3 backend config is incomplete")
	}
}
