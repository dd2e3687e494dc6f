package pool

import (
	"context"
	"os"
	"testing"
)

func TestLocalBackendMissingFile(t *testing.T) {
	b := LocalBackend{Path: "/nonexistent/definitely/not/here.sqlite"}
	if _, err := b.LocalPath(context.Background()); err == nil {
		t.Fatal("expected an error for a missing local file")
	}
}

func TestLocalBackendExistingFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "pool-test-*.sqlite")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	f.Close()

	b := LocalBackend{Path: f.Name()}
	got, err := b.LocalPath(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != f.Name() {
		t.Errorf("got %q, want %q", got, f.Name())
	}
}

func TestRefCountUnknownPath(t *testing.T) {
	p := New()
	if got := p.RefCount("/never/opened.sqlite"); got != 0 {
		t.Errorf("expected 0 for an unopened path, got %d", got)
	}
}

func TestReleaseUnknownHandleIsNoop(t *testing.T) {
	p := New()
	h := &Handle{pool: p, key: "/never/opened.sqlite"}
	if err := h.Release(); err != nil {
		t.Errorf("expected releasing an unknown handle to be a no-op, got %v", err)
	}
}
