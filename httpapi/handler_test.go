package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vectorlayer/spatialite/layer"
)

func TestHealthz(t *testing.T) {
	s := NewServer("spatialite_test")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestListLayersEmpty(t *testing.T) {
	s := NewServer("spatialite_test")
	req := httptest.NewRequest(http.MethodGet, "/layers", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestUnknownLayerNotFound(t *testing.T) {
	s := NewServer("spatialite_test")
	req := httptest.NewRequest(http.MethodGet, "/layers/nope", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestInsertOnUnknownLayer(t *testing.T) {
	s := NewServer("spatialite_test")
	req := httptest.NewRequest(http.MethodPost, "/layers/nope/features", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRegisterAndLookup(t *testing.T) {
	s := NewServer("spatialite_test")
	if s.Layer("missing") != nil {
		t.Fatal("expected nil for an unregistered layer")
	}
	l := &layer.Layer{}
	s.Register("cities", l)
	if s.Layer("cities") != l {
		t.Fatal("expected the registered layer back from Layer")
	}
}
