package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func embedService(t *testing.T, vectors [][]float64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/embed", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Vectors: vectors})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestServiceEmbedderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	if _, err := NewServiceEmbedder(context.Background(), srv.URL, 4); err == nil {
		t.Fatal("expected init error for unreachable service")
	}
}

func TestServiceEmbedderEmbed(t *testing.T) {
	srv := embedService(t, [][]float64{{0.1, 0.2, 0.3, 0.4}})
	e, err := NewServiceEmbedder(context.Background(), srv.URL, 4)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	v, err := e.Embed("hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(v) != 4 {
		t.Fatalf("expected 4 dims, got %d", len(v))
	}
}

func TestServiceEmbedderRejectsCountMismatch(t *testing.T) {
	srv := embedService(t, [][]float64{{0.1, 0.2, 0.3, 0.4}})
	e, err := NewServiceEmbedder(context.Background(), srv.URL, 4)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := e.EmbedBatch([]string{"a", "b"}); err == nil {
		t.Fatal("expected error for vector count mismatch")
	}
}

func TestServiceEmbedderRejectsDimMismatch(t *testing.T) {
	// A misbehaving service returning vectors of the wrong width must be
	// rejected here rather than fed into the downstream model.
	srv := embedService(t, [][]float64{{0.1, 0.2}})
	e, err := NewServiceEmbedder(context.Background(), srv.URL, 4)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := e.Embed("hello"); err == nil {
		t.Fatal("expected error for vector dimension mismatch")
	}
}
