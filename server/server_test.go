package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recserver/database"
	"recserver/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := database.NewDB(":memory:", 24*time.Hour)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Port:              "8080",
		DatabasePath:      ":memory:",
		Retention:         24 * time.Hour,
		MaxUploadBytes:    5 * 1024 * 1024,
		ProcessingTimeout: time.Minute,
		JanitorInterval:   time.Hour,
		OpenAIModel:       "gpt-4o-mini",
	}
	return New(cfg, db)
}

func TestHandlerRoutes(t *testing.T) {
	handler := newTestServer(t).Handler()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/api/health", http.StatusOK},
		{"GET", "/api/status/unknown", http.StatusNotFound},
		{"GET", "/api/results/unknown", http.StatusNotFound},
		{"GET", "/no-such-route", http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, w.Code, tt.want)
		}
	}
}

func TestHandlerSetsRequestID(t *testing.T) {
	handler := newTestServer(t).Handler()

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
}
