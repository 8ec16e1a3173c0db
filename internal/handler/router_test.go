package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/todosync/internal/metrics"
	"github.com/hitoshi/todosync/internal/session"
)

func newTestRouter(p session.Provider, reg *prometheus.Registry) http.Handler {
	var buf bytes.Buffer
	return NewRouter(&RouterDeps{
		Logger:   slog.New(slog.NewJSONHandler(&buf, nil)),
		Session:  p,
		Gatherer: reg,
	})
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name     string
		provider session.Provider
		want     bool
	}{
		{"ログイン中", session.Static{Token: "tok", UserID: 1}, true},
		{"未ログイン", session.Static{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(tt.provider, prometheus.NewRegistry())

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != http.StatusOK {
				t.Fatalf("GET /health status = %d, want 200", w.Code)
			}
			var body HealthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to parse body: %v", err)
			}
			if body.Status != "ok" || body.Authenticated != tt.want {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	c.RecordInvalidation("todos")

	router := newTestRouter(session.Static{}, reg)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "todosync_query_invalidations_total") {
		t.Errorf("メトリクスが出力されること: %s", body)
	}
}

func TestRouter_UnknownPath(t *testing.T) {
	router := newTestRouter(session.Static{}, prometheus.NewRegistry())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/todos", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
