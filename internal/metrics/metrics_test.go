package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/hitoshi/todosync/internal/model"
)

func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordRequest_ObservesLatencyAndStatus はレイテンシとステータスが記録されることを検証する。
func TestRecordRequest_ObservesLatencyAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequest(http.MethodGet, 200, 150*time.Millisecond)
	c.RecordRequest(http.MethodGet, 200, 50*time.Millisecond)
	c.RecordRequest(http.MethodPost, 401, 10*time.Millisecond)

	latency := findMetric(t, reg, "todosync_request_latency_seconds")
	for _, m := range latency.GetMetric() {
		if labelValue(m, "method") == http.MethodGet && m.GetHistogram().GetSampleCount() != 2 {
			t.Errorf("GET sample count = %d, want 2", m.GetHistogram().GetSampleCount())
		}
	}

	status := findMetric(t, reg, "todosync_http_status_total")
	got := map[string]float64{}
	for _, m := range status.GetMetric() {
		got[labelValue(m, "status_code")] = m.GetCounter().GetValue()
	}
	if got["200"] != 2 || got["401"] != 1 {
		t.Errorf("http_status_total = %v, want 200:2 401:1", got)
	}
}

// TestRecordQuerySettled_LabelsByResourceAndStatus はクエリ確定がラベル付きで記録されることを検証する。
func TestRecordQuerySettled_LabelsByResourceAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordQuerySettled("todos", model.QueryStatusReady)
	c.RecordQuerySettled("todos", model.QueryStatusError)
	c.RecordQuerySettled("todos", model.QueryStatusReady)

	mf := findMetric(t, reg, "todosync_query_settled_total")
	for _, m := range mf.GetMetric() {
		want := 1.0
		if labelValue(m, "status") == "ready" {
			want = 2
		}
		if m.GetCounter().GetValue() != want {
			t.Errorf("status=%s value = %v, want %v", labelValue(m, "status"), m.GetCounter().GetValue(), want)
		}
	}
}

// TestRecordMutation_SplitsSuccessAndFailure は成功と失敗が別ラベルで記録されることを検証する。
func TestRecordMutation_SplitsSuccessAndFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMutation("create", true)
	c.RecordMutation("delete", false)

	mf := findMetric(t, reg, "todosync_mutations_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 series, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		switch labelValue(m, "op") {
		case "create":
			if labelValue(m, "result") != "success" {
				t.Errorf("create result = %q, want success", labelValue(m, "result"))
			}
		case "delete":
			if labelValue(m, "result") != "failure" {
				t.Errorf("delete result = %q, want failure", labelValue(m, "result"))
			}
		}
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordCacheHit("todos")
	c.RecordInvalidation("todoList")
	c.RecordTransportFailure(http.MethodDelete)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{
		"todosync_query_cache_hits_total",
		"todosync_query_invalidations_total",
		"todosync_transport_failure_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("response should contain %s metric", name)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はインターフェース実装を検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
	var _ MetricsCollector = Nop{}
}
