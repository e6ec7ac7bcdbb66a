package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_RegistersWithoutPanic(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	if m.PermissionChecksTotal == nil || m.TreeMutationsTotal == nil {
		t.Fatal("Expected metrics to be initialized")
	}

	m.PermissionChecksTotal.WithLabelValues("page", "granted").Inc()
	m.PermissionChecksTotal.WithLabelValues("page", "denied").Inc()
	m.PermissionChecksTotal.WithLabelValues("page", "granted").Inc()

	got := testutil.ToFloat64(m.PermissionChecksTotal.WithLabelValues("page", "granted"))
	if got != 2 {
		t.Errorf("Expected 2 granted checks, got %v", got)
	}
}

func TestMetrics_ObserveMutation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.ObserveMutation("move", "page", "ok", 25*time.Millisecond)
	m.ObserveMutation("move", "page", "ok", 50*time.Millisecond)
	m.ObserveMutation("move", "page", "error", 5*time.Millisecond)

	ok := testutil.ToFloat64(m.TreeMutationsTotal.WithLabelValues("move", "page", "ok"))
	if ok != 2 {
		t.Errorf("Expected 2 ok mutations, got %v", ok)
	}
	failed := testutil.ToFloat64(m.TreeMutationsTotal.WithLabelValues("move", "page", "error"))
	if failed != 1 {
		t.Errorf("Expected 1 failed mutation, got %v", failed)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/pages/abc", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected handler status to pass through, got %d", rec.Code)
	}

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/pages/abc", "404"))
	if got != 1 {
		t.Errorf("Expected 1 counted request, got %v", got)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.GroupGraphSize.Set(7)

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /metrics, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "arbor_group_graph_size 7") {
		t.Error("Expected gauge value in metrics exposition")
	}
}
