package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveSearchRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRouterCollector(reg)
	if err != nil {
		t.Fatalf("NewRouterCollector: %v", err)
	}

	collector.ObserveSearch(OutcomeRouted, 3*time.Millisecond, 120)
	collector.ObserveSearch(OutcomeRouted, time.Millisecond, 40)
	collector.ObserveSearch(OutcomeNoPath, time.Millisecond, 900)

	if got := testutil.ToFloat64(collector.Searches.WithLabelValues(OutcomeRouted)); got != 2 {
		t.Fatalf("router_searches_total{outcome=routed} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Searches.WithLabelValues(OutcomeNoPath)); got != 1 {
		t.Fatalf("router_searches_total{outcome=no_path} = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "router_search_duration_seconds", nil); count != 3 {
		t.Fatalf("router_search_duration_seconds sample_count = %d, want 3", count)
	}
	if sum := histogramSampleSum(t, reg, "router_search_expanded_nodes"); sum != 1060 {
		t.Fatalf("router_search_expanded_nodes sample_sum = %v, want 1060", sum)
	}
}

func TestCommittedEdgesAndGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRouterCollector(reg)
	if err != nil {
		t.Fatalf("NewRouterCollector: %v", err)
	}

	collector.AddCommittedEdges(7, 2)
	collector.AddCommittedEdges(3, 0)
	collector.SetMarkers("w0", 4)
	collector.SetMarkers("w0", 1)
	collector.SetGridNodes("w1", 1200)
	collector.IncRipupIterations()
	collector.IncRipupIterations()

	if got := testutil.ToFloat64(collector.CommittedEdges.WithLabelValues(EdgeKindPlanar)); got != 10 {
		t.Fatalf("planar edges = %v, want 10", got)
	}
	if got := testutil.ToFloat64(collector.CommittedEdges.WithLabelValues(EdgeKindVia)); got != 2 {
		t.Fatalf("via edges = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Markers.WithLabelValues("w0")); got != 1 {
		t.Fatalf("router_markers{worker=w0} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.GridNodes.WithLabelValues("w1")); got != 1200 {
		t.Fatalf("router_grid_nodes{worker=w1} = %v, want 1200", got)
	}
	if got := testutil.ToFloat64(collector.RipupIterations); got != 2 {
		t.Fatalf("router_ripup_iterations_total = %v, want 2", got)
	}
}

func TestNewRouterCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRouterCollector(reg)
	if err != nil {
		t.Fatalf("first NewRouterCollector: %v", err)
	}
	second, err := NewRouterCollector(reg)
	if err != nil {
		t.Fatalf("second NewRouterCollector: %v", err)
	}

	first.IncRipupIterations()
	second.IncRipupIterations()
	if got := testutil.ToFloat64(first.RipupIterations); got != 2 {
		t.Fatalf("shared counter = %v, want 2", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *RouterCollector
	c.ObserveSearch(OutcomeError, time.Second, 1)
	c.AddCommittedEdges(1, 1)
	c.SetMarkers("w", 1)
	c.SetGridNodes("w", 1)
	c.IncRipupIterations()
	if c.Gatherer() != nil {
		t.Fatalf("nil collector returned a gatherer")
	}
}

func TestMetricsHandlerExposesRouterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRouterCollector(reg)
	if err != nil {
		t.Fatalf("NewRouterCollector: %v", err)
	}
	collector.ObserveSearch(OutcomeRouted, time.Millisecond, 10)
	collector.AddCommittedEdges(1, 1)
	collector.SetMarkers("w0", 3)
	collector.SetGridNodes("w0", 64)
	collector.IncRipupIterations()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"router_searches_total",
		"router_search_duration_seconds",
		"router_search_expanded_nodes",
		"router_committed_edges_total",
		`router_markers{worker="w0"} 3`,
		`router_grid_nodes{worker="w0"} 64`,
		"router_ripup_iterations_total 1",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output: %s", metric, body)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	if h := findHistogram(t, gatherer, name, labels); h != nil {
		return h.GetSampleCount()
	}
	return 0
}

func histogramSampleSum(t *testing.T, gatherer prometheus.Gatherer, name string) float64 {
	t.Helper()

	if h := findHistogram(t, gatherer, name, nil); h != nil {
		return h.GetSampleSum()
	}
	return 0
}

func findHistogram(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) *dto.Histogram {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram()
			}
		}
	}
	return nil
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
