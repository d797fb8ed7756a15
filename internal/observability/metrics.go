package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search outcome label values.
const (
	OutcomeRouted    = "routed"
	OutcomeNoPath    = "no_path"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// Committed edge kind label values.
const (
	EdgeKindPlanar = "planar"
	EdgeKindVia    = "via"
)

// RouterCollector bundles Prometheus metrics for maze searches and the
// rip-up and reroute loop, and exposes them over HTTP.
type RouterCollector struct {
	gatherer prometheus.Gatherer

	Searches        *prometheus.CounterVec
	SearchDurations prometheus.Histogram
	ExpandedNodes   prometheus.Histogram
	CommittedEdges  *prometheus.CounterVec
	Markers         *prometheus.GaugeVec
	GridNodes       *prometheus.GaugeVec
	RipupIterations prometheus.Counter
}

// NewRouterCollector registers router metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewRouterCollector(reg prometheus.Registerer) (*RouterCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	searches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "router_searches_total",
		Help: "Total number of maze searches, labeled by outcome.",
	}, []string{"outcome"})
	searches, err := registerCounterVec(reg, searches, "router_searches_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "router_search_duration_seconds",
		Help:    "Wall time of a single maze search in seconds.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}), "router_search_duration_seconds")
	if err != nil {
		return nil, err
	}

	expanded, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "router_search_expanded_nodes",
		Help:    "Number of wavefront entries expanded per maze search.",
		Buckets: prometheus.ExponentialBuckets(8, 4, 9),
	}), "router_search_expanded_nodes")
	if err != nil {
		return nil, err
	}

	edges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "router_committed_edges_total",
		Help: "Edges committed to routed paths, labeled by planar or via kind.",
	}, []string{"kind"})
	edges, err = registerCounterVec(reg, edges, "router_committed_edges_total")
	if err != nil {
		return nil, err
	}

	markers := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "router_markers",
		Help: "Shared-resource conflicts found by the last iteration of each worker.",
	}, []string{"worker"})
	markers, err = registerGaugeVec(reg, markers, "router_markers")
	if err != nil {
		return nil, err
	}

	nodes := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "router_grid_nodes",
		Help: "Number of grid graph nodes held by each worker.",
	}, []string{"worker"})
	nodes, err = registerGaugeVec(reg, nodes, "router_grid_nodes")
	if err != nil {
		return nil, err
	}

	ripups, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "router_ripup_iterations_total",
		Help: "Cumulative number of rip-up and reroute iterations run by all workers.",
	}), "router_ripup_iterations_total")
	if err != nil {
		return nil, err
	}

	return &RouterCollector{
		gatherer:        gatherer,
		Searches:        searches,
		SearchDurations: durations,
		ExpandedNodes:   expanded,
		CommittedEdges:  edges,
		Markers:         markers,
		GridNodes:       nodes,
		RipupIterations: ripups,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RouterCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *RouterCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveSearch records the outcome, duration and expansion count of one
// maze search.
func (c *RouterCollector) ObserveSearch(outcome string, d time.Duration, expanded int) {
	if c == nil {
		return
	}
	if c.Searches != nil {
		c.Searches.WithLabelValues(outcome).Inc()
	}
	if c.SearchDurations != nil {
		c.SearchDurations.Observe(d.Seconds())
	}
	if c.ExpandedNodes != nil {
		c.ExpandedNodes.Observe(float64(expanded))
	}
}

// AddCommittedEdges counts edges written into the grid by a committed path.
func (c *RouterCollector) AddCommittedEdges(planar, vias int) {
	if c == nil || c.CommittedEdges == nil {
		return
	}
	if planar > 0 {
		c.CommittedEdges.WithLabelValues(EdgeKindPlanar).Add(float64(planar))
	}
	if vias > 0 {
		c.CommittedEdges.WithLabelValues(EdgeKindVia).Add(float64(vias))
	}
}

// SetMarkers updates the conflict gauge of a worker.
func (c *RouterCollector) SetMarkers(worker string, count int) {
	if c == nil || c.Markers == nil {
		return
	}
	c.Markers.WithLabelValues(worker).Set(float64(count))
}

// SetGridNodes updates the grid size gauge of a worker.
func (c *RouterCollector) SetGridNodes(worker string, count int) {
	if c == nil || c.GridNodes == nil {
		return
	}
	c.GridNodes.WithLabelValues(worker).Set(float64(count))
}

// IncRipupIterations increments the iteration counter.
func (c *RouterCollector) IncRipupIterations() {
	if c == nil || c.RipupIterations == nil {
		return
	}
	c.RipupIterations.Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
