// Package worker routes the nets of one region of a die on its own grid
// graph, repeating rip-up and reroute passes under an iteration schedule
// until no two nets share a grid resource.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/detailed-router/core"
	"github.com/signalsfoundry/detailed-router/internal/logging"
	"github.com/signalsfoundry/detailed-router/iterctrl"
	"github.com/signalsfoundry/detailed-router/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/signalsfoundry/detailed-router/internal/worker"

// ErrNotInitialized is returned by operations that need Init to have run.
var ErrNotInitialized = errors.New("worker not initialized")

// MetricsRecorder receives search and iteration measurements.
type MetricsRecorder interface {
	ObserveSearch(outcome string, d time.Duration, expanded int)
	AddCommittedEdges(planar, vias int)
	SetMarkers(worker string, count int)
	SetGridNodes(worker string, count int)
	IncRipupIterations()
}

type noopMetrics struct{}

func (noopMetrics) ObserveSearch(string, time.Duration, int) {}
func (noopMetrics) AddCommittedEdges(int, int)               {}
func (noopMetrics) SetMarkers(string, int)                   {}
func (noopMetrics) SetGridNodes(string, int)                 {}
func (noopMetrics) IncRipupIterations()                      {}

// Config describes the region a worker owns and how it routes.
type Config struct {
	ID string
	// DieBox bounds via placement. A zero rectangle disables the check.
	DieBox model.Rect
	// RouteBox is the region whose nets the worker is responsible for.
	RouteBox model.Rect
	// ExtBox is RouteBox plus the margin paths may use. Zero means RouteBox.
	ExtBox model.Rect
	// Cost holds the fixed cost constants. Zero means core.DefaultCostConfig.
	Cost     core.CostConfig
	Schedule iterctrl.Schedule
	// Prerouted wires of other nets that this worker must avoid but never
	// rips up.
	Prerouted []NetRoute
}

// Segment is a straight piece of a routed net in design coordinates. A via
// has From == To and different layers.
type Segment struct {
	From      model.Point
	To        model.Point
	FromLayer int
	ToLayer   int
}

// NetRoute is the committed routing of one net.
type NetRoute struct {
	Net      string
	Segments []Segment
	Cost     core.Cost
	Vias     int
}

// Report summarizes a finished run.
type Report struct {
	WorkerID  string
	Summary   iterctrl.Summary
	Routes    []NetRoute
	Unrouted  []string
	Conflicts int
}

// Option customizes a Worker.
type Option func(*Worker)

// WithMetricsRecorder wires a metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(w *Worker) {
		if m != nil {
			w.metrics = m
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(w *Worker) {
		if t != nil {
			w.tracer = t
		}
	}
}

// Worker owns one grid graph. It is not safe for concurrent use; run
// independent regions on independent workers.
type Worker struct {
	tech    *model.Technology
	design  *model.Design
	cfg     Config
	log     logging.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer

	graph *core.GridGraph
	nets  []*netState
	fixed *netState

	planarUse map[core.GridPoint][]int
	viaUse    map[core.GridPoint][]int
	conflicts int
}

// New constructs a worker for the nets of design. Guides and obstructions of
// design outside the worker's extension box are ignored.
func New(tech *model.Technology, design *model.Design, cfg Config, log logging.Logger, opts ...Option) *Worker {
	if log == nil {
		log = logging.Noop()
	}
	if cfg.ExtBox == (model.Rect{}) {
		cfg.ExtBox = cfg.RouteBox
	}
	if cfg.Cost == (core.CostConfig{}) {
		cfg.Cost = core.DefaultCostConfig()
	}
	w := &Worker{
		tech:    tech,
		design:  design,
		cfg:     cfg,
		log:     log,
		metrics: noopMetrics{},
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the worker identifier.
func (w *Worker) ID() string { return w.cfg.ID }

// Graph returns the worker's grid graph, or nil before Init.
func (w *Worker) Graph() *core.GridGraph { return w.graph }

// Init builds the grid graph and loads obstructions, pre-routed wires and
// nets. Calling Init again discards all routing.
func (w *Worker) Init(ctx context.Context) error {
	ctx, log := w.scope(ctx)
	g := core.NewGridGraph(w.tech, w.cfg.Cost)
	err := g.Init(core.InitParams{
		DieBox:   w.cfg.DieBox,
		RouteBox: w.cfg.RouteBox,
		ExtBox:   w.cfg.ExtBox,
		Tracks:   core.NewTrackMaps(w.tech, w.cfg.ExtBox),
	})
	if err != nil {
		log.Error(ctx, "grid init failed", logging.Err(err))
		return fmt.Errorf("worker %s: %w", w.cfg.ID, err)
	}
	w.graph = g
	w.planarUse = make(map[core.GridPoint][]int)
	w.viaUse = make(map[core.GridPoint][]int)
	w.conflicts = 0
	w.fixed = &netState{
		planarNodes: make(map[core.GridPoint]struct{}),
		viaNodes:    make(map[core.GridPoint]struct{}),
	}

	var obstructions []model.Obstruction
	if w.design != nil {
		obstructions = w.design.Obstructions
	}
	w.applyObstructions(obstructions)
	for _, r := range w.cfg.Prerouted {
		w.applyPrerouted(r)
	}
	w.nets = w.buildNets(ctx)

	w.metrics.SetGridNodes(w.cfg.ID, g.NumNodes())
	nx, ny, nz := g.Dims()
	log.Info(ctx, "grid ready",
		logging.Int("nx", nx),
		logging.Int("ny", ny),
		logging.Int("nz", nz),
		logging.Int("nets", len(w.nets)),
	)
	return nil
}

// Run initializes the worker if needed and drives the rip-up and reroute
// schedule to convergence or exhaustion. The report reflects the routing at
// the point Run returned, also when it returns an error.
func (w *Worker) Run(ctx context.Context) (*Report, error) {
	ctx, log := w.scope(ctx)
	if w.graph == nil {
		if err := w.Init(ctx); err != nil {
			return nil, err
		}
	}

	ctrl := iterctrl.NewController(w.cfg.Schedule)
	ctrl.AddListener(func(it iterctrl.Iteration) {
		log.Debug(ctx, "iteration start",
			logging.Int("iteration", it.Index),
			logging.Int64("marker_cost", it.MarkerCost),
			logging.Any("follow_guide", it.FollowGuide),
		)
	})
	start := time.Now()
	sum, err := ctrl.Run(ctx, w.step)

	rep := w.report()
	rep.Summary = sum
	if err != nil {
		log.Warn(ctx, "routing stopped", logging.Err(err), logging.Int("iterations", sum.Iterations))
		return rep, err
	}
	log.Info(ctx, "routing finished",
		logging.Int("iterations", sum.Iterations),
		logging.Int("conflicts", rep.Conflicts),
		logging.Int("unrouted", len(rep.Unrouted)),
		logging.Any("converged", sum.Converged),
		logging.Float64("elapsed_s", time.Since(start).Seconds()),
	)
	return rep, nil
}

// step is one rip-up and reroute pass. It returns the number of conflicting
// grid resources plus the number of nets that could not be routed.
func (w *Worker) step(ctx context.Context, it iterctrl.Iteration) (int, error) {
	if w.graph == nil {
		return 0, ErrNotInitialized
	}
	ctx, span := w.tracer.Start(ctx, "worker/iteration", trace.WithAttributes(
		attribute.String("worker_id", w.cfg.ID),
		attribute.Int("iteration", it.Index),
	))
	defer span.End()

	w.graph.SetCost(core.Cost(it.DRCCost), core.Cost(it.MarkerCost), core.Cost(it.FixedShapeCost))

	var queue []int
	for i, n := range w.nets {
		if it.RipupAll || n.dirty || !n.routed {
			queue = append(queue, i)
		}
	}
	for _, i := range queue {
		w.ripup(i)
	}

	failed := 0
	for _, i := range queue {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return 0, err
		}
		if err := w.routeNet(ctx, i, it.FollowGuide); err != nil {
			if errors.Is(err, core.ErrNoPath) {
				failed++
				continue
			}
			span.RecordError(err)
			return 0, err
		}
	}

	w.decayMarkers(it.MarkerDecay)
	w.conflicts = w.markConflicts()
	w.metrics.SetMarkers(w.cfg.ID, w.conflicts)
	w.metrics.IncRipupIterations()

	span.SetAttributes(
		attribute.Int("rerouted", len(queue)),
		attribute.Int("conflicts", w.conflicts),
		attribute.Int("failed", failed),
	)
	w.logger(ctx).Debug(ctx, "iteration done",
		logging.Int("iteration", it.Index),
		logging.Int("rerouted", len(queue)),
		logging.Int("conflicts", w.conflicts),
		logging.Int("failed", failed),
	)
	return w.conflicts + failed, nil
}

// Close releases the grid graph and the routing state built on it. Reports
// already returned stay valid. A later Run builds a fresh grid.
func (w *Worker) Close() {
	if w.graph == nil {
		return
	}
	w.graph.Cleanup()
	w.graph = nil
	w.nets = nil
	w.fixed = nil
	w.planarUse = nil
	w.viaUse = nil
	w.conflicts = 0
}

// scope returns ctx carrying a logger tagged with the worker ID. A logger
// already on ctx, such as a run logger, is used as the base.
func (w *Worker) scope(ctx context.Context) (context.Context, logging.Logger) {
	if logging.WorkerIDFromContext(ctx) == w.cfg.ID {
		if l := logging.LoggerFromContext(ctx); l != nil {
			return ctx, l
		}
	}
	return logging.WithWorkerLogger(ctx, w.log, w.cfg.ID)
}

func (w *Worker) logger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return w.log
}

func (w *Worker) report() *Report {
	rep := &Report{WorkerID: w.cfg.ID, Conflicts: w.conflicts}
	for _, n := range w.nets {
		if !n.routed {
			rep.Unrouted = append(rep.Unrouted, n.net.Name)
			continue
		}
		rep.Routes = append(rep.Routes, w.netRoute(n))
	}
	return rep
}

func (w *Worker) netRoute(n *netState) NetRoute {
	c := w.graph.Coords()
	r := NetRoute{Net: n.net.Name, Cost: n.cost, Vias: n.vias}
	for _, path := range n.paths {
		pts := core.CompressPath(path)
		for i := 0; i+1 < len(pts); i++ {
			a, b := pts[i], pts[i+1]
			r.Segments = append(r.Segments, Segment{
				From:      c.Point(a.X, a.Y),
				To:        c.Point(b.X, b.Y),
				FromLayer: c.LayerNum(a.Z),
				ToLayer:   c.LayerNum(b.Z),
			})
		}
	}
	return r
}
