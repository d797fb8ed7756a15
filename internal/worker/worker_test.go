package worker

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/signalsfoundry/detailed-router/core"
	"github.com/signalsfoundry/detailed-router/internal/logging"
	"github.com/signalsfoundry/detailed-router/iterctrl"
	"github.com/signalsfoundry/detailed-router/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pitch = 100

// testTech returns numLayers alternating horizontal and vertical layers with
// tracks every 100 dbu along both axes.
func testTech(numLayers, nx, ny int) *model.Technology {
	var layers []model.Layer
	var tracks []model.TrackPattern
	for i := 0; i < numLayers; i++ {
		dir := model.LayerDirHorizontal
		if i%2 == 1 {
			dir = model.LayerDirVertical
		}
		num := i + 1
		layers = append(layers, model.Layer{
			Num: num, Name: fmt.Sprintf("M%d", num), Dir: dir,
			Width: 20, Pitch: pitch, MinSpacing: 20,
		})
		tracks = append(tracks,
			model.TrackPattern{Layer: num, Axis: model.TrackAxisX, Count: nx, Step: pitch},
			model.TrackPattern{Layer: num, Axis: model.TrackAxisY, Count: ny, Step: pitch},
		)
	}
	return model.NewTechnology(layers, tracks)
}

func box(nx, ny int) model.Rect {
	return model.NewRect(0, 0, model.Coord((nx-1)*pitch), model.Coord((ny-1)*pitch))
}

func twoPinNet(name string, layer int, ax, ay, bx, by model.Coord) model.Net {
	return model.Net{
		Name: name,
		Pins: []model.Pin{
			{Name: "a", AccessPoints: []model.AccessPoint{{Point: model.Point{X: ax, Y: ay}, Layer: layer}}},
			{Name: "b", AccessPoints: []model.AccessPoint{{Point: model.Point{X: bx, Y: by}, Layer: layer}}},
		},
	}
}

type fakeMetrics struct {
	searches   map[string]int
	planar     int
	vias       int
	markers    map[string]int
	gridNodes  map[string]int
	iterations int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		searches:  make(map[string]int),
		markers:   make(map[string]int),
		gridNodes: make(map[string]int),
	}
}

func (f *fakeMetrics) ObserveSearch(outcome string, _ time.Duration, _ int) {
	f.searches[outcome]++
}

func (f *fakeMetrics) AddCommittedEdges(planar, vias int) {
	f.planar += planar
	f.vias += vias
}

func (f *fakeMetrics) SetMarkers(worker string, count int) {
	f.markers[worker] = count
}

func (f *fakeMetrics) SetGridNodes(worker string, count int) {
	f.gridNodes[worker] = count
}

func (f *fakeMetrics) IncRipupIterations() {
	f.iterations++
}

func newWorker(tech *model.Technology, design *model.Design, nx, ny int, mutate func(*Config), opts ...Option) *Worker {
	cfg := Config{ID: "w", RouteBox: box(nx, ny)}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(tech, design, cfg, logging.Noop(), opts...)
}

func TestRunRoutesTwoPinNet(t *testing.T) {
	tech := testTech(2, 10, 10)
	design := &model.Design{Nets: []model.Net{twoPinNet("a", 1, 0, 0, 900, 900)}}
	metrics := newFakeMetrics()
	w := newWorker(tech, design, 10, 10, nil, WithMetricsRecorder(metrics))

	rep, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, rep.Summary.Converged)
	assert.Equal(t, 1, rep.Summary.Iterations)
	assert.Empty(t, rep.Unrouted)
	require.Len(t, rep.Routes, 1)

	segs := rep.Routes[0].Segments
	require.NotEmpty(t, segs)
	assert.Equal(t, model.Point{X: 0, Y: 0}, segs[0].From)
	assert.Equal(t, 1, segs[0].FromLayer)
	assert.Equal(t, model.Point{X: 900, Y: 900}, segs[len(segs)-1].To)
	assert.Equal(t, 1, segs[len(segs)-1].ToLayer)
	for i := 1; i < len(segs); i++ {
		assert.Equal(t, segs[i-1].To, segs[i].From, "segments must chain")
	}

	assert.Equal(t, 1, metrics.searches["routed"])
	assert.Equal(t, 200, metrics.gridNodes["w"])
	assert.Equal(t, 1, metrics.iterations)
	assert.Equal(t, 0, metrics.markers["w"])
	assert.Equal(t, 18, metrics.planar, "planar edges of a monotone path")
}

func TestMultiPinNetGrowsFromConnectedComponent(t *testing.T) {
	tech := testTech(2, 10, 10)
	net := twoPinNet("a", 1, 0, 0, 900, 0)
	net.Pins = append(net.Pins, model.Pin{
		Name:         "c",
		AccessPoints: []model.AccessPoint{{Point: model.Point{X: 500, Y: 300}, Layer: 1}},
	})
	metrics := newFakeMetrics()
	w := newWorker(tech, &model.Design{Nets: []model.Net{net}}, 10, 10, nil, WithMetricsRecorder(metrics))

	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Routes, 1)
	assert.Equal(t, 2, metrics.searches["routed"])

	// The third pin sits three rows above the first connection, so its
	// search should branch off the existing wire rather than a pin.
	last := rep.Routes[0].Segments[len(rep.Routes[0].Segments)-1]
	assert.Equal(t, model.Point{X: 500, Y: 300}, last.To)
	assert.Less(t, rep.Routes[0].Cost, core.Cost(900+300+900), "branching is cheaper than routing pin to pin")
}

func TestUnavoidableOverlapKeepsConflicts(t *testing.T) {
	// A single horizontal track: both nets must use x = 200 and x = 300.
	tech := model.NewTechnology(
		[]model.Layer{{Num: 1, Name: "M1", Dir: model.LayerDirHorizontal, Width: 20, Pitch: pitch, MinSpacing: 20}},
		[]model.TrackPattern{
			{Layer: 1, Axis: model.TrackAxisX, Count: 6, Step: pitch},
			{Layer: 1, Axis: model.TrackAxisY, Count: 1, Step: pitch},
		},
	)
	design := &model.Design{Nets: []model.Net{
		twoPinNet("a", 1, 0, 0, 300, 0),
		twoPinNet("b", 1, 200, 0, 500, 0),
	}}
	metrics := newFakeMetrics()
	schedule := iterctrl.Schedule{
		{MarkerDecay: 1, DRCCost: 8, MarkerCost: 32, FixedShapeCost: 8},
		{MarkerDecay: 1, DRCCost: 16, MarkerCost: 64, FixedShapeCost: 16},
	}
	w := New(tech, design, Config{ID: "row", RouteBox: model.NewRect(0, 0, 500, 0), Schedule: schedule},
		logging.Noop(), WithMetricsRecorder(metrics))

	rep, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, rep.Summary.Converged)
	assert.Equal(t, 2, rep.Summary.Iterations)
	assert.Equal(t, 2, rep.Conflicts)
	assert.Equal(t, 2, metrics.markers["row"])
	assert.Equal(t, 2, metrics.iterations)
	assert.Len(t, rep.Routes, 2)

	g := w.Graph()
	for x := 2; x <= 3; x++ {
		n := g.Node(x, 0, 0)
		assert.Equal(t, uint32(2), n.Cost(core.CostRouteShapePlanar), "x=%d", x)
		assert.NotZero(t, n.Cost(core.CostMarkerPlanar), "x=%d", x)
	}
	assert.Equal(t, uint32(1), g.Node(0, 0, 0).Cost(core.CostRouteShapePlanar))
	assert.Zero(t, g.Node(1, 0, 0).Cost(core.CostMarkerPlanar))
}

func TestPreroutedWireIsAvoided(t *testing.T) {
	tech := testTech(1, 10, 10)
	design := &model.Design{Nets: []model.Net{twoPinNet("a", 1, 0, 500, 900, 500)}}
	pre := NetRoute{Net: "fixed", Segments: []Segment{{
		From: model.Point{X: 100, Y: 500}, To: model.Point{X: 800, Y: 500}, FromLayer: 1, ToLayer: 1,
	}}}
	w := newWorker(tech, design, 10, 10, func(c *Config) { c.Prerouted = []NetRoute{pre} })

	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Summary.Converged)
	assert.Zero(t, rep.Conflicts)

	g := w.Graph()
	for x := 1; x <= 8; x++ {
		assert.Equal(t, uint32(1), g.Node(x, 5, 0).Cost(core.CostRouteShapePlanar), "prerouted x=%d", x)
	}
}

func TestObstructionForcesLayerChange(t *testing.T) {
	tech := testTech(2, 10, 10)
	design := &model.Design{
		Nets: []model.Net{twoPinNet("a", 1, 0, 500, 900, 500)},
		Obstructions: []model.Obstruction{
			{Layer: 1, Rect: model.NewRect(300, 0, 600, 900)},
		},
	}
	w := newWorker(tech, design, 10, 10, nil)

	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Routes, 1)
	assert.GreaterOrEqual(t, rep.Routes[0].Vias, 2)

	g := w.Graph()
	assert.True(t, g.IsBlocked(3, 5, 0, model.DirEast))
	assert.True(t, g.IsBlocked(4, 5, 0, model.DirWest))
	assert.True(t, g.IsBlocked(3, 5, 0, model.DirUp))
	assert.False(t, g.IsBlocked(2, 5, 0, model.DirEast), "edge leaving the shape stays open")
	assert.NotZero(t, g.Node(2, 5, 0).Cost(core.CostFixedShapePlanarHorz), "halo")
	assert.Zero(t, g.Node(8, 5, 0).Cost(core.CostFixedShapePlanarHorz))
}

func TestObstructionWallLeavesNetUnrouted(t *testing.T) {
	tech := testTech(1, 10, 10)
	design := &model.Design{
		Nets: []model.Net{twoPinNet("a", 1, 0, 500, 900, 500)},
		Obstructions: []model.Obstruction{
			{Layer: 1, Rect: model.NewRect(300, 0, 400, 900)},
		},
	}
	metrics := newFakeMetrics()
	schedule := iterctrl.Schedule{{MarkerDecay: 1, DRCCost: 8, MarkerCost: 32, FixedShapeCost: 8}}
	w := newWorker(tech, design, 10, 10, func(c *Config) { c.Schedule = schedule }, WithMetricsRecorder(metrics))

	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.Summary.Converged)
	assert.Equal(t, []string{"a"}, rep.Unrouted)
	assert.Empty(t, rep.Routes)
	assert.Equal(t, 1, metrics.searches["no_path"])
}

func TestGuidesAndNDRNetRoute(t *testing.T) {
	tech := testTech(2, 10, 10)
	tech.NDRs["wide"] = &model.NonDefaultRule{
		Name:          "wide",
		Layers:        map[int]model.NDRLayerRule{1: {Width: 60, Spacing: 40}, 2: {Width: 60, Spacing: 40}},
		TaperDistance: 100,
	}
	net := twoPinNet("clk", 1, 0, 0, 900, 0)
	net.NDR = "wide"
	design := &model.Design{
		Nets:   []model.Net{net},
		Guides: []model.Guide{{Net: "clk", Layer: 1, Rect: model.NewRect(0, 0, 900, 100)}},
	}
	w := newWorker(tech, design, 10, 10, nil)

	require.NoError(t, w.Init(context.Background()))
	require.Len(t, w.nets, 1)
	n := w.nets[0]
	require.NotNil(t, n.ndr)
	require.Len(t, n.tapers, 2)
	require.NotNil(t, n.tapers[0])
	assert.Equal(t, core.Box{Min: core.GridPoint{}, Max: core.GridPoint{X: 1, Y: 1, Z: 1}}, *n.tapers[0])
	require.Len(t, n.guides, 1)
	assert.Equal(t, core.Box{Max: core.GridPoint{X: 9, Y: 1}}, n.guides[0])

	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Routes, 1)
	assert.True(t, rep.Summary.Converged)
}

func TestInitRejectsLayerWithoutDirection(t *testing.T) {
	tech := model.NewTechnology(
		[]model.Layer{{Num: 1, Name: "M1", Width: 20, Pitch: pitch}},
		[]model.TrackPattern{
			{Layer: 1, Axis: model.TrackAxisX, Count: 4, Step: pitch},
			{Layer: 1, Axis: model.TrackAxisY, Count: 4, Step: pitch},
		},
	)
	w := newWorker(tech, &model.Design{}, 4, 4, nil)

	err := w.Init(context.Background())
	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 1, cfgErr.Layer)
	assert.Nil(t, w.Graph())
}

func TestRunHonoursCancelledContext(t *testing.T) {
	tech := testTech(2, 10, 10)
	w := newWorker(tech, &model.Design{Nets: []model.Net{twoPinNet("a", 1, 0, 0, 900, 900)}}, 10, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := w.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, rep)
	assert.Equal(t, 0, rep.Summary.Iterations)
	assert.Equal(t, []string{"a"}, rep.Unrouted)
}

func TestInitLogsWithWorkerID(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Config{Level: "info", Format: "json", Output: &buf})
	tech := testTech(1, 4, 4)
	w := New(tech, &model.Design{}, Config{ID: "w7", RouteBox: box(4, 4)}, log)

	require.NoError(t, w.Init(context.Background()))
	assert.Contains(t, buf.String(), `"worker_id":"w7"`)
	assert.Contains(t, buf.String(), `"msg":"grid ready"`)
}

func TestSinglePinNetCountsAsRouted(t *testing.T) {
	tech := testTech(1, 4, 4)
	net := model.Net{Name: "lonely", Pins: []model.Pin{{Name: "a", AccessPoints: []model.AccessPoint{{Point: model.Point{}, Layer: 1}}}}}
	w := newWorker(tech, &model.Design{Nets: []model.Net{net}}, 4, 4, nil)

	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Summary.Converged)
	require.Len(t, rep.Routes, 1)
	assert.Empty(t, rep.Routes[0].Segments)
}

func stackNet(name string, x, y model.Coord, from, to int) model.Net {
	return model.Net{
		Name: name,
		Pins: []model.Pin{
			{Name: "lo", AccessPoints: []model.AccessPoint{{Point: model.Point{X: x, Y: y}, Layer: from}}},
			{Name: "hi", AccessPoints: []model.AccessPoint{{Point: model.Point{X: x, Y: y}, Layer: to}}},
		},
	}
}

func TestViaEndsHoldPlanarResources(t *testing.T) {
	tech := testTech(3, 5, 5)
	w := newWorker(tech, &model.Design{Nets: []model.Net{stackNet("a", 200, 200, 1, 3)}}, 5, 5, nil)

	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Routes, 1)
	assert.Equal(t, 2, rep.Routes[0].Vias)

	g := w.Graph()
	for z := 0; z < 3; z++ {
		assert.Equal(t, uint32(1), g.Node(2, 2, z).Cost(core.CostRouteShapePlanar), "z=%d", z)
		assert.Equal(t, []int{0}, w.planarUse[core.GridPoint{X: 2, Y: 2, Z: z}], "z=%d", z)
	}
	for z := 0; z < 2; z++ {
		assert.Equal(t, uint32(1), g.Node(2, 2, z).Cost(core.CostRouteShapeVia), "z=%d", z)
	}
	assert.Zero(t, g.Node(2, 2, 2).Cost(core.CostRouteShapeVia))
}

func TestWireAvoidsStackedViaOfAnotherNet(t *testing.T) {
	tech := testTech(3, 5, 5)
	design := &model.Design{Nets: []model.Net{
		stackNet("a", 200, 200, 1, 3),
		twoPinNet("b", 2, 200, 0, 200, 400),
	}}
	w := newWorker(tech, design, 5, 5, nil)

	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Routes, 2)
	assert.True(t, rep.Summary.Converged)
	assert.Zero(t, rep.Conflicts)

	stack := make(map[core.GridPoint]struct{})
	for _, path := range w.nets[0].paths {
		for _, p := range path {
			stack[p] = struct{}{}
		}
	}
	require.Contains(t, stack, core.GridPoint{X: 2, Y: 2, Z: 1})
	for _, path := range w.nets[1].paths {
		for _, p := range path {
			assert.NotContains(t, stack, p, "net b shorts net a at %v", p)
		}
	}
}

func TestSharedViaLandingIsAConflict(t *testing.T) {
	tech := testTech(3, 5, 5)
	w := newWorker(tech, &model.Design{Nets: []model.Net{
		stackNet("a", 200, 200, 1, 3),
		twoPinNet("b", 2, 200, 0, 200, 400),
	}}, 5, 5, nil)
	require.NoError(t, w.Init(context.Background()))

	mid := core.GridPoint{X: 2, Y: 2, Z: 1}
	w.occupy(0, w.nets[0], []core.GridPoint{{X: 2, Y: 2, Z: 0}, mid, {X: 2, Y: 2, Z: 2}})
	w.occupy(1, w.nets[1], []core.GridPoint{{X: 2, Y: 1, Z: 1}, mid, {X: 2, Y: 3, Z: 1}})

	assert.Equal(t, 1, w.markConflicts())
	assert.True(t, w.nets[0].dirty)
	assert.True(t, w.nets[1].dirty)
	assert.NotZero(t, w.Graph().Node(2, 2, 1).Cost(core.CostMarkerPlanar))
}

func TestCloseReleasesGraph(t *testing.T) {
	tech := testTech(2, 10, 10)
	w := newWorker(tech, &model.Design{Nets: []model.Net{twoPinNet("a", 1, 0, 0, 900, 0)}}, 10, 10, nil)

	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	w.Close()
	assert.Nil(t, w.Graph())
	require.Len(t, rep.Routes, 1)
	assert.NotEmpty(t, rep.Routes[0].Segments)
	w.Close()

	rep, err = w.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Summary.Converged)
	assert.NotNil(t, w.Graph())
}
