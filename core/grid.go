package core

import (
	"fmt"

	"github.com/signalsfoundry/detailed-router/model"
)

// CostConfig holds the cost constants of a grid graph. DRC, Marker and
// FixedShape are the per-iteration weights and may be changed between
// searches with SetCost.
type CostConfig struct {
	// GridCost multiplies the length of edges that leave the route box.
	GridCost Cost
	// ViaCost is the height of one via expressed in layer pitches.
	ViaCost model.Coord
	// BendCost is added for every planar turn.
	BendCost Cost
	// SpecialViaCost is added for every via taken at a special-via node.
	SpecialViaCost Cost

	DRC        Cost
	Marker     Cost
	FixedShape Cost
}

// DefaultCostConfig returns the cost constants used by the first routing
// iteration.
func DefaultCostConfig() CostConfig {
	return CostConfig{
		GridCost:       2,
		ViaCost:        4,
		BendCost:       1,
		SpecialViaCost: 100,
		DRC:            8,
		Marker:         32,
		FixedShape:     8,
	}
}

// Cost is an accumulated, unclamped path cost.
type Cost int64

// GridGraph is the 3D routing grid of one worker region together with the
// state of its maze search. A GridGraph is owned by a single goroutine.
type GridGraph struct {
	tech *model.Technology
	cfg  CostConfig

	dieBox   model.Rect
	routeBox model.Rect
	extBox   model.Rect

	coords CoordinateIndex
	nodes  []Node

	prevDirs dirArray
	srcs     bitset
	dsts     bitset
	guides   bitset

	// halfViaEnc holds, per z index, the enclosure area of the via to z+1 on
	// the lower and the upper layer.
	halfViaEnc []model.ViaEnclosure

	followGuide bool
	ndr         *model.NonDefaultRule
	dstTaper    *Box

	wavefront   wavefront
	inSearch    bool
	initialized bool
}

// NewGridGraph returns an empty graph. Call Init before use.
func NewGridGraph(tech *model.Technology, cfg CostConfig) *GridGraph {
	return &GridGraph{tech: tech, cfg: cfg}
}

// Config returns the current cost constants.
func (g *GridGraph) Config() CostConfig { return g.cfg }

// SetCost replaces the per-iteration weights.
func (g *GridGraph) SetCost(drc, marker, fixedShape Cost) {
	g.cfg.DRC = drc
	g.cfg.Marker = marker
	g.cfg.FixedShape = fixedShape
}

// SetNDR selects the non-default rule for subsequent searches. nil restores
// default-rule costing.
func (g *GridGraph) SetNDR(ndr *model.NonDefaultRule) { g.ndr = ndr }

// SetDstTaperBox sets the region around the destination pin in which
// non-default-rule costing is turned off.
func (g *GridGraph) SetDstTaperBox(b *Box) { g.dstTaper = b }

// SetFollowGuide turns guide following on or off.
func (g *GridGraph) SetFollowGuide(on bool) { g.followGuide = on }

// Initialized reports whether Init has completed.
func (g *GridGraph) Initialized() bool { return g.initialized }

// Coords returns the coordinate index.
func (g *GridGraph) Coords() *CoordinateIndex { return &g.coords }

// Dims returns the grid size.
func (g *GridGraph) Dims() (int, int, int) { return g.coords.Dims() }

// RouteBox returns the region the worker is responsible for.
func (g *GridGraph) RouteBox() model.Rect { return g.routeBox }

// ExtBox returns the route box plus its extension margin.
func (g *GridGraph) ExtBox() model.Rect { return g.extBox }

// NumNodes returns the number of grid points.
func (g *GridGraph) NumNodes() int { return len(g.nodes) }

func (g *GridGraph) idx(x, y, z int) int {
	nx, ny := len(g.coords.xs), len(g.coords.ys)
	if g.coords.layers[z].Dir == model.LayerDirHorizontal {
		return x + y*nx + z*nx*ny
	}
	return y + x*ny + z*nx*ny
}

func (g *GridGraph) isValid(x, y, z int) bool {
	nx, ny, nz := g.coords.Dims()
	return x >= 0 && y >= 0 && z >= 0 && x < nx && y < ny && z < nz
}

// IsValid reports whether (x, y, z) is inside the grid.
func (g *GridGraph) IsValid(x, y, z int) bool { return g.isValid(x, y, z) }

// Node returns a copy of the stored record. The point must be valid.
func (g *GridGraph) Node(x, y, z int) Node { return g.nodes[g.idx(x, y, z)] }

func (g *GridGraph) node(x, y, z int) *Node { return &g.nodes[g.idx(x, y, z)] }

// DescribeNode renders the node at (x, y, z) for diagnostics.
func (g *GridGraph) DescribeNode(x, y, z int) string {
	if !g.isValid(x, y, z) {
		return fmt.Sprintf("%v: off grid", GridPoint{x, y, z})
	}
	p := g.coords.Point(x, y)
	return fmt.Sprintf("%v at (%d,%d) layer %d: %s", GridPoint{x, y, z}, p.X, p.Y, g.coords.LayerNum(z), g.nodes[g.idx(x, y, z)])
}

// Cleanup releases the grid storage. It panics if called while a search is
// running.
func (g *GridGraph) Cleanup() {
	if g.inSearch || g.wavefront.Len() > 0 {
		panic("core: Cleanup called during a search")
	}
	g.nodes = nil
	g.prevDirs = nil
	g.srcs = nil
	g.dsts = nil
	g.guides = nil
	g.halfViaEnc = nil
	g.coords = CoordinateIndex{}
	g.wavefront.cleanup()
	g.ndr = nil
	g.dstTaper = nil
	g.initialized = false
}

// SetSrc marks (x, y, z) as a search source.
func (g *GridGraph) SetSrc(x, y, z int) { g.srcs.set(g.idx(x, y, z)) }

// ResetSrc clears the source mark.
func (g *GridGraph) ResetSrc(x, y, z int) { g.srcs.clear(g.idx(x, y, z)) }

// IsSrc reports whether (x, y, z) is a source.
func (g *GridGraph) IsSrc(x, y, z int) bool { return g.srcs.get(g.idx(x, y, z)) }

// SetDst marks (x, y, z) as a search destination.
func (g *GridGraph) SetDst(x, y, z int) { g.dsts.set(g.idx(x, y, z)) }

// ResetDst clears the destination mark.
func (g *GridGraph) ResetDst(x, y, z int) { g.dsts.clear(g.idx(x, y, z)) }

// IsDst reports whether (x, y, z) is a destination.
func (g *GridGraph) IsDst(x, y, z int) bool { return g.dsts.get(g.idx(x, y, z)) }

// SetGuide marks the index box [x1,x2]x[y1,y2] on layer z as inside the
// net's routing guide.
func (g *GridGraph) SetGuide(x1, y1, x2, y2, z int) { g.fillGuide(x1, y1, x2, y2, z, true) }

// ResetGuide clears a guide box.
func (g *GridGraph) ResetGuide(x1, y1, x2, y2, z int) { g.fillGuide(x1, y1, x2, y2, z, false) }

// ResetAllGuides clears the whole guide mask.
func (g *GridGraph) ResetAllGuides() { g.guides.reset() }

// HasGuide reports whether (x, y, z) is inside the guide.
func (g *GridGraph) HasGuide(x, y, z int) bool { return g.guides.get(g.idx(x, y, z)) }

func (g *GridGraph) fillGuide(x1, y1, x2, y2, z int, on bool) {
	nx, ny, _ := g.coords.Dims()
	x1, y1 = max(x1, 0), max(y1, 0)
	x2, y2 = min(x2, nx-1), min(y2, ny-1)
	// rows follow the storage order of the layer
	if g.coords.layers[z].Dir == model.LayerDirHorizontal {
		for y := y1; y <= y2; y++ {
			for x := x1; x <= x2; x++ {
				g.setGuideBit(g.idx(x, y, z), on)
			}
		}
		return
	}
	for x := x1; x <= x2; x++ {
		for y := y1; y <= y2; y++ {
			g.setGuideBit(g.idx(x, y, z), on)
		}
	}
}

func (g *GridGraph) setGuideBit(i int, on bool) {
	if on {
		g.guides.set(i)
	} else {
		g.guides.clear(i)
	}
}

// PrevDir returns the direction the search arrived at (x, y, z) from, as
// recorded by the most recent search. ok is false for unvisited nodes;
// sources report DirUnknown with ok set.
func (g *GridGraph) PrevDir(x, y, z int) (model.Dir, bool) {
	v := g.prevDirs.get(g.idx(x, y, z))
	switch v {
	case 0:
		return model.DirUnknown, false
	case dirRoot:
		return model.DirUnknown, true
	}
	return model.Dir(v), true
}
