package core

import "github.com/signalsfoundry/detailed-router/model"

const (
	routeShapeStep = 1
	markerStep     = 10
	fixedShapeStep = 1
)

// Edge queries and edits canonicalize the direction and validate both ends
// of the edge. Cost edits below do not validate; use Checked for that.

func (g *GridGraph) edgeNode(x, y, z int, d model.Dir) (*Node, model.Dir, bool) {
	if d == model.DirUnknown || d > model.DirUp || !g.isValid(x, y, z) {
		return nil, d, false
	}
	nx, ny, nz := step(x, y, z, d)
	if !g.isValid(nx, ny, nz) {
		return nil, d, false
	}
	cx, cy, cz, cd := canonical(x, y, z, d)
	return g.node(cx, cy, cz), cd, true
}

// HasEdge reports whether the edge leaving (x, y, z) in d exists.
func (g *GridGraph) HasEdge(x, y, z int, d model.Dir) bool {
	n, cd, ok := g.edgeNode(x, y, z, d)
	return ok && n.flag(edgeShift, cd)
}

// AddEdge creates the edge. It returns false for an off-grid edge.
func (g *GridGraph) AddEdge(x, y, z int, d model.Dir) bool { return g.editFlag(x, y, z, d, edgeShift, true) }

// RemoveEdge deletes the edge. It returns false for an off-grid edge.
func (g *GridGraph) RemoveEdge(x, y, z int, d model.Dir) bool {
	return g.editFlag(x, y, z, d, edgeShift, false)
}

// IsBlocked reports whether the edge is blocked.
func (g *GridGraph) IsBlocked(x, y, z int, d model.Dir) bool {
	n, cd, ok := g.edgeNode(x, y, z, d)
	return ok && n.flag(blockedShift, cd)
}

// SetBlocked blocks the edge.
func (g *GridGraph) SetBlocked(x, y, z int, d model.Dir) bool {
	return g.editFlag(x, y, z, d, blockedShift, true)
}

// ResetBlocked unblocks the edge.
func (g *GridGraph) ResetBlocked(x, y, z int, d model.Dir) bool {
	return g.editFlag(x, y, z, d, blockedShift, false)
}

// HasGridCost reports whether the edge carries the extra grid cost.
func (g *GridGraph) HasGridCost(x, y, z int, d model.Dir) bool {
	n, cd, ok := g.edgeNode(x, y, z, d)
	return ok && n.flag(gridCostShift, cd)
}

// SetGridCost flags the edge with the extra grid cost.
func (g *GridGraph) SetGridCost(x, y, z int, d model.Dir) bool {
	return g.editFlag(x, y, z, d, gridCostShift, true)
}

// ResetGridCost clears the extra grid cost flag.
func (g *GridGraph) ResetGridCost(x, y, z int, d model.Dir) bool {
	return g.editFlag(x, y, z, d, gridCostShift, false)
}

func (g *GridGraph) editFlag(x, y, z int, d model.Dir, shift uint16, on bool) bool {
	n, cd, ok := g.edgeNode(x, y, z, d)
	if ok {
		n.setFlag(shift, cd, on)
	}
	return ok
}

// IsSpecialVia reports whether vias at (x, y, z) use the special-via cost.
func (g *GridGraph) IsSpecialVia(x, y, z int) bool { return g.node(x, y, z).flags&flagSpecialVia != 0 }

// SetSpecialVia marks (x, y, z) as a special-via site.
func (g *GridGraph) SetSpecialVia(x, y, z int) { g.node(x, y, z).flags |= flagSpecialVia }

// ResetSpecialVia clears the special-via mark.
func (g *GridGraph) ResetSpecialVia(x, y, z int) { g.node(x, y, z).flags &^= flagSpecialVia }

// IsOverrideShapeCostVia reports whether the fixed-shape cost of the up via
// at (x, y, z) is ignored.
func (g *GridGraph) IsOverrideShapeCostVia(x, y, z int) bool {
	return g.node(x, y, z).flags&flagOverrideCost != 0
}

// SetOverrideShapeCostVia ignores the fixed-shape cost of the up via at
// (x, y, z).
func (g *GridGraph) SetOverrideShapeCostVia(x, y, z int) { g.node(x, y, z).flags |= flagOverrideCost }

// ResetOverrideShapeCostVia restores the fixed-shape cost of the up via.
func (g *GridGraph) ResetOverrideShapeCostVia(x, y, z int) {
	g.node(x, y, z).flags &^= flagOverrideCost
}

func (g *GridGraph) add(x, y, z int, f CostField, v uint32) {
	n := g.node(x, y, z)
	n.costs[f] = addToCounter(n.costs[f], v)
}

func (g *GridGraph) sub(x, y, z int, f CostField, v uint32) {
	n := g.node(x, y, z)
	n.costs[f] = subFromCounter(n.costs[f], v)
}

func (g *GridGraph) set(x, y, z int, f CostField, v uint32) {
	n := g.node(x, y, z)
	n.costs[f] = addToCounter(0, v)
}

// AddRouteShapeCostPlanar records one more routed wire at (x, y, z).
func (g *GridGraph) AddRouteShapeCostPlanar(x, y, z int) {
	g.add(x, y, z, CostRouteShapePlanar, routeShapeStep)
}

// AddRouteShapeCostVia records one more routed via at (x, y, z).
func (g *GridGraph) AddRouteShapeCostVia(x, y, z int) { g.add(x, y, z, CostRouteShapeVia, routeShapeStep) }

// SubRouteShapeCostPlanar removes one routed wire at (x, y, z).
func (g *GridGraph) SubRouteShapeCostPlanar(x, y, z int) {
	g.sub(x, y, z, CostRouteShapePlanar, routeShapeStep)
}

// SubRouteShapeCostVia removes one routed via at (x, y, z).
func (g *GridGraph) SubRouteShapeCostVia(x, y, z int) { g.sub(x, y, z, CostRouteShapeVia, routeShapeStep) }

// ResetRouteShapeCostPlanar clears the planar route-shape counter.
func (g *GridGraph) ResetRouteShapeCostPlanar(x, y, z int) { g.set(x, y, z, CostRouteShapePlanar, 0) }

// ResetRouteShapeCostVia clears the via route-shape counter.
func (g *GridGraph) ResetRouteShapeCostVia(x, y, z int) { g.set(x, y, z, CostRouteShapeVia, 0) }

// AddMarkerCostPlanar penalizes wires through (x, y, z).
func (g *GridGraph) AddMarkerCostPlanar(x, y, z int) { g.add(x, y, z, CostMarkerPlanar, markerStep) }

// AddMarkerCostVia penalizes vias at (x, y, z).
func (g *GridGraph) AddMarkerCostVia(x, y, z int) { g.add(x, y, z, CostMarkerVia, markerStep) }

// AddMarkerCost penalizes both wires and vias at (x, y, z).
func (g *GridGraph) AddMarkerCost(x, y, z int) {
	g.AddMarkerCostPlanar(x, y, z)
	g.AddMarkerCostVia(x, y, z)
}

func (g *GridGraph) decay(x, y, z int, f CostField, d float32) bool {
	n := g.node(x, y, z)
	cur := int(float32(n.costs[f]) * d)
	if cur < 0 {
		cur = 0
	}
	n.costs[f] = addToCounter(0, uint32(cur))
	return n.costs[f] == 0
}

func (g *GridGraph) decayUnit(x, y, z int, f CostField) bool {
	n := g.node(x, y, z)
	if n.costs[f] > 0 {
		n.costs[f]--
	}
	return n.costs[f] == 0
}

// DecayMarkerCostPlanar scales the planar marker counter by d and reports
// whether it reached zero.
func (g *GridGraph) DecayMarkerCostPlanar(x, y, z int, d float32) bool {
	return g.decay(x, y, z, CostMarkerPlanar, d)
}

// DecayMarkerCostVia scales the via marker counter by d and reports whether
// it reached zero.
func (g *GridGraph) DecayMarkerCostVia(x, y, z int, d float32) bool {
	return g.decay(x, y, z, CostMarkerVia, d)
}

// DecayMarkerCost scales both marker counters and reports whether both
// reached zero.
func (g *GridGraph) DecayMarkerCost(x, y, z int, d float32) bool {
	planar := g.DecayMarkerCostPlanar(x, y, z, d)
	via := g.DecayMarkerCostVia(x, y, z, d)
	return planar && via
}

// DecayMarkerCostPlanarUnit decrements the planar marker counter by one.
func (g *GridGraph) DecayMarkerCostPlanarUnit(x, y, z int) bool {
	return g.decayUnit(x, y, z, CostMarkerPlanar)
}

// DecayMarkerCostViaUnit decrements the via marker counter by one.
func (g *GridGraph) DecayMarkerCostViaUnit(x, y, z int) bool { return g.decayUnit(x, y, z, CostMarkerVia) }

// AddFixedShapeCostPlanar records a fixed shape over (x, y, z) for wires in
// both planar directions.
func (g *GridGraph) AddFixedShapeCostPlanar(x, y, z int) {
	g.add(x, y, z, CostFixedShapePlanarHorz, fixedShapeStep)
	g.add(x, y, z, CostFixedShapePlanarVert, fixedShapeStep)
}

// SubFixedShapeCostPlanar removes a fixed shape recorded by
// AddFixedShapeCostPlanar.
func (g *GridGraph) SubFixedShapeCostPlanar(x, y, z int) {
	g.sub(x, y, z, CostFixedShapePlanarHorz, fixedShapeStep)
	g.sub(x, y, z, CostFixedShapePlanarVert, fixedShapeStep)
}

// SetFixedShapeCostPlanarHorz sets the horizontal fixed-shape counter.
func (g *GridGraph) SetFixedShapeCostPlanarHorz(x, y, z int, v uint32) {
	g.set(x, y, z, CostFixedShapePlanarHorz, v)
}

// SetFixedShapeCostPlanarVert sets the vertical fixed-shape counter.
func (g *GridGraph) SetFixedShapeCostPlanarVert(x, y, z int, v uint32) {
	g.set(x, y, z, CostFixedShapePlanarVert, v)
}

// AddFixedShapeCostVia records a fixed shape near the via site (x, y, z).
func (g *GridGraph) AddFixedShapeCostVia(x, y, z int) { g.add(x, y, z, CostFixedShapeVia, fixedShapeStep) }

// SubFixedShapeCostVia removes a fixed shape near the via site.
func (g *GridGraph) SubFixedShapeCostVia(x, y, z int) { g.sub(x, y, z, CostFixedShapeVia, fixedShapeStep) }

// SetFixedShapeCostVia sets the via fixed-shape counter.
func (g *GridGraph) SetFixedShapeCostVia(x, y, z int, v uint32) { g.set(x, y, z, CostFixedShapeVia, v) }

// Adjacent cost reads. Planar edges read the node they enter; vias read the
// lower node of the cut.

func (g *GridGraph) adjNode(x, y, z int, d model.Dir) *Node {
	if d.IsVia() {
		cx, cy, cz, _ := canonical(x, y, z, d)
		return g.node(cx, cy, cz)
	}
	nx, ny, nz := step(x, y, z, d)
	return g.node(nx, ny, nz)
}

// RouteShapeCostAdj returns the route-shape count seen by the edge.
func (g *GridGraph) RouteShapeCostAdj(x, y, z int, d model.Dir) uint32 {
	n := g.adjNode(x, y, z, d)
	if d.IsVia() {
		return uint32(n.costs[CostRouteShapeVia])
	}
	return uint32(n.costs[CostRouteShapePlanar])
}

// MarkerCostAdj returns the marker count seen by the edge.
func (g *GridGraph) MarkerCostAdj(x, y, z int, d model.Dir) uint32 {
	n := g.adjNode(x, y, z, d)
	if d.IsVia() {
		return uint32(n.costs[CostMarkerVia])
	}
	return uint32(n.costs[CostMarkerPlanar])
}

// FixedShapeCostAdj returns the fixed-shape count seen by the edge. A via
// whose lower node carries the override flag sees zero.
func (g *GridGraph) FixedShapeCostAdj(x, y, z int, d model.Dir) uint32 {
	n := g.adjNode(x, y, z, d)
	switch {
	case d.IsVia():
		if n.flags&flagOverrideCost != 0 {
			return 0
		}
		return uint32(n.costs[CostFixedShapeVia])
	case d.IsHorizontal():
		return uint32(n.costs[CostFixedShapePlanarHorz])
	default:
		return uint32(n.costs[CostFixedShapePlanarVert])
	}
}

// EdgeLength returns the physical length of the edge. Via edges report the
// difference of the z heights.
func (g *GridGraph) EdgeLength(x, y, z int, d model.Dir) model.Coord {
	cx, cy, cz, cd := canonical(x, y, z, d)
	switch cd {
	case model.DirEast:
		return g.coords.xs[cx+1] - g.coords.xs[cx]
	case model.DirNorth:
		return g.coords.ys[cy+1] - g.coords.ys[cy]
	default:
		return g.coords.zHeights[cz+1] - g.coords.zHeights[cz]
	}
}
