package core

import "github.com/signalsfoundry/detailed-router/model"

func abs(c model.Coord) model.Coord {
	if c < 0 {
		return -c
	}
	return c
}

// Costs returns the default-rule cost of the edge leaving (x, y, z) in d:
// its length scaled by the grid, route-shape, marker and fixed-shape terms,
// plus the special-via surcharge.
func (g *GridGraph) Costs(x, y, z int, d model.Dir) Cost {
	el := Cost(g.EdgeLength(x, y, z, d))
	c := el
	if g.HasGridCost(x, y, z, d) {
		c += g.cfg.GridCost * el
	}
	c += Cost(g.RouteShapeCostAdj(x, y, z, d)) * g.cfg.DRC * el
	c += Cost(g.MarkerCostAdj(x, y, z, d)) * g.cfg.Marker * el
	c += Cost(g.FixedShapeCostAdj(x, y, z, d)) * g.cfg.FixedShape * el
	if d.IsVia() {
		cx, cy, cz, _ := canonical(x, y, z, d)
		if g.IsSpecialVia(cx, cy, cz) {
			c += g.cfg.SpecialViaCost
		}
	}
	return c
}

// UseNDRCosts reports whether rule-specific costing applies at p for an
// entry that left a source taper region srcTaper (nil when none).
func (g *GridGraph) UseNDRCosts(p GridPoint, srcTaper *Box) bool {
	if g.ndr == nil {
		return false
	}
	if srcTaper != nil && srcTaper.Contains(p) {
		return false
	}
	if g.dstTaper != nil && g.dstTaper.Contains(p) {
		return false
	}
	return true
}

func (g *GridGraph) ndrRule(z int) (model.NDRLayerRule, bool) {
	r, ok := g.ndr.Rule(g.coords.layers[z].Num)
	if !ok {
		return r, false
	}
	l := g.coords.layers[z]
	r.Width = max(r.Width, l.Width)
	r.Spacing = max(r.Spacing, l.MinSpacing)
	return r, true
}

func (g *GridGraph) sideCost(n *Node, d model.Dir) Cost {
	fixed := n.costs[CostFixedShapePlanarVert]
	if d.IsHorizontal() {
		fixed = n.costs[CostFixedShapePlanarHorz]
	}
	return Cost(n.costs[CostRouteShapePlanar])*g.cfg.DRC +
		Cost(n.costs[CostMarkerPlanar])*g.cfg.Marker +
		Cost(fixed)*g.cfg.FixedShape
}

// CostsNDR returns the cost of a planar edge for a wide wire. The wire pays
// for every parallel track it covers and for the congestion of every track
// within its width plus spacing. prev is the direction the wire arrived from
// and adds a corner surcharge on a turn. Vias are delegated to ViaCostsNDR.
func (g *GridGraph) CostsNDR(x, y, z int, d, prev model.Dir) Cost {
	if d.IsVia() {
		return g.ViaCostsNDR(x, y, z, d)
	}
	rule, ok := g.ndrRule(z)
	if !ok {
		return g.Costs(x, y, z, d)
	}
	el := Cost(g.EdgeLength(x, y, z, d))
	nx, ny, nz := step(x, y, z, d)
	halfWidth := rule.Width / 2
	span := halfWidth + rule.Spacing

	lateral, centre := g.coords.ys, g.coords.ys[ny]
	if d.IsVertical() {
		lateral, centre = g.coords.xs, g.coords.xs[nx]
	}
	lo := LowerBoundIndex(lateral, centre-span)
	hi := UpperBoundIndex(lateral, centre+span)

	var c Cost
	wires := 0
	for i := lo; i <= hi; i++ {
		if abs(lateral[i]-centre) <= halfWidth {
			wires++
		}
		var n *Node
		if d.IsHorizontal() {
			n = g.node(nx, i, nz)
		} else {
			n = g.node(i, ny, nz)
		}
		c += g.sideCost(n, d) * el
	}
	c += el * Cost(max(wires, 1))
	if g.HasGridCost(x, y, z, d) {
		c += g.cfg.GridCost * el
	}
	if prev.IsPlanar() && prev != d {
		c += Cost(rule.Width)
	}
	return c
}

// ViaCostsNDR returns the cost of a via for a wide wire: the default via
// cost, the enclosure area relative to the rule width on both layers and the
// congestion of via sites within the rule spacing. Inside the destination
// taper region the default cost applies.
func (g *GridGraph) ViaCostsNDR(x, y, z int, d model.Dir) Cost {
	c := g.Costs(x, y, z, d)
	nx, ny, nz := step(x, y, z, d)
	if g.dstTaper != nil && g.dstTaper.Contains(GridPoint{nx, ny, nz}) {
		return c
	}
	cx, cy, cz, _ := canonical(x, y, z, d)
	lower, lok := g.ndrRule(cz)
	upper, uok := g.ndrRule(cz + 1)
	if !lok && !uok {
		return c
	}
	enc := g.halfViaEnc[cz]
	var span model.Coord
	if lok {
		c += Cost(enc.Lower) / Cost(max(lower.Width, 1))
		span = max(span, lower.Width/2+lower.Spacing)
	}
	if uok {
		c += Cost(enc.Upper) / Cost(max(upper.Width, 1))
		span = max(span, upper.Width/2+upper.Spacing)
	}
	el := Cost(g.EdgeLength(x, y, z, d))
	xs, ys := g.coords.xs, g.coords.ys
	xlo, xhi := LowerBoundIndex(xs, xs[cx]-span), UpperBoundIndex(xs, xs[cx]+span)
	ylo, yhi := LowerBoundIndex(ys, ys[cy]-span), UpperBoundIndex(ys, ys[cy]+span)
	for i := xlo; i <= xhi; i++ {
		for j := ylo; j <= yhi; j++ {
			if i == cx && j == cy {
				continue
			}
			c += Cost(g.node(i, j, cz).costs[CostRouteShapeVia]) * g.cfg.DRC * el
		}
	}
	return c
}

// halfViaArea returns the enclosure area, on layer z, of the via leaving z
// in direction d.
func (g *GridGraph) halfViaArea(z int, d model.Dir) int64 {
	if d == model.DirUp {
		return g.halfViaEnc[z].Lower
	}
	return g.halfViaEnc[z-1].Upper
}

// landingArea returns the enclosure area on the layer a via in direction d
// from z arrives at.
func (g *GridGraph) landingArea(z int, d model.Dir) int64 {
	if d == model.DirUp {
		return g.halfViaEnc[z].Upper
	}
	return g.halfViaEnc[z-1].Lower
}

// nextPathCost returns the path cost after moving from e in direction d.
func (g *GridGraph) nextPathCost(e *wavefrontEntry, d model.Dir) Cost {
	x, y, z := e.x, e.y, e.z
	c := e.pathCost
	last := e.lastDir()
	if d.IsPlanar() && last.IsPlanar() && last != d {
		c += g.cfg.BendCost
	}
	if g.UseNDRCosts(GridPoint{x, y, z}, e.taper) {
		c += g.CostsNDR(x, y, z, d, last)
	} else {
		c += g.Costs(x, y, z, d)
	}
	if d.IsVia() {
		minArea := g.coords.layers[z].MinArea
		if minArea > 0 && e.layerPathArea+g.halfViaArea(z, d) < minArea {
			c += g.cfg.Marker * Cost(g.EdgeLength(x, y, z, d))
		}
	}
	return c
}

// estCost is the admissible lower bound from (x, y, z) to the nearest
// destination box: planar Manhattan distance plus the via height difference.
func (g *GridGraph) estCost(x, y, z int, boxes []Box) Cost {
	xs, ys, zh := g.coords.xs, g.coords.ys, g.coords.zHeights
	best := Cost(-1)
	for _, b := range boxes {
		dx := max(xs[b.Min.X]-xs[x], xs[x]-xs[b.Max.X], 0)
		dy := max(ys[b.Min.Y]-ys[y], ys[y]-ys[b.Max.Y], 0)
		dz := max(zh[b.Min.Z]-zh[z], zh[z]-zh[b.Max.Z], 0)
		if c := Cost(dx + dy + dz); best < 0 || c < best {
			best = c
		}
	}
	return max(best, 0)
}
