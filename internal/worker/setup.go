package worker

import (
	"context"

	"github.com/signalsfoundry/detailed-router/core"
	"github.com/signalsfoundry/detailed-router/internal/logging"
	"github.com/signalsfoundry/detailed-router/model"
)

// preroutedOwner marks grid resources held by wires the worker cannot rip up.
const preroutedOwner = -1

type netState struct {
	net *model.Net
	ndr *model.NonDefaultRule
	// pins holds the on-grid access points of each pin that has one.
	pins [][]core.GridPoint
	// tapers holds, per pin, the box in which NDR costing is off. Entries
	// are nil for default-rule nets.
	tapers []*core.Box
	guides []core.Box
	center model.Point

	// planarNodes and viaNodes are the grid resources the committed paths
	// hold. Via resources are keyed by the lower node of the cut.
	planarNodes map[core.GridPoint]struct{}
	viaNodes    map[core.GridPoint]struct{}
	paths       [][]core.GridPoint
	cost        core.Cost
	vias        int

	routed bool
	dirty  bool
}

func (w *Worker) buildNets(ctx context.Context) []*netState {
	if w.design == nil {
		return nil
	}
	c := w.graph.Coords()
	_, _, nz := w.graph.Dims()
	out := make([]*netState, 0, len(w.design.Nets))
	for i := range w.design.Nets {
		net := &w.design.Nets[i]
		n := &netState{
			net:         net,
			ndr:         w.tech.NDR(net.NDR),
			planarNodes: make(map[core.GridPoint]struct{}),
			viaNodes:    make(map[core.GridPoint]struct{}),
		}
		var bbox model.Rect
		for _, pin := range net.Pins {
			var aps []core.GridPoint
			var pts []model.Point
			for _, ap := range pin.AccessPoints {
				gp, ok := c.MazeIdx(ap.Point, ap.Layer)
				if !ok {
					w.logger(ctx).Debug(ctx, "access point off grid",
						logging.String("net", net.Name),
						logging.String("pin", pin.Name),
						logging.Int("layer", ap.Layer),
					)
					continue
				}
				aps = append(aps, gp)
				pts = append(pts, ap.Point)
			}
			if len(aps) == 0 {
				continue
			}
			pinBox := bounds(pts)
			if len(n.pins) == 0 {
				bbox = pinBox
			} else {
				bbox = bbox.Merge(pinBox)
			}
			n.pins = append(n.pins, aps)
			n.tapers = append(n.tapers, w.taperBox(n.ndr, pinBox, nz))
		}
		if len(n.pins) > 0 {
			n.center = bbox.Center()
		}
		for _, g := range w.design.GuidesFor(net.Name) {
			z := c.ZIdx(g.Layer)
			if z < 0 || !g.Rect.Intersects(w.cfg.ExtBox) {
				continue
			}
			b := c.IdxBox(g.Rect.Intersection(w.cfg.ExtBox), core.Enclose).WithLayers(z, z)
			if !b.Empty() {
				n.guides = append(n.guides, b)
			}
		}
		if len(n.pins) < 2 {
			w.logger(ctx).Debug(ctx, "net has fewer than two pins on grid", logging.String("net", net.Name))
		}
		out = append(out, n)
	}
	return out
}

// bounds returns the bounding box of a non-empty point list.
func bounds(pts []model.Point) model.Rect {
	r := model.Rect{XMin: pts[0].X, YMin: pts[0].Y, XMax: pts[0].X, YMax: pts[0].Y}
	for _, p := range pts[1:] {
		r = r.Merge(model.Rect{XMin: p.X, YMin: p.Y, XMax: p.X, YMax: p.Y})
	}
	return r
}

// taperBox returns the grid box around a pin inside which an NDR net uses
// default width and spacing.
func (w *Worker) taperBox(ndr *model.NonDefaultRule, pin model.Rect, nz int) *core.Box {
	if ndr == nil {
		return nil
	}
	r := pin.Bloat(ndr.TaperDistance).Intersection(w.cfg.ExtBox)
	if r.Empty() {
		return nil
	}
	b := w.graph.Coords().IdxBox(r, core.Enclose).WithLayers(0, nz-1)
	return &b
}

// applyObstructions blocks every edge fully covered by a fixed shape and
// charges fixed-shape cost on the grid points within spacing of it.
func (w *Worker) applyObstructions(obs []model.Obstruction) {
	g := w.graph
	c := g.Coords()
	nx, ny, nz := g.Dims()
	for _, o := range obs {
		z := c.ZIdx(o.Layer)
		if z < 0 {
			continue
		}
		l := c.Layer(z)
		halo := o.Rect.Bloat(l.MinSpacing + l.Width/2)
		if !halo.Intersects(w.cfg.ExtBox) {
			continue
		}

		if o.Rect.Intersects(w.cfg.ExtBox) {
			in := c.IdxBox(o.Rect, core.IsEnclosed)
			for x := in.Min.X; x <= in.Max.X && x < nx; x++ {
				for y := in.Min.Y; y <= in.Max.Y && y < ny; y++ {
					if !o.Rect.Contains(c.Point(x, y)) {
						continue
					}
					if x+1 < nx && o.Rect.Contains(c.Point(x+1, y)) {
						g.SetBlocked(x, y, z, model.DirEast)
					}
					if y+1 < ny && o.Rect.Contains(c.Point(x, y+1)) {
						g.SetBlocked(x, y, z, model.DirNorth)
					}
					if z+1 < nz {
						g.SetBlocked(x, y, z, model.DirUp)
					}
					if z > 0 {
						g.SetBlocked(x, y, z, model.DirDown)
					}
				}
			}
		}

		near := c.IdxBox(halo.Intersection(w.cfg.ExtBox), core.Enclose)
		for x := near.Min.X; x <= near.Max.X && x < nx; x++ {
			for y := near.Min.Y; y <= near.Max.Y && y < ny; y++ {
				g.AddFixedShapeCostPlanar(x, y, z)
				if z+1 < nz {
					g.AddFixedShapeCostVia(x, y, z)
				}
				if z > 0 {
					g.AddFixedShapeCostVia(x, y, z-1)
				}
			}
		}
	}
}

// applyPrerouted charges route-shape cost along wires owned elsewhere.
// Segments with an end off this worker's grid are skipped.
func (w *Worker) applyPrerouted(r NetRoute) {
	c := w.graph.Coords()
	for _, s := range r.Segments {
		a, okA := c.MazeIdx(s.From, s.FromLayer)
		b, okB := c.MazeIdx(s.To, s.ToLayer)
		if !okA || !okB {
			continue
		}
		path := walk(a, b)
		if path == nil {
			continue
		}
		w.occupy(preroutedOwner, w.fixed, path)
	}
}

// walk expands a straight segment into every grid point it crosses. It
// returns nil for a segment that moves along more than one axis.
func walk(a, b core.GridPoint) []core.GridPoint {
	axes := 0
	if a.X != b.X {
		axes++
	}
	if a.Y != b.Y {
		axes++
	}
	if a.Z != b.Z {
		axes++
	}
	if axes > 1 {
		return nil
	}
	out := []core.GridPoint{a}
	for p := a; p != b; {
		p.X += sign(b.X - p.X)
		p.Y += sign(b.Y - p.Y)
		p.Z += sign(b.Z - p.Z)
		out = append(out, p)
	}
	return out
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
