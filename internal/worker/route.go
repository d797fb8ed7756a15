package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/detailed-router/core"
	"github.com/signalsfoundry/detailed-router/internal/logging"
	"github.com/signalsfoundry/detailed-router/internal/observability"
	"github.com/signalsfoundry/detailed-router/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// routeNet connects the pins of net i one at a time, each search starting
// from everything already connected. On failure the partial route is ripped
// up again.
func (w *Worker) routeNet(ctx context.Context, i int, followGuide bool) error {
	n := w.nets[i]
	if len(n.pins) < 2 {
		n.routed = true
		return nil
	}
	ctx, span := w.tracer.Start(ctx, "worker/net", trace.WithAttributes(
		attribute.String("net", n.net.Name),
		attribute.Int("pins", len(n.pins)),
	))
	defer span.End()

	g := w.graph
	g.ResetAllGuides()
	for _, b := range n.guides {
		g.SetGuide(b.Min.X, b.Min.Y, b.Max.X, b.Max.Y, b.Min.Z)
	}
	g.SetFollowGuide(followGuide && len(n.guides) > 0)

	connected := make(map[core.GridPoint]struct{})
	var component []core.GridPoint
	tapers := make(map[core.GridPoint]*core.Box)
	join := func(pts []core.GridPoint, taper *core.Box) {
		for _, p := range pts {
			if _, ok := connected[p]; ok {
				continue
			}
			connected[p] = struct{}{}
			component = append(component, p)
			if taper != nil {
				tapers[p] = taper
			}
		}
	}
	join(n.pins[0], n.tapers[0])

	for k := 1; k < len(n.pins); k++ {
		if err := ctx.Err(); err != nil {
			w.ripup(i)
			return err
		}
		req := core.SearchRequest{
			Sources:      component,
			SourceTapers: tapers,
			Destinations: n.pins[k],
			DestTaper:    n.tapers[k],
			Center:       n.center,
			NDR:          n.ndr,
		}
		start := time.Now()
		res, err := g.Search(req)
		w.metrics.ObserveSearch(searchOutcome(err), time.Since(start), res.Stats.Expanded)
		if err != nil {
			span.RecordError(err)
			w.logger(ctx).Warn(ctx, "search failed",
				logging.String("net", n.net.Name),
				logging.Int("pin", k),
				logging.Int("expanded", res.Stats.Expanded),
				logging.Err(err),
			)
			w.ripup(i)
			return fmt.Errorf("net %s pin %d: %w", n.net.Name, k, err)
		}

		planar, vias := w.occupy(i, n, res.Path)
		w.metrics.AddCommittedEdges(planar, vias)
		n.paths = append(n.paths, res.Path)
		n.cost += res.Cost
		n.vias += res.Vias
		join(res.Path, nil)
		join(n.pins[k], n.tapers[k])
	}

	n.routed = true
	span.SetAttributes(attribute.Int64("cost", int64(n.cost)), attribute.Int("vias", n.vias))
	return nil
}

func searchOutcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeRouted
	case errors.Is(err, core.ErrNoPath):
		return observability.OutcomeNoPath
	default:
		return observability.OutcomeError
	}
}

// occupy commits path to the grid on behalf of owner and returns the number
// of planar and via edges it contains. Both ends of a via also hold their
// planar resource. Resources n already holds are not charged twice.
func (w *Worker) occupy(owner int, n *netState, path []core.GridPoint) (planar, vias int) {
	for i, d := range core.PathDirs(path) {
		a, b := path[i], path[i+1]
		if d.IsVia() {
			vias++
			lo := a
			if d == model.DirDown {
				lo = b
			}
			w.holdVia(owner, n, lo)
		} else {
			planar++
		}
		w.holdPlanar(owner, n, a)
		w.holdPlanar(owner, n, b)
	}
	return planar, vias
}

func (w *Worker) holdPlanar(owner int, n *netState, p core.GridPoint) {
	if _, held := n.planarNodes[p]; held {
		return
	}
	n.planarNodes[p] = struct{}{}
	w.graph.AddRouteShapeCostPlanar(p.X, p.Y, p.Z)
	w.planarUse[p] = append(w.planarUse[p], owner)
}

func (w *Worker) holdVia(owner int, n *netState, lo core.GridPoint) {
	if _, held := n.viaNodes[lo]; held {
		return
	}
	n.viaNodes[lo] = struct{}{}
	w.graph.AddRouteShapeCostVia(lo.X, lo.Y, lo.Z)
	w.viaUse[lo] = append(w.viaUse[lo], owner)
}

// ripup removes the committed route of net i from the grid.
func (w *Worker) ripup(i int) {
	n := w.nets[i]
	for p := range n.planarNodes {
		w.graph.SubRouteShapeCostPlanar(p.X, p.Y, p.Z)
		release(w.planarUse, p, i)
	}
	for p := range n.viaNodes {
		w.graph.SubRouteShapeCostVia(p.X, p.Y, p.Z)
		release(w.viaUse, p, i)
	}
	clear(n.planarNodes)
	clear(n.viaNodes)
	n.paths = nil
	n.cost = 0
	n.vias = 0
	n.routed = false
	n.dirty = false
}

func release(use map[core.GridPoint][]int, p core.GridPoint, owner int) {
	owners := use[p]
	for j, o := range owners {
		if o == owner {
			owners = append(owners[:j], owners[j+1:]...)
			break
		}
	}
	if len(owners) == 0 {
		delete(use, p)
		return
	}
	use[p] = owners
}

// markConflicts adds marker cost on every grid resource held by more than one
// owner, flags the movable owners for rip-up and returns the number of such
// resources.
func (w *Worker) markConflicts() int {
	count := 0
	for p, owners := range w.planarUse {
		if len(owners) < 2 {
			continue
		}
		count++
		w.graph.AddMarkerCostPlanar(p.X, p.Y, p.Z)
		w.flagDirty(owners)
	}
	for p, owners := range w.viaUse {
		if len(owners) < 2 {
			continue
		}
		count++
		w.graph.AddMarkerCostVia(p.X, p.Y, p.Z)
		w.flagDirty(owners)
	}
	return count
}

func (w *Worker) flagDirty(owners []int) {
	for _, o := range owners {
		if o != preroutedOwner {
			w.nets[o].dirty = true
		}
	}
}

func (w *Worker) decayMarkers(d float32) {
	nx, ny, nz := w.graph.Dims()
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				w.graph.DecayMarkerCost(x, y, z, d)
			}
		}
	}
}
