package core

import (
	"fmt"

	"github.com/signalsfoundry/detailed-router/model"
)

// SearchRequest describes one connection to route.
type SearchRequest struct {
	// Sources are the grid points already connected to the net.
	Sources []GridPoint
	// SourceTapers optionally maps a source to the region around it in which
	// non-default-rule costing is turned off.
	SourceTapers map[GridPoint]*Box
	// Destinations are the access points of the pin being connected.
	Destinations []GridPoint
	// DestBoxes bound the destinations for the heuristic. Boxes are clipped
	// to the grid. When none is left the bounding box of Destinations is
	// used.
	DestBoxes []Box
	// DestTaper is the region around the destination pin in which
	// non-default-rule costing is turned off. When nil the box set with
	// SetDstTaperBox applies.
	DestTaper *Box
	// Center breaks ties between equal-cost entries towards the net's centre.
	Center model.Point
	// NDR selects wide-wire costing. When nil the rule set with SetNDR, if
	// any, applies.
	NDR *model.NonDefaultRule
}

// SearchStats counts the work done by one search.
type SearchStats struct {
	Pushed       int
	Expanded     int
	Deferred     int
	GuideRelaxed bool
}

// Result is a routed connection.
type Result struct {
	// Path lists every grid point from the reached source to the reached
	// destination.
	Path []GridPoint
	// Costs holds the accumulated path cost at each point of Path.
	Costs []Cost
	Cost  Cost
	Vias  int
	Stats SearchStats
}

// Source returns the first point of the path.
func (r Result) Source() GridPoint { return r.Path[0] }

// Destination returns the last point of the path.
func (r Result) Destination() GridPoint { return r.Path[len(r.Path)-1] }

type searchState struct {
	req      *SearchRequest
	boxes    []Box
	best     map[int]Cost
	deferred []wavefrontEntry
	relaxed  bool
	stats    SearchStats
}

// Search runs the maze search for req and returns the cheapest path from any
// source to any destination. It returns ErrNoPath when the destinations are
// unreachable even after guide relaxation. The previous-direction state of
// the search stays readable through TracePath and PrevDir until the next
// search.
func (g *GridGraph) Search(req SearchRequest) (Result, error) {
	if !g.initialized {
		return Result{}, ErrNotInitialized
	}
	if len(req.Sources) == 0 || len(req.Destinations) == 0 {
		return Result{}, fmt.Errorf("search needs sources and destinations: %w", ErrNoPath)
	}
	for _, p := range append(append([]GridPoint(nil), req.Sources...), req.Destinations...) {
		if err := g.Checked().check(p.X, p.Y, p.Z); err != nil {
			return Result{}, fmt.Errorf("search endpoint: %w", err)
		}
	}

	g.inSearch = true
	savedNDR, savedTaper := g.ndr, g.dstTaper
	if req.NDR != nil {
		g.ndr = req.NDR
	}
	if req.DestTaper != nil {
		g.dstTaper = req.DestTaper
	}
	defer func() {
		g.ndr, g.dstTaper = savedNDR, savedTaper
		g.wavefront.reset()
		g.inSearch = false
	}()

	g.prevDirs.reset()
	g.wavefront.reset()
	for _, p := range req.Sources {
		g.SetSrc(p.X, p.Y, p.Z)
	}
	for _, p := range req.Destinations {
		g.SetDst(p.X, p.Y, p.Z)
	}
	defer func() {
		for _, p := range req.Sources {
			g.ResetSrc(p.X, p.Y, p.Z)
		}
		for _, p := range req.Destinations {
			g.ResetDst(p.X, p.Y, p.Z)
		}
	}()

	s := &searchState{
		req:     &req,
		boxes:   g.clampBoxes(req.DestBoxes),
		best:    make(map[int]Cost),
		relaxed: !g.followGuide,
	}
	if len(s.boxes) == 0 {
		s.boxes = []Box{boundingBox(req.Destinations)}
	}

	for _, p := range req.Sources {
		i := g.idx(p.X, p.Y, p.Z)
		if _, dup := s.best[i]; dup {
			continue
		}
		s.best[i] = 0
		e := wavefrontEntry{
			x: p.X, y: p.Y, z: p.Z,
			cost: g.estCost(p.X, p.Y, p.Z, s.boxes),
			dist: model.ManhattanDistance(g.coords.Point(p.X, p.Y), req.Center),
			// pin shapes satisfy min area on the source layer
			layerPathArea: g.coords.layers[p.Z].MinArea,
			taper:         req.SourceTapers[p],
		}
		g.wavefront.push(e)
		s.stats.Pushed++
	}

	for {
		if g.wavefront.Len() == 0 {
			if s.relaxed || len(s.deferred) == 0 {
				return Result{Stats: s.stats}, ErrNoPath
			}
			g.relaxGuide(s)
			continue
		}
		e := g.wavefront.pop()
		i := g.idx(e.x, e.y, e.z)
		if g.prevDirs.get(i) != 0 {
			continue
		}
		if b, ok := s.best[i]; ok && e.pathCost > b {
			continue
		}
		if e.history == 0 {
			g.prevDirs.set(i, dirRoot)
		} else {
			g.prevDirs.set(i, uint8(e.lastDir()))
		}
		s.stats.Expanded++
		if g.dsts.get(i) {
			return g.result(e, s), nil
		}
		g.expand(&e, s)
	}
}

// relaxGuide releases the deferred out-of-guide entries once the in-guide
// frontier is exhausted.
func (g *GridGraph) relaxGuide(s *searchState) {
	s.relaxed = true
	s.stats.GuideRelaxed = true
	for _, e := range s.deferred {
		i := g.idx(e.x, e.y, e.z)
		if g.prevDirs.get(i) != 0 {
			continue
		}
		if b, ok := s.best[i]; ok && e.pathCost >= b {
			continue
		}
		s.best[i] = e.pathCost
		g.wavefront.push(e)
		s.stats.Pushed++
	}
	s.deferred = nil
}

func (g *GridGraph) expand(e *wavefrontEntry, s *searchState) {
	for _, d := range model.Dirs {
		if !g.isExpandable(e, d) {
			continue
		}
		next := g.nextEntry(e, d, s)
		i := g.idx(next.x, next.y, next.z)
		if !s.relaxed && !g.guides.get(i) {
			s.deferred = append(s.deferred, next)
			s.stats.Deferred++
			continue
		}
		if b, ok := s.best[i]; ok && next.pathCost >= b {
			continue
		}
		s.best[i] = next.pathCost
		g.wavefront.push(next)
		s.stats.Pushed++
	}
}

func (g *GridGraph) isExpandable(e *wavefrontEntry, d model.Dir) bool {
	x, y, z := e.x, e.y, e.z
	if !g.HasEdge(x, y, z, d) || g.IsBlocked(x, y, z, d) {
		return false
	}
	if last := e.lastDir(); last != model.DirUnknown && d == last.Reverse() {
		return false
	}
	nx, ny, nz := step(x, y, z, d)
	ni := g.idx(nx, ny, nz)
	if g.prevDirs.get(ni) != 0 || g.srcs.get(ni) {
		return false
	}
	if d.IsVia() && g.tech != nil && g.tech.MaxStackedVias > 0 && e.stackedVias(d) >= g.tech.MaxStackedVias {
		return false
	}
	return true
}

func (g *GridGraph) nextEntry(e *wavefrontEntry, d model.Dir, s *searchState) wavefrontEntry {
	nx, ny, nz := step(e.x, e.y, e.z, d)
	pathCost := g.nextPathCost(e, d)
	next := wavefrontEntry{
		x: nx, y: ny, z: nz,
		pathCost:      pathCost,
		cost:          pathCost + g.estCost(nx, ny, nz, s.boxes),
		dist:          model.ManhattanDistance(g.coords.Point(nx, ny), s.req.Center),
		history:       e.pushDir(d),
		vias:          e.vias,
		layerPathArea: e.layerPathArea,
	}
	if d.IsVia() {
		next.vias++
		next.layerPathArea = g.landingArea(e.z, d)
	} else {
		el := g.EdgeLength(e.x, e.y, e.z, d)
		next.layerPathArea += int64(el) * int64(g.coords.layers[e.z].Width)
		if d == e.lastDir() {
			next.forwardLength = e.forwardLength + el
		} else {
			next.forwardLength = el
		}
	}
	if e.taper != nil && e.taper.Contains(GridPoint{nx, ny, nz}) {
		next.taper = e.taper
	}
	return next
}

func (g *GridGraph) result(dst wavefrontEntry, s *searchState) Result {
	path := g.TracePath(GridPoint{dst.x, dst.y, dst.z})
	costs := make([]Cost, len(path))
	vias := 0
	for k, p := range path {
		costs[k] = s.best[g.idx(p.X, p.Y, p.Z)]
		if k > 0 && p.Z != path[k-1].Z {
			vias++
		}
	}
	return Result{Path: path, Costs: costs, Cost: dst.pathCost, Vias: vias, Stats: s.stats}
}

// clampBoxes clips destination boxes to the grid and drops the ones left
// empty.
func (g *GridGraph) clampBoxes(boxes []Box) []Box {
	if len(boxes) == 0 {
		return nil
	}
	nx, ny, nz := g.Dims()
	out := make([]Box, 0, len(boxes))
	for _, b := range boxes {
		b.Min.X, b.Min.Y, b.Min.Z = max(b.Min.X, 0), max(b.Min.Y, 0), max(b.Min.Z, 0)
		b.Max.X, b.Max.Y, b.Max.Z = min(b.Max.X, nx-1), min(b.Max.Y, ny-1), min(b.Max.Z, nz-1)
		if !b.Empty() {
			out = append(out, b)
		}
	}
	return out
}

func boundingBox(pts []GridPoint) Box {
	b := Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min.X, b.Min.Y, b.Min.Z = min(b.Min.X, p.X), min(b.Min.Y, p.Y), min(b.Min.Z, p.Z)
		b.Max.X, b.Max.Y, b.Max.Z = max(b.Max.X, p.X), max(b.Max.Y, p.Y), max(b.Max.Z, p.Z)
	}
	return b
}
