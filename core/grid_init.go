package core

import (
	"fmt"
	"sort"

	"github.com/signalsfoundry/detailed-router/model"
)

// TrackMaps records, for each track coordinate, the layers that own a track
// line there. X holds vertical lines keyed by x, Y horizontal lines keyed by y.
type TrackMaps struct {
	X map[model.Coord]map[int]struct{}
	Y map[model.Coord]map[int]struct{}
}

// NewTrackMaps collects the track lines of every pattern that fall inside box.
func NewTrackMaps(tech *model.Technology, box model.Rect) TrackMaps {
	tm := TrackMaps{
		X: make(map[model.Coord]map[int]struct{}),
		Y: make(map[model.Coord]map[int]struct{}),
	}
	if tech == nil {
		return tm
	}
	for _, tp := range tech.Tracks {
		if tp.Axis == model.TrackAxisX {
			for _, c := range tp.Coords(box.XMin, box.XMax) {
				tm.add(tm.X, c, tp.Layer)
			}
		} else {
			for _, c := range tp.Coords(box.YMin, box.YMax) {
				tm.add(tm.Y, c, tp.Layer)
			}
		}
	}
	return tm
}

func (tm TrackMaps) add(m map[model.Coord]map[int]struct{}, c model.Coord, layer int) {
	set, ok := m[c]
	if !ok {
		set = make(map[int]struct{})
		m[c] = set
	}
	set[layer] = struct{}{}
}

// HasX reports whether the layer owns a vertical track at x.
func (tm TrackMaps) HasX(x model.Coord, layer int) bool {
	_, ok := tm.X[x][layer]
	return ok
}

// HasY reports whether the layer owns a horizontal track at y.
func (tm TrackMaps) HasY(y model.Coord, layer int) bool {
	_, ok := tm.Y[y][layer]
	return ok
}

// Layers returns the sorted layer numbers that own at least one track.
func (tm TrackMaps) Layers() []int {
	seen := make(map[int]struct{})
	for _, m := range []map[model.Coord]map[int]struct{}{tm.X, tm.Y} {
		for _, set := range m {
			for l := range set {
				seen[l] = struct{}{}
			}
		}
	}
	out := make([]int, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

func sortedCoords(m map[model.Coord]map[int]struct{}, lo, hi model.Coord) []model.Coord {
	out := make([]model.Coord, 0, len(m))
	for c := range m {
		if c >= lo && c <= hi {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InitParams describes the region a grid graph covers.
type InitParams struct {
	// DieBox bounds via placement. A zero rectangle disables the check.
	DieBox model.Rect
	// RouteBox is the region the worker owns.
	RouteBox model.Rect
	// ExtBox is RouteBox plus the margin the worker may route through.
	ExtBox      model.Rect
	Tracks      TrackMaps
	FollowGuide bool
}

// Init builds the coordinate index, allocates node storage and creates the
// edges implied by the track maps. Any previous contents are discarded.
func (g *GridGraph) Init(p InitParams) error {
	if g.inSearch {
		return ErrSearchInFlight
	}
	layerNums := p.Tracks.Layers()
	layers := make([]model.Layer, 0, len(layerNums))
	for _, num := range layerNums {
		l, ok := g.tech.Layer(num)
		if !ok {
			return &ConfigurationError{Layer: num, Reason: "tracks reference a layer missing from the technology"}
		}
		if l.Dir == model.LayerDirNone {
			return &ConfigurationError{Layer: num, Reason: "layer has tracks but no preferred routing direction"}
		}
		layers = append(layers, l)
	}
	xs := sortedCoords(p.Tracks.X, p.ExtBox.XMin, p.ExtBox.XMax)
	ys := sortedCoords(p.Tracks.Y, p.ExtBox.YMin, p.ExtBox.YMax)
	if len(xs) == 0 || len(ys) == 0 || len(layers) == 0 {
		return &ConfigurationError{Layer: -1, Reason: fmt.Sprintf("no tracks inside %v", p.ExtBox)}
	}

	g.dieBox, g.routeBox, g.extBox = p.DieBox, p.RouteBox, p.ExtBox
	g.followGuide = p.FollowGuide
	g.coords = newCoordinateIndex(xs, ys, layers, g.cfg.ViaCost)

	n := len(xs) * len(ys) * len(layers)
	g.nodes = make([]Node, n)
	g.prevDirs = newDirArray(n)
	g.srcs = newBitset(n)
	g.dsts = newBitset(n)
	g.guides = newBitset(n)
	g.halfViaEnc = make([]model.ViaEnclosure, len(layers))
	for z := 0; z+1 < len(layers); z++ {
		g.halfViaEnc[z] = g.tech.ViaEnclosure(layers[z].Num)
	}
	g.wavefront.reset()
	g.ndr, g.dstTaper = nil, nil

	g.initEdges(p.Tracks)
	g.initialized = true
	return nil
}

func (g *GridGraph) onPrefTrack(tm TrackMaps, x, y model.Coord, z int) bool {
	l := g.coords.layers[z]
	if l.Dir == model.LayerDirHorizontal {
		return tm.HasY(y, l.Num)
	}
	return tm.HasX(x, l.Num)
}

func (g *GridGraph) initEdges(tm TrackMaps) {
	xs, ys := g.coords.xs, g.coords.ys
	nz := len(g.coords.layers)
	for z := 0; z < nz; z++ {
		num := g.coords.layers[z].Num
		for yi, y := range ys {
			onY := tm.HasY(y, num)
			for xi, x := range xs {
				here := model.Point{X: x, Y: y}
				n := g.node(xi, yi, z)
				if onY && xi+1 < len(xs) {
					n.setFlag(edgeShift, model.DirEast, true)
					if !g.routeBox.Contains(here) || !g.routeBox.Contains(model.Point{X: xs[xi+1], Y: y}) {
						n.setFlag(gridCostShift, model.DirEast, true)
					}
				}
				if tm.HasX(x, num) && yi+1 < len(ys) {
					n.setFlag(edgeShift, model.DirNorth, true)
					if !g.routeBox.Contains(here) || !g.routeBox.Contains(model.Point{X: x, Y: ys[yi+1]}) {
						n.setFlag(gridCostShift, model.DirNorth, true)
					}
				}
				if z+1 < nz && g.onPrefTrack(tm, x, y, z) && g.onPrefTrack(tm, x, y, z+1) && g.viaFitsDie(here, z) {
					n.setFlag(edgeShift, model.DirUp, true)
					if !g.routeBox.Contains(here) {
						n.setFlag(gridCostShift, model.DirUp, true)
					}
				}
			}
		}
	}
}

// viaFitsDie reports whether a via from z to z+1 centred on p stays inside
// the die.
func (g *GridGraph) viaFitsDie(p model.Point, z int) bool {
	if g.dieBox == (model.Rect{}) {
		return true
	}
	half := max(g.coords.layers[z].Width, g.coords.layers[z+1].Width) / 2
	return g.dieBox.ContainsRect(model.NewRect(p.X-half, p.Y-half, p.X+half, p.Y+half))
}
