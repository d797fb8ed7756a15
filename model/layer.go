package model

import "sort"

// LayerDir is the preferred wiring direction of a routing layer.
type LayerDir int

const (
	LayerDirNone LayerDir = iota
	LayerDirHorizontal
	LayerDirVertical
)

func (d LayerDir) String() string {
	switch d {
	case LayerDirHorizontal:
		return "horizontal"
	case LayerDirVertical:
		return "vertical"
	default:
		return "none"
	}
}

// Layer describes one routing layer.
type Layer struct {
	Num        int
	Name       string
	Dir        LayerDir
	Width      Coord
	Pitch      Coord
	MinSpacing Coord
	// MinArea is the minimum metal area of a single-layer segment run, in
	// square database units. Zero disables the check.
	MinArea int64
}

// TrackAxis names the axis along which a track pattern steps.
type TrackAxis int

const (
	// TrackAxisX patterns place vertical track lines at x = Start + k*Step.
	TrackAxisX TrackAxis = iota
	// TrackAxisY patterns place horizontal track lines at y = Start + k*Step.
	TrackAxisY
)

// TrackPattern is an evenly spaced set of track lines on a layer.
type TrackPattern struct {
	Layer int
	Axis  TrackAxis
	Start Coord
	Count int
	Step  Coord
}

// Coords returns the track coordinates that fall inside [lo, hi].
func (tp TrackPattern) Coords(lo, hi Coord) []Coord {
	if tp.Count <= 0 || tp.Step <= 0 || hi < lo {
		return nil
	}
	first := 0
	if lo > tp.Start {
		first = int((lo - tp.Start + tp.Step - 1) / tp.Step)
	}
	out := make([]Coord, 0)
	for k := first; k < tp.Count; k++ {
		c := tp.Start + Coord(k)*tp.Step
		if c > hi {
			break
		}
		out = append(out, c)
	}
	return out
}

// ViaEnclosure holds the half-via enclosure areas of the cut between a layer
// and the next routing layer above it.
type ViaEnclosure struct {
	// Lower is the metal area the via occupies on the lower layer.
	Lower int64
	// Upper is the metal area the via occupies on the upper layer.
	Upper int64
}

// Technology is an immutable snapshot of the process data a router needs.
// Construct it once and share it read-only between workers.
type Technology struct {
	Layers        []Layer
	Tracks        []TrackPattern
	ViaEnclosures map[int]ViaEnclosure // keyed by the lower layer number
	NDRs          map[string]*NonDefaultRule
	// MaxStackedVias bounds consecutive same-direction vias in a path. Zero
	// means unlimited.
	MaxStackedVias int

	byNum map[int]int
}

// NewTechnology sorts layers by number and indexes them.
func NewTechnology(layers []Layer, tracks []TrackPattern) *Technology {
	sorted := append([]Layer(nil), layers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Num < sorted[j].Num })
	t := &Technology{
		Layers:        sorted,
		Tracks:        append([]TrackPattern(nil), tracks...),
		ViaEnclosures: make(map[int]ViaEnclosure),
		NDRs:          make(map[string]*NonDefaultRule),
	}
	t.reindex()
	return t
}

func (t *Technology) reindex() {
	t.byNum = make(map[int]int, len(t.Layers))
	for i, l := range t.Layers {
		t.byNum[l.Num] = i
	}
}

// Layer returns the layer with the given number.
func (t *Technology) Layer(num int) (Layer, bool) {
	if t == nil {
		return Layer{}, false
	}
	if t.byNum == nil {
		for _, l := range t.Layers {
			if l.Num == num {
				return l, true
			}
		}
		return Layer{}, false
	}
	i, ok := t.byNum[num]
	if !ok {
		return Layer{}, false
	}
	return t.Layers[i], true
}

// ViaEnclosure returns the half-via enclosure areas above the given layer.
func (t *Technology) ViaEnclosure(lowerLayer int) ViaEnclosure {
	if t == nil {
		return ViaEnclosure{}
	}
	return t.ViaEnclosures[lowerLayer]
}

// NDR returns the non-default rule with the given name, or nil.
func (t *Technology) NDR(name string) *NonDefaultRule {
	if t == nil || name == "" {
		return nil
	}
	return t.NDRs[name]
}
