package core

import (
	"fmt"
	"sort"

	"github.com/signalsfoundry/detailed-router/model"
)

// GridPoint is an index triple into the grid.
type GridPoint struct {
	X, Y, Z int
}

func (p GridPoint) String() string { return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z) }

// Box is an inclusive index box.
type Box struct {
	Min, Max GridPoint
}

// Contains reports whether p lies inside b, bounds included.
func (b Box) Contains(p GridPoint) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Empty reports whether b contains no point.
func (b Box) Empty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// WithLayers returns b spanning layer indices zlo through zhi.
func (b Box) WithLayers(zlo, zhi int) Box {
	b.Min.Z, b.Max.Z = zlo, zhi
	return b
}

// EnclosurePolicy controls how IdxBox rounds a rectangle onto grid lines.
type EnclosurePolicy int

const (
	// Uncertain takes the grid lines that fall inside the rectangle with no
	// further adjustment.
	Uncertain EnclosurePolicy = iota
	// Enclose widens only the low side one step when it falls off a grid
	// line. The high side is rounded down, so the box may stop short of the
	// rectangle's upper edge.
	Enclose
	// IsEnclosed narrows the high side so the box stays inside the rectangle.
	IsEnclosed
)

// CoordinateIndex holds the sorted grid lines of each axis.
type CoordinateIndex struct {
	xs       []model.Coord
	ys       []model.Coord
	layers   []model.Layer
	zHeights []model.Coord
}

func newCoordinateIndex(xs, ys []model.Coord, layers []model.Layer, viaCost model.Coord) CoordinateIndex {
	c := CoordinateIndex{xs: xs, ys: ys, layers: layers, zHeights: make([]model.Coord, len(layers))}
	var h model.Coord
	for i, l := range layers {
		h += l.Pitch * viaCost
		c.zHeights[i] = h
	}
	return c
}

// Dims returns the number of grid lines on each axis.
func (c *CoordinateIndex) Dims() (int, int, int) { return len(c.xs), len(c.ys), len(c.layers) }

// XCoord returns the database coordinate of x index i.
func (c *CoordinateIndex) XCoord(i int) model.Coord { return c.xs[i] }

// YCoord returns the database coordinate of y index i.
func (c *CoordinateIndex) YCoord(i int) model.Coord { return c.ys[i] }

// Point returns the planar location of (x, y).
func (c *CoordinateIndex) Point(x, y int) model.Point { return model.Point{X: c.xs[x], Y: c.ys[y]} }

// LayerNum returns the routing layer number at z index i.
func (c *CoordinateIndex) LayerNum(i int) int { return c.layers[i].Num }

// Layer returns the routing layer at z index i.
func (c *CoordinateIndex) Layer(i int) model.Layer { return c.layers[i] }

// ZHeight returns the accumulated via height of z index i.
func (c *CoordinateIndex) ZHeight(i int) model.Coord { return c.zHeights[i] }

// XCoords returns a copy of the x grid lines.
func (c *CoordinateIndex) XCoords() []model.Coord { return append([]model.Coord(nil), c.xs...) }

// YCoords returns a copy of the y grid lines.
func (c *CoordinateIndex) YCoords() []model.Coord { return append([]model.Coord(nil), c.ys...) }

func search(axis []model.Coord, v model.Coord) (int, bool) {
	i := sort.Search(len(axis), func(i int) bool { return axis[i] >= v })
	return i, i < len(axis) && axis[i] == v
}

// HasX reports whether v is an x grid line.
func (c *CoordinateIndex) HasX(v model.Coord) bool {
	_, ok := search(c.xs, v)
	return ok
}

// HasY reports whether v is a y grid line.
func (c *CoordinateIndex) HasY(v model.Coord) bool {
	_, ok := search(c.ys, v)
	return ok
}

// HasZ reports whether the layer number is part of the grid.
func (c *CoordinateIndex) HasZ(layer int) bool { return c.ZIdx(layer) >= 0 }

// HasPoint reports whether p lies on a grid point of the layer.
func (c *CoordinateIndex) HasPoint(p model.Point, layer int) bool {
	return c.HasX(p.X) && c.HasY(p.Y) && c.HasZ(layer)
}

// XIdx returns the index of the first x grid line at or above v.
func (c *CoordinateIndex) XIdx(v model.Coord) int {
	i, _ := search(c.xs, v)
	return i
}

// YIdx returns the index of the first y grid line at or above v.
func (c *CoordinateIndex) YIdx(v model.Coord) int {
	i, _ := search(c.ys, v)
	return i
}

// ZIdx returns the z index of the layer, or -1.
func (c *CoordinateIndex) ZIdx(layer int) int {
	i := sort.Search(len(c.layers), func(i int) bool { return c.layers[i].Num >= layer })
	if i < len(c.layers) && c.layers[i].Num == layer {
		return i
	}
	return -1
}

// MazeIdx maps a point on a layer to its grid point. ok is false when the
// point is not on the grid.
func (c *CoordinateIndex) MazeIdx(p model.Point, layer int) (GridPoint, bool) {
	x, okx := search(c.xs, p.X)
	y, oky := search(c.ys, p.Y)
	z := c.ZIdx(layer)
	return GridPoint{X: x, Y: y, Z: z}, okx && oky && z >= 0
}

// LowerBoundIndex returns the index of the first coordinate at or above v.
// The result is len(axis) when every coordinate is below v.
func LowerBoundIndex(axis []model.Coord, v model.Coord) int {
	i, _ := search(axis, v)
	return i
}

// UpperBoundIndex returns the index of the last coordinate at or below v.
// The result is -1 when every coordinate is above v.
func UpperBoundIndex(axis []model.Coord, v model.Coord) int {
	return sort.Search(len(axis), func(i int) bool { return axis[i] > v }) - 1
}

// IdxBox rounds a rectangle onto grid indices. The returned box spans layer
// index 0 only; use WithLayers to extend it.
func (c *CoordinateIndex) IdxBox(r model.Rect, policy EnclosurePolicy) Box {
	xlo, xhi := idxRange(c.xs, r.XMin, r.XMax, policy)
	ylo, yhi := idxRange(c.ys, r.YMin, r.YMax, policy)
	return Box{Min: GridPoint{X: xlo, Y: ylo}, Max: GridPoint{X: xhi, Y: yhi}}
}

func idxRange(axis []model.Coord, lo, hi model.Coord, policy EnclosurePolicy) (int, int) {
	if len(axis) == 0 {
		return 0, -1
	}
	l := LowerBoundIndex(axis, lo)
	if policy == Enclose {
		if l == len(axis) {
			l = len(axis) - 1
		} else if axis[l] > lo {
			l = max(0, l-1)
		}
	}
	h := max(0, UpperBoundIndex(axis, hi))
	if policy == IsEnclosed && axis[h] > hi {
		h = max(0, h-1)
	}
	return l, h
}
