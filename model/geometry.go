package model

// Coord is a physical coordinate in database units.
type Coord int32

// Point is a location on a routing layer in database units.
type Point struct {
	X Coord
	Y Coord
}

// Rect is an axis-aligned rectangle with inclusive bounds.
type Rect struct {
	XMin Coord
	YMin Coord
	XMax Coord
	YMax Coord
}

// NewRect builds a rectangle from two corners in any order.
func NewRect(x1, y1, x2, y2 Coord) Rect {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Rect{XMin: x1, YMin: y1, XMax: x2, YMax: y2}
}

// Empty reports whether the rectangle has negative extent.
func (r Rect) Empty() bool {
	return r.XMax < r.XMin || r.YMax < r.YMin
}

// Contains reports whether p lies inside r, boundary included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.XMin && p.X <= r.XMax && p.Y >= r.YMin && p.Y <= r.YMax
}

// ContainsRect reports whether o lies entirely inside r.
func (r Rect) ContainsRect(o Rect) bool {
	return o.XMin >= r.XMin && o.XMax <= r.XMax && o.YMin >= r.YMin && o.YMax <= r.YMax
}

// Intersects reports whether r and o share at least one point.
func (r Rect) Intersects(o Rect) bool {
	return r.XMin <= o.XMax && o.XMin <= r.XMax && r.YMin <= o.YMax && o.YMin <= r.YMax
}

// Intersection returns the overlap of r and o. The result is Empty when they
// do not intersect.
func (r Rect) Intersection(o Rect) Rect {
	return Rect{
		XMin: max(r.XMin, o.XMin),
		YMin: max(r.YMin, o.YMin),
		XMax: min(r.XMax, o.XMax),
		YMax: min(r.YMax, o.YMax),
	}
}

// Bloat grows the rectangle by d on every side. Negative d shrinks it.
func (r Rect) Bloat(d Coord) Rect {
	return Rect{XMin: r.XMin - d, YMin: r.YMin - d, XMax: r.XMax + d, YMax: r.YMax + d}
}

// Merge returns the bounding box of r and o.
func (r Rect) Merge(o Rect) Rect {
	return Rect{
		XMin: min(r.XMin, o.XMin),
		YMin: min(r.YMin, o.YMin),
		XMax: max(r.XMax, o.XMax),
		YMax: max(r.YMax, o.YMax),
	}
}

// Width is the x extent.
func (r Rect) Width() Coord { return r.XMax - r.XMin }

// Height is the y extent.
func (r Rect) Height() Coord { return r.YMax - r.YMin }

// Center returns the centre point, rounded toward the lower-left.
func (r Rect) Center() Point {
	return Point{X: r.XMin + r.Width()/2, Y: r.YMin + r.Height()/2}
}

// ManhattanDistance returns |dx| + |dy| between two points.
func ManhattanDistance(a, b Point) Coord {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}
