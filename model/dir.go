package model

// Dir is a routing direction on the 3D grid. The numeric values are chosen so
// that a direction and its reverse always sum to 7 and every value fits in
// three bits.
type Dir uint8

const (
	DirUnknown Dir = 0
	DirDown    Dir = 1
	DirSouth   Dir = 2
	DirWest    Dir = 3
	DirEast    Dir = 4
	DirNorth   Dir = 5
	DirUp      Dir = 6
)

// Dirs lists the six real directions in expansion order.
var Dirs = [6]Dir{DirEast, DirNorth, DirWest, DirSouth, DirUp, DirDown}

// Reverse returns the opposite direction. DirUnknown maps to itself.
func (d Dir) Reverse() Dir {
	if d == DirUnknown || d > DirUp {
		return d
	}
	return 7 - d
}

// IsVia reports whether d changes layer.
func (d Dir) IsVia() bool { return d == DirUp || d == DirDown }

// IsPlanar reports whether d stays on a layer.
func (d Dir) IsPlanar() bool {
	return d == DirEast || d == DirWest || d == DirNorth || d == DirSouth
}

// IsHorizontal reports whether d moves along the x axis.
func (d Dir) IsHorizontal() bool { return d == DirEast || d == DirWest }

// IsVertical reports whether d moves along the y axis.
func (d Dir) IsVertical() bool { return d == DirNorth || d == DirSouth }

func (d Dir) String() string {
	switch d {
	case DirDown:
		return "D"
	case DirSouth:
		return "S"
	case DirWest:
		return "W"
	case DirEast:
		return "E"
	case DirNorth:
		return "N"
	case DirUp:
		return "U"
	default:
		return "UNKNOWN"
	}
}
