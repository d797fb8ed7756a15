package core

import (
	"fmt"

	"github.com/signalsfoundry/detailed-router/model"
)

// CostField selects one of the per-node cost counters.
type CostField uint8

const (
	CostRouteShapePlanar CostField = iota
	CostRouteShapeVia
	CostMarkerPlanar
	CostMarkerVia
	CostFixedShapeVia
	CostFixedShapePlanarHorz
	CostFixedShapePlanarVert
	numCostFields
)

var costFieldNames = [numCostFields]string{
	"routeShapePlanar",
	"routeShapeVia",
	"markerPlanar",
	"markerVia",
	"fixedShapeVia",
	"fixedShapePlanarHorz",
	"fixedShapePlanarVert",
}

func (f CostField) String() string {
	if f < numCostFields {
		return costFieldNames[f]
	}
	return fmt.Sprintf("CostField(%d)", uint8(f))
}

// Node is the packed record stored for every grid point. Only the East,
// North and Up edge of a point are stored; the other three directions are
// answered by the neighbouring node.
//
//	bit  0-2   edge present      E N U
//	bit  3-5   edge blocked      E N U
//	bit  8     special via
//	bit  9     override fixed-shape cost on the up via
//	bit 10-12  extra grid cost   E N U
type Node struct {
	flags uint16
	costs [numCostFields]counter
}

const (
	edgeShift     = 0
	blockedShift  = 3
	gridCostShift = 10

	flagSpecialVia   uint16 = 1 << 8
	flagOverrideCost uint16 = 1 << 9
)

// axis maps a canonical direction to its bit offset.
func axis(d model.Dir) uint16 {
	switch d {
	case model.DirEast:
		return 0
	case model.DirNorth:
		return 1
	default:
		return 2
	}
}

func (n *Node) flag(shift uint16, d model.Dir) bool {
	return n.flags&(1<<(shift+axis(d))) != 0
}

func (n *Node) setFlag(shift uint16, d model.Dir, on bool) {
	bit := uint16(1) << (shift + axis(d))
	if on {
		n.flags |= bit
	} else {
		n.flags &^= bit
	}
}

// Cost returns the raw counter value of f.
func (n Node) Cost(f CostField) uint32 { return uint32(n.costs[f]) }

func (n Node) String() string {
	s := fmt.Sprintf("edges[E=%t N=%t U=%t] blocked[E=%t N=%t U=%t] grid[E=%t N=%t U=%t] specialVia=%t override=%t",
		n.flag(edgeShift, model.DirEast), n.flag(edgeShift, model.DirNorth), n.flag(edgeShift, model.DirUp),
		n.flag(blockedShift, model.DirEast), n.flag(blockedShift, model.DirNorth), n.flag(blockedShift, model.DirUp),
		n.flag(gridCostShift, model.DirEast), n.flag(gridCostShift, model.DirNorth), n.flag(gridCostShift, model.DirUp),
		n.flags&flagSpecialVia != 0, n.flags&flagOverrideCost != 0)
	for f := CostField(0); f < numCostFields; f++ {
		s += fmt.Sprintf(" %s=%d", f, n.costs[f])
	}
	return s
}

type stepDelta struct {
	dx, dy, dz int
}

var steps = [model.DirUp + 1]stepDelta{
	model.DirDown:  {0, 0, -1},
	model.DirSouth: {0, -1, 0},
	model.DirWest:  {-1, 0, 0},
	model.DirEast:  {1, 0, 0},
	model.DirNorth: {0, 1, 0},
	model.DirUp:    {0, 0, 1},
}

// canonicalDirs maps each direction to the direction under which its edge is
// stored. The index moves back one step for West, South and Down.
var canonicalDirs = [model.DirUp + 1]model.Dir{
	model.DirDown:  model.DirUp,
	model.DirSouth: model.DirNorth,
	model.DirWest:  model.DirEast,
	model.DirEast:  model.DirEast,
	model.DirNorth: model.DirNorth,
	model.DirUp:    model.DirUp,
}

func step(x, y, z int, d model.Dir) (int, int, int) {
	s := steps[d]
	return x + s.dx, y + s.dy, z + s.dz
}

// canonical returns the node and direction that store the edge leaving
// (x, y, z) in direction d.
func canonical(x, y, z int, d model.Dir) (int, int, int, model.Dir) {
	switch d {
	case model.DirWest, model.DirSouth, model.DirDown:
		x, y, z = step(x, y, z, d)
	}
	return x, y, z, canonicalDirs[d]
}
