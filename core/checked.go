package core

import (
	"fmt"

	"github.com/signalsfoundry/detailed-router/model"
)

// Checked wraps a grid graph with bounds-checked cost accessors. The
// unchecked methods on GridGraph index storage directly.
type Checked struct {
	g *GridGraph
}

// Checked returns the bounds-checked view of g.
func (g *GridGraph) Checked() Checked { return Checked{g: g} }

func (c Checked) check(x, y, z int) error {
	if !c.g.initialized {
		return ErrNotInitialized
	}
	if !c.g.isValid(x, y, z) {
		nx, ny, nz := c.g.coords.Dims()
		return &RangeError{Point: GridPoint{x, y, z}, Dims: GridPoint{nx, ny, nz}}
	}
	return nil
}

func (c Checked) checkEdge(x, y, z int, d model.Dir) error {
	if err := c.check(x, y, z); err != nil {
		return err
	}
	if d == model.DirUnknown || d > model.DirUp {
		return fmt.Errorf("direction %v: %w", d, ErrOutOfRange)
	}
	nx, ny, nz := step(x, y, z, d)
	return c.check(nx, ny, nz)
}

func (c Checked) do(x, y, z int, fn func(x, y, z int)) error {
	if err := c.check(x, y, z); err != nil {
		return err
	}
	fn(x, y, z)
	return nil
}

// Node returns the stored record.
func (c Checked) Node(x, y, z int) (Node, error) {
	if err := c.check(x, y, z); err != nil {
		return Node{}, err
	}
	return c.g.Node(x, y, z), nil
}

func (c Checked) AddRouteShapeCostPlanar(x, y, z int) error {
	return c.do(x, y, z, c.g.AddRouteShapeCostPlanar)
}

func (c Checked) AddRouteShapeCostVia(x, y, z int) error {
	return c.do(x, y, z, c.g.AddRouteShapeCostVia)
}

func (c Checked) SubRouteShapeCostPlanar(x, y, z int) error {
	return c.do(x, y, z, c.g.SubRouteShapeCostPlanar)
}

func (c Checked) SubRouteShapeCostVia(x, y, z int) error {
	return c.do(x, y, z, c.g.SubRouteShapeCostVia)
}

func (c Checked) AddMarkerCost(x, y, z int) error { return c.do(x, y, z, c.g.AddMarkerCost) }

func (c Checked) AddFixedShapeCostPlanar(x, y, z int) error {
	return c.do(x, y, z, c.g.AddFixedShapeCostPlanar)
}

func (c Checked) AddFixedShapeCostVia(x, y, z int) error {
	return c.do(x, y, z, c.g.AddFixedShapeCostVia)
}

func (c Checked) SetSpecialVia(x, y, z int) error { return c.do(x, y, z, c.g.SetSpecialVia) }

// DecayMarkerCost reports whether both marker counters reached zero.
func (c Checked) DecayMarkerCost(x, y, z int, d float32) (bool, error) {
	if err := c.check(x, y, z); err != nil {
		return false, err
	}
	return c.g.DecayMarkerCost(x, y, z, d), nil
}

// Costs returns the default-rule cost of the edge.
func (c Checked) Costs(x, y, z int, d model.Dir) (Cost, error) {
	if err := c.checkEdge(x, y, z, d); err != nil {
		return 0, err
	}
	return c.g.Costs(x, y, z, d), nil
}
