package worker

import (
	"fmt"

	"github.com/signalsfoundry/detailed-router/model"
)

// Region is the area assigned to one worker.
type Region struct {
	ID       string
	RouteBox model.Rect
	ExtBox   model.Rect
}

// Partition tiles die into square regions of side tile, row by row from the
// lower-left corner. Each region's extension box grows by margin and is
// clipped to the die. A non-positive tile returns the whole die as a single
// region.
func Partition(die model.Rect, tile, margin model.Coord) ([]Region, error) {
	if die.Empty() {
		return nil, fmt.Errorf("partition: empty die %v", die)
	}
	if margin < 0 {
		return nil, fmt.Errorf("partition: negative margin %d", margin)
	}
	if tile <= 0 {
		return []Region{{ID: "w0_0", RouteBox: die, ExtBox: die}}, nil
	}

	var out []Region
	for row, y := 0, die.YMin; y <= die.YMax; row, y = row+1, y+tile {
		for col, x := 0, die.XMin; x <= die.XMax; col, x = col+1, x+tile {
			rb := model.Rect{
				XMin: x,
				YMin: y,
				XMax: min(x+tile-1, die.XMax),
				YMax: min(y+tile-1, die.YMax),
			}
			out = append(out, Region{
				ID:       fmt.Sprintf("w%d_%d", col, row),
				RouteBox: rb,
				ExtBox:   rb.Bloat(margin).Intersection(die),
			})
		}
	}
	return out, nil
}

// AssignNets hands every net to the first region whose route box holds all
// of its access points. Nets that fit no region are returned as leftovers,
// in input order.
func AssignNets(regions []Region, nets []model.Net) (map[string][]model.Net, []model.Net) {
	assigned := make(map[string][]model.Net, len(regions))
	var leftovers []model.Net
	for _, n := range nets {
		placed := false
		for _, r := range regions {
			if netInside(n, r.RouteBox) {
				assigned[r.ID] = append(assigned[r.ID], n)
				placed = true
				break
			}
		}
		if !placed {
			leftovers = append(leftovers, n)
		}
	}
	return assigned, leftovers
}

func netInside(n model.Net, r model.Rect) bool {
	for _, p := range n.Pins {
		for _, ap := range p.AccessPoints {
			if !r.Contains(ap.Point) {
				return false
			}
		}
	}
	return true
}

// RegionDesign returns a copy of d restricted to the given nets and to the
// guides and obstructions that touch ext.
func RegionDesign(d *model.Design, nets []model.Net, ext model.Rect) *model.Design {
	out := &model.Design{Name: d.Name, DieBox: d.DieBox, Nets: nets}
	keep := make(map[string]struct{}, len(nets))
	for _, n := range nets {
		keep[n.Name] = struct{}{}
	}
	for _, g := range d.Guides {
		if _, ok := keep[g.Net]; ok && g.Rect.Intersects(ext) {
			out.Guides = append(out.Guides, g)
		}
	}
	for _, o := range d.Obstructions {
		if o.Rect.Intersects(ext) {
			out.Obstructions = append(out.Obstructions, o)
		}
	}
	return out
}
