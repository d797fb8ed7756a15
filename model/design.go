package model

// AccessPoint is a location where a router may connect to a pin.
type AccessPoint struct {
	Point Point
	Layer int
}

// Pin is one terminal of a net.
type Pin struct {
	Name         string
	AccessPoints []AccessPoint
}

// Net is a set of pins to be connected.
type Net struct {
	Name string
	// NDR names a non-default rule in the technology; empty for default rules.
	NDR  string
	Pins []Pin
}

// Guide is a preferred routing region for a net on one layer.
type Guide struct {
	Net   string
	Layer int
	Rect  Rect
}

// Obstruction is a fixed, unmovable shape on a routing layer.
type Obstruction struct {
	Layer int
	Rect  Rect
}

// Design is the per-chip data handed to the router.
type Design struct {
	Name         string
	DieBox       Rect
	Nets         []Net
	Guides       []Guide
	Obstructions []Obstruction
}

// GuidesFor returns the guides that belong to a net.
func (d *Design) GuidesFor(net string) []Guide {
	if d == nil {
		return nil
	}
	var out []Guide
	for _, g := range d.Guides {
		if g.Net == net {
			out = append(out, g)
		}
	}
	return out
}
