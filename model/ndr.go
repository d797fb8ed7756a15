package model

// NDRLayerRule overrides the default width and spacing on one layer.
type NDRLayerRule struct {
	Width   Coord
	Spacing Coord
}

// NonDefaultRule is a named wiring rule applied to specific nets.
type NonDefaultRule struct {
	Name   string
	Layers map[int]NDRLayerRule
	// TaperDistance is how far from a pin the net must fall back to default
	// width and spacing.
	TaperDistance Coord
}

// Rule returns the override for a layer. ok is false when the rule does not
// touch that layer.
func (r *NonDefaultRule) Rule(layer int) (NDRLayerRule, bool) {
	if r == nil {
		return NDRLayerRule{}, false
	}
	lr, ok := r.Layers[layer]
	return lr, ok
}
