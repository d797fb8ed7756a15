package kb

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/detailed-router/iterctrl"
	"github.com/signalsfoundry/detailed-router/model"
)

// Scenario is a small summary of what was loaded from YAML.
type Scenario struct {
	Design   string
	Layers   []int
	Nets     []string
	Schedule iterctrl.Schedule
}

// internal YAML shapes, unexported so the file format can evolve.
type scenarioYAML struct {
	Technology technologyYAML       `yaml:"technology"`
	Design     designYAML           `yaml:"design"`
	Schedule   []iterctrl.Iteration `yaml:"schedule"`
}

type technologyYAML struct {
	MaxStackedVias int         `yaml:"max_stacked_vias"`
	Layers         []layerYAML `yaml:"layers"`
	Tracks         []trackYAML `yaml:"tracks"`
	Vias           []viaYAML   `yaml:"vias"`
	NDRs           []ndrYAML   `yaml:"ndrs"`
}

type layerYAML struct {
	Num        int    `yaml:"num"`
	Name       string `yaml:"name"`
	Direction  string `yaml:"direction"` // "horizontal" | "vertical" | ""
	Width      int32  `yaml:"width"`
	Pitch      int32  `yaml:"pitch"`
	MinSpacing int32  `yaml:"min_spacing"`
	MinArea    int64  `yaml:"min_area"`
}

type trackYAML struct {
	Layer int    `yaml:"layer"`
	Axis  string `yaml:"axis"` // "x" places vertical lines, "y" horizontal ones
	Start int32  `yaml:"start"`
	Count int    `yaml:"count"`
	Step  int32  `yaml:"step"`
}

type viaYAML struct {
	Lower     int   `yaml:"lower"`
	LowerArea int64 `yaml:"lower_area"`
	UpperArea int64 `yaml:"upper_area"`
}

type ndrYAML struct {
	Name          string         `yaml:"name"`
	TaperDistance int32          `yaml:"taper_distance"`
	Layers        []ndrLayerYAML `yaml:"layers"`
}

type ndrLayerYAML struct {
	Layer   int   `yaml:"layer"`
	Width   int32 `yaml:"width"`
	Spacing int32 `yaml:"spacing"`
}

type designYAML struct {
	Name         string            `yaml:"name"`
	Die          []int32           `yaml:"die"`
	Nets         []netYAML         `yaml:"nets"`
	Guides       []guideYAML       `yaml:"guides"`
	Obstructions []obstructionYAML `yaml:"obstructions"`
}

type netYAML struct {
	Name string    `yaml:"name"`
	NDR  string    `yaml:"ndr"`
	Pins []pinYAML `yaml:"pins"`
}

type pinYAML struct {
	Name         string            `yaml:"name"`
	AccessPoints []accessPointYAML `yaml:"access_points"`
}

type accessPointYAML struct {
	X     int32 `yaml:"x"`
	Y     int32 `yaml:"y"`
	Layer int   `yaml:"layer"`
}

type guideYAML struct {
	Net   string  `yaml:"net"`
	Layer int     `yaml:"layer"`
	Rect  []int32 `yaml:"rect"`
}

type obstructionYAML struct {
	Layer int     `yaml:"layer"`
	Rect  []int32 `yaml:"rect"`
}

// LoadScenarioFile opens path and calls LoadScenario.
func LoadScenarioFile(kb *KnowledgeBase, path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}
	defer f.Close()
	return LoadScenario(kb, f)
}

// LoadScenario reads a YAML scenario from r, populates the KnowledgeBase
// with technology and design data, and returns a summary of what was loaded.
// Technology is added before the design so nets and guides can be validated
// against it.
func LoadScenario(kb *KnowledgeBase, r io.Reader) (*Scenario, error) {
	if kb == nil {
		return nil, fmt.Errorf("LoadScenario: kb is nil")
	}

	var payload scenarioYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}

	result := &Scenario{Design: payload.Design.Name}

	// 1) Technology
	for _, l := range payload.Technology.Layers {
		dir, err := layerDirFromString(l.Direction)
		if err != nil {
			return nil, fmt.Errorf("LoadScenario: layer %d: %w", l.Num, err)
		}
		if err := kb.AddLayer(model.Layer{
			Num:        l.Num,
			Name:       l.Name,
			Dir:        dir,
			Width:      model.Coord(l.Width),
			Pitch:      model.Coord(l.Pitch),
			MinSpacing: model.Coord(l.MinSpacing),
			MinArea:    l.MinArea,
		}); err != nil {
			return nil, fmt.Errorf("LoadScenario: %w", err)
		}
		result.Layers = append(result.Layers, l.Num)
	}
	for _, tr := range payload.Technology.Tracks {
		axis, err := trackAxisFromString(tr.Axis)
		if err != nil {
			return nil, fmt.Errorf("LoadScenario: tracks on layer %d: %w", tr.Layer, err)
		}
		if err := kb.AddTrackPattern(model.TrackPattern{
			Layer: tr.Layer,
			Axis:  axis,
			Start: model.Coord(tr.Start),
			Count: tr.Count,
			Step:  model.Coord(tr.Step),
		}); err != nil {
			return nil, fmt.Errorf("LoadScenario: %w", err)
		}
	}
	for _, v := range payload.Technology.Vias {
		if err := kb.SetViaEnclosure(v.Lower, model.ViaEnclosure{Lower: v.LowerArea, Upper: v.UpperArea}); err != nil {
			return nil, fmt.Errorf("LoadScenario: %w", err)
		}
	}
	for _, n := range payload.Technology.NDRs {
		rule := &model.NonDefaultRule{
			Name:          n.Name,
			TaperDistance: model.Coord(n.TaperDistance),
			Layers:        make(map[int]model.NDRLayerRule, len(n.Layers)),
		}
		for _, l := range n.Layers {
			rule.Layers[l.Layer] = model.NDRLayerRule{Width: model.Coord(l.Width), Spacing: model.Coord(l.Spacing)}
		}
		if err := kb.AddNDR(rule); err != nil {
			return nil, fmt.Errorf("LoadScenario: %w", err)
		}
	}
	kb.SetMaxStackedVias(payload.Technology.MaxStackedVias)

	// 2) Design
	die, err := rectFromSlice(payload.Design.Die)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: die: %w", err)
	}
	kb.SetDesign(payload.Design.Name, die)
	for _, n := range payload.Design.Nets {
		if n.Name == "" {
			return nil, fmt.Errorf("LoadScenario: net with empty name")
		}
		net := &model.Net{Name: n.Name, NDR: n.NDR}
		for _, p := range n.Pins {
			pin := model.Pin{Name: p.Name}
			for _, ap := range p.AccessPoints {
				pin.AccessPoints = append(pin.AccessPoints, model.AccessPoint{
					Point: model.Point{X: model.Coord(ap.X), Y: model.Coord(ap.Y)},
					Layer: ap.Layer,
				})
			}
			net.Pins = append(net.Pins, pin)
		}
		if err := kb.AddNet(net); err != nil {
			return nil, fmt.Errorf("LoadScenario: %w", err)
		}
		result.Nets = append(result.Nets, n.Name)
	}
	for _, g := range payload.Design.Guides {
		rect, err := rectFromSlice(g.Rect)
		if err != nil {
			return nil, fmt.Errorf("LoadScenario: guide for %q: %w", g.Net, err)
		}
		if err := kb.AddGuide(model.Guide{Net: g.Net, Layer: g.Layer, Rect: rect}); err != nil {
			return nil, fmt.Errorf("LoadScenario: %w", err)
		}
	}
	for _, o := range payload.Design.Obstructions {
		rect, err := rectFromSlice(o.Rect)
		if err != nil {
			return nil, fmt.Errorf("LoadScenario: obstruction: %w", err)
		}
		if err := kb.AddObstruction(model.Obstruction{Layer: o.Layer, Rect: rect}); err != nil {
			return nil, fmt.Errorf("LoadScenario: %w", err)
		}
	}

	// 3) Schedule
	if len(payload.Schedule) > 0 {
		s := iterctrl.Schedule(payload.Schedule).Normalize()
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("LoadScenario: schedule: %w", err)
		}
		result.Schedule = s
	}

	return result, nil
}

func layerDirFromString(s string) (model.LayerDir, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "horizontal", "h":
		return model.LayerDirHorizontal, nil
	case "vertical", "v":
		return model.LayerDirVertical, nil
	case "", "none":
		return model.LayerDirNone, nil
	}
	return model.LayerDirNone, fmt.Errorf("unknown direction %q", s)
}

func trackAxisFromString(s string) (model.TrackAxis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return model.TrackAxisX, nil
	case "y":
		return model.TrackAxisY, nil
	}
	return 0, fmt.Errorf("axis %q: %w", s, ErrInvalidTrackPattern)
}

func rectFromSlice(v []int32) (model.Rect, error) {
	if len(v) == 0 {
		return model.Rect{}, nil
	}
	if len(v) != 4 {
		return model.Rect{}, fmt.Errorf("rectangle needs 4 coordinates, got %d", len(v))
	}
	return model.NewRect(model.Coord(v[0]), model.Coord(v[1]), model.Coord(v[2]), model.Coord(v[3])), nil
}
