package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/detailed-router/model"
)

var (
	ErrUnknownLayer        = errors.New("unknown layer")
	ErrDuplicateLayer      = errors.New("duplicate layer")
	ErrInvalidTrackPattern = errors.New("invalid track pattern")
	ErrUnknownNet          = errors.New("unknown net")
	ErrUnknownNDR          = errors.New("unknown non-default rule")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventTechnologyUpdated EventType = iota
	EventNetAdded
	EventDesignUpdated
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type EventType
	Net  string
}

// KnowledgeBase is an in-memory, thread-safe store for technology and
// design data. Workers read immutable snapshots from it.
type KnowledgeBase struct {
	mu sync.RWMutex

	layers         map[int]model.Layer
	tracks         []model.TrackPattern
	vias           map[int]model.ViaEnclosure
	ndrs           map[string]*model.NonDefaultRule
	maxStackedVias int

	designName   string
	dieBox       model.Rect
	nets         map[string]*model.Net
	netOrder     []string
	guides       []model.Guide
	obstructions []model.Obstruction

	tech *model.Technology
	subs []func(Event)
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		layers: make(map[int]model.Layer),
		vias:   make(map[int]model.ViaEnclosure),
		ndrs:   make(map[string]*model.NonDefaultRule),
		nets:   make(map[string]*model.Net),
	}
}

// AddLayer adds a routing layer.
func (kb *KnowledgeBase) AddLayer(l model.Layer) error {
	kb.mu.Lock()
	if _, exists := kb.layers[l.Num]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("layer %d (%s): %w", l.Num, l.Name, ErrDuplicateLayer)
	}
	kb.layers[l.Num] = l
	kb.tech = nil
	kb.mu.Unlock()
	kb.notify(Event{Type: EventTechnologyUpdated})
	return nil
}

// AddTrackPattern adds a track pattern on an existing layer.
func (kb *KnowledgeBase) AddTrackPattern(tp model.TrackPattern) error {
	if tp.Count <= 0 || tp.Step <= 0 {
		return fmt.Errorf("layer %d: count %d step %d: %w", tp.Layer, tp.Count, tp.Step, ErrInvalidTrackPattern)
	}
	kb.mu.Lock()
	if _, ok := kb.layers[tp.Layer]; !ok {
		kb.mu.Unlock()
		return fmt.Errorf("track pattern on layer %d: %w", tp.Layer, ErrUnknownLayer)
	}
	kb.tracks = append(kb.tracks, tp)
	kb.tech = nil
	kb.mu.Unlock()
	kb.notify(Event{Type: EventTechnologyUpdated})
	return nil
}

// SetViaEnclosure records the half-via enclosure areas of the cut above
// lowerLayer.
func (kb *KnowledgeBase) SetViaEnclosure(lowerLayer int, enc model.ViaEnclosure) error {
	kb.mu.Lock()
	if _, ok := kb.layers[lowerLayer]; !ok {
		kb.mu.Unlock()
		return fmt.Errorf("via enclosure above layer %d: %w", lowerLayer, ErrUnknownLayer)
	}
	kb.vias[lowerLayer] = enc
	kb.tech = nil
	kb.mu.Unlock()
	kb.notify(Event{Type: EventTechnologyUpdated})
	return nil
}

// AddNDR adds a non-default rule. The rule may only reference known layers.
func (kb *KnowledgeBase) AddNDR(r *model.NonDefaultRule) error {
	kb.mu.Lock()
	if _, exists := kb.ndrs[r.Name]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("non-default rule %q already exists", r.Name)
	}
	for num := range r.Layers {
		if _, ok := kb.layers[num]; !ok {
			kb.mu.Unlock()
			return fmt.Errorf("non-default rule %q layer %d: %w", r.Name, num, ErrUnknownLayer)
		}
	}
	kb.ndrs[r.Name] = r
	kb.tech = nil
	kb.mu.Unlock()
	kb.notify(Event{Type: EventTechnologyUpdated})
	return nil
}

// SetMaxStackedVias limits consecutive same-direction vias. Zero disables
// the limit.
func (kb *KnowledgeBase) SetMaxStackedVias(n int) {
	kb.mu.Lock()
	kb.maxStackedVias = n
	kb.tech = nil
	kb.mu.Unlock()
	kb.notify(Event{Type: EventTechnologyUpdated})
}

// Technology returns an immutable snapshot of the technology. The same
// pointer is returned until the technology changes.
func (kb *KnowledgeBase) Technology() *model.Technology {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if kb.tech != nil {
		return kb.tech
	}
	layers := make([]model.Layer, 0, len(kb.layers))
	for _, l := range kb.layers {
		layers = append(layers, l)
	}
	t := model.NewTechnology(layers, kb.tracks)
	for k, v := range kb.vias {
		t.ViaEnclosures[k] = v
	}
	for k, v := range kb.ndrs {
		cp := *v
		cp.Layers = make(map[int]model.NDRLayerRule, len(v.Layers))
		for l, r := range v.Layers {
			cp.Layers[l] = r
		}
		t.NDRs[k] = &cp
	}
	t.MaxStackedVias = kb.maxStackedVias
	kb.tech = t
	return t
}

// SetDesign sets the design name and die area.
func (kb *KnowledgeBase) SetDesign(name string, die model.Rect) {
	kb.mu.Lock()
	kb.designName = name
	kb.dieBox = die
	kb.mu.Unlock()
	kb.notify(Event{Type: EventDesignUpdated})
}

// AddNet adds a net. Nets keep their insertion order.
func (kb *KnowledgeBase) AddNet(n *model.Net) error {
	kb.mu.Lock()
	if _, exists := kb.nets[n.Name]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("net %q already exists", n.Name)
	}
	if n.NDR != "" {
		if _, ok := kb.ndrs[n.NDR]; !ok {
			kb.mu.Unlock()
			return fmt.Errorf("net %q rule %q: %w", n.Name, n.NDR, ErrUnknownNDR)
		}
	}
	for _, p := range n.Pins {
		for _, ap := range p.AccessPoints {
			if _, ok := kb.layers[ap.Layer]; !ok {
				kb.mu.Unlock()
				return fmt.Errorf("net %q pin %q layer %d: %w", n.Name, p.Name, ap.Layer, ErrUnknownLayer)
			}
		}
	}
	kb.nets[n.Name] = n
	kb.netOrder = append(kb.netOrder, n.Name)
	kb.mu.Unlock()
	kb.notify(Event{Type: EventNetAdded, Net: n.Name})
	return nil
}

// GetNet returns the net with the given name, or nil if not found.
func (kb *KnowledgeBase) GetNet(name string) *model.Net {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.nets[name]
}

// AddGuide adds a routing guide for an existing net.
func (kb *KnowledgeBase) AddGuide(g model.Guide) error {
	kb.mu.Lock()
	if _, ok := kb.nets[g.Net]; !ok {
		kb.mu.Unlock()
		return fmt.Errorf("guide for net %q: %w", g.Net, ErrUnknownNet)
	}
	if _, ok := kb.layers[g.Layer]; !ok {
		kb.mu.Unlock()
		return fmt.Errorf("guide for net %q layer %d: %w", g.Net, g.Layer, ErrUnknownLayer)
	}
	kb.guides = append(kb.guides, g)
	kb.mu.Unlock()
	kb.notify(Event{Type: EventDesignUpdated, Net: g.Net})
	return nil
}

// AddObstruction adds a fixed shape.
func (kb *KnowledgeBase) AddObstruction(o model.Obstruction) error {
	kb.mu.Lock()
	if _, ok := kb.layers[o.Layer]; !ok {
		kb.mu.Unlock()
		return fmt.Errorf("obstruction on layer %d: %w", o.Layer, ErrUnknownLayer)
	}
	kb.obstructions = append(kb.obstructions, o)
	kb.mu.Unlock()
	kb.notify(Event{Type: EventDesignUpdated})
	return nil
}

// Design returns a snapshot of the design with nets in insertion order.
func (kb *KnowledgeBase) Design() *model.Design {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	d := &model.Design{
		Name:         kb.designName,
		DieBox:       kb.dieBox,
		Nets:         make([]model.Net, 0, len(kb.netOrder)),
		Guides:       append([]model.Guide(nil), kb.guides...),
		Obstructions: append([]model.Obstruction(nil), kb.obstructions...),
	}
	for _, name := range kb.netOrder {
		n := *kb.nets[name]
		n.Pins = append([]model.Pin(nil), n.Pins...)
		d.Nets = append(d.Nets, n)
	}
	return d
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.subs = append(kb.subs, fn)
	idx := len(kb.subs) - 1

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		if idx < 0 || idx >= len(kb.subs) {
			return
		}
		kb.subs = append(kb.subs[:idx], kb.subs[idx+1:]...)
		idx = -1
	}
}

func (kb *KnowledgeBase) notify(e Event) {
	kb.mu.RLock()
	subs := append([]func(Event){}, kb.subs...)
	kb.mu.RUnlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(e)
	}
}
