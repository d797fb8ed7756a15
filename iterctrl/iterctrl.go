package iterctrl

import (
	"context"
	"fmt"
	"sync"
)

// Iteration is the parameter set of one rip-up and reroute pass.
type Iteration struct {
	Index int `yaml:"-"`
	// MarkerDecay scales every marker counter after the pass.
	MarkerDecay    float32 `yaml:"marker_decay"`
	DRCCost        int64   `yaml:"drc_cost"`
	MarkerCost     int64   `yaml:"marker_cost"`
	FixedShapeCost int64   `yaml:"fixed_shape_cost"`
	FollowGuide    bool    `yaml:"follow_guide"`
	// RipupAll reroutes every net instead of only the nets touching markers.
	RipupAll bool `yaml:"ripup_all"`
}

// Schedule is an ordered list of iterations.
type Schedule []Iteration

// DefaultSchedule ramps the shape and marker weights up while guide
// following is given up after the first passes.
func DefaultSchedule() Schedule {
	s := Schedule{
		{MarkerDecay: 0.95, DRCCost: 8, MarkerCost: 32, FixedShapeCost: 8, FollowGuide: true, RipupAll: true},
		{MarkerDecay: 0.95, DRCCost: 8, MarkerCost: 32, FixedShapeCost: 8, FollowGuide: true},
		{MarkerDecay: 0.95, DRCCost: 16, MarkerCost: 64, FixedShapeCost: 16, FollowGuide: true},
		{MarkerDecay: 0.90, DRCCost: 32, MarkerCost: 96, FixedShapeCost: 32},
		{MarkerDecay: 0.90, DRCCost: 64, MarkerCost: 128, FixedShapeCost: 64},
		{MarkerDecay: 0.80, DRCCost: 128, MarkerCost: 192, FixedShapeCost: 128},
	}
	return s.Normalize()
}

// Normalize assigns indices in order.
func (s Schedule) Normalize() Schedule {
	out := append(Schedule(nil), s...)
	for i := range out {
		out[i].Index = i
	}
	return out
}

// Validate reports the first unusable iteration.
func (s Schedule) Validate() error {
	for i, it := range s {
		if it.MarkerDecay < 0 || it.MarkerDecay > 1 {
			return fmt.Errorf("iteration %d: marker decay %v outside [0,1]", i, it.MarkerDecay)
		}
		if it.DRCCost < 0 || it.MarkerCost < 0 || it.FixedShapeCost < 0 {
			return fmt.Errorf("iteration %d: negative cost weight", i)
		}
	}
	return nil
}

// StepFunc performs one pass and returns the number of conflicts left.
type StepFunc func(ctx context.Context, it Iteration) (int, error)

// Summary describes a finished run.
type Summary struct {
	Iterations int
	Conflicts  int
	Converged  bool
}

// Controller walks a schedule and notifies registered listeners before each
// iteration.
type Controller struct {
	mu        sync.RWMutex
	schedule  Schedule
	listeners []func(Iteration)
}

// NewController constructs a controller. An empty schedule falls back to
// DefaultSchedule.
func NewController(s Schedule) *Controller {
	if len(s) == 0 {
		s = DefaultSchedule()
	}
	return &Controller{schedule: s.Normalize()}
}

// AddListener registers a callback invoked at the start of every iteration.
func (c *Controller) AddListener(fn func(Iteration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Run executes the schedule in order. It stops early once a pass leaves no
// conflicts, and on the first step error or context cancellation.
func (c *Controller) Run(ctx context.Context, step StepFunc) (Summary, error) {
	var sum Summary
	for i := range c.schedule {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		it := c.schedule[i]
		c.mu.RLock()
		listeners := append([]func(Iteration){}, c.listeners...)
		c.mu.RUnlock()

		for _, fn := range listeners {
			fn(it)
		}
		conflicts, err := step(ctx, it)
		sum.Iterations++
		sum.Conflicts = conflicts
		if err != nil {
			return sum, fmt.Errorf("iteration %d: %w", i, err)
		}
		if conflicts == 0 {
			sum.Converged = true
			return sum, nil
		}
	}
	return sum, nil
}
