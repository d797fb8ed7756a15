package core

import (
	"container/heap"

	"github.com/signalsfoundry/detailed-router/model"
)

const (
	historySlots = 10
	historyMask  = 1<<(historySlots*dirBits) - 1
)

// wavefrontEntry is one frontier candidate. history keeps the last ten move
// directions, newest in the low three bits.
type wavefrontEntry struct {
	x, y, z  int
	pathCost Cost
	cost     Cost
	dist     model.Coord

	history uint32
	vias    int
	// layerPathArea is the metal area accumulated since the path entered the
	// current layer.
	layerPathArea int64
	// forwardLength is the planar length since the last turn.
	forwardLength model.Coord
	taper         *Box

	seq uint64
}

func (e *wavefrontEntry) lastDir() model.Dir { return model.Dir(e.history & dirMask) }

func (e *wavefrontEntry) pushDir(d model.Dir) uint32 {
	return (e.history<<dirBits | uint32(d)) & historyMask
}

// stackedVias counts the run of consecutive d moves at the head of the
// history.
func (e *wavefrontEntry) stackedVias(d model.Dir) int {
	h := e.history
	n := 0
	for i := 0; i < historySlots && model.Dir(h&dirMask) == d; i++ {
		n++
		h >>= dirBits
	}
	return n
}

// wavefront is a min-heap of entries. Ties on total cost break on distance
// to the centre point, then on higher layer, then on larger path cost, then
// on insertion order, so pops are deterministic.
type wavefront struct {
	items []wavefrontEntry
	seq   uint64
}

func (w *wavefront) Len() int { return len(w.items) }

func (w *wavefront) Less(i, j int) bool {
	a, b := &w.items[i], &w.items[j]
	switch {
	case a.cost != b.cost:
		return a.cost < b.cost
	case a.dist != b.dist:
		return a.dist < b.dist
	case a.z != b.z:
		return a.z > b.z
	case a.pathCost != b.pathCost:
		return a.pathCost > b.pathCost
	}
	return a.seq < b.seq
}

func (w *wavefront) Swap(i, j int) { w.items[i], w.items[j] = w.items[j], w.items[i] }

func (w *wavefront) Push(x any) { w.items = append(w.items, x.(wavefrontEntry)) }

func (w *wavefront) Pop() any {
	n := len(w.items) - 1
	e := w.items[n]
	w.items = w.items[:n]
	return e
}

func (w *wavefront) push(e wavefrontEntry) {
	e.seq = w.seq
	w.seq++
	heap.Push(w, e)
}

func (w *wavefront) pop() wavefrontEntry { return heap.Pop(w).(wavefrontEntry) }

func (w *wavefront) reset() {
	w.items = w.items[:0]
	w.seq = 0
}

func (w *wavefront) cleanup() {
	w.items = nil
	w.seq = 0
}
