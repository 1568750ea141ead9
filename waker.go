package actorloop

import (
	"sync"
	"weak"
)

// readyMarker is the capability a Waker needs from whatever scheduler owns
// the process it targets: mark one pid ready again. Schedulers implement
// this directly; the registry never needs their full type.
type readyMarker interface {
	markReady(pid ProcessId)
}

// wakeTarget bundles a scheduler with however its owning worker should be
// nudged out of its OS wait (an eventfd write, a channel send, etc). The
// registry holds only weak references to these, mirroring the teacher's
// registry.go promise table: a Waker outliving the worker it points at
// must degrade to a no-op, never keep the worker's memory alive.
type wakeTarget struct {
	scheduler readyMarker
	nudge     func()
}

// wakerRegistry is a process-wide table of weak handles to scheduler
// targets, keyed by small dense integer slots. Packing a Waker down to a
// (slot, pid) pair keeps it copyable and allocation-free to clone, at the
// cost of one registry lookup (and a nil check for a reclaimed target) per
// Wake call.
//
// Grounded on the teacher's registry.go, which keys a map[uint64]weak.
// Pointer[promise] and batches reclamation instead of doing it inline;
// slots here are reused via a free-list instead since wakers are created
// and dropped far more often than registry.go's promises are.
type wakerRegistry struct {
	mu    sync.Mutex
	slots []weak.Pointer[wakeTarget]
	free  []uint32
}

func newWakerRegistry() *wakerRegistry {
	return &wakerRegistry{}
}

// register installs t and returns the slot it was assigned. The caller
// must keep t alive itself (typically by storing it on the worker); the
// registry only ever holds a weak reference.
func (r *wakerRegistry) register(t *wakeTarget) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	wp := weak.Make(t)
	if n := len(r.free); n > 0 {
		slot := r.free[n-1]
		r.free = r.free[:n-1]
		r.slots[slot] = wp
		return slot
	}
	r.slots = append(r.slots, wp)
	return uint32(len(r.slots) - 1)
}

// unregister frees slot for reuse. Safe to call more than once.
func (r *wakerRegistry) unregister(slot uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(slot) >= len(r.slots) {
		return
	}
	r.slots[slot] = weak.Pointer[wakeTarget]{}
	r.free = append(r.free, slot)
}

func (r *wakerRegistry) get(slot uint32) *wakeTarget {
	r.mu.Lock()
	wp := r.slots[int(slot)]
	r.mu.Unlock()
	return wp.Value()
}

// Waker is a compact, cloneable handle that marks a single process ready
// and nudges whatever worker owns it. It is safe to hold across goroutines,
// across restarts of the process it targets (Wake becomes a no-op once the
// target scheduler is gone), and to clone without allocation.
type Waker struct {
	registry *wakerRegistry
	slot     uint32
	pid      ProcessId
}

func newWaker(registry *wakerRegistry, slot uint32, pid ProcessId) *Waker {
	return &Waker{registry: registry, slot: slot, pid: pid}
}

// Wake marks the targeted process ready and nudges its worker. It is a
// no-op if the worker has since shut down.
func (w *Waker) Wake() {
	if w == nil || w.registry == nil {
		return
	}
	t := w.registry.get(w.slot)
	if t == nil {
		return
	}
	t.scheduler.markReady(w.pid)
	if t.nudge != nil {
		t.nudge()
	}
}

// WillWake reports whether w and other would wake the same process on the
// same scheduler, letting a process avoid re-registering an equivalent
// waker on every poll.
func (w *Waker) WillWake(other *Waker) bool {
	if w == nil || other == nil {
		return w == other
	}
	return w.registry == other.registry && w.slot == other.slot && w.pid == other.pid
}

// Clone returns an independent copy of w. Since a Waker carries no
// ownership of the target (the registry entry is weak), cloning is just a
// value copy.
func (w *Waker) Clone() *Waker {
	if w == nil {
		return nil
	}
	c := *w
	return &c
}
