package actorloop

import (
	"container/heap"
	"sync"

	"v.io/x/lib/nsync"
)

// processHeap is a container/heap.Interface over the currently-ready
// processes of one scheduler, ordered by ProcessData.less (priority-
// weighted accumulated runtime). The teacher's timerHeap (loop.go) is the
// grounding for reaching for container/heap here rather than rolling a
// bespoke structure: no example repo in the pack ships an alternative
// priority-queue library, so the standard one is the idiomatic choice.
type processHeap []*ProcessData

func (h processHeap) Len() int            { return len(h) }
func (h processHeap) Less(i, j int) bool  { return h[i].less(h[j]) }
func (h processHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *processHeap) Push(x any) {
	pd := x.(*ProcessData)
	pd.heapIndex = len(*h)
	*h = append(*h, pd)
}

func (h *processHeap) Pop() any {
	old := *h
	n := len(old)
	pd := old[n-1]
	old[n-1] = nil
	pd.heapIndex = -1
	*h = old[:n-1]
	return pd
}

// schedulerCore holds the ready heap and inactive/running process table
// shared by localScheduler and sharedScheduler. It has no internal
// synchronization; both wrappers guard it with their own lock.
type schedulerCore struct {
	ready  processHeap
	owned  map[ProcessId]*ProcessData
}

func newSchedulerCore() schedulerCore {
	return schedulerCore{owned: make(map[ProcessId]*ProcessData)}
}

func (c *schedulerCore) addNewProcess(pid ProcessId, priority Priority, body Process, startReady bool) *ProcessData {
	pd := &ProcessData{id: pid, priority: priority, body: body, heapIndex: -1}
	c.owned[pid] = pd
	if startReady {
		pd.state = stateReady
		heap.Push(&c.ready, pd)
	} else {
		pd.state = stateInactive
	}
	return pd
}

func (c *schedulerCore) markReady(pid ProcessId) {
	pd, ok := c.owned[pid]
	if !ok || pd.state != stateInactive {
		// Unknown (already completed) or already ready/running: a no-op,
		// matching the idempotent mark_ready contract.
		return
	}
	pd.state = stateReady
	heap.Push(&c.ready, pd)
}

func (c *schedulerCore) hasProcess(pid ProcessId) bool {
	_, ok := c.owned[pid]
	return ok
}

func (c *schedulerCore) hasReadyProcess() bool {
	return len(c.ready) > 0
}

func (c *schedulerCore) len() int      { return len(c.owned) }
func (c *schedulerCore) readyLen() int { return len(c.ready) }

// nextProcess pops the lowest-weighted-runtime ready process, transitioning
// it to stateRunning. It is the caller's job to account runtime and call
// park or complete once the process has been polled.
func (c *schedulerCore) nextProcess() (*ProcessData, bool) {
	if len(c.ready) == 0 {
		return nil, false
	}
	pd := heap.Pop(&c.ready).(*ProcessData)
	pd.state = stateRunning
	return pd, true
}

// park accounts ranFor against pd's accumulated runtime and returns it to
// the inactive set after it returned Pending from Run.
func (c *schedulerCore) park(pd *ProcessData, ranFor uint64) {
	pd.runtimeNanos += ranFor
	pd.state = stateInactive
}

// complete accounts ranFor and removes pd from the scheduler entirely
// after it returned Complete from Run.
func (c *schedulerCore) complete(pd *ProcessData, ranFor uint64) {
	pd.runtimeNanos += ranFor
	pd.state = stateDone
	delete(c.owned, pd.id)
}

// localScheduler owns processes pinned to a single worker. Only that
// worker's own goroutine ever calls nextProcess/park/complete, but
// addNewProcess and markReady are reachable cross-thread (Spawn called
// from an arbitrary goroutine, or a Waker fired by another worker for a
// pinned process it sent a message to), so the whole thing is guarded by
// a plain sync.Mutex. This is a deliberate simplification from a lock-free
// pinned-storage design: see DESIGN.md for why.
type localScheduler struct {
	mu   sync.Mutex
	core schedulerCore
}

func newLocalScheduler() *localScheduler {
	return &localScheduler{core: newSchedulerCore()}
}

func (s *localScheduler) addNewProcess(pid ProcessId, priority Priority, body Process, startReady bool) *ProcessData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.addNewProcess(pid, priority, body, startReady)
}
func (s *localScheduler) markReady(pid ProcessId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.core.markReady(pid)
}
func (s *localScheduler) hasProcess(pid ProcessId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.hasProcess(pid)
}
func (s *localScheduler) hasReadyProcess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.hasReadyProcess()
}
func (s *localScheduler) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.len()
}
func (s *localScheduler) readyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.readyLen()
}
func (s *localScheduler) nextProcess() (*ProcessData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.nextProcess()
}
func (s *localScheduler) park(pd *ProcessData, ranFor uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.core.park(pd, ranFor)
}
func (s *localScheduler) complete(pd *ProcessData, ranFor uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.core.complete(pd, ranFor)
}

// sharedScheduler holds processes not pinned to any particular worker: any
// idle worker may pop the next ready one, and any goroutine (a Waker fired
// from an arbitrary I/O callback, a timer, another actor) may call
// markReady concurrently. Guarded with nsync.Mu rather than sync.Mutex:
// the shared scheduler is the one lock in this runtime genuinely shared
// across worker threads under contention, which is the case nsync's
// package doc calls out as its reason for existing alongside sync.Mutex.
type sharedScheduler struct {
	mu   nsync.Mu
	core schedulerCore
}

func newSharedScheduler() *sharedScheduler {
	return &sharedScheduler{core: newSchedulerCore()}
}

func (s *sharedScheduler) addNewProcess(pid ProcessId, priority Priority, body Process, startReady bool) *ProcessData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.addNewProcess(pid, priority, body, startReady)
}

// markReady implements readyMarker, so a sharedScheduler can sit directly
// behind a Waker.
func (s *sharedScheduler) markReady(pid ProcessId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.core.markReady(pid)
}

func (s *sharedScheduler) hasProcess(pid ProcessId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.hasProcess(pid)
}

func (s *sharedScheduler) hasReadyProcess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.hasReadyProcess()
}

func (s *sharedScheduler) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.len()
}

func (s *sharedScheduler) readyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.readyLen()
}

// nextProcess pops the next ready process for the calling (idle) worker to
// run, or reports false if the shared ready set is currently empty.
func (s *sharedScheduler) nextProcess() (*ProcessData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.nextProcess()
}

func (s *sharedScheduler) park(pd *ProcessData, ranFor uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.core.park(pd, ranFor)
}

func (s *sharedScheduler) complete(pd *ProcessData, ranFor uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.core.complete(pd, ranFor)
}

// processSink is the subset of scheduler operations a worker needs once it
// has popped a process to run: account its runtime and either park it
// (Pending) or drop it (Complete). Both scheduler flavors satisfy it, so a
// worker's run loop can treat "ran from local" and "stole from shared"
// identically after the pop.
type processSink interface {
	park(pd *ProcessData, ranFor uint64)
	complete(pd *ProcessData, ranFor uint64)
}

var _ readyMarker = (*sharedScheduler)(nil)
var _ readyMarker = (*localScheduler)(nil)
var _ processSink = (*sharedScheduler)(nil)
var _ processSink = (*localScheduler)(nil)
