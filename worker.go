package actorloop

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// workerBatchSize bounds how many ready processes a worker runs before
// re-polling for I/O and timer events, the same budgeted-batch shape as
// the teacher's processInternalQueue/processExternal (tick-bounded work so
// one worker's ready set can never starve its own poll cadence).
const workerBatchSize = 32

// maxPollDelay bounds how long a worker ever blocks in PollIO even with no
// pending timers, so a Runtime shutdown request is never more than this
// far from being observed. Mirrors the teacher's calculateTimeout ceiling.
const maxPollDelay = 10 * time.Second

// worker is one execution unit, run on its own goroutine: it owns a local
// scheduler for pinned processes, shares a sharedScheduler with its
// siblings for unpinned ones, and runs a single poll/expire/dispatch loop
// grounded on the teacher's Loop.run/tick (loop.go).
//
// A worker's suspension point is exactly one: the PollIO call inside run.
// Everything else (scheduler pops, timer expiry, waker registry lookups)
// is non-blocking, matching the single-suspension-point requirement for
// cooperative scheduling.
type worker struct {
	id       int
	rt       *Runtime
	local    *localScheduler
	shared   *sharedScheduler
	timers   *timerWheel
	poller   poller
	registry *wakerRegistry
	target   *wakeTarget
	slot     uint32

	wakeFD    int
	wakePending atomic.Bool

	stopping atomic.Bool
	logger   *logiface.Logger[*islog.Event]
}

func newWorker(id int, rt *Runtime) (*worker, error) {
	w := &worker{
		id:     id,
		rt:     rt,
		local:  newLocalScheduler(),
		shared: rt.shared,
		timers: newTimerWheel(),
		poller: newPlatformPoller(),
		logger: rt.logger,
	}
	if err := w.poller.Init(); err != nil {
		return nil, err
	}
	fd, err := newWakeFD()
	if err != nil {
		_ = w.poller.Close()
		return nil, err
	}
	w.wakeFD = fd
	w.target = &wakeTarget{scheduler: w, nudge: w.requestWake}
	w.registry = rt.registry
	w.slot = w.registry.register(w.target)

	if err := w.poller.RegisterFD(fd, EventRead, func(IOEvents) {
		drainWakeFD(fd)
		w.wakePending.Store(false)
	}); err != nil {
		_ = w.poller.Close()
		return nil, err
	}
	return w, nil
}

// markReady implements readyMarker for the worker's own local scheduler,
// letting a Waker built against this worker's registry slot land directly
// on local.markReady without an extra indirection.
func (w *worker) markReady(pid ProcessId) {
	w.local.markReady(pid)
}

func (w *worker) requestWake() {
	if w.wakePending.CompareAndSwap(false, true) {
		_ = writeWakeFD(w.wakeFD)
	}
}

// run is the worker's main loop: poll external sources, expire timers,
// drain a bounded batch of ready work, repeat, until ctx is cancelled or
// Shutdown/Close sets stopping.
func (w *worker) run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			w.requestWake()
		case <-done:
		}
	}()
	defer close(done)

	for !w.stopping.Load() && ctx.Err() == nil {
		w.tick(ctx)
	}
	w.drainOnShutdown(ctx)
	_ = w.poller.Close()
	closeWakeFD(w.wakeFD)
	w.registry.unregister(w.slot)
}

func (w *worker) tick(ctx context.Context) {
	now := time.Now()
	w.timers.expire(now)

	ran := w.runBatch(ctx, workerBatchSize)

	timeout := w.calculateTimeout(ran)
	n, err := w.poller.PollIO(timeout)
	if err != nil && w.logger != nil {
		logWorkerPollError(w.logger, w.id, err)
	}
	if w.rt.metrics != nil {
		w.rt.metrics.recordPoll(n)
	}
}

// runBatch runs up to budget processes: first draining this worker's
// pinned, local-scheduler work, then stealing from the shared scheduler
// once local work runs dry. Returns how many actually ran, used to decide
// whether the next poll should block at all.
func (w *worker) runBatch(ctx context.Context, budget int) int {
	ran := 0
	for ran < budget {
		pd, sched, ok := w.nextReady()
		if !ok {
			break
		}
		w.runOne(ctx, pd, sched)
		ran++
	}
	return ran
}

func (w *worker) nextReady() (*ProcessData, processSink, bool) {
	if pd, ok := w.local.nextProcess(); ok {
		return pd, w.local, true
	}
	if pd, ok := w.shared.nextProcess(); ok {
		return pd, w.shared, true
	}
	return nil, nil, false
}

func (w *worker) runOne(ctx context.Context, pd *ProcessData, sched processSink) {
	start := time.Now()
	result := pd.body.Run(ctx, pd.id)
	elapsed := time.Since(start)
	ranFor := uint64(elapsed)
	w.rt.metrics.recordDispatch(elapsed)

	switch result {
	case Complete:
		sched.complete(pd, ranFor)
	default:
		sched.park(pd, ranFor)
	}
}

// calculateTimeout bounds the next PollIO wait by the soonest timer
// deadline across the worker's own timer wheel, capped at maxPollDelay,
// and forced non-blocking if the worker just ran a full batch (there may
// be more ready work it didn't get to).
func (w *worker) calculateTimeout(ranLastBatch int) int {
	if ranLastBatch >= workerBatchSize || w.local.hasReadyProcess() || w.shared.hasReadyProcess() {
		return 0
	}
	deadline, ok := w.timers.nextDeadline()
	if !ok {
		return int(maxPollDelay.Milliseconds())
	}
	delay := time.Until(deadline)
	if delay < 0 {
		return 0
	}
	if delay > maxPollDelay {
		delay = maxPollDelay
	}
	if delay > 0 && delay < time.Millisecond {
		return 1
	}
	return int(delay.Milliseconds())
}

// drainOnShutdown gives each ready process of this worker's local
// scheduler one final poll, so it can observe ctx cancellation and release
// resources, and then removes it whatever the poll returned. Processes of
// the shared scheduler are not polled here.
func (w *worker) drainOnShutdown(ctx context.Context) {
	// Only processes currently ready get a final poll; ones parked waiting
	// on an event that will now never arrive (their worker is going away)
	// are simply abandoned. Shutdown and Close both end up here.
	for {
		pd, ok := w.local.nextProcess()
		if !ok {
			return
		}
		pd.body.Run(ctx, pd.id)
		w.local.complete(pd, 0)
	}
}
