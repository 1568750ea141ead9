package actorloop

import (
	"context"
	"errors"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// runtimeState mirrors the teacher's FastState/LoopState shape (state.go):
// a small atomic enum with CAS-guarded transitions, checked before
// committing to a Run or Shutdown.
type runtimeState int32

const (
	stateAwake runtimeState = iota
	stateLiveRunning
	stateTerminating
	stateTerminated
)

// Runtime coordinates a pool of workers. It does not itself run processes
// (each worker's own event loop does that); Runtime owns process spawning,
// the shared work-stealing scheduler, the waker registry, and worker
// lifecycle/shutdown sequencing.
//
// Grounded on the teacher's Loop type (loop.go) for the Run/Shutdown/Close
// lifecycle contract, generalized from one event loop to a fixed pool of
// them sharing a scheduler.
type Runtime struct {
	state atomic.Int32

	workers    []*worker
	shared     *sharedScheduler
	registry   *wakerRegistry
	sharedSlot uint32
	// sharedTarget keeps the shared scheduler's wake target alive; the
	// registry only holds it weakly.
	sharedTarget *wakeTarget

	nextPid atomic.Uint64

	logger  *logiface.Logger[*islog.Event]
	metrics *Metrics

	defaultInboxCapacity int
	defaultSupervisor    Supervisor

	signals     *signalRelay
	signalsOpts []os.Signal

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// Standard runtime errors are declared in errors.go.

// NewRuntime constructs a Runtime. Workers are not started until Run is
// called.
func NewRuntime(opts ...Option) *Runtime {
	o := resolveRuntimeOptions(opts, runtime.GOMAXPROCS(0))
	if o.workers < 1 {
		o.workers = 1
	}

	rt := &Runtime{
		shared:               newSharedScheduler(),
		registry:             newWakerRegistry(),
		defaultInboxCapacity: o.inboxCapacity,
		defaultSupervisor:    NewRestartThenStop(o.restartLimiter),
		signals:              newSignalRelay(),
		signalsOpts:          o.signals,
		done:                 make(chan struct{}),
	}
	if o.logger != nil {
		rt.logger = o.logger
	} else {
		rt.logger = noopLogger()
	}
	if o.metricsEnabled {
		rt.metrics = newMetrics()
	}
	rt.sharedTarget = &wakeTarget{scheduler: rt.shared, nudge: nil}
	rt.sharedSlot = rt.registry.register(rt.sharedTarget)

	for i := 0; i < o.workers; i++ {
		w, err := newWorker(i, rt)
		if err != nil {
			// A worker failing to initialize its poller/eventfd is an
			// environment problem (fd exhaustion, unsupported platform);
			// there is no well-typed recovery here, so the failure
			// surfaces the first time the caller touches the runtime via
			// Run, not at construction.
			rt.workers = append(rt.workers, nil)
			continue
		}
		rt.workers = append(rt.workers, w)
	}
	return rt
}

// Run starts every worker and blocks until ctx is cancelled or Shutdown
// is called from another goroutine, then waits for workers to drain.
func (rt *Runtime) Run(ctx context.Context) error {
	if !rt.state.CompareAndSwap(int32(stateAwake), int32(stateLiveRunning)) {
		switch runtimeState(rt.state.Load()) {
		case stateTerminated, stateTerminating:
			return ErrRuntimeTerminated
		default:
			return ErrRuntimeAlreadyRunning
		}
	}

	for _, w := range rt.workers {
		if w == nil {
			rt.state.Store(int32(stateTerminated))
			return errors.New("actorloop: a worker failed to initialize")
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel

	rt.signals.start(
		func(sig os.Signal) { logSignalRelayed(rt.logger, sig) },
		func(sig os.Signal) {
			logSignalUnhandledStop(rt.logger, sig)
			_ = rt.Close()
		},
		rt.signalsOpts...,
	)

	var wg sync.WaitGroup
	for _, w := range rt.workers {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			w.run(runCtx)
		}(w)
	}

	logRuntimeShutdown(rt.logger, "running")
	wg.Wait()
	rt.signals.stop()
	rt.state.Store(int32(stateTerminated))
	close(rt.done)
	logRuntimeShutdown(rt.logger, "terminated")
	return nil
}

// Shutdown requests a stop: every worker finishes its current tick, gives
// the ready processes of its local (pinned) scheduler one final poll,
// abandons parked ones, and Run returns. Shutdown blocks until that has
// happened or ctx expires first.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	rt.stopOnce.Do(func() {
		if rt.cancel != nil {
			rt.cancel()
		}
		for _, w := range rt.workers {
			if w != nil {
				w.stopping.Store(true)
				w.requestWake()
			}
		}
	})
	select {
	case <-rt.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close requests the same stop as Shutdown without waiting for it to
// finish. Unlike Shutdown it does not block.
func (rt *Runtime) Close() error {
	rt.stopOnce.Do(func() {
		if rt.cancel != nil {
			rt.cancel()
		}
		for _, w := range rt.workers {
			if w != nil {
				w.stopping.Store(true)
				w.requestWake()
			}
		}
	})
	return nil
}

// Metrics returns the runtime's metrics snapshot source, or nil if
// WithMetrics was never enabled.
func (rt *Runtime) Metrics() *Metrics { return rt.metrics }

func (rt *Runtime) allocatePid() ProcessId {
	return ProcessId(rt.nextPid.Add(1))
}

// Spawn starts a new plain Process (no actor/inbox scaffolding) under the
// runtime, returning its assigned ProcessId.
func (rt *Runtime) Spawn(body Process, opts ...SpawnOption) ProcessId {
	o := resolveSpawnOptions(opts, rt.defaultInboxCapacity, false)
	pid := rt.allocatePid()
	if o.pinned && len(rt.workers) > 0 {
		w := rt.workers[int(pid)%len(rt.workers)]
		w.local.addNewProcess(pid, o.priority, body, o.startReady)
	} else {
		rt.shared.addNewProcess(pid, o.priority, body, o.startReady)
	}
	return pid
}

// SpawnActor constructs and schedules an Actor[M], wiring its inbox and
// ActorContext. The returned Sender lets any goroutine (including other
// actors) deliver messages. The inbox's Manager is not kept: a
// Supervisor-driven restart reuses the same ActorContext, and so the same
// Receiver, under the same ProcessId.
func SpawnActor[M any](rt *Runtime, name string, newActor NewActor[M], supervisor Supervisor, opts ...SpawnOption) (*Sender[M], ProcessId) {
	o := resolveSpawnOptions(opts, rt.defaultInboxCapacity, true)
	if supervisor == nil {
		supervisor = rt.defaultSupervisor
	}
	sender, receiver, _ := NewInbox[M](o.inboxCapacity)

	pid := rt.allocatePid()
	actx := &ActorContext[M]{pid: pid, rt: rt, inbox: receiver}
	ctx, cancel := context.WithCancel(context.Background())
	actx.waker = rt.wakerForPid(pid, o.pinned)

	proc := &actorProcess[M]{
		name:       name,
		newActor:   newActor,
		ctx:        ctx,
		cancel:     cancel,
		actx:       actx,
		supervisor: supervisor,
		logger:     rt.logger,
	}

	if o.pinned && len(rt.workers) > 0 {
		w := rt.workers[int(pid)%len(rt.workers)]
		w.local.addNewProcess(pid, o.priority, proc, o.startReady)
	} else {
		rt.shared.addNewProcess(pid, o.priority, proc, o.startReady)
	}
	logSpawn(rt.logger, name, pid, o.priority)
	return sender, pid
}

// wakerForPid builds the Waker an actor's own ActorContext carries,
// pointing at whichever scheduler (shared, or a specific pinned worker)
// will actually own the process.
func (rt *Runtime) wakerForPid(pid ProcessId, pinned bool) *Waker {
	if pinned && len(rt.workers) > 0 {
		w := rt.workers[int(pid)%len(rt.workers)]
		return newWaker(rt.registry, w.slot, pid)
	}
	return newWaker(rt.registry, rt.sharedSlot, pid)
}
