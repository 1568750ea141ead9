// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package actorloop

import (
	"log/slog"
	"os"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// runtimeOptions holds resolved Runtime construction configuration. It
// follows the teacher's options.go functional-options shape (Option
// instances mutate a private struct via an applyRuntime closure) rather
// than a public Config struct, so new fields never break callers.
type runtimeOptions struct {
	workers        int
	inboxCapacity  int
	metricsEnabled bool
	logger         *logiface.Logger[*islog.Event]
	restartLimiter restartLimiter
	signals        []os.Signal
}

// Option configures a Runtime.
type Option interface {
	applyRuntime(*runtimeOptions)
}

type optionFunc func(*runtimeOptions)

func (f optionFunc) applyRuntime(o *runtimeOptions) { f(o) }

// WithWorkers sets the number of workers (one goroutine each) the Runtime
// starts. The default is runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return optionFunc(func(o *runtimeOptions) {
		if n > 0 {
			o.workers = n
		}
	})
}

// WithDefaultInboxCapacity sets the capacity new actor inboxes get when
// SpawnActor is called without an explicit capacity override (default 8).
// Rounded up to the next power of two, clamped to maxInboxCapacity (16): the
// inbox's status word and receiver cursor share one 64-bit word, and that
// is the largest power of two both fit in.
func WithDefaultInboxCapacity(n int) Option {
	return optionFunc(func(o *runtimeOptions) {
		if n > 0 {
			o.inboxCapacity = n
		}
	})
}

// WithMetrics enables runtime-wide scheduling metrics, retrievable via
// Runtime.Metrics. Mirrors the teacher's WithMetrics(enabled bool): left
// off by default since even cheap bookkeeping costs something on every
// single dispatch.
func WithMetrics(enabled bool) Option {
	return optionFunc(func(o *runtimeOptions) { o.metricsEnabled = enabled })
}

// WithSlogHandler attaches a log/slog.Handler that the Runtime logs
// lifecycle and scheduling events through, via logiface-slog.
func WithSlogHandler(h slog.Handler) Option {
	return optionFunc(func(o *runtimeOptions) {
		o.logger = islog.L.New(islog.L.WithSlogHandler(h))
	})
}

// WithRestartLimiter overrides the rate limiter used to throttle
// supervisor-driven actor restarts. The default is a go-catrate Limiter
// allowing 5 restarts per 10 seconds per actor name.
func WithRestartLimiter(l restartLimiter) Option {
	return optionFunc(func(o *runtimeOptions) { o.restartLimiter = l })
}

// WithSignals overrides the set of OS signals the Runtime's coordinator
// relays to actors registered via Runtime.NotifySignal. The default is
// os.Interrupt and syscall.SIGTERM.
func WithSignals(sigs ...os.Signal) Option {
	return optionFunc(func(o *runtimeOptions) { o.signals = sigs })
}

func resolveRuntimeOptions(opts []Option, defaultWorkers int) *runtimeOptions {
	o := &runtimeOptions{
		workers:       defaultWorkers,
		inboxCapacity: 8,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyRuntime(o)
	}
	return o
}

// spawnOptions holds resolved per-process spawn configuration: scheduling
// priority, initial readiness, pinning, and inbox capacity.
type spawnOptions struct {
	priority      Priority
	startReady    bool
	pinned        bool
	inboxCapacity int
}

// SpawnOption configures a single Spawn call.
type SpawnOption interface {
	applySpawn(*spawnOptions)
}

type spawnOptionFunc func(*spawnOptions)

func (f spawnOptionFunc) applySpawn(o *spawnOptions) { f(o) }

// WithPriority sets the scheduling priority of the spawned process.
func WithPriority(p Priority) SpawnOption {
	return spawnOptionFunc(func(o *spawnOptions) { o.priority = p })
}

// StartReady controls whether the process is immediately eligible to run
// (true) or starts parked until its first Waker fires (false, the
// default for a plain Spawn), useful for processes that register their
// own external wakeup source (an fd becoming readable, a timer) during
// construction and so need no initial poll to get going. SpawnActor
// overrides this default to true, since an actor's first poll is what
// registers its receive waker with the inbox in the first place — an
// actor spawned with ready false and no other wakeup source would never
// run at all.
func StartReady(ready bool) SpawnOption {
	return spawnOptionFunc(func(o *spawnOptions) { o.startReady = ready })
}

// Pinned pins the process to one worker, chosen by its ProcessId modulo
// the worker count, instead of the shared, work-stealing scheduler. Use for processes whose state is
// unsafe to touch from more than one OS thread (e.g. wrapping a non-
// thread-safe library handle).
func Pinned(pinned bool) SpawnOption {
	return spawnOptionFunc(func(o *spawnOptions) { o.pinned = pinned })
}

// WithInboxCapacity overrides the Runtime's default inbox capacity for
// this actor only. See WithDefaultInboxCapacity for the rounding and
// maxInboxCapacity clamp applied to n.
func WithInboxCapacity(n int) SpawnOption {
	return spawnOptionFunc(func(o *spawnOptions) {
		if n > 0 {
			o.inboxCapacity = n
		}
	})
}

// resolveSpawnOptions applies opts over the baseline defaults, using
// defaultReady as the starting value of startReady before any StartReady
// option is applied. Spawn passes false (a bare process starts parked by
// default); SpawnActor passes true, since an actor's first poll is what
// registers its receive waker with the inbox.
func resolveSpawnOptions(opts []SpawnOption, defaultInboxCapacity int, defaultReady bool) *spawnOptions {
	o := &spawnOptions{
		priority:      NORMAL,
		startReady:    defaultReady,
		inboxCapacity: defaultInboxCapacity,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applySpawn(o)
	}
	return o
}
