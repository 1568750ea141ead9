package actorloop

import (
	"context"
	"fmt"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// Actor is user code driven by the runtime: a Process whose Run method is
// given a Context bundling its identity, a handle back to the Runtime, and
// the receive half of its inbox.
type Actor[M any] interface {
	// Run polls the actor once, following the same Pending/Complete
	// contract as Process.Run. Actors typically call ctx.Inbox().PollRecv
	// early, returning Pending if it does, and forwarding any
	// ActorError-wrapped failure by returning it from an enclosing
	// NewActor so the Supervisor can decide what happens next.
	Run(ctx *ActorContext[M]) PollResult
}

// ActorContext is the handle passed to an Actor on every poll.
type ActorContext[M any] struct {
	pid     ProcessId
	rt      *Runtime
	inbox   *Receiver[M]
	waker   *Waker
}

// Id returns the actor's stable process identifier.
func (c *ActorContext[M]) Id() ProcessId { return c.pid }

// Runtime returns the runtime the actor is running under, for spawning
// children or looking up other actors' senders.
func (c *ActorContext[M]) Runtime() *Runtime { return c.rt }

// Inbox returns the receive half of the actor's mailbox.
func (c *ActorContext[M]) Inbox() *Receiver[M] { return c.inbox }

// Waker returns a cloneable handle that marks this actor ready again. Safe
// to clone and hand to any I/O callback, timer, or another actor.
func (c *ActorContext[M]) Waker() *Waker { return c.waker }

// NewActor constructs a fresh Actor instance, given a context.Context
// scoped to the actor's lifetime (cancelled on Stop), the ActorContext
// identity/inbox bundle, and a construction argument. arg is nil for the
// actor's initial construction; a Supervisor-driven Restart calls this
// again with the same ActorContext (same identity, same Receiver) and
// whatever arg the Supervisor's Directive carried.
type NewActor[M any] func(ctx context.Context, actx *ActorContext[M], arg any) (Actor[M], error)

// actorProcess adapts an Actor[M] (plus its constructor, for restarts) into
// the Process interface the scheduler actually runs.
type actorProcess[M any] struct {
	name       string
	newActor   NewActor[M]
	ctx        context.Context
	cancel     context.CancelFunc
	actx       *ActorContext[M]
	supervisor Supervisor
	logger     *logiface.Logger[*islog.Event]
	current    Actor[M]
	// arg is threaded into the next newActor call. It is nil for the
	// actor's initial construction and is set from the Supervisor's
	// Directive whenever a Restart is decided.
	arg any
}

func (p *actorProcess[M]) Name() string { return p.name }

func (p *actorProcess[M]) Run(ctx context.Context, pid ProcessId) PollResult {
	if p.current == nil {
		actor, err := p.newActor(p.ctx, p.actx, p.arg)
		if err != nil {
			// Construction failure on (re)start is reported via the
			// supervisor, same as a panic from Run: Stop cancels the
			// actor for good, Restart gives it another pass through the
			// scheduler instead of busy-looping a constructor that just
			// failed.
			return p.afterFailure(&SpawnError{Cause: err})
		}
		p.current = actor
	}

	result := p.runOnce()
	if result != Complete {
		return result
	}
	if p.current == nil {
		// runOnce recovered a panic and the supervisor chose Restart:
		// this Run call is not actually terminal, it just needs to
		// return to the scheduler so a fresh incarnation can be built
		// next time around.
		return p.parkForRestart()
	}
	return Complete
}

func (p *actorProcess[M]) runOnce() (result PollResult) {
	defer func() {
		if r := recover(); r != nil {
			p.reportFailure(panicToError(r))
			result = Complete
		}
	}()
	return p.current.Run(p.actx)
}

// afterFailure reports err to the supervisor and translates its decision
// into the PollResult the scheduler should see: Complete if the actor is
// being stopped for good, Pending (with a self-wake so it gets polled
// again promptly) if it is being restarted.
func (p *actorProcess[M]) afterFailure(err error) PollResult {
	p.reportFailure(err)
	if p.current == nil && p.ctx.Err() == nil {
		return p.parkForRestart()
	}
	return Complete
}

func (p *actorProcess[M]) parkForRestart() PollResult {
	p.actx.waker.Wake()
	return Pending
}

func (p *actorProcess[M]) reportFailure(err error) {
	if p.supervisor == nil {
		return
	}
	d := p.supervisor.Decide(p.name, err)
	if p.logger != nil {
		logActorFailure(p.logger, p.name, p.actx.pid, err, d)
	}
	if d.IsRestart() {
		p.arg = d.Arg()
		p.current = nil // next Run call constructs a fresh incarnation
	} else {
		p.cancel()
	}
}

func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return ActorError[error]{Err: err}
	}
	return ActorError[error]{Err: fmt.Errorf("actorloop: panic: %v", r)}
}
