package actorloop

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// Directive is a Supervisor's decision about what to do with an actor
// that just failed. A Restart directive carries an arg, threaded into the
// next NewActor call so the supervisor can parameterize the actor's
// reconstruction (a reset flag, a backoff count, the error that triggered
// the restart) instead of only ever rebuilding from the same fixed state.
type Directive struct {
	restart bool
	arg     any
}

// Stop discards the actor and cancels its context. Its inbox is not
// closed: senders do not observe ChannelDisconnected and can keep sending
// until it is full.
func Stop() Directive { return Directive{} }

// Restart recreates the actor from its NewActor constructor, passing arg
// through to the reconstruction call, reusing the same ProcessId and the
// same Receiver of the existing inbox.
func Restart(arg any) Directive { return Directive{restart: true, arg: arg} }

// IsRestart reports whether this directive is a Restart.
func (d Directive) IsRestart() bool { return d.restart }

// Arg returns the restart argument, or nil for a Stop directive or a
// Restart with no argument supplied.
func (d Directive) Arg() any { return d.arg }

// Supervisor decides how a Runtime responds when an actor's Run panics
// (reported as an ActorError) or its NewActor constructor returns an error
// (reported as a *SpawnError). Implementations are called from whatever worker goroutine
// observed the failure, so they must be safe for concurrent use.
type Supervisor interface {
	Decide(name string, err error) Directive
}

// restartLimiter is the capability a Supervisor uses to throttle restarts.
// go-catrate's Limiter satisfies this directly.
type restartLimiter interface {
	Allow(category any) (time.Time, bool)
}

// defaultRestartLimiter returns a go-catrate Limiter permitting at most 5
// restarts per 10 seconds and 20 per minute, per distinct actor name.
// Beyond that a RestartThenStop-style Supervisor should treat the actor as
// unrecoverable rather than restart-looping it forever.
func defaultRestartLimiter() restartLimiter {
	return catrate.NewLimiter(map[time.Duration]int{
		10 * time.Second: 5,
		time.Minute:      20,
	})
}

// RestartThenStop is a Supervisor that restarts an actor on failure until
// its restart rate (tracked per actor name by limiter) is exceeded, after
// which it stops the actor permanently.
type RestartThenStop struct {
	limiter restartLimiter
}

// NewRestartThenStop builds a RestartThenStop supervisor. A nil limiter
// falls back to defaultRestartLimiter.
func NewRestartThenStop(limiter restartLimiter) *RestartThenStop {
	if limiter == nil {
		limiter = defaultRestartLimiter()
	}
	return &RestartThenStop{limiter: limiter}
}

func (s *RestartThenStop) Decide(name string, _ error) Directive {
	if _, ok := s.limiter.Allow(name); ok {
		return Restart(nil)
	}
	return Stop()
}

// AlwaysStop is a Supervisor that never restarts a failed actor.
type AlwaysStop struct{}

func (AlwaysStop) Decide(string, error) Directive { return Stop() }

var (
	_ Supervisor     = (*RestartThenStop)(nil)
	_ Supervisor     = AlwaysStop{}
	_ restartLimiter = (*catrate.Limiter)(nil)
)
