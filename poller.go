package actorloop

import "errors"

// IOEvents is a bitmask of the I/O readiness conditions a worker can
// subscribe a file descriptor to.
type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	EventError
	EventHangup
)

// IOCallback is invoked with the observed events when a registered fd
// becomes ready. It runs on the polling worker's own goroutine and must
// not block; its usual job is to call markReady through a Waker captured
// at registration time.
type IOCallback func(IOEvents)

// Standard poller errors.
var (
	ErrFDAlreadyRegistered = errors.New("actorloop: fd already registered")
	ErrFDNotRegistered     = errors.New("actorloop: fd not registered")
	ErrPollerClosed        = errors.New("actorloop: poller closed")
)

// poller is the OS-facing I/O readiness source each worker owns one of.
// Sockets, io_uring, HTTP, and any other transport are callers of this
// interface, not part of it: the runtime only needs to know when a raw fd
// became readable/writable/erroring and to deliver that to whoever
// registered interest in it.
type poller interface {
	Init() error
	Close() error
	RegisterFD(fd int, events IOEvents, cb IOCallback) error
	UnregisterFD(fd int) error
	ModifyFD(fd int, events IOEvents) error
	// PollIO blocks for at most timeoutMs milliseconds (0 means return
	// immediately, negative means wait indefinitely) waiting for I/O
	// readiness, dispatching any ready callbacks before returning the
	// count processed.
	PollIO(timeoutMs int) (int, error)
}
