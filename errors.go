package actorloop

import (
	"errors"
	"fmt"
)

// Standard runtime errors.
var (
	// ErrRuntimeAlreadyRunning is returned when Run is called on a runtime
	// that has already been started.
	ErrRuntimeAlreadyRunning = errors.New("actorloop: runtime is already running")

	// ErrRuntimeTerminated is returned when operations are attempted on a
	// runtime that has fully shut down.
	ErrRuntimeTerminated = errors.New("actorloop: runtime has been terminated")

	// ErrRuntimeNotRunning is returned when operations requiring a running
	// runtime are attempted before Run has been called.
	ErrRuntimeNotRunning = errors.New("actorloop: runtime is not running")

	// ErrReceiverAlreadyConnected is returned by Manager.NewReceiver when a
	// Receiver already exists for the channel.
	ErrReceiverAlreadyConnected = errors.New("actorloop: a receiver is already connected")
)

// ChannelFull is returned from TrySend when no slot in the inbox is empty.
// It carries the value that could not be sent so the caller may retry.
type ChannelFull[T any] struct {
	Value T
}

func (e ChannelFull[T]) Error() string {
	return "actorloop: inbox is full"
}

// ChannelDisconnected is returned from TrySend/PollSend once both the Receiver
// and the Manager for a channel are gone. It carries the unsent value.
type ChannelDisconnected[T any] struct {
	Value T
}

func (e ChannelDisconnected[T]) Error() string {
	return "actorloop: inbox is disconnected"
}

// ChannelEmpty is returned from TryRecv when no slot currently holds a
// value. It is benign: the caller should poll again later.
var ChannelEmpty = errors.New("actorloop: inbox is empty")

// ChannelDisconnectedRecv is returned from TryRecv once every Sender has
// gone and no further values can arrive. It is terminal for the receiver.
var ChannelDisconnectedRecv = errors.New("actorloop: inbox is disconnected")

// SpawnError wraps an error returned by a NewActor constructor. Actors are
// constructed lazily on their first poll, so the process is already
// scheduled when this happens; the error is reported to the actor's
// Supervisor, which decides whether construction is tried again.
type SpawnError struct {
	Cause error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("actorloop: spawn failed: %v", e.Cause)
}

func (e *SpawnError) Unwrap() error { return e.Cause }

// ActorError wraps a user-defined actor failure, routed to the actor's
// Supervisor for a Restart/Stop decision.
type ActorError[E any] struct {
	Err E
}

func (e ActorError[E]) Error() string {
	return fmt.Sprintf("actorloop: actor error: %v", e.Err)
}

func (e ActorError[E]) Unwrap() error {
	if err, ok := any(e.Err).(error); ok {
		return err
	}
	return nil
}
