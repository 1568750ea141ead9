// Package actorloop implements an actor runtime: concurrent programs built
// as collections of isolated, message-passing units ("actors") scheduled
// cooperatively across a small pool of worker threads, with non-blocking I/O
// integration.
//
// Actors own their state; all interaction between actors happens by
// asynchronous message delivery through bounded inboxes (see [NewInbox]).
// Actors are driven by a priority-weighted, runtime-aware scheduler, woken
// by a compact [Waker] handle whenever an external event (I/O completion,
// timer expiry, inbox write, cross-thread notification) makes them ready to
// run again.
package actorloop
