package actorloop

import (
	"log/slog"
	"os"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// noopLogger is used when a Runtime is constructed without WithSlogHandler.
// logiface's own disabled-level machinery already makes unconditional
// builder calls cheap, but a nil *logiface.Logger would panic, so every
// Runtime always has a real (if silent) one.
func noopLogger() *logiface.Logger[*islog.Event] {
	return islog.L.New(islog.L.WithSlogHandler(slog.New(slog.DiscardHandler)))
}

// logSpawn and friends centralize the Runtime's structured logging call
// sites in the teacher's fluent-builder style (see the sql/export package's
// usage of the same Logger[E]/Builder[E] API this module depends on):
// guard expensive field construction behind Enabled() checks, and always
// end the chain with Log(message).
func logSpawn(l *logiface.Logger[*islog.Event], name string, pid ProcessId, priority Priority) {
	if b := l.Debug(); b.Enabled() {
		b.Str("actor", name).Uint64("pid", uint64(pid)).Str("priority", priority.String()).Log("spawned actor")
	}
}

func logActorFailure(l *logiface.Logger[*islog.Event], name string, pid ProcessId, err error, directive Directive) {
	if b := l.Warning(); b.Enabled() {
		verb := "stopped"
		if directive.IsRestart() {
			verb = "restarting"
		}
		b.Str("actor", name).Uint64("pid", uint64(pid)).Err(err).Str("directive", verb).Log("actor failed")
	}
}

func logWorkerPollError(l *logiface.Logger[*islog.Event], workerID int, err error) {
	if b := l.Warning(); b.Enabled() {
		b.Int("worker", workerID).Err(err).Log("poll error")
	}
}

func logRuntimeShutdown(l *logiface.Logger[*islog.Event], phase string) {
	if b := l.Info(); b.Enabled() {
		b.Str("phase", phase).Log("runtime shutdown")
	}
}

func logSignalRelayed(l *logiface.Logger[*islog.Event], sig os.Signal) {
	if b := l.Debug(); b.Enabled() {
		b.Str("signal", sig.String()).Log("relaying signal")
	}
}

func logSignalUnhandledStop(l *logiface.Logger[*islog.Event], sig os.Signal) {
	if b := l.Warning(); b.Enabled() {
		b.Str("signal", sig.String()).Log("signal had no receivers, stopping runtime")
	}
}
