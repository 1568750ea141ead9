package actorloop

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalShouldStopOnlyInterruptAndSIGTERM(t *testing.T) {
	assert.True(t, signalShouldStop(os.Interrupt))
	assert.True(t, signalShouldStop(syscall.SIGTERM))
	assert.False(t, signalShouldStop(syscall.SIGHUP))
	assert.False(t, signalShouldStop(syscall.SIGUSR1))
}

func TestSignalRelayDeliversToRegisteredReceivers(t *testing.T) {
	r := newSignalRelay()
	ch := make(chan os.Signal, 1)
	r.register(ch)

	var unhandled []os.Signal
	r.relay(syscall.SIGHUP, func(sig os.Signal) { unhandled = append(unhandled, sig) })

	select {
	case got := <-ch:
		assert.Equal(t, syscall.SIGHUP, got)
	default:
		t.Fatal("registered receiver never got the relayed signal")
	}
	assert.Empty(t, unhandled, "a registered receiver means the signal is handled")
}

func TestSignalRelayCallsUnhandledStopWhenNoReceivers(t *testing.T) {
	r := newSignalRelay()

	var stopped []os.Signal
	r.relay(syscall.SIGTERM, func(sig os.Signal) { stopped = append(stopped, sig) })

	require.Len(t, stopped, 1)
	assert.Equal(t, syscall.SIGTERM, stopped[0])
}

func TestSignalRelayIgnoresNonStopSignalWithNoReceivers(t *testing.T) {
	r := newSignalRelay()

	called := false
	r.relay(syscall.SIGHUP, func(os.Signal) { called = true })

	assert.False(t, called, "SIGHUP with no receivers should not trip the unhandled-stop path")
}

func TestSignalRelayUnregisterStopsDelivery(t *testing.T) {
	r := newSignalRelay()
	ch := make(chan os.Signal, 1)
	r.register(ch)
	r.unregister(ch)

	called := false
	r.relay(syscall.SIGTERM, func(os.Signal) { called = true })
	assert.True(t, called, "once unregistered, the receiver no longer counts and the signal is unhandled")

	select {
	case <-ch:
		t.Fatal("unregistered channel should not receive the signal")
	default:
	}
}

func TestSignalRelayDeliveryIsNonBlockingOnFullReceiver(t *testing.T) {
	r := newSignalRelay()
	ch := make(chan os.Signal) // unbuffered, nobody reading
	r.register(ch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.relay(syscall.SIGHUP, nil)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay blocked on a receiver that wasn't reading")
	}
}

func TestRuntimeNotifySignalRoundTrip(t *testing.T) {
	rt := NewRuntime(WithWorkers(1))
	ch := make(chan os.Signal, 1)
	rt.NotifySignal(ch)

	rt.signals.relay(syscall.SIGHUP, nil)
	select {
	case got := <-ch:
		assert.Equal(t, syscall.SIGHUP, got)
	default:
		t.Fatal("Runtime.NotifySignal receiver never observed the relayed signal")
	}

	rt.StopNotifySignal(ch)
	rt.signals.relay(syscall.SIGHUP, nil)
	select {
	case <-ch:
		t.Fatal("StopNotifySignal should have unregistered the channel")
	default:
	}
}
