package actorloop

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboxTrySendTryRecv(t *testing.T) {
	sender, receiver, manager := NewInbox[int](4)
	defer manager.Close()

	require.NoError(t, sender.TrySend(1))
	require.NoError(t, sender.TrySend(2))

	v, err := receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = receiver.TryRecv()
	assert.Equal(t, ChannelEmpty, err)
}

func TestInboxCapacityAboveMaxIsClampedAndCursorStillAdvances(t *testing.T) {
	// Requesting 32 (or more) rounds up past maxInboxCapacity, the largest
	// power of two whose status bits and receiver cursor both fit in the
	// single 64-bit status/cursor word; anything bigger would zero the
	// cursor shift instead of wrapping it, freezing the wake heuristic.
	sender, receiver, manager := NewInbox[int](32)
	defer manager.Close()
	assert.Equal(t, uint64(maxInboxCapacity), sender.core.cap)
	assert.NotZero(t, sender.core.cursorStep, "cursorStep must never be zero: it is the atomic.AddUint64 step that advances the receiver cursor")

	for i := 0; i < maxInboxCapacity; i++ {
		require.NoError(t, sender.TrySend(i), "slot %d should fit in the clamped capacity", i)
	}
	err := sender.TrySend(99)
	var full ChannelFull[int]
	require.ErrorAs(t, err, &full)

	registry := newWakerRegistry()
	var woken atomic.Bool
	slot := registry.register(&wakeTarget{scheduler: recordingMarker{&woken}, nudge: nil})
	waker := newWaker(registry, slot, 0)

	// Drain every slot, then park the receiver; sending into any
	// slot other than slot 0 used to never advance a frozen cursor, so the
	// wake heuristic (cursorOf(after) == i) would never fire.
	for i := 0; i < maxInboxCapacity; i++ {
		v, err := receiver.TryRecv()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	result, _, err := receiver.PollRecv(waker)
	require.NoError(t, err)
	assert.Equal(t, Pending, result)

	require.NoError(t, sender.TrySend(123))
	assert.Eventually(t, woken.Load, time.Second, time.Millisecond, "sending at capacity 32+ should still wake a parked receiver")
}

func TestInboxCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	sender, _, manager := NewInbox[int](5)
	defer manager.Close()
	for i := 0; i < 8; i++ {
		require.NoError(t, sender.TrySend(i), "slot %d should fit in a rounded-up capacity of 8", i)
	}
	err := sender.TrySend(99)
	var full ChannelFull[int]
	require.ErrorAs(t, err, &full)
	assert.Equal(t, 99, full.Value)
}

func TestInboxTrySendFullReturnsValue(t *testing.T) {
	sender, _, manager := NewInbox[string](1)
	defer manager.Close()
	require.NoError(t, sender.TrySend("a"))
	err := sender.TrySend("b")
	var full ChannelFull[string]
	require.ErrorAs(t, err, &full)
	assert.Equal(t, "b", full.Value)
}

func TestInboxDisconnectOnReceiverAndManagerGone(t *testing.T) {
	sender, receiver, manager := NewInbox[int](2)
	receiver.Close()
	manager.Close()

	err := sender.TrySend(1)
	var disc ChannelDisconnected[int]
	require.ErrorAs(t, err, &disc)
	assert.Equal(t, 1, disc.Value)
}

func TestInboxRecvDisconnectOnceSendersGone(t *testing.T) {
	sender, receiver, manager := NewInbox[int](2)
	defer manager.Close()
	require.NoError(t, sender.TrySend(42))
	sender.Close()

	// the already-buffered value is still delivered first.
	v, err := receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = receiver.TryRecv()
	assert.Equal(t, ChannelDisconnectedRecv, err)
}

func TestInboxManagerOutlivesReceiverAndMintsReplacement(t *testing.T) {
	sender, receiver, manager := NewInbox[int](2)
	require.NoError(t, sender.TrySend(7))

	receiver.Close()
	// a Sender can still enqueue while only the Manager remains attached.
	require.NoError(t, sender.TrySend(8))

	newReceiver, err := manager.NewReceiver()
	require.NoError(t, err)

	v, err := newReceiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	v, err = newReceiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 8, v)

	_, err = manager.NewReceiver()
	assert.ErrorIs(t, err, ErrReceiverAlreadyConnected)
}

func TestInboxSenderCloneKeepsChannelConnected(t *testing.T) {
	sender, receiver, manager := NewInbox[int](2)
	defer manager.Close()
	clone := sender.Clone()

	sender.Close()
	// clone is still live, so the channel must not report disconnected yet.
	require.NoError(t, clone.TrySend(1))

	clone.Close()
	_, err := receiver.TryRecv()
	require.NoError(t, err) // the buffered value is still readable
	_, err = receiver.TryRecv()
	assert.Equal(t, ChannelDisconnectedRecv, err)
}

func TestInboxPollSendWakesOnSpace(t *testing.T) {
	sender, receiver, manager := NewInbox[int](1)
	defer manager.Close()
	require.NoError(t, sender.TrySend(1))

	registry := newWakerRegistry()
	var woken atomic.Bool
	slot := registry.register(&wakeTarget{scheduler: recordingMarker{&woken}, nudge: nil})
	waker := newWaker(registry, slot, 0)

	result, _, err := sender.PollSend(2, waker)
	require.NoError(t, err)
	assert.Equal(t, Pending, result)
	assert.False(t, woken.Load())

	v, err := receiver.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	assert.Eventually(t, woken.Load, time.Second, time.Millisecond, "freeing a slot should wake the pending sender")
}

func TestInboxPollRecvWakesOnSend(t *testing.T) {
	sender, receiver, manager := NewInbox[int](2)
	defer manager.Close()

	registry := newWakerRegistry()
	var woken atomic.Bool
	slot := registry.register(&wakeTarget{scheduler: recordingMarker{&woken}, nudge: nil})
	waker := newWaker(registry, slot, 0)

	result, _, err := receiver.PollRecv(waker)
	require.NoError(t, err)
	assert.Equal(t, Pending, result)

	require.NoError(t, sender.TrySend(9))
	assert.Eventually(t, woken.Load, time.Second, time.Millisecond, "sending into an empty inbox should wake the parked receiver")
}

func TestInboxConcurrentSendersSingleReceiver(t *testing.T) {
	const producers = 8
	const perProducer = 200
	sender, receiver, manager := NewInbox[int](16)
	defer manager.Close()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for {
					if err := sender.TrySend(base + i); err == nil {
						break
					}
					time.Sleep(time.Microsecond)
				}
			}
		}(p * perProducer)
	}

	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for received < producers*perProducer {
			if _, err := receiver.TryRecv(); err == nil {
				received++
			}
		}
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("receiver stalled: got %d of %d", received, producers*perProducer)
	}
	assert.Equal(t, producers*perProducer, received)
}

// recordingMarker lets tests observe a Waker.Wake() call without depending
// on a real scheduler.
type recordingMarker struct{ woken *atomic.Bool }

func (r recordingMarker) markReady(ProcessId) { r.woken.Store(true) }
