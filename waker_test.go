package actorloop

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWakerWakeMarksReadyAndNudges(t *testing.T) {
	registry := newWakerRegistry()
	s := newLocalScheduler()
	s.addNewProcess(5, NORMAL, noopProcess{"p"}, false)

	nudged := false
	target := &wakeTarget{scheduler: s, nudge: func() { nudged = true }}
	slot := registry.register(target)
	w := newWaker(registry, slot, 5)

	require.False(t, s.hasReadyProcess())
	w.Wake()
	assert.True(t, s.hasReadyProcess())
	assert.True(t, nudged)
	runtime.KeepAlive(target)
}

func TestWakerWakeNilReceiverIsNoop(t *testing.T) {
	var w *Waker
	assert.NotPanics(t, func() { w.Wake() })
}

func TestWakerWakeUnregisteredSlotIsNoop(t *testing.T) {
	registry := newWakerRegistry()
	target := &wakeTarget{scheduler: recordingMarker{}, nudge: nil}
	slot := registry.register(target)
	registry.unregister(slot)

	w := newWaker(registry, slot, 1)
	assert.NotPanics(t, func() { w.Wake() })
	runtime.KeepAlive(target)
}

func TestWakerWillWake(t *testing.T) {
	registry := newWakerRegistry()
	target := &wakeTarget{scheduler: recordingMarker{}, nudge: nil}
	slot := registry.register(target)

	a := newWaker(registry, slot, 3)
	b := newWaker(registry, slot, 3)
	c := newWaker(registry, slot, 4)
	other := newWakerRegistry()
	d := newWaker(other, slot, 3)

	assert.True(t, a.WillWake(b))
	assert.False(t, a.WillWake(c), "different pid should not be considered the same wake target")
	assert.False(t, a.WillWake(d), "different registry should not be considered the same wake target")
	runtime.KeepAlive(target)
}

func TestWakerWillWakeNilHandling(t *testing.T) {
	var a, b *Waker
	assert.True(t, a.WillWake(b))

	registry := newWakerRegistry()
	w := newWaker(registry, 0, 1)
	assert.False(t, w.WillWake(nil))
	assert.False(t, a.WillWake(w))
}

func TestWakerCloneIsIndependentValue(t *testing.T) {
	registry := newWakerRegistry()
	target := &wakeTarget{scheduler: recordingMarker{}, nudge: nil}
	slot := registry.register(target)
	w := newWaker(registry, slot, 9)

	clone := w.Clone()
	require.NotSame(t, w, clone)
	assert.True(t, w.WillWake(clone))
	runtime.KeepAlive(target)
}

func TestWakerCloneNil(t *testing.T) {
	var w *Waker
	assert.Nil(t, w.Clone())
}

func TestWakerRegistrySlotReuse(t *testing.T) {
	registry := newWakerRegistry()
	target1 := &wakeTarget{scheduler: recordingMarker{}, nudge: nil}
	slot1 := registry.register(target1)
	registry.unregister(slot1)

	target2 := &wakeTarget{scheduler: recordingMarker{}, nudge: nil}
	slot2 := registry.register(target2)
	assert.Equal(t, slot1, slot2, "a freed slot should be reused by the next register call")
	runtime.KeepAlive(target1)
	runtime.KeepAlive(target2)
}

func TestWakerRegistryGetReturnsNilForReclaimedTarget(t *testing.T) {
	registry := newWakerRegistry()
	slot := func() uint32 {
		target := &wakeTarget{scheduler: recordingMarker{}, nudge: nil}
		return registry.register(target)
		// target falls out of scope here with no other live references.
	}()

	var got *wakeTarget
	for i := 0; i < 10; i++ {
		runtime.GC()
		got = registry.get(slot)
		if got == nil {
			break
		}
	}
	assert.Nil(t, got, "a weakly-held target with no other references should eventually be reclaimed")
}
