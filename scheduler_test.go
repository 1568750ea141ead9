package actorloop

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopProcess struct{ name string }

func (p noopProcess) Name() string { return p.name }
func (p noopProcess) Run(context.Context, ProcessId) PollResult { return Pending }

func TestLocalSchedulerPriorityOrdering(t *testing.T) {
	s := newLocalScheduler()
	lowID := s.addNewProcess(1, LOW, noopProcess{"low"}, true).id
	highID := s.addNewProcess(2, HIGH, noopProcess{"high"}, true).id
	normalID := s.addNewProcess(3, NORMAL, noopProcess{"normal"}, true).id

	// All start with zero accumulated runtime, so the HIGH-weighted one
	// (weight 1) sorts first, then NORMAL (weight 2), then LOW (weight 3).
	first, ok := s.nextProcess()
	require.True(t, ok)
	assert.Equal(t, highID, first.id)

	second, ok := s.nextProcess()
	require.True(t, ok)
	assert.Equal(t, normalID, second.id)

	third, ok := s.nextProcess()
	require.True(t, ok)
	assert.Equal(t, lowID, third.id)
}

func TestLocalSchedulerMarkReadyIdempotentOnReadyOrRunning(t *testing.T) {
	s := newLocalScheduler()
	pd := s.addNewProcess(1, NORMAL, noopProcess{"p"}, true)

	// Already ready: marking again must not double-enqueue it.
	s.markReady(pd.id)
	assert.Equal(t, 1, s.readyLen())

	running, ok := s.nextProcess()
	require.True(t, ok)
	assert.Equal(t, pd, running)

	// Running, not inactive: marking ready is a no-op.
	s.markReady(pd.id)
	assert.Equal(t, 0, s.readyLen())
}

func TestLocalSchedulerMarkReadyUnknownPidIsNoop(t *testing.T) {
	s := newLocalScheduler()
	assert.NotPanics(t, func() { s.markReady(999) })
	assert.Equal(t, 0, s.len())
}

func TestLocalSchedulerParkThenMarkReady(t *testing.T) {
	s := newLocalScheduler()
	pd := s.addNewProcess(1, NORMAL, noopProcess{"p"}, false)
	assert.False(t, s.hasReadyProcess())

	s.markReady(pd.id)
	assert.True(t, s.hasReadyProcess())

	got, ok := s.nextProcess()
	require.True(t, ok)
	assert.Equal(t, pd.id, got.id)

	s.park(got, 1000)
	assert.False(t, s.hasReadyProcess())
	assert.True(t, s.hasProcess(got.id))
}

func TestLocalSchedulerCompleteRemovesProcess(t *testing.T) {
	s := newLocalScheduler()
	pd := s.addNewProcess(1, NORMAL, noopProcess{"p"}, true)
	got, ok := s.nextProcess()
	require.True(t, ok)
	s.complete(got, 10)
	assert.False(t, s.hasProcess(pd.id))
	assert.Equal(t, 0, s.len())
}

func TestSharedSchedulerConcurrentMarkReadyAndPop(t *testing.T) {
	s := newSharedScheduler()
	const n = 200
	ids := make([]ProcessId, 0, n)
	for i := 0; i < n; i++ {
		pd := s.addNewProcess(ProcessId(i+1), NORMAL, noopProcess{"p"}, false)
		ids = append(ids, pd.id)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id ProcessId) {
			defer wg.Done()
			s.markReady(id)
		}(id)
	}
	wg.Wait()

	popped := 0
	for {
		pd, ok := s.nextProcess()
		if !ok {
			break
		}
		s.complete(pd, 0)
		popped++
	}
	assert.Equal(t, n, popped)
}

func TestProcessDataLessTieBreaksOnId(t *testing.T) {
	a := &ProcessData{id: 1, priority: NORMAL}
	b := &ProcessData{id: 2, priority: NORMAL}
	assert.True(t, a.less(b))
	assert.False(t, b.less(a))
}
