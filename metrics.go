package actorloop

import (
	"sync"
	"time"
)

// Metrics tracks optional, low-overhead runtime statistics: process
// dispatch latency percentiles (via the P-Square streaming estimator) and
// poll-loop throughput. Enabled via WithMetrics; a nil *Metrics from
// Runtime.Metrics means metrics were never turned on.
//
// Grounded on the teacher's metrics.go Metrics/LatencyMetrics, simplified
// to the two numbers this runtime actually needs to expose (dispatch
// latency, poll event counts) rather than the teacher's broader
// task/microtask/queue-depth surface, which has no equivalent here.
type Metrics struct {
	mu       sync.Mutex
	latency  *pSquareMultiQuantile
	polls    uint64
	pollZero uint64
	dispatches uint64
}

func newMetrics() *Metrics {
	return &Metrics{latency: newPSquareMultiQuantile(0.50, 0.90, 0.99)}
}

func (m *Metrics) recordDispatch(d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatches++
	m.latency.Update(float64(d))
}

func (m *Metrics) recordPoll(eventsProcessed int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	if eventsProcessed == 0 {
		m.pollZero++
	}
}

// Snapshot is a point-in-time copy of Metrics, safe to read after
// Runtime.Metrics returns it.
type Snapshot struct {
	Dispatches uint64
	P50        time.Duration
	P90        time.Duration
	P99        time.Duration
	Max        time.Duration
	Mean       time.Duration
	Polls      uint64
	IdlePolls  uint64
}

// Snapshot returns a consistent copy of the current metrics.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Dispatches: m.dispatches,
		P50:        time.Duration(m.latency.Quantile(0)),
		P90:        time.Duration(m.latency.Quantile(1)),
		P99:        time.Duration(m.latency.Quantile(2)),
		Max:        time.Duration(m.latency.Max()),
		Mean:       time.Duration(m.latency.Mean()),
		Polls:      m.polls,
		IdlePolls:  m.pollZero,
	}
}
