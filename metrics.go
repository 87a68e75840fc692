package twist

import (
	"sync/atomic"
	"time"

	"github.com/twistproto/twist/internal/interfaces"
)

// Observer receives engine activity counters as they happen. A host
// wires one into a Socket via Params to collect operational metrics
// without the engine itself depending on any particular metrics
// backend.
type Observer = interfaces.Observer

// Metrics tracks operational statistics for one or more sockets sharing
// the same *Metrics instance.
type Metrics struct {
	Ticks          atomic.Uint64
	RecvTotal      atomic.Uint64
	RecvAccepted   atomic.Uint64
	RecvDiscarded  atomic.Uint64
	RecvBytes      atomic.Uint64

	TicketsMinted   atomic.Uint64
	TicketsVerified atomic.Uint64
	TicketsRejected atomic.Uint64

	RehashGrows   atomic.Uint64
	RehashShrinks atomic.Uint64

	PoolCulls atomic.Uint64
	PoolFreed atomic.Uint64

	// ErrorsByCode is indexed by -Code: OK=0, EINVAL=1, ENOMEM=2,
	// EENTROPY=3, EAGAIN=4.
	ErrorsByCode [5]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance with its start time set to
// now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordTick records one tick() call. pendingConnections (the number
// of connections still resident in the heap afterward) is accepted to
// match Observer.ObserveTick but is not recorded.
func (m *Metrics) RecordTick(pendingConnections int) {
	m.Ticks.Add(1)
}

// RecordRecv records one recv() call.
func (m *Metrics) RecordRecv(bytes int, accepted bool) {
	m.RecvTotal.Add(1)
	m.RecvBytes.Add(uint64(bytes))
	if accepted {
		m.RecvAccepted.Add(1)
	} else {
		m.RecvDiscarded.Add(1)
	}
}

// RecordTicket records one mint or verify outcome.
func (m *Metrics) RecordTicket(minted bool, ok bool) {
	switch {
	case minted:
		m.TicketsMinted.Add(1)
	case ok:
		m.TicketsVerified.Add(1)
	default:
		m.TicketsRejected.Add(1)
	}
}

// RecordRehash records one connection-hash resize. The timer heap
// reports no resize events, so only the connection index reaches this.
func (m *Metrics) RecordRehash(grow bool) {
	if grow {
		m.RehashGrows.Add(1)
	} else {
		m.RehashShrinks.Add(1)
	}
}

// RecordPoolCull records one pool cull, and the number of blocks it
// freed.
func (m *Metrics) RecordPoolCull(freed int) {
	m.PoolCulls.Add(1)
	m.PoolFreed.Add(uint64(freed))
}

// RecordError records a public entry returning a non-OK code.
func (m *Metrics) RecordError(code Code) {
	idx := -int(code)
	if idx < 0 || idx >= len(m.ErrorsByCode) {
		return
	}
	m.ErrorsByCode[idx].Add(1)
}

// Stop marks the tracked socket(s) as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read
// without further synchronization.
type MetricsSnapshot struct {
	Ticks         uint64
	RecvTotal     uint64
	RecvAccepted  uint64
	RecvDiscarded uint64
	RecvBytes     uint64

	TicketsMinted   uint64
	TicketsVerified uint64
	TicketsRejected uint64

	RehashGrows   uint64
	RehashShrinks uint64

	PoolCulls uint64
	PoolFreed uint64

	ErrorsByCode [5]uint64

	UptimeNs uint64
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Ticks:           m.Ticks.Load(),
		RecvTotal:       m.RecvTotal.Load(),
		RecvAccepted:    m.RecvAccepted.Load(),
		RecvDiscarded:   m.RecvDiscarded.Load(),
		RecvBytes:       m.RecvBytes.Load(),
		TicketsMinted:   m.TicketsMinted.Load(),
		TicketsVerified: m.TicketsVerified.Load(),
		TicketsRejected: m.TicketsRejected.Load(),
		RehashGrows:     m.RehashGrows.Load(),
		RehashShrinks:   m.RehashShrinks.Load(),
		PoolCulls:       m.PoolCulls.Load(),
		PoolFreed:       m.PoolFreed.Load(),
	}
	for i := range m.ErrorsByCode {
		snap.ErrorsByCode[i] = m.ErrorsByCode[i].Load()
	}

	start := m.StartTime.Load()
	stop := m.StopTime.Load()
	if stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}
	return snap
}

// Reset zeroes every counter and restarts the uptime clock. Useful for
// testing.
func (m *Metrics) Reset() {
	m.Ticks.Store(0)
	m.RecvTotal.Store(0)
	m.RecvAccepted.Store(0)
	m.RecvDiscarded.Store(0)
	m.RecvBytes.Store(0)
	m.TicketsMinted.Store(0)
	m.TicketsVerified.Store(0)
	m.TicketsRejected.Store(0)
	m.RehashGrows.Store(0)
	m.RehashShrinks.Store(0)
	m.PoolCulls.Store(0)
	m.PoolFreed.Store(0)
	for i := range m.ErrorsByCode {
		m.ErrorsByCode[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveTick(int)                   {}
func (NoOpObserver) ObserveRecv(int, bool)              {}
func (NoOpObserver) ObserveHandshake(bool, bool)        {}
func (NoOpObserver) ObserveRehash(string, string)        {}
func (NoOpObserver) ObservePoolCull(int)                {}

// MetricsObserver implements Observer by recording into a *Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an Observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveTick(pending int) {
	o.metrics.RecordTick(pending)
}

func (o *MetricsObserver) ObserveRecv(bytes int, accepted bool) {
	o.metrics.RecordRecv(bytes, accepted)
}

func (o *MetricsObserver) ObserveHandshake(minted, ok bool) {
	o.metrics.RecordTicket(minted, ok)
}

func (o *MetricsObserver) ObserveRehash(table, direction string) {
	o.metrics.RecordRehash(direction == "grow")
}

func (o *MetricsObserver) ObservePoolCull(freed int) {
	o.metrics.RecordPoolCull(freed)
}

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = NoOpObserver{}
)
