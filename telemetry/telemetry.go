// Package telemetry defines the capability interface through which the
// verification core reports metrics. The core only depends on the Metrics
// interface; process-wide sinks (OTLP, Prometheus, ...) live outside and
// are wired at startup.
package telemetry

import "sync"

// Metric names recorded by the sampling pipeline and the maintenance loop.
const (
	BlockConfidence   = "block_confidence"
	TotalCellCount    = "total_cell_count"
	VerifiedCellCount = "verified_cell_count"
	KadRoutingPeerNum = "kad_routing_peer_num"
	HealthCheck       = "health_check"
)

// Metrics records named metric values. Implementations must be safe for
// concurrent use.
type Metrics interface {
	Record(name string, value float64)
}

// Noop discards all metrics.
type Noop struct{}

// Record implements Metrics.
func (Noop) Record(string, float64) {}

// Recorder is an in-process Metrics implementation keeping the latest value
// and an observation count per metric. It doubles as the test sink.
type Recorder struct {
	mu     sync.RWMutex
	values map[string]float64
	counts map[string]uint64
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		values: make(map[string]float64),
		counts: make(map[string]uint64),
	}
}

// Record implements Metrics.
func (r *Recorder) Record(name string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[name] = value
	r.counts[name]++
}

// Value returns the latest recorded value for a metric.
func (r *Recorder) Value(name string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[name]
	return v, ok
}

// Count returns how many times a metric was recorded.
func (r *Recorder) Count(name string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counts[name]
}
