// Package metrics provides operational metrics for class loaders and the mainboard.
// Counters are process-wide and safe for concurrent use; Snapshot gives a
// point-in-time copy for logs, the CLI and the Prometheus collector.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks library and instance lifecycle events.
// All fields are thread-safe for concurrent access.
type Metrics struct {
	// Library metrics
	LibraryLoads        atomic.Int64
	LibraryLoadFailures atomic.Int64
	LibraryUnloads      atomic.Int64
	UnloadRequests      atomic.Int64
	UnloadsDeferred     atomic.Int64
	CounterUnderflows   atomic.Int64

	// Instance metrics
	InstancesCreated  atomic.Int64
	InstancesReleased atomic.Int64
	ClassNotFound     atomic.Int64

	// Component metrics
	ComponentsStarted atomic.Int64
	ComponentFailures atomic.Int64
	TimerTicks        atomic.Int64
	TimerTickFailures atomic.Int64

	startTime     time.Time
	avgLoadNs     atomic.Int64
	loadTimeCount atomic.Int64

	mu sync.RWMutex
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Timestamp           time.Time `json:"timestamp"`
	Uptime              string    `json:"uptime"`
	LibraryLoads        int64     `json:"library_loads"`
	LibraryLoadFailures int64     `json:"library_load_failures"`
	LibraryUnloads      int64     `json:"library_unloads"`
	LoadedLibraries     int64     `json:"loaded_libraries"`
	UnloadRequests      int64     `json:"unload_requests"`
	UnloadsDeferred     int64     `json:"unloads_deferred"`
	CounterUnderflows   int64     `json:"counter_underflows"`
	InstancesCreated    int64     `json:"instances_created"`
	InstancesReleased   int64     `json:"instances_released"`
	LiveInstances       int64     `json:"live_instances"`
	ClassNotFound       int64     `json:"class_not_found"`
	ComponentsStarted   int64     `json:"components_started"`
	ComponentFailures   int64     `json:"component_failures"`
	TimerTicks          int64     `json:"timer_ticks"`
	TimerTickFailures   int64     `json:"timer_tick_failures"`
	AvgLoadMs           float64   `json:"avg_load_ms"`
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

var defaultMetrics = NewMetrics()

// Default returns the process-wide metrics instance.
func Default() *Metrics {
	return defaultMetrics
}

// RecordLoadLatency records how long one library open took and updates the running average.
func (m *Metrics) RecordLoadLatency(d time.Duration) {
	ns := d.Nanoseconds()
	count := m.loadTimeCount.Add(1)

	// Running average: newAvg = oldAvg + (newValue - oldAvg) / count
	for {
		oldAvg := m.avgLoadNs.Load()
		newAvg := oldAvg + (ns-oldAvg)/count
		if m.avgLoadNs.CompareAndSwap(oldAvg, newAvg) {
			break
		}
		count = m.loadTimeCount.Load()
		if count == 0 {
			count = 1
		}
	}
}

// AvgLoadLatency returns the average library open time.
func (m *Metrics) AvgLoadLatency() time.Duration {
	return time.Duration(m.avgLoadNs.Load())
}

// Uptime returns the duration since the metrics instance was created or reset.
func (m *Metrics) Uptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Since(m.startTime)
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Timestamp:           time.Now(),
		Uptime:              m.Uptime().Round(time.Millisecond).String(),
		LibraryLoads:        m.LibraryLoads.Load(),
		LibraryLoadFailures: m.LibraryLoadFailures.Load(),
		LibraryUnloads:      m.LibraryUnloads.Load(),
		UnloadRequests:      m.UnloadRequests.Load(),
		UnloadsDeferred:     m.UnloadsDeferred.Load(),
		CounterUnderflows:   m.CounterUnderflows.Load(),
		InstancesCreated:    m.InstancesCreated.Load(),
		InstancesReleased:   m.InstancesReleased.Load(),
		ClassNotFound:       m.ClassNotFound.Load(),
		ComponentsStarted:   m.ComponentsStarted.Load(),
		ComponentFailures:   m.ComponentFailures.Load(),
		TimerTicks:          m.TimerTicks.Load(),
		TimerTickFailures:   m.TimerTickFailures.Load(),
		AvgLoadMs:           float64(m.avgLoadNs.Load()) / float64(time.Millisecond),
	}
	snap.LoadedLibraries = snap.LibraryLoads - snap.LibraryUnloads
	snap.LiveInstances = snap.InstancesCreated - snap.InstancesReleased
	return snap
}

// ToJSON returns a JSON-encoded representation of the current metrics snapshot.
func (m *Metrics) ToJSON() ([]byte, error) {
	return json.Marshal(m.Snapshot())
}

// Reset resets all metric counters to zero and restarts the uptime clock.
func (m *Metrics) Reset() {
	m.LibraryLoads.Store(0)
	m.LibraryLoadFailures.Store(0)
	m.LibraryUnloads.Store(0)
	m.UnloadRequests.Store(0)
	m.UnloadsDeferred.Store(0)
	m.CounterUnderflows.Store(0)
	m.InstancesCreated.Store(0)
	m.InstancesReleased.Store(0)
	m.ClassNotFound.Store(0)
	m.ComponentsStarted.Store(0)
	m.ComponentFailures.Store(0)
	m.TimerTicks.Store(0)
	m.TimerTickFailures.Store(0)
	m.avgLoadNs.Store(0)
	m.loadTimeCount.Store(0)

	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}
