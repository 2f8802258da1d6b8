// Package monitor keeps a bounded in-memory record of proxied requests and
// aggregate counters for the status surfaces. It outlives individual proxy
// instances and is shared read-only by the status, log, and stat accessors.
package monitor

import (
	"sync"
	"time"
)

// DefaultCapacity is the ring-buffer bound used by the service.
const DefaultCapacity = 1000

// RequestLog is one proxied request as recorded by the listener.
type RequestLog struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	Model        string    `json:"model"`
	MappedModel  string    `json:"mapped_model"`
	AccountEmail string    `json:"account_email"`
	StatusCode   int       `json:"status_code"`
	DurationMs   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
}

// Stats aggregates counters across all recorded requests since the last
// clear, including entries that have rotated out of the ring.
type Stats struct {
	TotalRequests   uint64            `json:"total_requests"`
	SuccessRequests uint64            `json:"success_requests"`
	FailureRequests uint64            `json:"failure_requests"`
	AvgDurationMs   int64             `json:"avg_duration_ms"`
	ModelCounts     map[string]uint64 `json:"model_counts"`
}

// Monitor is a bounded request-log ring with aggregate stats. All methods
// are safe for concurrent use.
type Monitor struct {
	mu       sync.RWMutex
	enabled  bool
	capacity int
	logs     []RequestLog

	total       uint64
	success     uint64
	failure     uint64
	durationSum int64
	modelCounts map[string]uint64
}

// New creates a monitor bounded at capacity entries.
func New(capacity int) *Monitor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Monitor{
		capacity:    capacity,
		logs:        make([]RequestLog, 0, capacity),
		modelCounts: make(map[string]uint64),
	}
}

// SetEnabled toggles recording. Stats keep accumulating regardless so the
// counters stay meaningful across logging toggles.
func (m *Monitor) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	m.mu.Unlock()
}

// Enabled reports whether per-request logs are being kept.
func (m *Monitor) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Record adds one request to the ring and updates the aggregates.
func (m *Monitor) Record(entry RequestLog) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	if entry.StatusCode >= 200 && entry.StatusCode < 400 {
		m.success++
	} else {
		m.failure++
	}
	m.durationSum += entry.DurationMs
	if entry.MappedModel != "" {
		m.modelCounts[entry.MappedModel]++
	}

	if !m.enabled {
		return
	}
	m.logs = append(m.logs, entry)
	if len(m.logs) > m.capacity {
		m.logs = m.logs[len(m.logs)-m.capacity:]
	}
}

// GetLogs returns up to limit entries, newest first. limit <= 0 means all.
func (m *Monitor) GetLogs(limit int) []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.logs)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]RequestLog, limit)
	for i := 0; i < limit; i++ {
		out[i] = m.logs[n-1-i]
	}
	return out
}

// GetStats returns a snapshot of the aggregate counters.
func (m *Monitor) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		TotalRequests:   m.total,
		SuccessRequests: m.success,
		FailureRequests: m.failure,
		ModelCounts:     make(map[string]uint64, len(m.modelCounts)),
	}
	if m.total > 0 {
		stats.AvgDurationMs = m.durationSum / int64(m.total)
	}
	for k, v := range m.modelCounts {
		stats.ModelCounts[k] = v
	}
	return stats
}

// Clear drops all logs and resets the aggregates. Safe to call repeatedly.
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = m.logs[:0]
	m.total, m.success, m.failure, m.durationSum = 0, 0, 0, 0
	m.modelCounts = make(map[string]uint64)
}
