package service

import (
	"sync"
	"time"
)

// MetricsCollector tracks accepted and rejected calls per operation.
type MetricsCollector struct {
	mu         sync.RWMutex
	now        func() time.Time
	operations map[string]*operation
}

type operation struct {
	startTime time.Time
	endTime   time.Time
	accepted  int
	rejected  int
	totalTime time.Duration
	lastError string
}

// OperationMetrics is the exported view of one operation.
type OperationMetrics struct {
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Count          int       `json:"count"`
	Accepted       int       `json:"accepted"`
	Rejected       int       `json:"rejected"`
	ProcessingTime int64     `json:"processing_time_ms"`
	LastError      string    `json:"last_error,omitempty"`
}

// MetricsResponse is a point-in-time copy of every operation's metrics.
type MetricsResponse struct {
	Operations map[string]OperationMetrics `json:"operations"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{now: time.Now, operations: make(map[string]*operation)}
}

// Observe records one call of op that took the given time and ended with err.
func (mc *MetricsCollector) Observe(op string, took time.Duration, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	m, ok := mc.operations[op]
	if !ok {
		m = &operation{startTime: now}
		mc.operations[op] = m
	}
	m.endTime = now
	m.totalTime += took
	if err != nil {
		m.rejected++
		m.lastError = err.Error()
		return
	}
	m.accepted++
}

// GetMetrics returns a snapshot of all operations seen so far.
func (mc *MetricsCollector) GetMetrics() MetricsResponse {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	resp := MetricsResponse{Operations: make(map[string]OperationMetrics, len(mc.operations))}
	for op, m := range mc.operations {
		resp.Operations[op] = OperationMetrics{
			StartTime:      m.startTime,
			EndTime:        m.endTime,
			Count:          m.accepted + m.rejected,
			Accepted:       m.accepted,
			Rejected:       m.rejected,
			ProcessingTime: m.totalTime.Milliseconds(),
			LastError:      m.lastError,
		}
	}
	return resp
}

// Reset clears all metrics.
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.operations = make(map[string]*operation)
}
