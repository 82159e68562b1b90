package gateway

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stats tracks request outcomes for one provider; exposed on the health endpoint.
type Stats struct {
	TotalRequests  atomic.Int64
	SuccessfulReqs atomic.Int64
	FailedReqs     atomic.Int64
	TotalLatencyMs atomic.Int64
	LastErrorTime  atomic.Int64

	mu             sync.RWMutex
	latencyHistory []int64
	maxHistorySize int
}

func NewStats() *Stats {
	return &Stats{
		latencyHistory: make([]int64, 0, 100),
		maxHistorySize: 100,
	}
}

func (s *Stats) RecordSuccess(latencyMs int64) {
	s.TotalRequests.Add(1)
	s.SuccessfulReqs.Add(1)
	s.TotalLatencyMs.Add(latencyMs)

	s.mu.Lock()
	if len(s.latencyHistory) >= s.maxHistorySize {
		s.latencyHistory = s.latencyHistory[1:]
	}
	s.latencyHistory = append(s.latencyHistory, latencyMs)
	s.mu.Unlock()
}

func (s *Stats) RecordFailure() {
	s.TotalRequests.Add(1)
	s.FailedReqs.Add(1)
	s.LastErrorTime.Store(time.Now().Unix())
}

func (s *Stats) AvgLatencyMs() int64 {
	ok := s.SuccessfulReqs.Load()
	if ok == 0 {
		return 0
	}
	return s.TotalLatencyMs.Load() / ok
}

func (s *Stats) SuccessRate() float64 {
	total := s.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(s.SuccessfulReqs.Load()) / float64(total)
}

func (s *Stats) P95LatencyMs() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.latencyHistory) == 0 {
		return 0
	}
	sorted := make([]int64, len(s.latencyHistory))
	copy(sorted, s.latencyHistory)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)) * 0.95)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Snapshot is a point-in-time copy for reporting.
type Snapshot struct {
	Provider     string  `json:"provider"`
	Total        int64   `json:"total"`
	Failed       int64   `json:"failed"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs int64   `json:"avg_latency_ms"`
	P95LatencyMs int64   `json:"p95_latency_ms"`
	CircuitOpen  bool    `json:"circuit_open"`
}
