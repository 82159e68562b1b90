package processor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/drgame-ledger/internal/model"
)

type ServiceMetrics struct {
	totalProcessed  int64
	totalFailed     int64
	totalDurationNs int64
	lastResetNs     int64

	mu       sync.RWMutex
	channels map[model.NotificationChannel]*channelCounters
}

type channelCounters struct {
	sent   int64
	failed int64
}

type ChannelStats struct {
	Sent   int64 `json:"sent"`
	Failed int64 `json:"failed"`
}

type Stats struct {
	Processed     int64                                      `json:"total_processed"`
	Failed        int64                                      `json:"total_failed"`
	RatePerSecond float64                                    `json:"rate_per_second"`
	AvgDurationMs int64                                      `json:"avg_duration_ms"`
	UptimeSeconds float64                                    `json:"uptime_seconds"`
	Channels      map[model.NotificationChannel]ChannelStats `json:"channels"`
}

func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{
		lastResetNs: time.Now().UnixNano(),
		channels:    make(map[model.NotificationChannel]*channelCounters),
	}
}

func (m *ServiceMetrics) RecordSuccess(duration time.Duration) {
	atomic.AddInt64(&m.totalProcessed, 1)
	atomic.AddInt64(&m.totalDurationNs, int64(duration))
}

func (m *ServiceMetrics) RecordFailure() {
	atomic.AddInt64(&m.totalFailed, 1)
}

func (m *ServiceMetrics) RecordDelivery(channel model.NotificationChannel, ok bool) {
	c := m.channel(channel)
	if ok {
		atomic.AddInt64(&c.sent, 1)
		return
	}
	atomic.AddInt64(&c.failed, 1)
}

func (m *ServiceMetrics) channel(ch model.NotificationChannel) *channelCounters {
	m.mu.RLock()
	c, ok := m.channels[ch]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.channels[ch]; !ok {
		c = &channelCounters{}
		m.channels[ch] = c
	}
	return c
}

func (m *ServiceMetrics) GetStats() Stats {
	processed := atomic.LoadInt64(&m.totalProcessed)
	durationNs := atomic.LoadInt64(&m.totalDurationNs)
	elapsed := time.Since(time.Unix(0, atomic.LoadInt64(&m.lastResetNs))).Seconds()

	s := Stats{
		Processed:     processed,
		Failed:        atomic.LoadInt64(&m.totalFailed),
		UptimeSeconds: elapsed,
		Channels:      make(map[model.NotificationChannel]ChannelStats),
	}
	if elapsed > 0 {
		s.RatePerSecond = float64(processed) / elapsed
	}
	if processed > 0 {
		s.AvgDurationMs = time.Duration(durationNs / processed).Milliseconds()
	}

	m.mu.RLock()
	for ch, c := range m.channels {
		s.Channels[ch] = ChannelStats{Sent: atomic.LoadInt64(&c.sent), Failed: atomic.LoadInt64(&c.failed)}
	}
	m.mu.RUnlock()
	return s
}

func (m *ServiceMetrics) Reset() {
	atomic.StoreInt64(&m.totalProcessed, 0)
	atomic.StoreInt64(&m.totalFailed, 0)
	atomic.StoreInt64(&m.totalDurationNs, 0)
	atomic.StoreInt64(&m.lastResetNs, time.Now().UnixNano())
	m.mu.Lock()
	m.channels = make(map[model.NotificationChannel]*channelCounters)
	m.mu.Unlock()
}
