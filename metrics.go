package authsession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a Store counter or histogram.
type MetricID uint16

const (
	// MetricSessionCreated counts persisted sessions.
	MetricSessionCreated MetricID = iota
	// MetricSessionCreateRejected counts creation requests that failed validation.
	MetricSessionCreateRejected
	// MetricSessionCreateThrottled counts creation requests over their rate budget.
	MetricSessionCreateThrottled
	// MetricSessionRead counts reads that returned a live session.
	MetricSessionRead
	// MetricSessionReadAbsent counts reads that returned nothing.
	MetricSessionReadAbsent
	// MetricSessionConsumed counts successful pending to used transitions.
	MetricSessionConsumed
	// MetricSessionAlreadyUsed counts consumption attempts on used sessions.
	MetricSessionAlreadyUsed
	// MetricSessionExpired counts consumption attempts on expired sessions.
	MetricSessionExpired
	// MetricSessionNotFound counts consumption attempts on unknown sessions.
	MetricSessionNotFound
	// MetricSessionDeleted counts deletes that removed a record.
	MetricSessionDeleted
	// MetricStorageUnavailable counts backend failures of any operation.
	MetricStorageUnavailable
	// MetricHealthCheckFailed counts failed backend probes.
	MetricHealthCheckFailed
	// MetricConsumeLatency is the MarkSessionUsed latency histogram.
	MetricConsumeLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and the consume latency histogram. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every metric.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments the counter for id. Safe for concurrent use.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricConsumeLatency
// carries a histogram; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricConsumeLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when latency is enabled, the consume
// histogram. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricConsumeLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricConsumeLatency].buckets[i])
		}
		s.Histograms[MetricConsumeLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
