package wanderauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts completed sign-ins, password or code.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts sign-ins that ended in an error.
	MetricLoginFailure
	// MetricLoginRateLimited counts sign-ins refused by the attempt limiter.
	MetricLoginRateLimited
	// MetricLoginOTPFallback counts invalid-credential outcomes rerouted to
	// email verification.
	MetricLoginOTPFallback
	// MetricResolveNotFound counts usernames with no matching profile.
	MetricResolveNotFound
	// MetricOTPIssued counts codes handed to the mail dispatcher successfully.
	MetricOTPIssued
	// MetricOTPDispatchFailure counts codes the dispatcher rejected.
	MetricOTPDispatchFailure
	// MetricOTPThrottled counts code requests refused by the dispatch limiter.
	MetricOTPThrottled
	// MetricOTPVerified counts accepted codes.
	MetricOTPVerified
	// MetricOTPInvalid counts rejected codes.
	MetricOTPInvalid
	// MetricOTPAbandoned counts challenges discarded by closing the modal.
	MetricOTPAbandoned
	// MetricRegistrationStarted counts registrations that reached the code step.
	MetricRegistrationStarted
	// MetricRegistrationSuccess counts accounts created.
	MetricRegistrationSuccess
	// MetricRegistrationFailure counts registrations that failed after validation.
	MetricRegistrationFailure
	// MetricAdminSignIn counts persisted admin sessions.
	MetricAdminSignIn
	// MetricSignOut counts sign-outs.
	MetricSignOut
	// MetricBootstrapReady counts bootstrap passes that reached ready.
	MetricBootstrapReady
	// MetricBootstrapImageFailed counts hero preloads that failed and were skipped.
	MetricBootstrapImageFailed
	// MetricBootstrapLatency is the start-to-ready histogram.
	MetricBootstrapLatency
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

// Metrics holds lock-free counters and the bootstrap latency histogram.
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

// NewMetrics returns a metrics set configured by cfg. A disabled set
// ignores every update.
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

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricBootstrapLatency
// carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricBootstrapLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when latency tracking is on, the
// bootstrap latency buckets.
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
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricBootstrapLatency].buckets[i])
		}
		s.Histograms[MetricBootstrapLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 50:
		return 0
	case ms <= 100:
		return 1
	case ms <= 250:
		return 2
	case ms <= 500:
		return 3
	case ms <= 1000:
		return 4
	case ms <= 2500:
		return 5
	case ms <= 5000:
		return 6
	default:
		return 7
	}
}
