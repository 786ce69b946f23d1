package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/wanderauth"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot wanderauth.MetricsSnapshot
	dropped  map[string]uint64
}

func (f *fakeSource) MetricsSnapshot() wanderauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := wanderauth.MetricsSnapshot{
		Counters:   make(map[wanderauth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[wanderauth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDroppedByFamily() map[string]uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.dropped == nil {
		return nil
	}
	out := make(map[string]uint64, len(f.dropped))
	for k, v := range f.dropped {
		out[k] = v
	}
	return out
}

func newReaderMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func int64Value(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value
				}
			}
			t.Fatalf("metric %s has no int64 data points", name)
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func familyValue(t *testing.T, rm metricdata.ResourceMetrics, name, family string) int64 {
	t.Helper()
	key := attribute.Key("family")
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is not an int64 sum", name)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(key); ok && v.AsString() == family {
					return dp.Value
				}
			}
			t.Fatalf("metric %s has no data point for family %q", name, family)
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func hasMetric(rm metricdata.ResourceMetrics, name string) bool {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return true
			}
		}
	}
	return false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReaderMeter()
	meter := provider.Meter("wanderauth-test")

	src := &fakeSource{
		snapshot: wanderauth.MetricsSnapshot{
			Counters: map[wanderauth.MetricID]uint64{
				wanderauth.MetricLoginSuccess: 3,
			},
			Histograms: map[wanderauth.MetricID][]uint64{
				wanderauth.MetricBootstrapLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: map[string]uint64{"otp": 1},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if got := int64Value(t, rm, "wanderauth_login_success_total"); got != 3 {
		t.Fatalf("expected login success 3, got %d", got)
	}
	if got := familyValue(t, rm, "wanderauth_audit_dropped_total", "otp"); got != 1 {
		t.Fatalf("expected otp audit drops 1, got %d", got)
	}
	if got := familyValue(t, rm, "wanderauth_audit_dropped_total", "login"); got != 0 {
		t.Fatalf("expected login audit drops 0, got %d", got)
	}
	if got := int64Value(t, rm, "wanderauth_bootstrap_latency_seconds_bucket_le_0_5"); got != 4 {
		t.Fatalf("expected cumulative bucket 4, got %d", got)
	}
	if got := int64Value(t, rm, "wanderauth_bootstrap_latency_seconds_count"); got != 8 {
		t.Fatalf("expected count 8, got %d", got)
	}
}

func TestExporterSkipsDisabledSeries(t *testing.T) {
	reader, provider := newReaderMeter()
	meter := provider.Meter("wanderauth-test")

	src := &fakeSource{
		snapshot: wanderauth.MetricsSnapshot{
			Counters:   map[wanderauth.MetricID]uint64{wanderauth.MetricSignOut: 2},
			Histograms: map[wanderauth.MetricID][]uint64{},
		},
	}
	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if got := int64Value(t, rm, "wanderauth_sign_out_total"); got != 2 {
		t.Fatalf("expected sign out 2, got %d", got)
	}
	if hasMetric(rm, "wanderauth_audit_dropped_total") {
		t.Fatal("expected no audit series with auditing disabled")
	}
	if hasMetric(rm, "wanderauth_bootstrap_latency_seconds_count") {
		t.Fatal("expected no latency series with histograms disabled")
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReaderMeter()
	meter := provider.Meter("wanderauth-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReaderMeter()
	meter := provider.Meter("wanderauth-test")

	src := &fakeSource{
		snapshot: wanderauth.MetricsSnapshot{
			Counters: map[wanderauth.MetricID]uint64{
				wanderauth.MetricOTPIssued: 1,
			},
			Histograms: map[wanderauth.MetricID][]uint64{},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[wanderauth.MetricOTPIssued] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
