package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/wanderauth"
	"github.com/MrEthical07/wanderauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

const auditDroppedName = "wanderauth_audit_dropped_total"

type metricsSource interface {
	MetricsSnapshot() wanderauth.MetricsSnapshot
	AuditDroppedByFamily() map[string]uint64
}

type observedCounter struct {
	id         wanderauth.MetricID
	instrument metric.Int64ObservableCounter
}

// observedHistogram exposes the bootstrap latency buckets as cumulative
// gauges, one per bound, since the engine keeps no sum.
type observedHistogram struct {
	id      wanderauth.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter keeps the callback registration alive until Close.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	histograms   []observedHistogram
	auditDropped metric.Int64ObservableCounter
	// familyAttrs holds one precomputed attribute set per audit family.
	familyAttrs map[string]metric.ObserveOption

	observables []metric.Observable
}

// NewOTelExporter registers observable instruments on meter that read from
// engine at collection time.
func NewOTelExporter(meter metric.Meter, engine *wanderauth.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:      source,
		familyAttrs: make(map[string]metric.ObserveOption),
	}
	if err := e.registerCounters(meter); err != nil {
		return nil, err
	}
	if err := e.registerHistograms(meter); err != nil {
		return nil, err
	}
	if err := e.registerAuditDropped(meter); err != nil {
		return nil, err
	}

	registration, err := meter.RegisterCallback(e.observe, e.observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) registerCounters(meter metric.Meter) error {
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, observedCounter{id: def.ID, instrument: ins})
		e.observables = append(e.observables, ins)
	}
	return nil
}

func (e *OTelExporter) registerHistograms(meter metric.Meter) error {
	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(def.Help+" Cumulative bucket count."))
			if err != nil {
				return fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			h.buckets[i] = ins
			e.observables = append(e.observables, ins)
		}

		countName := def.Name + "_count"
		ins, err := meter.Int64ObservableGauge(countName, metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return fmt.Errorf("create histogram count gauge %s: %w", countName, err)
		}
		h.count = ins
		e.observables = append(e.observables, ins)
		e.histograms = append(e.histograms, h)
	}
	return nil
}

func (e *OTelExporter) registerAuditDropped(meter metric.Meter) error {
	ins, err := meter.Int64ObservableCounter(
		auditDroppedName,
		metric.WithDescription("Audit events dropped because the dispatcher buffer was full, by event family."),
	)
	if err != nil {
		return fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = ins
	e.observables = append(e.observables, ins)
	for _, family := range wanderauth.AuditFamilies() {
		e.familyAttrs[family] = metric.WithAttributes(attribute.String("family", family))
	}
	return nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}

	for _, h := range e.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			// Latency histograms are disabled.
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i := range cumulative {
			observer.ObserveInt64(h.buckets[i], int64(cumulative[i]))
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}

	// A nil map means auditing is off; report nothing rather than zeros.
	dropped := e.source.AuditDroppedByFamily()
	if dropped == nil {
		return nil
	}
	for _, family := range wanderauth.AuditFamilies() {
		observer.ObserveInt64(e.auditDropped, int64(dropped[family]), e.familyAttrs[family])
	}
	return nil
}

// Close unregisters the callback. The instruments stay registered with the
// meter but report nothing afterwards.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
