package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/metrics/export/internaldefs"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no store or source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

// observedSeries is one Store counter reported under its family instrument.
type observedSeries struct {
	id    authsession.MetricID
	attrs metric.MeasurementOption
}

type observedFamily struct {
	instrument metric.Int64ObservableCounter
	series     []observedSeries
}

// OTelExporter publishes Store metrics through observable instruments. Each
// counter family is one instrument with backend and outcome attributes. The
// registered callback snapshots the source and probes its backend once per
// collection.
type OTelExporter struct {
	source       internaldefs.Source
	registration metric.Registration

	backend      metric.MeasurementOption
	families     []observedFamily
	latency      metric.Int64ObservableGauge
	latencyLE    [8]metric.MeasurementOption
	latencyCount metric.Int64ObservableGauge
	backendUp    metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers instruments on meter that read from store.
func NewOTelExporter(meter metric.Meter, store *authsession.Store) (*OTelExporter, error) {
	if store == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, store)
}

func NewOTelExporterFromSource(meter metric.Meter, source internaldefs.Source) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	backend := attribute.String(internaldefs.BackendLabel, string(source.Backend()))
	e := &OTelExporter{
		source:   source,
		backend:  metric.WithAttributeSet(attribute.NewSet(backend)),
		families: make([]observedFamily, 0, len(internaldefs.Families)),
	}
	observables := make([]metric.Observable, 0, len(internaldefs.Families)+4)

	for _, fam := range internaldefs.Families {
		ins, err := meter.Int64ObservableCounter(fam.Name, metric.WithDescription(fam.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", fam.Name, err)
		}
		of := observedFamily{instrument: ins, series: make([]observedSeries, 0, len(fam.Outcomes))}
		for _, o := range fam.Outcomes {
			set := attribute.NewSet(backend)
			if o.Label != "" {
				set = attribute.NewSet(backend, attribute.String(internaldefs.OutcomeLabel, o.Label))
			}
			of.series = append(of.series, observedSeries{id: o.ID, attrs: metric.WithAttributeSet(set)})
		}
		e.families = append(e.families, of)
		observables = append(observables, ins)
	}

	var err error
	e.latency, err = meter.Int64ObservableGauge(
		internaldefs.ConsumeLatencyName+"_bucket",
		metric.WithDescription("Cumulative "+internaldefs.ConsumeLatencyHelp),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency bucket gauge: %w", err)
	}
	for i, le := range internaldefs.HistogramBounds {
		e.latencyLE[i] = metric.WithAttributeSet(attribute.NewSet(backend, attribute.String("le", le)))
	}
	e.latencyCount, err = meter.Int64ObservableGauge(
		internaldefs.ConsumeLatencyName+"_count",
		metric.WithDescription("MarkSessionUsed calls observed by the latency histogram."),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency count gauge: %w", err)
	}
	e.backendUp, err = meter.Int64ObservableGauge(internaldefs.BackendUpName, metric.WithDescription(internaldefs.BackendUpHelp))
	if err != nil {
		return nil, fmt.Errorf("create backend up gauge: %w", err)
	}
	e.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, e.latency, e.latencyCount, e.backendUp, e.auditDropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(ctx context.Context, o metric.Observer) error {
	probeCtx, cancel := context.WithTimeout(ctx, internaldefs.HealthProbeTimeout)
	up := int64(0)
	if e.source.HealthCheck(probeCtx) {
		up = 1
	}
	cancel()
	o.ObserveInt64(e.backendUp, up, e.backend)

	snapshot := e.source.MetricsSnapshot()
	if len(snapshot.Counters) > 0 {
		for _, fam := range e.families {
			for _, s := range fam.series {
				o.ObserveInt64(fam.instrument, int64(snapshot.Counters[s.id]), s.attrs)
			}
		}
	}
	if raw, ok := snapshot.Histograms[authsession.MetricConsumeLatency]; ok {
		cumulative := internaldefs.CumulativeBuckets(raw)
		for i, v := range cumulative {
			o.ObserveInt64(e.latency, int64(v), e.latencyLE[i])
		}
		o.ObserveInt64(e.latencyCount, int64(cumulative[len(cumulative)-1]), e.backend)
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()), e.backend)
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
