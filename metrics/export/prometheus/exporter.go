package prometheus

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/metrics/export/internaldefs"
)

// PrometheusExporter renders Store metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source internaldefs.Source
}

// NewPrometheusExporter creates a Prometheus exporter that reads from store.
func NewPrometheusExporter(store *authsession.Store) *PrometheusExporter {
	if store == nil {
		return &PrometheusExporter{}
	}
	return &PrometheusExporter{source: store}
}

// NewPrometheusExporterFromSource creates a Prometheus exporter from any
// value exposing the Store's snapshot, audit and health methods.
func NewPrometheusExporterFromSource(source internaldefs.Source) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler returns an http.Handler that serves Prometheus metrics. The
// backend health probe runs under the scrape request's context.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render(r.Context())))
	})
}

// Render probes the backend and writes the current metrics. The backend_up
// gauge and the audit drop counter are always present; session counters and
// the latency histogram only while the Store records metrics.
func (p *PrometheusExporter) Render(ctx context.Context) string {
	if p == nil || p.source == nil {
		return ""
	}

	backend := label{internaldefs.BackendLabel, string(p.source.Backend())}

	var b strings.Builder
	b.Grow(4096)

	writeHeader(&b, internaldefs.BackendUpName, internaldefs.BackendUpHelp, "gauge")
	writeSample(&b, internaldefs.BackendUpName, probe(ctx, p.source), backend)

	snapshot := p.source.MetricsSnapshot()
	if len(snapshot.Counters) > 0 {
		for _, fam := range internaldefs.Families {
			writeHeader(&b, fam.Name, fam.Help, "counter")
			for _, o := range fam.Outcomes {
				if o.Label == "" {
					writeSample(&b, fam.Name, snapshot.Counters[o.ID], backend)
					continue
				}
				writeSample(&b, fam.Name, snapshot.Counters[o.ID], backend, label{internaldefs.OutcomeLabel, o.Label})
			}
		}
	}
	if raw, ok := snapshot.Histograms[authsession.MetricConsumeLatency]; ok {
		writeHistogram(&b, internaldefs.CumulativeBuckets(raw), backend)
	}

	writeHeader(&b, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	writeSample(&b, internaldefs.AuditDroppedName, p.source.AuditDropped(), backend)

	return b.String()
}

func probe(ctx context.Context, source internaldefs.Source) uint64 {
	ctx, cancel := context.WithTimeout(ctx, internaldefs.HealthProbeTimeout)
	defer cancel()
	if source.HealthCheck(ctx) {
		return 1
	}
	return 0
}

type label struct {
	name, value string
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(help, `\`, `\\`), "\n", `\n`))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, name string, value uint64, labels ...label) {
	b.WriteString(name)
	if len(labels) > 0 {
		b.WriteByte('{')
		for i, l := range labels {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(l.name)
			b.WriteString(`="`)
			b.WriteString(labelEscaper.Replace(l.value))
			b.WriteByte('"')
		}
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, cumulative [8]uint64, backend label) {
	name := internaldefs.ConsumeLatencyName
	writeHeader(b, name, internaldefs.ConsumeLatencyHelp, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		writeSample(b, name+"_bucket", cumulative[i], backend, label{"le", le})
	}
	writeSample(b, name+"_count", cumulative[len(cumulative)-1], backend)
	// Snapshots carry bucket counts only.
	writeSample(b, name+"_sum", 0, backend)
}
