package internaldefs

import (
	"context"
	"time"

	"github.com/MrEthical07/authsession"
)

// Source is what the exporters read. *authsession.Store satisfies it.
type Source interface {
	MetricsSnapshot() authsession.MetricsSnapshot
	AuditDropped() uint64
	Backend() authsession.Backend
	HealthCheck(ctx context.Context) bool
}

// Label names carried by every exported series.
const (
	BackendLabel = "backend"
	OutcomeLabel = "outcome"
)

// Outcome places one Store counter inside a family.
type Outcome struct {
	ID    authsession.MetricID
	Label string
}

// Family is one exported counter. A family with an empty outcome label
// renders without the outcome label.
type Family struct {
	Name     string
	Help     string
	Outcomes []Outcome
}

// Families lists every exported counter in exposition order. Consumption is
// split by the error kind MarkSessionUsed returned.
var Families = []Family{
	{
		Name: "authsession_create_total",
		Help: "Session creation requests by outcome.",
		Outcomes: []Outcome{
			{ID: authsession.MetricSessionCreated, Label: "created"},
			{ID: authsession.MetricSessionCreateRejected, Label: "invalid_request"},
			{ID: authsession.MetricSessionCreateThrottled, Label: "rate_limited"},
		},
	},
	{
		Name: "authsession_read_total",
		Help: "Session reads by result.",
		Outcomes: []Outcome{
			{ID: authsession.MetricSessionRead, Label: "live"},
			{ID: authsession.MetricSessionReadAbsent, Label: "absent"},
		},
	},
	{
		Name: "authsession_consume_total",
		Help: "MarkSessionUsed attempts by outcome.",
		Outcomes: []Outcome{
			{ID: authsession.MetricSessionConsumed, Label: "consumed"},
			{ID: authsession.MetricSessionAlreadyUsed, Label: "already_used"},
			{ID: authsession.MetricSessionExpired, Label: "expired"},
			{ID: authsession.MetricSessionNotFound, Label: "not_found"},
		},
	},
	{
		Name:     "authsession_deleted_total",
		Help:     "Sessions removed by explicit delete.",
		Outcomes: []Outcome{{ID: authsession.MetricSessionDeleted}},
	},
	{
		Name:     "authsession_storage_unavailable_total",
		Help:     "Operations failed by the storage backend.",
		Outcomes: []Outcome{{ID: authsession.MetricStorageUnavailable}},
	},
	{
		Name:     "authsession_health_check_failed_total",
		Help:     "Failed backend health probes.",
		Outcomes: []Outcome{{ID: authsession.MetricHealthCheckFailed}},
	},
}

// ConsumeLatencyName is the MarkSessionUsed latency histogram.
const (
	ConsumeLatencyName = "authsession_consume_latency_seconds"
	ConsumeLatencyHelp = "MarkSessionUsed latency histogram."
)

// BackendUpName is a gauge set to 1 when the backend answered its health
// probe during collection.
const (
	BackendUpName = "authsession_backend_up"
	BackendUpHelp = "Whether the session backend answered its last health probe."
)

// HealthProbeTimeout bounds the health probe made on each collection.
const HealthProbeTimeout = 2 * time.Second

// AuditDroppedName is the counter for audit events lost to backpressure.
const (
	AuditDroppedName = "authsession_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramBounds are the upper bounds of the Store histogram buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// CumulativeBuckets pads raw to the bucket count and converts per-bucket
// counts into cumulative counts.
func CumulativeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(out); i++ {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
