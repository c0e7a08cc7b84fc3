package authsession

import (
	"io"

	"github.com/MrEthical07/authsession/internal/audit"
)

// AuditEvent is one session lifecycle audit record.
type AuditEvent = audit.Event

// AuditSink receives audit events from the Store's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events in a channel; read them with Events.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// Audit event types.
const (
	AuditSessionCreated         = audit.EventSessionCreated
	AuditSessionCreateThrottled = audit.EventSessionCreateThrottled
	AuditSessionConsumed        = audit.EventSessionConsumed
	AuditSessionConsumeRejected = audit.EventSessionConsumeRejected
	AuditSessionDeleted         = audit.EventSessionDeleted
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
