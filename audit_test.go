package authsession

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = false

	sink := &countingSink{}
	store, _ := buildTestStore(t, cfg, sink)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, testRequest())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	_ = store.MarkSessionUsed(ctx, sess.ID)
	time.Sleep(30 * time.Millisecond)

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditDropIfFullCountsDropped(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.BufferSize = 1
	cfg.Audit.DropIfFull = true

	sink := newGateSink()
	store, _ := buildTestStore(t, cfg, sink)
	// Cleanup runs LIFO, so the gate opens before the store closes.
	t.Cleanup(func() { close(sink.gate) })

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if _, err := store.CreateSession(ctx, testRequest()); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}

	// One event is held by the sink, one sits in the buffer.
	if store.AuditDropped() < 8 {
		t.Fatalf("expected at least 8 dropped events, got %d", store.AuditDropped())
	}
	byType := store.AuditDroppedByType()
	if byType[AuditSessionCreated] != store.AuditDropped() {
		t.Fatalf("expected every drop to be a creation event, got %v", byType)
	}
}

func TestAuditCloseDrainsBufferedEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.BufferSize = 32

	sink := &countingSink{}
	store, err := New().WithConfig(cfg).WithAuditSink(sink).WithLogger(discardLogger()).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := store.CreateSession(ctx, testRequest()); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if sink.Count() != 5 {
		t.Fatalf("expected 5 delivered events after close, got %d", sink.Count())
	}
}

func TestJSONWriterSinkOmitsPaymentToken(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig()

	store, err := New().WithConfig(cfg).WithAuditSink(NewJSONWriterSink(&buf)).WithLogger(discardLogger()).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := store.CreateSession(context.Background(), testRequest()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	store.Close()

	line := strings.TrimSpace(buf.String())
	var ev AuditEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		t.Fatalf("expected one JSON event, got %q: %v", line, err)
	}
	if ev.EventType != AuditSessionCreated || ev.CartID != "cart-1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Metadata["token_type"] != "stored" {
		t.Fatalf("expected token type metadata, got %+v", ev.Metadata)
	}
	if strings.Contains(line, "tok_visa_4242") {
		t.Fatalf("payment token leaked into audit: %s", line)
	}
}
