package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMemoryListAndClear(t *testing.T) {
	clock := newFakeClock()
	seq := 0
	p := NewMemoryProvider(WithClock(clock.Now), WithIDGenerator(func() string {
		seq++
		return fmt.Sprintf("sid-%02d", seq)
	}))
	defer p.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := p.CreateSession(ctx, testRequest()); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		clock.Advance(time.Second)
	}
	if err := p.MarkSessionUsed(ctx, "sid-02"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	list := p.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 records, got %d", len(list))
	}
	for i, s := range list {
		if want := fmt.Sprintf("sid-%02d", i+1); s.ID != want {
			t.Fatalf("expected %s at %d, got %s", want, i, s.ID)
		}
	}
	if list[1].Status != StatusUsed {
		t.Fatalf("expected List to include used records, got %s", list[1].Status)
	}

	list[0].CartID = "mutated"
	if got := p.List()[0].CartID; got != "cart-1" {
		t.Fatalf("List leaked internal state, got cart %q", got)
	}

	p.Clear()
	if p.Len() != 0 {
		t.Fatalf("expected empty store after Clear, got %d", p.Len())
	}
}

func TestMemoryDuplicateIDIsStorageError(t *testing.T) {
	p := NewMemoryProvider(WithIDGenerator(func() string { return "fixed" }))
	defer p.Close()
	ctx := context.Background()

	if _, err := p.CreateSession(ctx, testRequest()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := p.CreateSession(ctx, testRequest()); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected storage error on id collision, got %v", err)
	}
}

func TestMemorySweep(t *testing.T) {
	clock := newFakeClock()
	p := NewMemoryProvider(WithClock(clock.Now))
	defer p.Close()
	ctx := context.Background()

	old, err := p.CreateSession(ctx, testRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(DefaultTTL / 2)
	fresh, err := p.CreateSession(ctx, testRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(DefaultTTL / 2)

	if n := p.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept record, got %d", n)
	}
	if err := p.MarkSessionUsed(ctx, old.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected swept record to be gone, got %v", err)
	}
	if got, _ := p.GetSession(ctx, fresh.ID); got == nil {
		t.Fatalf("expected fresh record to survive the sweep")
	}
}

func TestMemoryBackgroundSweeper(t *testing.T) {
	clock := newFakeClock()
	p := NewMemoryProvider(WithClock(clock.Now), WithSweepInterval(5*time.Millisecond))
	defer p.Close()

	if _, err := p.CreateSession(context.Background(), testRequest()); err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(DefaultTTL)

	deadline := time.Now().Add(2 * time.Second)
	for p.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("sweeper did not evict expired record")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryClose(t *testing.T) {
	p := NewMemoryProvider(WithSweepInterval(time.Millisecond))
	ctx := context.Background()

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if p.HealthCheck(ctx) {
		t.Fatalf("expected closed provider to be unhealthy")
	}
	if _, err := p.CreateSession(ctx, testRequest()); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected storage error after close, got %v", err)
	}
}
