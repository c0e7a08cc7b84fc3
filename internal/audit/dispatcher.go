package audit

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds routine events when the buffer is full. Consumption
	// winners are never shed: they wait for room like with DropIfFull unset.
	DropIfFull bool
}

// Dispatcher relays session events to a sink on its own goroutine. A nil
// *Dispatcher discards everything; NewDispatcher returns nil when auditing
// is disabled.
type Dispatcher struct {
	cfg  Config
	sink Sink
	now  func() time.Time

	queue   chan Event
	stop    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool

	mu    sync.Mutex
	shed  map[string]uint64
	shedN atomic.Uint64
}

// NewDispatcher starts the delivery goroutine. now stamps events that arrive
// without a timestamp; nil means time.Now.
func NewDispatcher(cfg Config, sink Sink, now func() time.Time) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if now == nil {
		now = time.Now
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		now:   now,
		queue: make(chan Event, cfg.BufferSize),
		stop:  make(chan struct{}),
		shed:  make(map[string]uint64),
	}
	d.stopped.Add(1)
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer d.stopped.Done()
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		case <-d.stop:
			for {
				select {
				case ev := <-d.queue:
					d.sink.Emit(context.Background(), ev)
				default:
					return
				}
			}
		}
	}
}

// Emit scrubs credential metadata from event and queues it. Routine events
// are shed on a full buffer when DropIfFull is set; everything else waits
// for room until ctx ends or the dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now().UTC()
	}
	event.Metadata = scrubMetadata(event.Metadata)

	if d.cfg.DropIfFull && !mustDeliver(event) {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.recordShed(event.EventType)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.recordShed(event.EventType)
	case <-d.stop:
	}
}

// Close stops accepting events, delivers the queued ones and waits for the
// delivery goroutine.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.stopped.Wait()
	})
}

// Dropped reports how many events never reached the sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.shedN.Load()
}

// DroppedByType breaks Dropped down by event type.
func (d *Dispatcher) DroppedByType() map[string]uint64 {
	out := make(map[string]uint64)
	if d == nil {
		return out
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range d.shed {
		out[k] = v
	}
	return out
}

func (d *Dispatcher) recordShed(eventType string) {
	d.shedN.Add(1)
	d.mu.Lock()
	d.shed[eventType]++
	d.mu.Unlock()
}

// mustDeliver reports whether event records the single winning completion
// of a session.
func mustDeliver(event Event) bool {
	return event.EventType == EventSessionConsumed && event.Success
}

// credentialKeys are metadata keys that may hold payment credentials.
var credentialKeys = []string{"payment_token", "pan", "card_number", "cvc", "cvv"}

func scrubMetadata(md map[string]string) map[string]string {
	if len(md) == 0 {
		return md
	}
	var out map[string]string
	for k := range md {
		if !isCredentialKey(k) {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(md))
			for kk, vv := range md {
				out[kk] = vv
			}
		}
		delete(out, k)
	}
	if out == nil {
		return md
	}
	return out
}

func isCredentialKey(key string) bool {
	key = strings.ToLower(key)
	for _, c := range credentialKeys {
		if key == c {
			return true
		}
	}
	return false
}
