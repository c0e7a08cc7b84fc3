package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var errProviderClosed = errors.New("memory provider closed")

// MemoryProvider keeps sessions in a process-local map. It honors the same
// contract as the durable providers; records are cloned on the way in and out.
//
// With [WithSweepInterval] a background goroutine evicts expired records the
// way native TTL does. Close stops it.
type MemoryProvider struct {
	mu       sync.Mutex
	sessions map[string]*Session
	opts     *options

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewMemoryProvider(opts ...Option) *MemoryProvider {
	p := &MemoryProvider{
		sessions: make(map[string]*Session),
		opts:     newOptions(opts),
		done:     make(chan struct{}),
	}
	if p.opts.sweepInterval > 0 {
		p.wg.Add(1)
		go p.sweepLoop(p.opts.sweepInterval)
	}
	return p
}

func (p *MemoryProvider) CreateSession(_ context.Context, req CreateRequest) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sessions == nil {
		return nil, storageError(errProviderClosed)
	}

	id := p.opts.newID()
	if _, exists := p.sessions[id]; exists {
		return nil, storageErrorf("duplicate session id %s", id)
	}
	s := newSession(id, req, p.opts.now())
	p.sessions[id] = s.Clone()
	return s, nil
}

func (p *MemoryProvider) GetSession(_ context.Context, id string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[id]
	if !ok {
		return nil, nil
	}
	now := p.opts.now()
	if s.EffectiveStatus(now) == StatusExpired {
		delete(p.sessions, id)
		return nil, nil
	}
	if !s.Live(now) {
		return nil, nil
	}
	return s.Clone(), nil
}

func (p *MemoryProvider) MarkSessionUsed(ctx context.Context, id string) error {
	return markUsed(ctx, p, id, p.opts.now())
}

// TryTransition implements Transitioner under the provider lock.
func (p *MemoryProvider) TryTransition(_ context.Context, id string, from, to Status) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[id]
	if !ok || s.Status != from || !p.opts.now().Before(s.ExpiresAt) {
		return false, nil
	}
	s.Status = to
	return true, nil
}

func (p *MemoryProvider) DeleteSession(_ context.Context, id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.sessions[id]; !ok {
		return false, nil
	}
	delete(p.sessions, id)
	return true, nil
}

func (p *MemoryProvider) HealthCheck(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions != nil
}

// Close stops the sweeper and drops every record.
func (p *MemoryProvider) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()

		p.mu.Lock()
		p.sessions = nil
		p.mu.Unlock()
	})
	return nil
}

// Sweep evicts every record past its expiry and returns how many were removed.
func (p *MemoryProvider) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.opts.now()
	removed := 0
	for id, s := range p.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(p.sessions, id)
			removed++
		}
	}
	return removed
}

// List returns copies of every stored record, including used and expired
// ones, ordered by creation time. Intended for tests.
func (p *MemoryProvider) List() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of stored records.
func (p *MemoryProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Clear drops every record. Intended for tests.
func (p *MemoryProvider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessions != nil {
		p.sessions = make(map[string]*Session)
	}
}

func (p *MemoryProvider) readRaw(_ context.Context, id string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (p *MemoryProvider) sweepLoop(interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := p.Sweep(); n > 0 {
				p.opts.logger.Debug("swept expired sessions", "count", n)
			}
		case <-p.done:
			return
		}
	}
}

var (
	_ Provider     = (*MemoryProvider)(nil)
	_ Transitioner = (*MemoryProvider)(nil)
)
