package authsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/authsession/internal/audit"
	"github.com/MrEthical07/authsession/internal/rate"
	"github.com/MrEthical07/authsession/session"
)

// Store is the process-facing session store. It wraps a [session.Provider]
// and adds request validation, metrics, audit events and structured logging.
// Store itself implements session.Provider, so handlers depend only on that
// interface.
//
// Store methods are safe for concurrent use.
type Store struct {
	provider session.Provider
	backend  Backend
	metrics  *Metrics
	limiter  *rate.Limiter
	audit    *audit.Dispatcher
	logger   *slog.Logger
	clock    session.Clock
}

// CreateSession validates req and persists a new pending session.
func (s *Store) CreateSession(ctx context.Context, req session.CreateRequest) (*session.Session, error) {
	if err := req.Validate(); err != nil {
		s.metrics.Inc(MetricSessionCreateRejected)
		s.logger.WarnContext(ctx, "authentication session request rejected",
			s.requestAttrs(ctx, slog.String("cart_id", req.CartID), slog.Any("error", err))...)
		return nil, err
	}

	if err := s.limiter.AllowCreate(ctx, ownerKey(req), clientIPFromContext(ctx)); err != nil {
		if !errors.Is(err, rate.ErrRateLimited) {
			err = fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
			s.storageFailure(ctx, "rate_limit", "", err)
			return nil, err
		}
		s.metrics.Inc(MetricSessionCreateThrottled)
		s.emit(ctx, audit.Event{
			EventType:   audit.EventSessionCreateThrottled,
			CartID:      req.CartID,
			CustomerID:  req.CustomerID,
			AnonymousID: req.AnonymousID,
			Error:       err.Error(),
		})
		s.logger.WarnContext(ctx, "authentication session creation throttled",
			s.requestAttrs(ctx, slog.String("cart_id", req.CartID))...)
		return nil, err
	}

	sess, err := s.provider.CreateSession(ctx, req)
	if err != nil {
		s.storageFailure(ctx, "create", "", err)
		return nil, err
	}

	s.metrics.Inc(MetricSessionCreated)
	s.emit(ctx, audit.Event{
		EventType:   audit.EventSessionCreated,
		SessionID:   sess.ID,
		CartID:      sess.CartID,
		CustomerID:  sess.CustomerID,
		AnonymousID: sess.AnonymousID,
		Success:     true,
		Metadata: map[string]string{
			"token_type": string(sess.TokenType),
			"expires_at": sess.ExpiresAt.Format(time.RFC3339),
		},
	})
	s.logger.InfoContext(ctx, "authentication session created",
		s.requestAttrs(ctx,
			slog.String("session_id", sess.ID),
			slog.String("cart_id", sess.CartID),
			slog.Time("expires_at", sess.ExpiresAt),
		)...)
	return sess, nil
}

// GetSession returns the session while it is pending and unexpired, and
// (nil, nil) otherwise.
func (s *Store) GetSession(ctx context.Context, id string) (*session.Session, error) {
	sess, err := s.provider.GetSession(ctx, id)
	if err != nil {
		s.storageFailure(ctx, "get", id, err)
		return nil, err
	}
	if sess == nil {
		s.metrics.Inc(MetricSessionReadAbsent)
		s.logger.DebugContext(ctx, "authentication session absent", s.requestAttrs(ctx, slog.String("session_id", id))...)
		return nil, nil
	}
	s.metrics.Inc(MetricSessionRead)
	return sess, nil
}

// MarkSessionUsed consumes the session. Exactly one concurrent caller wins;
// the others get ErrSessionAlreadyUsed.
func (s *Store) MarkSessionUsed(ctx context.Context, id string) error {
	start := time.Now()
	err := s.provider.MarkSessionUsed(ctx, id)
	s.metrics.Observe(MetricConsumeLatency, time.Since(start))

	event := audit.Event{
		EventType: audit.EventSessionConsumed,
		SessionID: id,
		Success:   err == nil,
	}

	switch {
	case err == nil:
		s.metrics.Inc(MetricSessionConsumed)
		s.logger.InfoContext(ctx, "authentication session consumed", s.requestAttrs(ctx, slog.String("session_id", id))...)
	case errors.Is(err, ErrStorageUnavailable):
		s.storageFailure(ctx, "mark_used", id, err)
		return err
	default:
		switch {
		case errors.Is(err, ErrSessionAlreadyUsed):
			s.metrics.Inc(MetricSessionAlreadyUsed)
		case errors.Is(err, ErrSessionExpired):
			s.metrics.Inc(MetricSessionExpired)
		case errors.Is(err, ErrSessionNotFound):
			s.metrics.Inc(MetricSessionNotFound)
		}
		event.EventType = audit.EventSessionConsumeRejected
		event.Error = err.Error()
		s.logger.WarnContext(ctx, "authentication session consume rejected",
			s.requestAttrs(ctx, slog.String("session_id", id), slog.Any("error", err))...)
	}

	s.emit(ctx, event)
	return err
}

// DeleteSession removes the record and reports whether one existed.
func (s *Store) DeleteSession(ctx context.Context, id string) (bool, error) {
	deleted, err := s.provider.DeleteSession(ctx, id)
	if err != nil {
		s.storageFailure(ctx, "delete", id, err)
		return false, err
	}
	if deleted {
		s.metrics.Inc(MetricSessionDeleted)
		s.emit(ctx, audit.Event{
			EventType: audit.EventSessionDeleted,
			SessionID: id,
			Success:   true,
		})
	}
	return deleted, nil
}

// HealthCheck probes the backend. It never returns an error.
func (s *Store) HealthCheck(ctx context.Context) bool {
	ok := s.provider.HealthCheck(ctx)
	if !ok {
		s.metrics.Inc(MetricHealthCheckFailed)
		s.logger.WarnContext(ctx, "authentication session backend unhealthy", slog.String("backend", string(s.backend)))
	}
	return ok
}

// Close flushes pending audit events and closes the provider.
func (s *Store) Close() error {
	s.audit.Close()
	return s.provider.Close()
}

// Backend reports which backend the store was built on.
func (s *Store) Backend() Backend {
	return s.backend
}

// Provider returns the wrapped provider, e.g. to reach [session.MemoryProvider]
// test utilities.
func (s *Store) Provider() session.Provider {
	return s.provider
}

func (s *Store) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// AuditDropped reports events dropped because the audit buffer was full.
func (s *Store) AuditDropped() uint64 {
	return s.audit.Dropped()
}

// AuditDroppedByType breaks AuditDropped down by event type.
func (s *Store) AuditDroppedByType() map[string]uint64 {
	return s.audit.DroppedByType()
}

func (s *Store) storageFailure(ctx context.Context, op, id string, err error) {
	s.metrics.Inc(MetricStorageUnavailable)
	s.logger.ErrorContext(ctx, "authentication session storage failure",
		s.requestAttrs(ctx,
			slog.String("op", op),
			slog.String("session_id", id),
			slog.String("backend", string(s.backend)),
			slog.Any("error", err),
		)...)
}

func (s *Store) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.Timestamp = s.clock().UTC()
	event.RequestID = requestIDFromContext(ctx)
	event.IP = clientIPFromContext(ctx)
	s.audit.Emit(ctx, event)
}

func (s *Store) requestAttrs(ctx context.Context, attrs ...any) []any {
	if id := requestIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		attrs = append(attrs, slog.String("client_ip", ip))
	}
	return attrs
}

// ownerKey names the rate budget of the request's principal.
func ownerKey(req session.CreateRequest) string {
	if req.CustomerID != "" {
		return "c:" + req.CustomerID
	}
	return "a:" + req.AnonymousID
}

var _ session.Provider = (*Store)(nil)
