package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/supabase-community/supabase-go"
)

// SupabaseConfig holds the PostgREST endpoint of a Supabase project.
type SupabaseConfig struct {
	URL    string
	APIKey string
}

// SupabaseProvider stores sessions as rows of a Postgres table behind
// PostgREST. Consumption is a conditional PATCH filtered on id, status and
// expiry; the row count returned decides the winner.
//
// The table carries a ttl column (unix seconds) for a scheduled purge job.
// Reads never rely on that job: expiry is always evaluated against the clock.
//
// Billing and shipping details are written as jsonb columns, so [WithCodec]
// has no effect on this provider. A duplicate id fails on the primary key.
type SupabaseProvider struct {
	client *supabase.Client
	opts   *options
}

// sessionRow mirrors the authentication_sessions table.
type sessionRow struct {
	ID                      string           `json:"id"`
	CartID                  string           `json:"cart_id"`
	CartVersion             int64            `json:"cart_version"`
	PaymentToken            string           `json:"payment_token"`
	TokenType               TokenType        `json:"token_type"`
	BillingDetails          BillingDetails   `json:"billing_details"`
	ShippingDetails         *ShippingDetails `json:"shipping_details"`
	AuthenticationSetupData *string          `json:"authentication_setup_data"`
	CustomerID              *string          `json:"customer_id"`
	AnonymousID             *string          `json:"anonymous_id"`
	Status                  Status           `json:"status"`
	CreatedAt               time.Time        `json:"created_at"`
	ExpiresAt               time.Time        `json:"expires_at"`
	TTL                     int64            `json:"ttl"`
}

func NewSupabaseProvider(cfg SupabaseConfig, opts ...Option) (*SupabaseProvider, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return NewSupabaseProviderFromClient(client, opts...), nil
}

// NewSupabaseProviderFromClient wraps an existing client.
func NewSupabaseProviderFromClient(client *supabase.Client, opts ...Option) *SupabaseProvider {
	return &SupabaseProvider{
		client: client,
		opts:   newOptions(opts),
	}
}

func (p *SupabaseProvider) CreateSession(_ context.Context, req CreateRequest) (*Session, error) {
	s := newSession(p.opts.newID(), req, p.opts.now())

	_, _, err := p.client.From(p.opts.table).
		Insert(toRow(s), false, "", "minimal", "").
		Execute()
	if err != nil {
		return nil, storageError(err)
	}
	return s, nil
}

func (p *SupabaseProvider) GetSession(ctx context.Context, id string) (*Session, error) {
	s, err := p.readRaw(ctx, id)
	if err != nil || s == nil {
		return nil, err
	}

	now := p.opts.now()
	if s.EffectiveStatus(now) == StatusExpired {
		if _, err := p.DeleteSession(ctx, id); err != nil {
			p.opts.logger.DebugContext(ctx, "expired session cleanup failed",
				slog.String("session_id", id), slog.Any("error", err))
		}
		return nil, nil
	}
	if !s.Live(now) {
		return nil, nil
	}
	return s, nil
}

func (p *SupabaseProvider) MarkSessionUsed(ctx context.Context, id string) error {
	return markUsed(ctx, p, id, p.opts.now())
}

// TryTransition implements Transitioner. PostgREST applies the PATCH with
// every filter in one UPDATE statement, so at most one caller gets the row back.
func (p *SupabaseProvider) TryTransition(_ context.Context, id string, from, to Status) (bool, error) {
	var rows []sessionRow
	_, err := p.client.From(p.opts.table).
		Update(map[string]any{"status": to}, "representation", "").
		Eq("id", id).
		Eq("status", string(from)).
		Gt("expires_at", p.opts.now().Format(time.RFC3339Nano)).
		ExecuteTo(&rows)
	if err != nil {
		return false, storageError(err)
	}
	return len(rows) == 1, nil
}

func (p *SupabaseProvider) DeleteSession(_ context.Context, id string) (bool, error) {
	var rows []sessionRow
	_, err := p.client.From(p.opts.table).
		Delete("representation", "").
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return false, storageError(err)
	}
	return len(rows) > 0, nil
}

func (p *SupabaseProvider) HealthCheck(context.Context) bool {
	var rows []struct {
		ID string `json:"id"`
	}
	_, err := p.client.From(p.opts.table).
		Select("id", "", false).
		Limit(1, "").
		ExecuteTo(&rows)
	return err == nil
}

// Close is a no-op. The PostgREST client holds no connections of its own.
func (p *SupabaseProvider) Close() error {
	return nil
}

func (p *SupabaseProvider) readRaw(_ context.Context, id string) (*Session, error) {
	var rows []sessionRow
	_, err := p.client.From(p.opts.table).
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return nil, storageError(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	s, err := rows[0].toSession()
	if err != nil {
		return nil, storageError(fmt.Errorf("session %s: %w", id, err))
	}
	return s, nil
}

func toRow(s *Session) sessionRow {
	row := sessionRow{
		ID:              s.ID,
		CartID:          s.CartID,
		CartVersion:     s.CartVersion,
		PaymentToken:    s.PaymentToken,
		TokenType:       s.TokenType,
		BillingDetails:  s.BillingDetails,
		ShippingDetails: s.ShippingDetails,
		Status:          s.Status,
		CreatedAt:       s.CreatedAt,
		ExpiresAt:       s.ExpiresAt,
		TTL:             s.ExpiresAt.Unix(),
	}
	if s.CustomerID != "" {
		row.CustomerID = &s.CustomerID
	}
	if s.AnonymousID != "" {
		row.AnonymousID = &s.AnonymousID
	}
	// Kept as text: a jsonb column would re-format the payload.
	if len(s.AuthenticationSetupData) > 0 {
		setup := string(s.AuthenticationSetupData)
		row.AuthenticationSetupData = &setup
	}
	return row
}

func (r sessionRow) toSession() (*Session, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("%w: missing id", errCorruptRecord)
	}
	if r.Status != StatusPending && r.Status != StatusUsed {
		return nil, fmt.Errorf("%w: invalid status %q", errCorruptRecord, r.Status)
	}
	if r.ExpiresAt.IsZero() {
		return nil, fmt.Errorf("%w: missing expires_at", errCorruptRecord)
	}

	s := &Session{
		ID:              r.ID,
		CartID:          r.CartID,
		CartVersion:     r.CartVersion,
		PaymentToken:    r.PaymentToken,
		TokenType:       r.TokenType,
		BillingDetails:  r.BillingDetails,
		ShippingDetails: r.ShippingDetails,
		Status:          r.Status,
		CreatedAt:       r.CreatedAt.UTC(),
		ExpiresAt:       r.ExpiresAt.UTC(),
	}
	if r.CustomerID != nil {
		s.CustomerID = *r.CustomerID
	}
	if r.AnonymousID != nil {
		s.AnonymousID = *r.AnonymousID
	}
	if r.AuthenticationSetupData != nil && *r.AuthenticationSetupData != "" {
		s.AuthenticationSetupData = json.RawMessage(*r.AuthenticationSetupData)
	}
	return s, nil
}

var (
	_ Provider     = (*SupabaseProvider)(nil)
	_ Transitioner = (*SupabaseProvider)(nil)
)
