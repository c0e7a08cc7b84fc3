package session

import (
	"encoding/json"
	"time"
)

// DefaultTTL is the fixed lifetime of every authentication session.
const DefaultTTL = 30 * time.Minute

// Status is the lifecycle state of a session.
type Status string

const (
	StatusPending Status = "pending"
	StatusUsed    Status = "used"
	// StatusExpired is never persisted. It is derived from ExpiresAt.
	StatusExpired Status = "expired"
)

// TokenType tells whether the payment token is single-use or a stored credential.
type TokenType string

const (
	TokenTransient TokenType = "transient"
	TokenStored    TokenType = "stored"
)

type Address struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required,len=2"`
}

type BillingDetails struct {
	Name    string  `json:"name" validate:"required"`
	Email   string  `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string  `json:"phone,omitempty"`
	Address Address `json:"address"`
}

type ShippingDetails struct {
	Name    string  `json:"name" validate:"required"`
	Email   string  `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string  `json:"phone,omitempty"`
	Address Address `json:"address"`
}

// Principal identifies who owns a session. Exactly one field is set.
type Principal struct {
	CustomerID  string
	AnonymousID string
}

// IsZero reports whether neither identity is set.
func (p Principal) IsZero() bool {
	return p.CustomerID == "" && p.AnonymousID == ""
}

// Session is a persisted authentication session.
//
// Values returned by providers are independent copies; mutating them never
// changes stored state.
type Session struct {
	ID string

	CartID      string
	CartVersion int64

	PaymentToken string
	TokenType    TokenType

	BillingDetails          BillingDetails
	ShippingDetails         *ShippingDetails
	AuthenticationSetupData json.RawMessage

	CustomerID  string
	AnonymousID string

	Status    Status
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CreateRequest carries everything a session is created from. The provider
// generates ID, Status and the timestamps.
type CreateRequest struct {
	CartID      string `validate:"required"`
	CartVersion int64  `validate:"gte=0"`

	PaymentToken string    `validate:"required"`
	TokenType    TokenType `validate:"required,oneof=transient stored"`

	BillingDetails          BillingDetails
	ShippingDetails         *ShippingDetails `validate:"omitempty"`
	AuthenticationSetupData json.RawMessage

	CustomerID  string `validate:"required_without=AnonymousID,excluded_with=AnonymousID"`
	AnonymousID string `validate:"required_without=CustomerID,excluded_with=CustomerID"`
}

// Principal returns the ownership key of the session.
func (s *Session) Principal() Principal {
	return Principal{CustomerID: s.CustomerID, AnonymousID: s.AnonymousID}
}

// OwnedBy reports whether p is the principal that created the session. A
// customer never matches an anonymous id and vice versa.
func (s *Session) OwnedBy(p Principal) bool {
	if s == nil || p.IsZero() {
		return false
	}
	if s.CustomerID != "" {
		return p.CustomerID == s.CustomerID
	}
	return p.CustomerID == "" && p.AnonymousID == s.AnonymousID
}

// EffectiveStatus folds expiry into the stored status.
func (s *Session) EffectiveStatus(now time.Time) Status {
	if s.Status == StatusUsed {
		return StatusUsed
	}
	if !now.Before(s.ExpiresAt) {
		return StatusExpired
	}
	return s.Status
}

// Live reports whether the session may still be completed at now.
func (s *Session) Live(now time.Time) bool {
	return s.EffectiveStatus(now) == StatusPending
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.ShippingDetails != nil {
		shipping := *s.ShippingDetails
		out.ShippingDetails = &shipping
	}
	out.AuthenticationSetupData = cloneRaw(s.AuthenticationSetupData)
	return &out
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

// newSession stamps a pending session from req. now must already be normalized.
func newSession(id string, req CreateRequest, now time.Time) *Session {
	s := &Session{
		ID:                      id,
		CartID:                  req.CartID,
		CartVersion:             req.CartVersion,
		PaymentToken:            req.PaymentToken,
		TokenType:               req.TokenType,
		BillingDetails:          req.BillingDetails,
		AuthenticationSetupData: cloneRaw(req.AuthenticationSetupData),
		CustomerID:              req.CustomerID,
		AnonymousID:             req.AnonymousID,
		Status:                  StatusPending,
		CreatedAt:               now,
		ExpiresAt:               now.Add(DefaultTTL),
	}
	if req.ShippingDetails != nil {
		shipping := *req.ShippingDetails
		s.ShippingDetails = &shipping
	}
	return s
}

// normalizeTime truncates to the millisecond precision every backend stores.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
