package principal

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/authsession/session"
)

var hsSecret = []byte("checkout-secret-checkout-secret!")

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	pub, priv := newEdKeys(t)
	tests := []struct {
		name string
		cfg  Config
		p    session.Principal
	}{
		{
			name: "hs256 customer",
			cfg:  Config{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsSecret},
			p:    session.Principal{CustomerID: "cust-1"},
		},
		{
			name: "ed25519 guest",
			cfg:  Config{TTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, Issuer: "checkout", Audience: "payments"},
			p:    session.Principal{AnonymousID: "anon-7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iss, err := NewIssuer(tt.cfg)
			if err != nil {
				t.Fatalf("NewIssuer: %v", err)
			}
			ver, err := NewVerifier(tt.cfg)
			if err != nil {
				t.Fatalf("NewVerifier: %v", err)
			}
			token, err := iss.Issue(tt.p)
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}
			got, err := ver.Verify(token)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if got != tt.p {
				t.Fatalf("expected %+v, got %+v", tt.p, got)
			}
		})
	}
}

func TestIssueRejectsAmbiguousPrincipal(t *testing.T) {
	iss, err := NewIssuer(Config{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsSecret})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	for _, p := range []session.Principal{{}, {CustomerID: "c", AnonymousID: "a"}} {
		if _, err := iss.Issue(p); !errors.Is(err, ErrAmbiguousPrincipal) {
			t.Fatalf("expected ErrAmbiguousPrincipal for %+v, got %v", p, err)
		}
	}
}

func TestVerifyRejectsTokenWithBothIdentities(t *testing.T) {
	ver, err := NewVerifier(Config{SigningMethod: MethodHS256, PrivateKey: hsSecret})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	claims := Claims{CustomerID: "cust-1", AnonymousID: "anon-1", RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(hsSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	_, err = ver.Verify(token)
	if !errors.Is(err, ErrInvalidToken) || !errors.Is(err, ErrAmbiguousPrincipal) {
		t.Fatalf("expected ambiguous principal rejection, got %v", err)
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	ver, err := NewVerifier(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	claims := Claims{CustomerID: "cust-1", RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(hsSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := ver.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}
}

func TestVerifyRequiresExpiry(t *testing.T) {
	ver, err := NewVerifier(Config{SigningMethod: MethodHS256, PrivateKey: hsSecret})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{CustomerID: "cust-1"}).SignedString(hsSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := ver.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token without exp to be rejected, got %v", err)
	}
}

func TestVerifyIssuerAudienceAndLeeway(t *testing.T) {
	pub, priv := newEdKeys(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "checkout",
		Audience:      "payments",
		Leeway:        30 * time.Second,
		Now:           func() time.Time { return now },
	}
	ver, err := NewVerifier(cfg)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	sign := func(issuer, audience string, exp time.Time) string {
		claims := Claims{CustomerID: "cust-1", RegisteredClaims: gjwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  gjwt.ClaimStrings{audience},
			ExpiresAt: gjwt.NewNumericDate(exp),
			IssuedAt:  gjwt.NewNumericDate(exp.Add(-time.Minute)),
		}}
		token, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return token
	}

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "valid", token: sign("checkout", "payments", now.Add(time.Minute))},
		{name: "wrong issuer", token: sign("other", "payments", now.Add(time.Minute)), wantErr: true},
		{name: "wrong audience", token: sign("checkout", "refunds", now.Add(time.Minute)), wantErr: true},
		{name: "expired within leeway", token: sign("checkout", "payments", now.Add(-15*time.Second))},
		{name: "expired beyond leeway", token: sign("checkout", "payments", now.Add(-2*time.Minute)), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ver.Verify(tt.token)
			if tt.wantErr && !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected token to verify, got %v", err)
			}
		})
	}
}

func TestVerifyKeySetSelectsByKid(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, priv2 := newEdKeys(t)

	ver, err := NewVerifier(Config{
		SigningMethod: MethodEd25519,
		VerifyKeys:    map[string][]byte{"k1": pub1, "k2": pub2},
	})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	for kid, priv := range map[string]ed25519.PrivateKey{"k1": priv1, "k2": priv2} {
		iss, err := NewIssuer(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, KeyID: kid})
		if err != nil {
			t.Fatalf("NewIssuer %s: %v", kid, err)
		}
		token, err := iss.Issue(session.Principal{AnonymousID: "anon-" + kid})
		if err != nil {
			t.Fatalf("Issue %s: %v", kid, err)
		}
		if _, err := ver.Verify(token); err != nil {
			t.Fatalf("expected %s token to verify, got %v", kid, err)
		}
	}

	rogue, err := NewIssuer(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv1, KeyID: "k3"})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	token, _ := rogue.Issue(session.Principal{AnonymousID: "anon"})
	if _, err := ver.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected unknown kid to fail, got %v", err)
	}

	swapped, _ := NewIssuer(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv2, KeyID: "k1"})
	token, _ = swapped.Issue(session.Principal{AnonymousID: "anon"})
	if _, err := ver.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature under wrong kid to fail, got %v", err)
	}
}

func TestConstructorsRejectBadConfig(t *testing.T) {
	pub, _ := newEdKeys(t)
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "unknown method", cfg: Config{TTL: time.Minute, SigningMethod: "rs256", PrivateKey: hsSecret}},
		{name: "hs256 without secret", cfg: Config{TTL: time.Minute, SigningMethod: MethodHS256}},
		{name: "leeway too large", cfg: Config{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsSecret, Leeway: time.Hour}},
		{name: "bad public key", cfg: Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: []byte("short")}},
		{name: "kid missing from set", cfg: Config{TTL: time.Minute, SigningMethod: MethodEd25519, KeyID: "k9", VerifyKeys: map[string][]byte{"k1": pub}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewVerifier(tt.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig from NewVerifier, got %v", err)
			}
		})
	}

	if _, err := NewIssuer(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected issuer without private key to fail, got %v", err)
	}
	if _, err := NewIssuer(Config{SigningMethod: MethodHS256, PrivateKey: hsSecret}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected issuer without TTL to fail, got %v", err)
	}
}
