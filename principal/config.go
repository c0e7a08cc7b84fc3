package principal

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

var (
	// ErrInvalidConfig is returned by the constructors for unusable key material.
	ErrInvalidConfig = errors.New("principal: invalid configuration")
	// ErrInvalidToken is returned for any token that fails verification.
	ErrInvalidToken = errors.New("principal: invalid token")
	// ErrAmbiguousPrincipal is returned when a token names both or neither identity.
	ErrAmbiguousPrincipal = errors.New("principal: token must carry exactly one of customer_id or anonymous_id")
)

// Config holds signing and verification settings. For HS256 PrivateKey is
// the shared secret. For Ed25519 keys may be raw or PEM encoded.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	// VerifyKeys maps kid to verification key. When set, tokens must carry a
	// known kid.
	VerifyKeys map[string][]byte
	Now        func() time.Time
}

// Claims is the JWT payload.
type Claims struct {
	CustomerID  string `json:"customer_id,omitempty"`
	AnonymousID string `json:"anonymous_id,omitempty"`
	jwt.RegisteredClaims
}

func (c Config) normalize() (Config, error) {
	if c.Leeway < 0 || c.Leeway > 2*time.Minute {
		return c, fmt.Errorf("%w: leeway must be within [0, 2m]", ErrInvalidConfig)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	c.KeyID = strings.TrimSpace(c.KeyID)

	switch c.SigningMethod {
	case MethodHS256:
		if len(c.PrivateKey) == 0 {
			return c, fmt.Errorf("%w: hs256 requires a secret", ErrInvalidConfig)
		}
	case MethodEd25519:
		if len(c.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(c.PrivateKey); err != nil {
				return c, err
			}
		}
		if len(c.PublicKey) > 0 {
			if _, err := parseEdPublicKey(c.PublicKey); err != nil {
				return c, err
			}
		}
		for kid, key := range c.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return c, fmt.Errorf("%w: verify key map contains empty kid", ErrInvalidConfig)
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return c, fmt.Errorf("kid %q: %w", kid, err)
			}
		}
	default:
		return c, fmt.Errorf("%w: unsupported signing method %q", ErrInvalidConfig, c.SigningMethod)
	}

	if c.KeyID != "" && len(c.VerifyKeys) > 0 {
		if _, ok := c.VerifyKeys[c.KeyID]; !ok {
			return c, fmt.Errorf("%w: KeyID is not present in VerifyKeys", ErrInvalidConfig)
		}
	}
	return c, nil
}

func (c Config) method() jwt.SigningMethod {
	if c.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func (c Config) keyFromBytes(key []byte) (any, error) {
	if c.SigningMethod == MethodHS256 {
		return key, nil
	}
	return parseEdPublicKey(key)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ed25519 private key", ErrInvalidConfig)
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: invalid ed25519 private key type", ErrInvalidConfig)
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ed25519 public key", ErrInvalidConfig)
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: invalid ed25519 public key type", ErrInvalidConfig)
	}
	return edKey, nil
}
