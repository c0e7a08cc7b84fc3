package principal

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/authsession/session"
)

// Issuer mints principal tokens. Production deployments usually receive
// these from an identity service; Issuer serves that service, the CLI and
// tests.
type Issuer struct {
	config  Config
	signKey any
}

func NewIssuer(cfg Config) (*Issuer, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: TTL must be positive", ErrInvalidConfig)
	}

	var key any = cfg.PrivateKey
	if cfg.SigningMethod == MethodEd25519 {
		if len(cfg.PrivateKey) == 0 {
			return nil, fmt.Errorf("%w: ed25519 issuer requires a private key", ErrInvalidConfig)
		}
		key, err = parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
	}

	return &Issuer{config: cfg, signKey: key}, nil
}

// Issue signs a token for p, which must name exactly one identity.
func (i *Issuer) Issue(p session.Principal) (string, error) {
	if p.IsZero() || (p.CustomerID != "" && p.AnonymousID != "") {
		return "", ErrAmbiguousPrincipal
	}

	now := i.config.Now()
	claims := Claims{
		CustomerID:  p.CustomerID,
		AnonymousID: p.AnonymousID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    i.config.Issuer,
		},
	}
	if i.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.config.Audience}
	}

	token := jwt.NewWithClaims(i.config.method(), claims)
	if i.config.KeyID != "" {
		token.Header["kid"] = i.config.KeyID
	}
	return token.SignedString(i.signKey)
}
