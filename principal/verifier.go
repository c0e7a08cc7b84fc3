package principal

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/authsession/session"
)

// Verifier checks bearer tokens and extracts the session owner. It is safe
// for concurrent use.
type Verifier struct {
	config Config
	parser *jwt.Parser
}

func NewVerifier(cfg Config) (*Verifier, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if cfg.SigningMethod == MethodEd25519 && len(cfg.PublicKey) == 0 && len(cfg.VerifyKeys) == 0 {
		return nil, fmt.Errorf("%w: ed25519 requires a public key or verify key set", ErrInvalidConfig)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{cfg.method().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{config: cfg, parser: jwt.NewParser(options...)}, nil
}

// Verify validates token and returns its principal. Every failure wraps
// ErrInvalidToken; a token naming both or neither identity also wraps
// ErrAmbiguousPrincipal.
func (v *Verifier) Verify(token string) (session.Principal, error) {
	parsed, err := v.parser.ParseWithClaims(token, &Claims{}, v.keyFunc)
	if err != nil {
		return session.Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return session.Principal{}, ErrInvalidToken
	}

	p := session.Principal{CustomerID: claims.CustomerID, AnonymousID: claims.AnonymousID}
	if p.IsZero() || (p.CustomerID != "" && p.AnonymousID != "") {
		return session.Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, ErrAmbiguousPrincipal)
	}
	return p, nil
}

func (v *Verifier) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)

	if len(v.config.VerifyKeys) > 0 {
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := v.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return v.config.keyFromBytes(key)
	}

	if v.config.KeyID != "" && kid != v.config.KeyID {
		return nil, errors.New("unknown kid")
	}

	if v.config.SigningMethod == MethodHS256 {
		return v.config.PrivateKey, nil
	}
	return parseEdPublicKey(v.config.PublicKey)
}
