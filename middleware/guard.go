package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/session"
)

// RequestIDHeader is copied onto the context by every guard.
const RequestIDHeader = "X-Request-ID"

// PrincipalVerifier turns a bearer token into a session owner.
// *principal.Verifier satisfies it.
type PrincipalVerifier interface {
	Verify(token string) (session.Principal, error)
}

type principalContextKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p session.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (session.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(session.Principal)
	return p, ok && !p.IsZero()
}

// Guard rejects requests without a valid bearer token with 401 and stores
// the verified principal on the request context.
func Guard(verifier PrincipalVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			p, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := WithPrincipal(annotate(r), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func annotate(r *http.Request) context.Context {
	ctx := r.Context()
	if id := r.Header.Get(RequestIDHeader); id != "" {
		ctx = authsession.WithRequestID(ctx, id)
	}
	if ip := clientIP(r.RemoteAddr); ip != "" {
		ctx = authsession.WithClientIP(ctx, ip)
	}
	return ctx
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
