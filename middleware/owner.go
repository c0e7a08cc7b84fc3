package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/session"
)

// SessionReader is the read side of a session store.
type SessionReader interface {
	GetSession(ctx context.Context, id string) (*session.Session, error)
}

type sessionContextKey struct{}

// SessionFromContext returns the session loaded by RequireSessionOwner.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return s, ok && s != nil
}

// RequireSessionOwner loads the session named by idFrom and passes it on the
// context when the guarded principal owns it. It must run after Guard. An
// absent session answers 409 and a foreign one 403.
func RequireSessionOwner(store SessionReader, idFrom func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := store.GetSession(r.Context(), idFrom(r))
			if err != nil {
				http.Error(w, ErrorCode(err), StatusFor(err))
				return
			}
			if sess == nil {
				http.Error(w, ErrorCode(authsession.ErrSessionNotFound), StatusFor(authsession.ErrSessionNotFound))
				return
			}
			if !sess.OwnedBy(p) {
				http.Error(w, ErrorCode(ErrNotOwner), StatusFor(ErrNotOwner))
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
