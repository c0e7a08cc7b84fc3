package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/principal"
	"github.com/MrEthical07/authsession/session"
)

type staticVerifier map[string]session.Principal

func (v staticVerifier) Verify(token string) (session.Principal, error) {
	p, ok := v[token]
	if !ok {
		return session.Principal{}, principal.ErrInvalidToken
	}
	return p, nil
}

var verifier = staticVerifier{
	"cust-token":  {CustomerID: "cust-1"},
	"guest-token": {AnonymousID: "anon-1"},
}

type mapReader map[string]*session.Session

func (m mapReader) GetSession(_ context.Context, id string) (*session.Session, error) {
	if id == "broken" {
		return nil, fmt.Errorf("%w: connection refused", authsession.ErrStorageUnavailable)
	}
	return m[id], nil
}

func TestGuard(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		want       session.Principal
	}{
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic cust-token", wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer   ", wantStatus: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "customer", header: "Bearer cust-token", wantStatus: http.StatusNoContent, want: session.Principal{CustomerID: "cust-1"}},
		{name: "lowercase scheme", header: "bearer guest-token", wantStatus: http.StatusNoContent, want: session.Principal{AnonymousID: "anon-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got session.Principal
			h := Guard(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = PrincipalFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodPost, "/checkout/complete", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if got != tt.want {
				t.Fatalf("expected principal %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestGuardNilVerifier(t *testing.T) {
	h := Guard(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer cust-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireSessionOwner(t *testing.T) {
	store := mapReader{
		"s-cust":  {ID: "s-cust", CustomerID: "cust-1", Status: session.StatusPending, ExpiresAt: time.Now().Add(time.Minute)},
		"s-guest": {ID: "s-guest", AnonymousID: "anon-1", Status: session.StatusPending, ExpiresAt: time.Now().Add(time.Minute)},
	}
	idFrom := func(r *http.Request) string { return r.URL.Query().Get("session") }

	tests := []struct {
		name       string
		token      string
		session    string
		wantStatus int
	}{
		{name: "owner passes", token: "cust-token", session: "s-cust", wantStatus: http.StatusNoContent},
		{name: "guest owner passes", token: "guest-token", session: "s-guest", wantStatus: http.StatusNoContent},
		{name: "customer cannot take guest session", token: "cust-token", session: "s-guest", wantStatus: http.StatusForbidden},
		{name: "guest cannot take customer session", token: "guest-token", session: "s-cust", wantStatus: http.StatusForbidden},
		{name: "absent session conflicts", token: "cust-token", session: "missing", wantStatus: http.StatusConflict},
		{name: "storage failure", token: "cust-token", session: "broken", wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				sess, ok := SessionFromContext(r.Context())
				if !ok || sess.ID != tt.session {
					t.Fatalf("expected session %s on context", tt.session)
				}
				w.WriteHeader(http.StatusNoContent)
			})
			h := Guard(verifier)(RequireSessionOwner(store, idFrom)(final))

			req := httptest.NewRequest(http.MethodPost, "/complete?session="+tt.session, nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
		code string
	}{
		{err: nil, want: http.StatusOK, code: ""},
		{err: authsession.ErrSessionNotFound, want: http.StatusConflict, code: "session_not_found"},
		{err: fmt.Errorf("complete: %w", authsession.ErrSessionAlreadyUsed), want: http.StatusConflict, code: "session_already_used"},
		{err: authsession.ErrSessionExpired, want: http.StatusConflict, code: "session_expired"},
		{err: authsession.ErrInvalidRequest, want: http.StatusBadRequest, code: "invalid_request"},
		{err: authsession.ErrRateLimited, want: http.StatusTooManyRequests, code: "rate_limited"},
		{err: principal.ErrInvalidToken, want: http.StatusUnauthorized, code: "unauthorized"},
		{err: ErrNotOwner, want: http.StatusForbidden, code: "forbidden"},
		{err: authsession.ErrStorageUnavailable, want: http.StatusServiceUnavailable, code: "storage_unavailable"},
		{err: errors.New("boom"), want: http.StatusInternalServerError, code: "internal_error"},
	}

	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Fatalf("StatusFor(%v): expected %d, got %d", tt.err, tt.want, got)
		}
		if got := ErrorCode(tt.err); got != tt.code {
			t.Fatalf("ErrorCode(%v): expected %q, got %q", tt.err, tt.code, got)
		}
	}
}

func TestGinGuard(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(GinGuard(verifier))
	r.GET("/whoami", func(c *gin.Context) {
		p, ok := GinPrincipal(c)
		fromCtx, ctxOK := PrincipalFromContext(c.Request.Context())
		if !ok || !ctxOK || p != fromCtx {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, p.CustomerID+p.AnonymousID)
	})
	r.GET("/fail", func(c *gin.Context) {
		AbortWithError(c, authsession.ErrSessionAlreadyUsed)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer guest-token")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "anon-1" {
		t.Fatalf("expected guest principal, got %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/fail", nil)
	req.Header.Set("Authorization", "Bearer cust-token")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict || rec.Body.String() != `{"error":"session_already_used"}` {
		t.Fatalf("expected conflict body, got %d %q", rec.Code, rec.Body.String())
	}
}
