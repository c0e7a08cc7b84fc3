package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// newFakeClock starts at wall time so miniredis expiry stays in the future.
func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testRequest() CreateRequest {
	return CreateRequest{
		CartID:       "cart-1",
		CartVersion:  3,
		PaymentToken: "tok_4242",
		TokenType:    TokenTransient,
		BillingDetails: BillingDetails{
			Name:  "Ada Lovelace",
			Email: "ada@example.com",
			Address: Address{
				Line1:      "12 St James's Square",
				City:       "London",
				PostalCode: "SW1Y 4JH",
				Country:    "GB",
			},
		},
		ShippingDetails: &ShippingDetails{
			Name: "Ada Lovelace",
			Address: Address{
				Line1:      "1 Analytical Row",
				Line2:      "Flat 2",
				City:       "London",
				PostalCode: "N1 9GU",
				Country:    "GB",
			},
		},
		AuthenticationSetupData: json.RawMessage(`{"acs_url":"https://acs.example/challenge","creq":"eyJ0aHJlZURT"}`),
		CustomerID:              "cust-1",
	}
}

func newRedisTest(t *testing.T, opts ...Option) (*RedisProvider, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewRedisProvider(rdb, opts...), mr, rdb
}

// fakePostgREST serves the subset of PostgREST the Supabase provider uses:
// eq/gt filters, insert, conditional update and delete with representation.
type fakePostgREST struct {
	mu   sync.Mutex
	rows map[string]sessionRow
	down bool
}

func newSupabaseTest(t *testing.T, opts ...Option) (*SupabaseProvider, *fakePostgREST) {
	t.Helper()
	fake := &fakePostgREST{rows: make(map[string]sessionRow)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	p, err := NewSupabaseProvider(SupabaseConfig{URL: srv.URL, APIKey: "service-role-key"}, opts...)
	if err != nil {
		t.Fatalf("new supabase provider: %v", err)
	}
	return p, fake
}

func (f *fakePostgREST) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"code": "503", "message": "database unavailable"})
		return
	}
	if !strings.HasSuffix(r.URL.Path, "/"+defaultTable) {
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "42P01", "message": "relation does not exist"})
		return
	}

	q := r.URL.Query()
	switch r.Method {
	case http.MethodGet:
		out := f.filter(q)
		if q.Get("limit") == "1" && len(out) > 1 {
			out = out[:1]
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var row sessionRow
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"code": "22P02", "message": err.Error()})
			return
		}
		if _, exists := f.rows[row.ID]; exists {
			writeJSON(w, http.StatusConflict, map[string]string{"code": "23505", "message": "duplicate key"})
			return
		}
		f.rows[row.ID] = row
		w.WriteHeader(http.StatusCreated)

	case http.MethodPatch:
		var patch map[string]string
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"code": "22P02", "message": err.Error()})
			return
		}
		out := f.filter(q)
		for i := range out {
			out[i].Status = Status(patch["status"])
			f.rows[out[i].ID] = out[i]
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodDelete:
		out := f.filter(q)
		for _, row := range out {
			delete(f.rows, row.ID)
		}
		writeJSON(w, http.StatusOK, out)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakePostgREST) filter(q url.Values) []sessionRow {
	out := []sessionRow{}
	for _, row := range f.rows {
		if rowMatches(row, q) {
			out = append(out, row)
		}
	}
	return out
}

func rowMatches(row sessionRow, q url.Values) bool {
	if v := q.Get("id"); v != "" && strings.TrimPrefix(v, "eq.") != row.ID {
		return false
	}
	if v := q.Get("status"); v != "" && strings.TrimPrefix(v, "eq.") != string(row.Status) {
		return false
	}
	if v := q.Get("expires_at"); v != "" {
		bound, err := time.Parse(time.RFC3339Nano, strings.TrimPrefix(v, "gt."))
		if err != nil || !row.ExpiresAt.After(bound) {
			return false
		}
	}
	return true
}

func (f *fakePostgREST) row(id string) (sessionRow, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	return row, ok
}

func (f *fakePostgREST) put(row sessionRow) {
	f.mu.Lock()
	f.rows[row.ID] = row
	f.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
