package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/JonMunkholm/qrtrack/internal/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// actorEcho writes the resolved actor as "user|org".
var actorEcho = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	a := core.ActorFromContext(r.Context())
	_, _ = w.Write([]byte(a.UserID + "|" + a.OrgID))
})

func TestIdentity(t *testing.T) {
	valid, err := SignToken(testSecret, "coord-1", "org-1", time.Hour)
	require.NoError(t, err)
	expired, err := SignToken(testSecret, "coord-1", "org-1", -time.Hour)
	require.NoError(t, err)
	foreign, err := SignToken([]byte("another-secret-another-secret-xx"), "coord-1", "org-1", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		required   bool
		headers    map[string]string
		wantStatus int
		wantBody   string
	}{
		{"valid token", true, map[string]string{"Authorization": "Bearer " + valid}, 200, "coord-1|org-1"},
		{"expired token", false, map[string]string{"Authorization": "Bearer " + expired}, 401, ""},
		{"wrong key", false, map[string]string{"Authorization": "Bearer " + foreign}, 401, ""},
		{"missing token required", true, nil, 401, ""},
		{"dev headers", false, map[string]string{"X-User-ID": "dev", "X-Org-ID": "org-9"}, 200, "dev|org-9"},
		{"anonymous", false, nil, 200, "|"},
		{"dev headers ignored when required", true, map[string]string{"X-User-ID": "dev"}, 401, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/wizard", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			Identity(testSecret, tt.required)(actorEcho).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestIdentityRejectsOtherAlgorithms(t *testing.T) {
	// alg "none" must never be accepted.
	tok := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiJjb29yZC0xIn0."
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	Identity(testSecret, false)(actorEcho).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type stubLimiter struct {
	decision ratelimit.Decision
	err      error
	keys     []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (ratelimit.Decision, error) {
	s.keys = append(s.keys, key)
	return s.decision, s.err
}

func TestRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	t.Run("allowed", func(t *testing.T) {
		lim := &stubLimiter{decision: ratelimit.Decision{Allowed: true, Remaining: 4}}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.7:5000"
		rec := httptest.NewRecorder()
		RateLimit(lim, "api", nil, nil)(ok).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, []string{"api:192.0.2.7"}, lim.keys)
	})

	t.Run("rejected", func(t *testing.T) {
		lim := &stubLimiter{decision: ratelimit.Decision{RetryAfter: 1500 * time.Millisecond}}
		var rejected []string
		rec := httptest.NewRecorder()
		RateLimit(lim, "checkin", nil, func(scope string) { rejected = append(rejected, scope) })(ok).
			ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), "RATE001")
		assert.Equal(t, []string{"checkin"}, rejected)
	})

	t.Run("custom reject", func(t *testing.T) {
		lim := &stubLimiter{}
		rec := httptest.NewRecorder()
		reject := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) }
		RateLimit(lim, "x", reject, nil)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})

	t.Run("limiter failure fails open", func(t *testing.T) {
		lim := &stubLimiter{err: errors.New("redis down")}
		rec := httptest.NewRecorder()
		RateLimit(lim, "api", nil, nil)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"trusted real ip", "10.1.2.3:999", map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
		{"trusted xff first hop", "10.1.2.3:999", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "203.0.113.5"},
		{"trusted single address", "127.0.0.1:80", map[string]string{"X-Real-IP": "198.51.100.1"}, "198.51.100.1"},
		{"untrusted ignored", "192.0.2.1:999", map[string]string{"X-Real-IP": "203.0.113.9"}, "192.0.2.1:999"},
		{"garbage header", "10.1.2.3:999", map[string]string{"X-Real-IP": "not-an-ip"}, "10.1.2.3:999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP([]string{"10.0.0.0/8", "127.0.0.1", "bogus"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

type observation struct {
	method, route string
	status        int
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (o *recordingObserver) ObserveRequest(method, route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.obs = append(o.obs, observation{method, route, status})
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	obs := &recordingObserver{}
	r := chi.NewRouter()
	r.Use(Instrument(obs))
	r.Get("/api/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/records/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Len(t, obs.obs, 2)
	assert.Equal(t, observation{"GET", "/api/records/{id}", 404}, obs.obs[0])
	assert.Equal(t, "unmatched", obs.obs[1].route)
}
