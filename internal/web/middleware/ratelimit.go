package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/qrtrack/internal/logging"
	"github.com/JonMunkholm/qrtrack/internal/ratelimit"
)

// RejectFunc writes the response for a rate-limited request.
type RejectFunc func(w http.ResponseWriter, r *http.Request)

// RateLimit limits requests per client IP within scope. A nil reject writes
// the default JSON error. onReject, when non-nil, is told about every
// rejection. Limiter failures let the request through.
func RateLimit(l ratelimit.Limiter, scope string, reject RejectFunc, onReject func(scope string)) func(http.Handler) http.Handler {
	if reject == nil {
		reject = defaultReject
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if a, ok := addrOf(r.RemoteAddr); ok {
				ip = a.String()
			}

			d, err := l.Allow(r.Context(), scope+":"+ip)
			if err != nil {
				logging.FromContext(r.Context()).Warn("rate limiter unavailable, allowing request",
					"scope", scope,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				if onReject != nil {
					onReject(scope)
				}
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				reject(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

func defaultReject(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "rate limit exceeded",
		"message": "Too many requests",
		"action":  "Please wait a moment and try again.",
		"code":    "RATE001",
	})
}
