package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/core"
	jwt "github.com/golang-jwt/jwt/v5"
)

// Claims is the bearer token payload. Subject carries the user id.
type Claims struct {
	OrgID string `json:"org,omitempty"`
	jwt.RegisteredClaims
}

// SignToken issues an HS256 token for userID in orgID.
func SignToken(secret []byte, userID, orgID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		OrgID: orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(secret []byte, tok string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

// Identity resolves the acting user and stores it with core.ContextWithActor.
//
// A valid bearer token always wins. An invalid token is rejected with 401.
// Without a token the request is rejected when required is true; otherwise
// the X-User-ID and X-Org-ID headers are trusted, which is meant for local
// development only.
func Identity(secret []byte, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if strings.HasPrefix(header, "Bearer ") {
				if len(secret) == 0 {
					unauthorized(w, r, "token authentication is not configured", "AUTH003")
					return
				}
				claims, err := parseToken(secret, strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
				if err != nil {
					slog.Warn("auth: invalid token",
						"path", r.URL.Path,
						"remote_addr", r.RemoteAddr,
						"error", err,
					)
					unauthorized(w, r, "invalid token", "AUTH002")
					return
				}
				actor := core.Actor{UserID: claims.Subject, OrgID: claims.OrgID}
				next.ServeHTTP(w, r.WithContext(core.ContextWithActor(r.Context(), actor)))
				return
			}

			if required {
				unauthorized(w, r, "missing bearer token", "AUTH001")
				return
			}

			ctx := r.Context()
			if uid := strings.TrimSpace(r.Header.Get("X-User-ID")); uid != "" {
				ctx = core.ContextWithActor(ctx, core.Actor{
					UserID: uid,
					OrgID:  strings.TrimSpace(r.Header.Get("X-Org-ID")),
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="qrtrack"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
