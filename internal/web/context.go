package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/qrtrack/internal/core"
)

// WithRequestMetadata adds IP and User-Agent to context for audit logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // already rewritten by TrustedRealIP
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, r.Header.Get("User-Agent"))
	return ctx
}

// actor returns the identity set by the Identity middleware.
func actor(r *http.Request) core.Actor {
	return core.ActorFromContext(r.Context())
}
