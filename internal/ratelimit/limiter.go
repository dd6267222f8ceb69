// Package ratelimit provides fixed-window request limiting keyed by client.
//
// Two backends share the Limiter interface: Memory keeps counters in the
// process, Redis shares them across replicas.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // zero when allowed
}

// Limiter counts requests per key within a window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
