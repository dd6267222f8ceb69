package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process fixed-window limiter.
type Memory struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

var _ Limiter = (*Memory)(nil)

// NewMemory allows rate requests per window for each key. It starts a
// cleanup goroutine; call Close to stop it.
func NewMemory(rate int, window time.Duration) *Memory {
	m := &Memory{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go m.cleanup()
	return m
}

// Close stops the cleanup goroutine.
func (m *Memory) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// cleanup removes stale visitor entries every minute.
func (m *Memory) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Memory) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for key, v := range m.visitors {
		if now.Sub(v.lastReset) > m.window*2 {
			delete(m.visitors, key)
		}
	}
}

// Allow consumes a token for key if one is left in the current window.
func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	v, exists := m.visitors[key]
	if !exists || now.Sub(v.lastReset) > m.window {
		m.visitors[key] = &visitor{tokens: m.rate - 1, lastReset: now}
		return Decision{Allowed: true, Remaining: m.rate - 1}, nil
	}

	if v.tokens <= 0 {
		return Decision{RetryAfter: v.lastReset.Add(m.window).Sub(now)}, nil
	}

	v.tokens--
	return Decision{Allowed: true, Remaining: v.tokens}, nil
}
