package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter gates outbound requests.
type RateLimiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	Remaining() int
}

// TokenBucket refills at a fixed rate up to capacity.
type TokenBucket struct {
	capacity   int
	tokens     int
	refillRate int // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	add := int(now.Sub(tb.lastRefill).Seconds()) * tb.refillRate
	if add > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+add)
		tb.lastRefill = now
	}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}
		wait := time.Second
		if tb.refillRate > 0 {
			wait = time.Second / time.Duration(tb.refillRate)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens
}

// Manager holds one limiter per endpoint group.
type Manager struct {
	limiters map[string]RateLimiter
	fallback RateLimiter
	mu       sync.RWMutex
}

// Endpoint groups used as limiter keys.
const (
	GroupAuth   = "auth"
	GroupTrade  = "trade"
	GroupQuotes = "quotes"
	GroupNews   = "news"
)

// NewManager creates a manager with conservative per-group defaults. The
// broker publishes no limits, so these just keep polling loops polite.
func NewManager() *Manager {
	return &Manager{
		limiters: map[string]RateLimiter{
			GroupAuth:   NewTokenBucket(5, 1),
			GroupTrade:  NewTokenBucket(30, 10),
			GroupQuotes: NewTokenBucket(60, 20),
			GroupNews:   NewTokenBucket(20, 5),
		},
		fallback: NewTokenBucket(30, 10),
	}
}

// Set replaces the limiter for a group.
func (m *Manager) Set(group string, limiter RateLimiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[group] = limiter
}

func (m *Manager) limiter(group string) RateLimiter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.limiters[group]; ok {
		return l
	}
	return m.fallback
}

// Wait blocks until the group's limiter admits a request or ctx is done.
func (m *Manager) Wait(ctx context.Context, group string) error {
	return m.limiter(group).Wait(ctx)
}

// Allow reports whether a request would be admitted right now.
func (m *Manager) Allow(group string) bool {
	return m.limiter(group).Allow()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
