package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"gatekeeper/internal/domain"
)

// ErrCapacityExhausted means the limiter itself ran out of bucket slots, not
// that any client exceeded a budget. It is kept distinct from backend errors
// so operators can tell "MaxKeys is sized too small for the client
// population" apart from a Redis outage.
var ErrCapacityExhausted = errors.New("rate limiter bucket capacity exhausted")

type memoryLimiter struct {
	policy  Policy
	maxKeys int
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*window
}

type window struct {
	count int
	endAt time.Time
}

type MemoryLimiterConfig struct {
	Now     func() time.Time
	MaxKeys int
}

func NewMemoryLimiter(policy Policy, cfg MemoryLimiterConfig) domain.RateLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	return &memoryLimiter{
		policy:  policy,
		maxKeys: cfg.MaxKeys,
		now:     cfg.Now,
		buckets: make(map[string]*window),
	}
}

func (m *memoryLimiter) Allow(_ context.Context, clientIP string, op domain.RouteKey) (domain.RateLimitDecision, error) {
	rule := m.policy.ruleFor(op)
	if !rule.enabled() {
		return domain.RateLimitDecision{Allowed: true, Limit: rule.Requests, Remaining: rule.Requests}, nil
	}
	key := bucketKey(clientIP, op)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.buckets[key]
	if ok && now.After(w.endAt) {
		delete(m.buckets, key)
		w, ok = nil, false
	}
	if !ok {
		if len(m.buckets) >= m.maxKeys {
			m.evictExpired(now)
		}
		if len(m.buckets) >= m.maxKeys {
			// Every slot holds a live window. The caller decides whether
			// that fails open or closed; see ErrCapacityExhausted.
			return domain.RateLimitDecision{}, ErrCapacityExhausted
		}
		w = &window{endAt: now.Add(rule.Window)}
		m.buckets[key] = w
	}

	if w.count < rule.Requests {
		w.count++
		return domain.RateLimitDecision{
			Allowed:   true,
			Limit:     rule.Requests,
			Remaining: rule.Requests - w.count,
			ResetAt:   w.endAt,
		}, nil
	}
	return domain.RateLimitDecision{
		Allowed:   false,
		Limit:     rule.Requests,
		Remaining: 0,
		ResetAt:   w.endAt,
	}, nil
}

func (m *memoryLimiter) evictExpired(now time.Time) {
	for key, w := range m.buckets {
		if now.After(w.endAt) {
			delete(m.buckets, key)
		}
	}
}
