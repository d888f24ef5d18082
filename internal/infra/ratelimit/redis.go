package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatekeeper/internal/domain"

	"github.com/redis/go-redis/v9"
)

// countAndExpire charges one request, stamps the window TTL on the counter's
// first use, and reports the running count plus the window's remaining
// lifetime. One round trip, atomic under concurrent clients.
var countAndExpire = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {hits, redis.call("PTTL", KEYS[1])}
`)

type redisLimiter struct {
	policy Policy
	now    func() time.Time
	charge func(ctx context.Context, key string, windowMillis int64) (any, error)
}

func NewRedisLimiter(policy Policy, addr, password string, db int, now func() time.Time) (domain.RateLimiter, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if now == nil {
		now = time.Now
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisLimiter{
		policy: policy,
		now:    now,
		charge: func(ctx context.Context, key string, windowMillis int64) (any, error) {
			return countAndExpire.Run(ctx, client, []string{key}, windowMillis).Result()
		},
	}, nil
}

func (r *redisLimiter) Allow(ctx context.Context, clientIP string, op domain.RouteKey) (domain.RateLimitDecision, error) {
	rule := r.policy.ruleFor(op)
	if !rule.enabled() {
		return domain.RateLimitDecision{Allowed: true, Limit: rule.Requests, Remaining: rule.Requests}, nil
	}
	raw, err := r.charge(ctx, bucketKey(clientIP, op), rule.Window.Milliseconds())
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	hits, ttlMillis, err := decodeCharge(raw)
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	decision := domain.RateLimitDecision{
		Allowed: hits <= int64(rule.Requests),
		Limit:   rule.Requests,
	}
	if remaining := int64(rule.Requests) - hits; remaining > 0 {
		decision.Remaining = int(remaining)
	}
	if ttlMillis > 0 {
		decision.ResetAt = r.now().Add(time.Duration(ttlMillis) * time.Millisecond)
	}
	return decision, nil
}

func decodeCharge(raw any) (hits, ttlMillis int64, err error) {
	values, ok := raw.([]any)
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("rate limit script returned %T, want [hits ttl]", raw)
	}
	hits, ok = values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("rate limit hit count is %T, want int64", values[0])
	}
	// A negative PTTL (no expiry recorded yet) leaves ResetAt unset.
	ttlMillis, _ = values[1].(int64)
	return hits, ttlMillis, nil
}
