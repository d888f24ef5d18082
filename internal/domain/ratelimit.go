package domain

import (
	"context"
	"time"
)

// RateLimitDecision is the outcome of charging one request against its
// operation's budget.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter meters requests per client and operation. Implementations own
// the budgets and the counter keys; callers only say who is asking and for
// which operation.
type RateLimiter interface {
	Allow(ctx context.Context, clientIP string, op RouteKey) (RateLimitDecision, error)
}
