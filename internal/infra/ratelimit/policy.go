// Package ratelimit meters requests per client IP and API operation using
// fixed windows. Budgets are declared as a Policy: one default rule plus
// optional per-operation overrides, so an expensive mutating operation can
// carry a tighter budget than the read paths.
package ratelimit

import (
	"time"

	"gatekeeper/internal/domain"
)

// Rule is one budget: how many requests fit in one window.
type Rule struct {
	Requests int
	Window   time.Duration
}

func (r Rule) enabled() bool {
	return r.Requests > 0 && r.Window > 0
}

type Policy struct {
	Default    Rule
	Operations map[domain.RouteKey]Rule
}

func (p Policy) ruleFor(op domain.RouteKey) Rule {
	if rule, ok := p.Operations[op]; ok {
		return rule
	}
	return p.Default
}

// Enabled reports whether any rule in the policy meters anything.
func (p Policy) Enabled() bool {
	if p.Default.enabled() {
		return true
	}
	for _, rule := range p.Operations {
		if rule.enabled() {
			return true
		}
	}
	return false
}

// bucketKey ties a counter to one client and one operation: a chatty client
// exhausts only its own budget, and each operation meters independently.
func bucketKey(clientIP string, op domain.RouteKey) string {
	return "rl:" + clientIP + ":" + op.Method + ":" + op.Path
}
