package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"gatekeeper/internal/domain"
	"gatekeeper/internal/infra/ratelimit"

	"github.com/gin-gonic/gin"
)

const principalContextKey = "principal"

// secured wraps a handler with the authorization decision for the given
// operation. The operation's policy is resolved once, at route registration;
// each request then gets exactly one engine evaluation. Error bodies stay
// generic: a 401 never says which scheme came close, a 403 never names the
// missing scope.
func (s *Server) secured(key domain.RouteKey, handler gin.HandlerFunc) gin.HandlerFunc {
	policy, ok := s.doc.Policies[key]
	if !ok {
		policy = domain.OperationPolicy{Public: len(s.doc.Default) == 0, Requirements: s.doc.Default}
	}

	return func(c *gin.Context) {
		if !s.enforceRateLimit(c, key) {
			return
		}

		decision, err := s.engine.Authorize(c.Request.Context(), policy, c.Request.Header, c.Request.URL.Query())
		if err != nil {
			log.Printf("authorize %s %s: %v", key.Method, key.Path, err)
			writeError(c, http.StatusInternalServerError, "authorization backend unavailable")
			return
		}
		switch decision.Outcome {
		case domain.OutcomeUnauthorized:
			writeError(c, http.StatusUnauthorized, "unauthorized")
			return
		case domain.OutcomeForbidden:
			writeError(c, http.StatusForbidden, "forbidden")
			return
		}

		if decision.Principal != nil {
			c.Set(principalContextKey, *decision.Principal)
			if !s.enforcePolicy(c, key, *decision.Principal) {
				return
			}
		}
		handler(c)
	}
}

// enforcePolicy runs the optional Rego gate for authorized principals.
func (s *Server) enforcePolicy(c *gin.Context, key domain.RouteKey, principal domain.Principal) bool {
	if s.policy == nil {
		return true
	}
	result, err := s.policy.Evaluate(c.Request.Context(), domain.PolicyInput{
		Principal: domain.PolicyPrincipal{Name: principal.Name, Roles: principal.Roles},
		Operation: domain.PolicyOperation{Method: key.Method, Path: key.Path},
	})
	if err != nil {
		log.Printf("policy eval %s %s: %v", key.Method, key.Path, err)
		writeError(c, http.StatusInternalServerError, "policy evaluation failed")
		return false
	}
	if !result.Allow {
		writeError(c, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

func (s *Server) enforceRateLimit(c *gin.Context, key domain.RouteKey) bool {
	if s.rateLimiter == nil {
		return true
	}
	decision, err := s.rateLimiter.Allow(c.Request.Context(), c.ClientIP(), key)
	if err != nil {
		// Capacity exhaustion is the limiter's own problem, not the
		// backend's; log it apart so operators see which one to fix.
		if errors.Is(err, ratelimit.ErrCapacityExhausted) {
			log.Printf("rate limiter at bucket capacity; %s %s from %s not metered", key.Method, key.Path, c.ClientIP())
		} else {
			log.Printf("rate limit %s %s: %v", key.Method, key.Path, err)
		}
		if s.rateLimitFailClosed {
			writeError(c, http.StatusTooManyRequests, "rate limiter unavailable")
			return false
		}
		return true
	}
	writeRateLimitHeaders(c, decision)
	if !decision.Allowed {
		writeError(c, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}

func writeRateLimitHeaders(c *gin.Context, decision domain.RateLimitDecision) {
	if decision.Limit > 0 {
		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
	}
	if decision.Remaining >= 0 {
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
	if !decision.ResetAt.IsZero() {
		c.Header("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if !decision.Allowed {
			retryAfter := int64(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		}
	}
}

func getPrincipal(c *gin.Context) (domain.Principal, bool) {
	raw, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := raw.(domain.Principal)
	return principal, ok
}
