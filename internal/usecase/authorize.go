package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"gatekeeper/internal/domain"
	"gatekeeper/internal/infra/auth/extract"
)

// Engine turns an operation's security requirements and a request's raw
// headers and query parameters into an authorization verdict. It holds only
// immutable scheme configuration and is safe for concurrent use; all
// per-request state lives in a requestContext.
type Engine struct {
	schemes    map[string]domain.SecurityScheme
	extractors map[string]domain.Extractor
	validators map[string]domain.SchemeValidator
	logf       func(format string, args ...any)
}

type Option func(*Engine)

// WithLogf routes the engine's diagnostics (e.g. malformed-credential
// notices) somewhere other than the void. Malformed and missing credentials
// produce the same verdict but are reported distinctly.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(e *Engine) {
		if logf != nil {
			e.logf = logf
		}
	}
}

// NewEngine wires one validator per declared scheme. Extractors are derived
// from the scheme declarations themselves.
func NewEngine(schemes []domain.SecurityScheme, validators map[string]domain.SchemeValidator, opts ...Option) (*Engine, error) {
	e := &Engine{
		schemes:    make(map[string]domain.SecurityScheme, len(schemes)),
		extractors: make(map[string]domain.Extractor, len(schemes)),
		validators: make(map[string]domain.SchemeValidator, len(schemes)),
		logf:       func(string, ...any) {},
	}
	for _, scheme := range schemes {
		validator, ok := validators[scheme.Name]
		if !ok {
			return nil, fmt.Errorf("no validator for scheme %q", scheme.Name)
		}
		e.schemes[scheme.Name] = scheme
		e.extractors[scheme.Name] = extract.ForScheme(scheme)
		e.validators[scheme.Name] = validator
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Authorize evaluates the operation's requirement alternatives in declaration
// order and stops at the first one fully satisfied; that alternative's
// principal is the one bound to the request. The returned error is reserved
// for infrastructure failures (store outage, cancelled context) — a failed
// credential is a verdict, not an error.
func (e *Engine) Authorize(ctx context.Context, policy domain.OperationPolicy, header http.Header, query url.Values) (domain.Decision, error) {
	if policy.Public || len(policy.Requirements) == 0 {
		return domain.Decision{Outcome: domain.OutcomeAuthorized}, nil
	}

	rc := newRequestContext(header, query)
	sawPrincipal := false

	for _, requirement := range policy.Requirements {
		principal, satisfied, err := e.evaluateRequirement(ctx, rc, requirement, &sawPrincipal)
		if err != nil {
			return domain.Decision{}, err
		}
		if satisfied {
			return domain.Decision{Outcome: domain.OutcomeAuthorized, Principal: &principal}, nil
		}
	}

	// Valid credentials were presented but no alternative accepted them:
	// that is a permission problem, not an authentication one.
	if sawPrincipal {
		return domain.Decision{Outcome: domain.OutcomeForbidden}, nil
	}
	return domain.Decision{Outcome: domain.OutcomeUnauthorized}, nil
}

// evaluateRequirement checks one conjunction. Every clause must validate and,
// for scope-bearing schemes, the operation's required scopes must all be
// present on that clause's principal. Evaluation short-circuits on the first
// failing clause.
func (e *Engine) evaluateRequirement(ctx context.Context, rc *requestContext, requirement domain.SecurityRequirement, sawPrincipal *bool) (domain.Principal, bool, error) {
	var bound domain.Principal
	var extraRoles []string

	for i, clause := range requirement {
		principal, ok, err := e.evaluateClause(ctx, rc, clause, sawPrincipal)
		if err != nil {
			return domain.Principal{}, false, err
		}
		if !ok {
			return domain.Principal{}, false, nil
		}
		// The first clause names the principal; later clauses in the same
		// conjunction only contribute roles (a JWT alongside Basic adds its
		// scopes to the user's identity, it does not replace it).
		if i == 0 {
			bound = principal
		} else {
			extraRoles = append(extraRoles, principal.Roles...)
		}
	}

	bound.Roles = mergeRoles(bound.Roles, extraRoles)
	return bound, true, nil
}

func (e *Engine) evaluateClause(ctx context.Context, rc *requestContext, clause domain.SchemeClause, sawPrincipal *bool) (domain.Principal, bool, error) {
	cred, err := rc.extract(e, clause.Scheme)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedCredential) {
			e.logf("auth: malformed credential for scheme %s", clause.Scheme)
		}
		return domain.Principal{}, false, nil
	}

	principal, err := rc.validate(ctx, e, clause.Scheme, cred)
	if err != nil {
		if domain.IsAuthFailure(err) {
			return domain.Principal{}, false, nil
		}
		return domain.Principal{}, false, err
	}
	*sawPrincipal = true

	if len(clause.Scopes) > 0 {
		for _, required := range clause.Scopes {
			if !principal.HasRole(required) {
				return domain.Principal{}, false, nil
			}
		}
	}
	return principal, true, nil
}

func mergeRoles(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[string]struct{}, len(base)+len(extra))
	merged := make([]string, 0, len(base)+len(extra))
	for _, role := range base {
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		merged = append(merged, role)
	}
	for _, role := range extra {
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		merged = append(merged, role)
	}
	return merged
}
