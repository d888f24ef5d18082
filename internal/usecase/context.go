package usecase

import (
	"context"
	"net/http"
	"net/url"

	"gatekeeper/internal/domain"
)

// requestContext is the per-request accumulator: it memoizes extraction and
// validation per scheme so the same header is parsed, and the same credential
// checked, at most once even when a scheme appears in several alternatives.
// It lives for exactly one Authorize call and is never shared.
type requestContext struct {
	header http.Header
	query  url.Values

	extracted map[string]extractResult
	validated map[string]validateResult
}

type extractResult struct {
	cred domain.Credential
	err  error
}

type validateResult struct {
	principal domain.Principal
	err       error
}

func newRequestContext(header http.Header, query url.Values) *requestContext {
	return &requestContext{
		header:    header,
		query:     query,
		extracted: make(map[string]extractResult),
		validated: make(map[string]validateResult),
	}
}

func (rc *requestContext) extract(e *Engine, scheme string) (domain.Credential, error) {
	if result, ok := rc.extracted[scheme]; ok {
		return result.cred, result.err
	}
	cred, err := e.extractors[scheme].Extract(rc.header, rc.query)
	rc.extracted[scheme] = extractResult{cred: cred, err: err}
	return cred, err
}

func (rc *requestContext) validate(ctx context.Context, e *Engine, scheme string, cred domain.Credential) (domain.Principal, error) {
	if result, ok := rc.validated[scheme]; ok {
		return result.principal, result.err
	}
	principal, err := e.validators[scheme].Validate(ctx, cred)
	// Infrastructure failures are not memoized: a later alternative must not
	// inherit a transient store error as if it were a verdict.
	if err == nil || domain.IsAuthFailure(err) {
		rc.validated[scheme] = validateResult{principal: principal, err: err}
	}
	return principal, err
}
