// Package policyopa is an optional second gate: after the security
// requirements admit a principal, a Rego policy may still deny the operation
// (tenancy rules, embargoed items, and the like live there, not in the
// OpenAPI document).
package policyopa

import (
	"context"
	"encoding/json"
	"errors"

	"gatekeeper/internal/domain"

	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.gatekeeper.authz.result"

type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngineFromPath loads and compiles the Rego modules at path. The policy
// must produce `data.gatekeeper.authz.result` shaped like
// {allow: bool, deny: [{code, message}]}.
func NewEngineFromPath(ctx context.Context, path string) (*Engine, error) {
	r := rego.New(
		rego.Query(defaultQuery),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{path}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{query: prepared}, nil
}

func (e *Engine) Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyResult, error) {
	if e == nil {
		return domain.PolicyResult{}, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyResult{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyResult{}, errors.New("empty policy result")
	}
	return decodeResult(results[0].Expressions[0].Value)
}

func decodeResult(value any) (domain.PolicyResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	var result domain.PolicyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.PolicyResult{}, err
	}
	return result, nil
}
