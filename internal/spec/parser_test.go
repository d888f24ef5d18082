package spec

import (
	"testing"

	"gatekeeper/internal/domain"
)

const testDoc = `
swagger: '2.0'
basePath: /api
securityDefinitions:
  isRegistered:
    type: basic
  isReseller:
    type: apiKey
    in: header
    name: X-Custom-Key
  isResellerQuery:
    type: apiKey
    in: query
    name: CustomKeyAsQuery
  hasRole:
    type: oauth2
    flow: accessCode
    authorizationUrl: https://auth.test/authorize
    tokenUrl: https://auth.test/token
    scopes:
      customer: customer scope
      inventoryManager: reseller scope
security:
  - isRegistered: []
paths:
  /items:
    get:
      security: []
  /order/add:
    post:
      security:
        - isRegistered: []
          hasRole: [customer]
        - isReseller: []
          hasRole: [inventoryManager]
        - isResellerQuery: []
          hasRole: [inventoryManager]
  /order/{orderID}:
    get: {}
`

func TestParse_Schemes(t *testing.T) {
	doc, err := ParseBytes([]byte(testDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.BasePath != "/api" {
		t.Fatalf("unexpected basePath: %s", doc.BasePath)
	}
	if len(doc.Schemes) != 4 {
		t.Fatalf("expected 4 schemes, got %d", len(doc.Schemes))
	}

	scheme, ok := doc.Scheme("isReseller")
	if !ok {
		t.Fatal("isReseller not found")
	}
	if scheme.Kind != domain.SchemeAPIKey || scheme.In != domain.InHeader || scheme.ParamName != "X-Custom-Key" {
		t.Fatalf("unexpected isReseller scheme: %+v", scheme)
	}

	scheme, ok = doc.Scheme("hasRole")
	if !ok {
		t.Fatal("hasRole not found")
	}
	if scheme.Kind != domain.SchemeBearer {
		t.Fatalf("oauth2 should map to bearer, got %s", scheme.Kind)
	}
	if scheme.TokenURL != "https://auth.test/token" {
		t.Fatalf("flow metadata not carried: %+v", scheme)
	}
	if _, ok := scheme.DeclaredScopes["inventoryManager"]; !ok {
		t.Fatalf("declared scopes not carried: %+v", scheme.DeclaredScopes)
	}
}

func TestParse_ExplicitEmptySecurityIsPublic(t *testing.T) {
	doc, err := ParseBytes([]byte(testDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	policy, ok := doc.Policies[domain.RouteKey{Method: "GET", Path: "/items"}]
	if !ok {
		t.Fatal("GET /items not found")
	}
	if !policy.Public {
		t.Fatal("explicit empty security should be public")
	}
	if len(policy.Requirements) != 0 {
		t.Fatalf("public operation should carry no requirements, got %d", len(policy.Requirements))
	}
}

func TestParse_AbsentSecurityInheritsGlobalDefault(t *testing.T) {
	doc, err := ParseBytes([]byte(testDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	policy, ok := doc.Policies[domain.RouteKey{Method: "GET", Path: "/order/{orderID}"}]
	if !ok {
		t.Fatal("GET /order/{orderID} not found")
	}
	if policy.Public {
		t.Fatal("operation without security must inherit the global default")
	}
	if len(policy.Requirements) != 1 {
		t.Fatalf("expected 1 inherited requirement, got %d", len(policy.Requirements))
	}
	if policy.Requirements[0][0].Scheme != "isRegistered" {
		t.Fatalf("unexpected inherited scheme: %+v", policy.Requirements[0])
	}
}

func TestParse_AlternativesPreserveOrder(t *testing.T) {
	doc, err := ParseBytes([]byte(testDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	policy := doc.Policies[domain.RouteKey{Method: "POST", Path: "/order/add"}]
	if len(policy.Requirements) != 3 {
		t.Fatalf("expected 3 alternatives, got %d", len(policy.Requirements))
	}
	first := policy.Requirements[0]
	if len(first) != 2 || first[0].Scheme != "isRegistered" || first[1].Scheme != "hasRole" {
		t.Fatalf("first alternative clause order lost: %+v", first)
	}
	if len(first[1].Scopes) != 1 || first[1].Scopes[0] != "customer" {
		t.Fatalf("unexpected scopes on first alternative: %+v", first[1].Scopes)
	}
	if policy.Requirements[1][0].Scheme != "isReseller" {
		t.Fatalf("second alternative out of order: %+v", policy.Requirements[1])
	}
	if policy.Requirements[2][0].Scheme != "isResellerQuery" {
		t.Fatalf("third alternative out of order: %+v", policy.Requirements[2])
	}
}

func TestParse_UndeclaredSchemeRejected(t *testing.T) {
	const bad = `
swagger: '2.0'
securityDefinitions:
  isRegistered:
    type: basic
paths:
  /things:
    get:
      security:
        - nosuch: []
`
	if _, err := ParseBytes([]byte(bad)); err == nil {
		t.Fatal("expected error for undeclared scheme reference")
	}
}
