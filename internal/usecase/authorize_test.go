package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"gatekeeper/internal/domain"
)

// Scheme set mirroring the order API document: Basic for registered
// customers, header and query API keys for resellers, and a scope-bearing
// bearer scheme for role checks.
func testSchemes() []domain.SecurityScheme {
	return []domain.SecurityScheme{
		{Name: "isRegistered", Kind: domain.SchemeBasic, In: domain.InHeader, ParamName: "Authorization"},
		{Name: "isReseller", Kind: domain.SchemeAPIKey, In: domain.InHeader, ParamName: "X-Custom-Key"},
		{Name: "isResellerQuery", Kind: domain.SchemeAPIKey, In: domain.InQuery, ParamName: "CustomKeyAsQuery"},
		{Name: "hasRole", Kind: domain.SchemeBearer, In: domain.InHeader, ParamName: "Authorization"},
	}
}

type fakeValidator struct {
	calls    int
	validate func(cred domain.Credential) (domain.Principal, error)
}

func (f *fakeValidator) Validate(_ context.Context, cred domain.Credential) (domain.Principal, error) {
	f.calls++
	return f.validate(cred)
}

type validatorSet struct {
	basic  *fakeValidator
	apikey *fakeValidator
	jwt    *fakeValidator
}

func newValidatorSet() *validatorSet {
	return &validatorSet{
		basic: &fakeValidator{validate: func(cred domain.Credential) (domain.Principal, error) {
			if cred.Username == "fred" && cred.Password == "scrum" {
				return domain.Principal{Name: "fred", Roles: []string{"isRegistered"}}, nil
			}
			return domain.Principal{}, domain.ErrInvalidCredential
		}},
		apikey: &fakeValidator{validate: func(cred domain.Credential) (domain.Principal, error) {
			if cred.Token == "key-123" {
				return domain.Principal{Name: "reseller-9", Roles: []string{"reseller"}}, nil
			}
			return domain.Principal{}, domain.ErrInvalidCredential
		}},
		jwt: &fakeValidator{validate: func(cred domain.Credential) (domain.Principal, error) {
			switch cred.Token {
			case "tok-customer":
				return domain.Principal{Name: "fred", Roles: []string{"customer"}}, nil
			case "tok-inventory":
				return domain.Principal{Name: "reseller-bot", Roles: []string{"inventoryManager"}}, nil
			case "tok-noscope":
				return domain.Principal{Name: "fred", Roles: nil}, nil
			}
			return domain.Principal{}, domain.ErrInvalidCredential
		}},
	}
}

func (s *validatorSet) engine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(testSchemes(), map[string]domain.SchemeValidator{
		"isRegistered":    s.basic,
		"isReseller":      s.apikey,
		"isResellerQuery": s.apikey,
		"hasRole":         s.jwt,
	}, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func orderAddPolicy() domain.OperationPolicy {
	return domain.OperationPolicy{Requirements: []domain.SecurityRequirement{
		{{Scheme: "isRegistered"}, {Scheme: "hasRole", Scopes: []string{"customer"}}},
		{{Scheme: "isReseller"}, {Scheme: "hasRole", Scopes: []string{"inventoryManager"}}},
		{{Scheme: "isResellerQuery"}, {Scheme: "hasRole", Scopes: []string{"inventoryManager"}}},
	}}
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestAuthorize_PublicIgnoresCredentials(t *testing.T) {
	e := newValidatorSet().engine(t)
	header := http.Header{}
	header.Set("Authorization", basicAuth("garbage", "garbage"))

	decision, err := e.Authorize(context.Background(), domain.OperationPolicy{Public: true}, header, url.Values{})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if decision.Outcome != domain.OutcomeAuthorized {
		t.Fatalf("expected authorized, got %s", decision.Outcome)
	}
	if decision.Principal != nil {
		t.Fatalf("public operation must not bind a principal: %+v", decision.Principal)
	}
}

func TestAuthorize_SingleAlternative(t *testing.T) {
	vs := newValidatorSet()
	e := vs.engine(t)
	policy := domain.OperationPolicy{Requirements: []domain.SecurityRequirement{
		{{Scheme: "isRegistered"}},
	}}

	t.Run("valid credentials", func(t *testing.T) {
		header := http.Header{}
		header.Set("Authorization", basicAuth("fred", "scrum"))
		decision, err := e.Authorize(context.Background(), policy, header, url.Values{})
		if err != nil {
			t.Fatalf("authorize: %v", err)
		}
		if decision.Outcome != domain.OutcomeAuthorized {
			t.Fatalf("expected authorized, got %s", decision.Outcome)
		}
		if decision.Principal == nil || decision.Principal.Name != "fred" {
			t.Fatalf("unexpected principal: %+v", decision.Principal)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		header := http.Header{}
		header.Set("Authorization", basicAuth("fred", "wrong"))
		decision, err := e.Authorize(context.Background(), policy, header, url.Values{})
		if err != nil {
			t.Fatalf("authorize: %v", err)
		}
		if decision.Outcome != domain.OutcomeUnauthorized {
			t.Fatalf("expected unauthorized, got %s", decision.Outcome)
		}
	})

	t.Run("no credentials", func(t *testing.T) {
		decision, err := e.Authorize(context.Background(), policy, http.Header{}, url.Values{})
		if err != nil {
			t.Fatalf("authorize: %v", err)
		}
		if decision.Outcome != domain.OutcomeUnauthorized {
			t.Fatalf("expected unauthorized, got %s", decision.Outcome)
		}
	})
}

func TestAuthorize_SecondAlternativeWins(t *testing.T) {
	// Reseller header key plus an inventoryManager token: the first
	// alternative (Basic) is never satisfied, the second admits the request.
	vs := newValidatorSet()
	e := vs.engine(t)

	header := http.Header{}
	header.Set("X-Custom-Key", "key-123")
	header.Set("Authorization", "Bearer tok-inventory")

	decision, err := e.Authorize(context.Background(), orderAddPolicy(), header, url.Values{})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if decision.Outcome != domain.OutcomeAuthorized {
		t.Fatalf("expected authorized, got %s", decision.Outcome)
	}
	if decision.Principal.Name != "reseller-9" {
		t.Fatalf("expected reseller principal, got %+v", decision.Principal)
	}
	if !decision.Principal.HasRole("reseller") || !decision.Principal.HasRole("inventoryManager") {
		t.Fatalf("conjunction roles not merged: %+v", decision.Principal.Roles)
	}
}

func TestAuthorize_QueryKeyAlternative(t *testing.T) {
	// Basic occupies the Authorization header, so the token rides the query
	// string and the key rides its own query parameter.
	vs := newValidatorSet()
	e := vs.engine(t)

	query := url.Values{}
	query.Set("CustomKeyAsQuery", "key-123")
	query.Set("access_token", "tok-inventory")

	decision, err := e.Authorize(context.Background(), orderAddPolicy(), http.Header{}, query)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if decision.Outcome != domain.OutcomeAuthorized {
		t.Fatalf("expected authorized, got %s", decision.Outcome)
	}
	if decision.Principal.Name != "reseller-9" {
		t.Fatalf("unexpected principal: %+v", decision.Principal)
	}
}

func TestAuthorize_DeclarationOrderBindsPrincipal(t *testing.T) {
	// Credentials satisfying both the customer and the reseller alternative:
	// the earlier declaration decides which identity the request runs as.
	vs := newValidatorSet()
	e := vs.engine(t)

	header := http.Header{}
	header.Set("Authorization", basicAuth("fred", "scrum"))
	header.Set("X-Custom-Key", "key-123")
	query := url.Values{}
	query.Set("access_token", "tok-customer")

	policy := domain.OperationPolicy{Requirements: []domain.SecurityRequirement{
		{{Scheme: "isRegistered"}, {Scheme: "hasRole", Scopes: []string{"customer"}}},
		{{Scheme: "isReseller"}},
	}}
	decision, err := e.Authorize(context.Background(), policy, header, query)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if decision.Outcome != domain.OutcomeAuthorized {
		t.Fatalf("expected authorized, got %s", decision.Outcome)
	}
	if decision.Principal.Name != "fred" {
		t.Fatalf("first declared alternative must win, got %+v", decision.Principal)
	}
	// Short-circuit: the reseller alternative was never evaluated.
	if vs.apikey.calls != 0 {
		t.Fatalf("expected no reseller validation, got %d calls", vs.apikey.calls)
	}
}

func TestAuthorize_MissingScopeIsForbidden(t *testing.T) {
	vs := newValidatorSet()
	e := vs.engine(t)

	header := http.Header{}
	header.Set("Authorization", basicAuth("fred", "scrum"))
	query := url.Values{}
	query.Set("access_token", "tok-noscope")

	policy := domain.OperationPolicy{Requirements: []domain.SecurityRequirement{
		{{Scheme: "isRegistered"}, {Scheme: "hasRole", Scopes: []string{"customer"}}},
	}}
	decision, err := e.Authorize(context.Background(), policy, header, query)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if decision.Outcome != domain.OutcomeForbidden {
		t.Fatalf("valid principal lacking scope must be forbidden, got %s", decision.Outcome)
	}
}

func TestAuthorize_NoCredentialsIsUnauthorized(t *testing.T) {
	vs := newValidatorSet()
	e := vs.engine(t)

	decision, err := e.Authorize(context.Background(), orderAddPolicy(), http.Header{}, url.Values{})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if decision.Outcome != domain.OutcomeUnauthorized {
		t.Fatalf("expected unauthorized, got %s", decision.Outcome)
	}
}

func TestAuthorize_MalformedCountsAsMissingButIsLogged(t *testing.T) {
	vs := newValidatorSet()
	var logged []string
	e := vs.engine(t, WithLogf(func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}))

	header := http.Header{}
	header.Set("Authorization", "Basic !!!not-base64!!!")

	policy := domain.OperationPolicy{Requirements: []domain.SecurityRequirement{
		{{Scheme: "isRegistered"}},
	}}
	decision, err := e.Authorize(context.Background(), policy, header, url.Values{})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if decision.Outcome != domain.OutcomeUnauthorized {
		t.Fatalf("malformed credential must read as unauthorized, got %s", decision.Outcome)
	}
	if len(logged) != 1 || !strings.Contains(logged[0], "malformed") {
		t.Fatalf("malformed credential should be logged distinctly: %v", logged)
	}
	if vs.basic.calls != 0 {
		t.Fatalf("malformed credential must not reach the validator, got %d calls", vs.basic.calls)
	}
}

func TestAuthorize_StoreOutagePropagates(t *testing.T) {
	vs := newValidatorSet()
	vs.basic.validate = func(domain.Credential) (domain.Principal, error) {
		return domain.Principal{}, fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable)
	}
	e := vs.engine(t)

	header := http.Header{}
	header.Set("Authorization", basicAuth("fred", "scrum"))

	policy := domain.OperationPolicy{Requirements: []domain.SecurityRequirement{
		{{Scheme: "isRegistered"}},
	}}
	_, err := e.Authorize(context.Background(), policy, header, url.Values{})
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("store outage must surface as an error, got %v", err)
	}
}

func TestAuthorize_SharedSchemeValidatedOnce(t *testing.T) {
	// hasRole appears in all three alternatives; the token must be parsed
	// and validated a single time for the whole decision.
	vs := newValidatorSet()
	e := vs.engine(t)

	// Basic succeeds, so the first alternative reaches the token and fails
	// only on the missing customer scope; the second alternative re-checks
	// the same token for inventoryManager and must hit the memoized result.
	header := http.Header{}
	header.Set("Authorization", basicAuth("fred", "scrum"))
	header.Set("X-Custom-Key", "key-123")
	query := url.Values{}
	query.Set("access_token", "tok-inventory")

	decision, err := e.Authorize(context.Background(), orderAddPolicy(), header, query)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if decision.Outcome != domain.OutcomeAuthorized {
		t.Fatalf("expected authorized, got %s", decision.Outcome)
	}
	if vs.jwt.calls != 1 {
		t.Fatalf("expected exactly one token validation, got %d", vs.jwt.calls)
	}
}

func TestAuthorize_Idempotent(t *testing.T) {
	vs := newValidatorSet()
	e := vs.engine(t)

	header := http.Header{}
	header.Set("X-Custom-Key", "key-123")
	header.Set("Authorization", "Bearer tok-inventory")

	var outcomes []domain.Outcome
	for i := 0; i < 3; i++ {
		decision, err := e.Authorize(context.Background(), orderAddPolicy(), header, url.Values{})
		if err != nil {
			t.Fatalf("authorize %d: %v", i, err)
		}
		outcomes = append(outcomes, decision.Outcome)
	}
	for _, outcome := range outcomes {
		if outcome != domain.OutcomeAuthorized {
			t.Fatalf("decision not stable: %v", outcomes)
		}
	}
}

func TestAuthorize_EmptyRequirementListIsAuthorized(t *testing.T) {
	e := newValidatorSet().engine(t)
	decision, err := e.Authorize(context.Background(), domain.OperationPolicy{}, http.Header{}, url.Values{})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if decision.Outcome != domain.OutcomeAuthorized || decision.Principal != nil {
		t.Fatalf("no demands means authorized with no principal: %+v", decision)
	}
}
