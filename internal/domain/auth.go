package domain

import (
	"context"
	"net/http"
	"net/url"
)

// Principal is the authenticated identity resolved for one request.
type Principal struct {
	Name  string
	Roles []string
}

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Credential is a raw credential pulled off a request, not yet validated.
type Credential struct {
	Scheme string

	// Basic
	Username string
	Password string

	// API key or bearer token
	Token string
}

// Extractor pulls a raw credential for one scheme from request headers and
// query parameters. It must be side-effect-free. Absence is reported as
// ErrMissingCredential, undecodable content as ErrMalformedCredential.
type Extractor interface {
	Extract(header http.Header, query url.Values) (Credential, error)
}

// SchemeValidator checks an extracted credential against its scheme and
// resolves a Principal. Scope-bearing validators report the scopes actually
// present on the token; required-scope checking is the combinator's job.
type SchemeValidator interface {
	Validate(ctx context.Context, cred Credential) (Principal, error)
}

// Outcome is the verdict of one authorization decision.
type Outcome int

const (
	OutcomeAuthorized Outcome = iota
	OutcomeUnauthorized
	OutcomeForbidden
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAuthorized:
		return "authorized"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeForbidden:
		return "forbidden"
	}
	return "unknown"
}

// Decision is the engine's output. Principal is nil for public operations and
// for non-authorized outcomes.
type Decision struct {
	Outcome   Outcome
	Principal *Principal
}

// User is a registered account in the user store.
type User struct {
	Username       string
	PasswordSHA256 string
	Roles          []string
}

// ResellerKey maps an API key to the reseller it identifies.
type ResellerKey struct {
	Key        string
	ResellerID string
}

type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
}

type ResellerKeyStore interface {
	FindByKey(ctx context.Context, key string) (*ResellerKey, error)
}
