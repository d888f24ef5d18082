// Package extract pulls raw credentials off request headers and query
// parameters. Extractors are side-effect-free and never touch a backing
// store; deciding whether a credential is valid is the validators' job.
package extract

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"gatekeeper/internal/domain"
)

const accessTokenParam = "access_token"

// ForScheme builds the extractor matching a scheme declaration.
func ForScheme(scheme domain.SecurityScheme) domain.Extractor {
	switch scheme.Kind {
	case domain.SchemeBasic:
		return Basic{SchemeName: scheme.Name}
	case domain.SchemeAPIKey:
		if scheme.In == domain.InQuery {
			return APIKeyQuery{SchemeName: scheme.Name, Param: scheme.ParamName}
		}
		return APIKeyHeader{SchemeName: scheme.Name, Header: scheme.ParamName}
	default:
		return Bearer{SchemeName: scheme.Name}
	}
}

// Basic reads `Authorization: Basic <base64(user:pass)>`. An Authorization
// header serving another scheme (e.g. Bearer) counts as absent, not
// malformed.
type Basic struct {
	SchemeName string
}

func (b Basic) Extract(header http.Header, _ url.Values) (domain.Credential, error) {
	value := strings.TrimSpace(header.Get("Authorization"))
	if value == "" || !strings.HasPrefix(strings.ToLower(value), "basic ") {
		return domain.Credential{}, domain.ErrMissingCredential
	}
	payload := strings.TrimSpace(value[len("basic "):])
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("%w: basic payload is not base64", domain.ErrMalformedCredential)
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok || username == "" {
		return domain.Credential{}, fmt.Errorf("%w: basic payload lacks a username", domain.ErrMalformedCredential)
	}
	return domain.Credential{
		Scheme:   b.SchemeName,
		Username: username,
		Password: password,
	}, nil
}

// APIKeyHeader reads a key from a configurable header (e.g. X-Custom-Key).
type APIKeyHeader struct {
	SchemeName string
	Header     string
}

func (a APIKeyHeader) Extract(header http.Header, _ url.Values) (domain.Credential, error) {
	value := strings.TrimSpace(header.Get(a.Header))
	if value == "" {
		return domain.Credential{}, domain.ErrMissingCredential
	}
	return domain.Credential{Scheme: a.SchemeName, Token: value}, nil
}

// APIKeyQuery reads a key from a configurable query parameter
// (e.g. CustomKeyAsQuery).
type APIKeyQuery struct {
	SchemeName string
	Param      string
}

func (a APIKeyQuery) Extract(_ http.Header, query url.Values) (domain.Credential, error) {
	value := strings.TrimSpace(query.Get(a.Param))
	if value == "" {
		return domain.Credential{}, domain.ErrMissingCredential
	}
	return domain.Credential{Scheme: a.SchemeName, Token: value}, nil
}

// Bearer reads `Authorization: Bearer <token>`, falling back to the
// access_token query parameter. The query path lets a request carry a Basic
// credential in the Authorization header and a token at the same time, so a
// single header never has to serve two schemes at once.
type Bearer struct {
	SchemeName string
}

func (b Bearer) Extract(header http.Header, query url.Values) (domain.Credential, error) {
	value := strings.TrimSpace(header.Get("Authorization"))
	lower := strings.ToLower(value)
	if lower == "bearer" || strings.HasPrefix(lower, "bearer ") {
		token := strings.TrimSpace(value[len("bearer"):])
		if token == "" {
			return domain.Credential{}, fmt.Errorf("%w: bearer header carries no token", domain.ErrMalformedCredential)
		}
		return domain.Credential{Scheme: b.SchemeName, Token: token}, nil
	}
	if token := strings.TrimSpace(query.Get(accessTokenParam)); token != "" {
		return domain.Credential{Scheme: b.SchemeName, Token: token}, nil
	}
	return domain.Credential{}, domain.ErrMissingCredential
}
