// Package bearer validates pre-issued JWTs. Tokens are verified against a
// shared HMAC secret (HS256) or a JWKS endpoint (RS256); there is no token
// exchange or redirect handling here, whatever flow the API document
// advertises.
package bearer

import (
	"context"
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gatekeeper/internal/domain"
)

const defaultHTTPTimeout = 5 * time.Second

type Config struct {
	Issuer     string
	Audience   string
	HMACSecret string
	JWKSURL    string
	ClockSkew  time.Duration
	// ScopeClaim is the claim carrying the space-delimited scope string.
	// "scp" and "roles" array claims are always consulted as well.
	ScopeClaim string
}

// Validator verifies bearer JWTs and reports the scopes actually present on
// the token. Whether those scopes satisfy an operation's requirements is the
// combinator's decision, since requirements vary per operation while the
// token is shared.
type Validator struct {
	issuer     string
	audience   string
	hmacSecret []byte
	clockSkew  time.Duration
	scopeClaim string
	jwks       *jwksCache
	now        func() time.Time
}

type Option func(*Validator)

func WithHTTPClient(client *http.Client) Option {
	return func(v *Validator) {
		if v.jwks != nil && client != nil {
			v.jwks.httpClient = client
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

func NewValidator(cfg Config, opts ...Option) (*Validator, error) {
	if cfg.HMACSecret == "" && cfg.JWKSURL == "" {
		return nil, errors.New("bearer: HMAC secret or JWKS URL is required")
	}
	scopeClaim := cfg.ScopeClaim
	if scopeClaim == "" {
		scopeClaim = "scope"
	}
	v := &Validator{
		issuer:     strings.TrimSpace(cfg.Issuer),
		audience:   strings.TrimSpace(cfg.Audience),
		clockSkew:  cfg.ClockSkew,
		scopeClaim: scopeClaim,
		now:        time.Now,
	}
	if cfg.HMACSecret != "" {
		v.hmacSecret = []byte(cfg.HMACSecret)
	}
	if cfg.JWKSURL != "" {
		v.jwks = newJWKSCache(cfg.JWKSURL, &http.Client{Timeout: defaultHTTPTimeout})
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *Validator) Validate(ctx context.Context, cred domain.Credential) (domain.Principal, error) {
	token := strings.TrimSpace(cred.Token)
	if token == "" {
		return domain.Principal{}, domain.ErrInvalidCredential
	}
	header, claims, signingInput, signature, err := parseJWT(token)
	if err != nil {
		return domain.Principal{}, domain.ErrMalformedCredential
	}
	if typ, ok := header["typ"].(string); ok && typ != "" && strings.ToUpper(typ) != "JWT" {
		return domain.Principal{}, domain.ErrInvalidCredential
	}
	alg, _ := header["alg"].(string)
	switch alg {
	case "HS256":
		if v.hmacSecret == nil {
			return domain.Principal{}, domain.ErrInvalidCredential
		}
		if err := verifyHS256(v.hmacSecret, signingInput, signature); err != nil {
			return domain.Principal{}, domain.ErrInvalidCredential
		}
	case "RS256":
		if v.jwks == nil {
			return domain.Principal{}, domain.ErrInvalidCredential
		}
		kid, _ := header["kid"].(string)
		pubKey, err := v.jwks.getKey(ctx, kid)
		if err != nil {
			if ctx.Err() != nil {
				return domain.Principal{}, ctx.Err()
			}
			if errors.Is(err, errKeyNotFound) || kid == "" {
				return domain.Principal{}, domain.ErrInvalidCredential
			}
			return domain.Principal{}, fmt.Errorf("%w: jwks: %v", domain.ErrStoreUnavailable, err)
		}
		if err := verifyRS256(pubKey, signingInput, signature); err != nil {
			return domain.Principal{}, domain.ErrInvalidCredential
		}
	default:
		return domain.Principal{}, domain.ErrInvalidCredential
	}
	if err := v.validateClaims(claims); err != nil {
		return domain.Principal{}, err
	}
	return v.principalFromClaims(claims), nil
}

func (v *Validator) validateClaims(claims map[string]any) error {
	now := v.now()
	if v.issuer != "" {
		if iss, _ := claims["iss"].(string); iss != v.issuer {
			return domain.ErrInvalidCredential
		}
	}
	if v.audience != "" && !audienceMatches(claims["aud"], v.audience) {
		return domain.ErrInvalidCredential
	}
	exp, ok := parseNumericDate(claims["exp"])
	if !ok {
		return domain.ErrInvalidCredential
	}
	if now.After(exp.Add(v.clockSkew)) {
		return domain.ErrExpiredToken
	}
	if nbf, ok := parseNumericDate(claims["nbf"]); ok {
		if now.Add(v.clockSkew).Before(nbf) {
			return domain.ErrInvalidCredential
		}
	}
	return nil
}

func (v *Validator) principalFromClaims(claims map[string]any) domain.Principal {
	principal := domain.Principal{}
	if subject, _ := claims["sub"].(string); subject != "" {
		principal.Name = subject
	}
	principal.Roles = v.extractScopes(claims)
	return principal
}

// extractScopes gathers every permission the token carries: the configured
// scope claim (space-delimited string or array), the "scp" array, and a
// "roles" array if present.
func (v *Validator) extractScopes(claims map[string]any) []string {
	var scopes []string
	switch value := claims[v.scopeClaim].(type) {
	case string:
		scopes = append(scopes, strings.Fields(value)...)
	case []any:
		scopes = append(scopes, stringEntries(value)...)
	}
	if v.scopeClaim != "scp" {
		if raw, ok := claims["scp"].([]any); ok {
			scopes = append(scopes, stringEntries(raw)...)
		}
	}
	if v.scopeClaim != "roles" {
		if raw, ok := claims["roles"].([]any); ok {
			scopes = append(scopes, stringEntries(raw)...)
		}
	}
	return dedupeStrings(scopes)
}

func stringEntries(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s, ok := entry.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func parseJWT(token string) (map[string]any, map[string]any, string, []byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, nil, "", nil, errors.New("invalid token format")
	}
	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nil, "", nil, err
	}
	claimsBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, "", nil, err
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, nil, "", nil, err
	}
	var header map[string]any
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, nil, "", nil, err
	}
	var claims map[string]any
	if err := json.Unmarshal(claimsBytes, &claims); err != nil {
		return nil, nil, "", nil, err
	}
	return header, claims, parts[0] + "." + parts[1], signature, nil
}

func verifyHS256(secret []byte, signingInput string, signature []byte) error {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(signingInput))
	if subtle.ConstantTimeCompare(mac.Sum(nil), signature) != 1 {
		return errors.New("hmac mismatch")
	}
	return nil
}

func verifyRS256(pubKey *rsa.PublicKey, signingInput string, signature []byte) error {
	hash := sha256.Sum256([]byte(signingInput))
	return rsa.VerifyPKCS1v15(pubKey, crypto.SHA256, hash[:], signature)
}

func audienceMatches(claim any, audience string) bool {
	switch value := claim.(type) {
	case string:
		return value == audience
	case []any:
		for _, entry := range value {
			if s, ok := entry.(string); ok && s == audience {
				return true
			}
		}
	}
	return false
}

func parseNumericDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	case int:
		return time.Unix(int64(v), 0), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(n, 0), true
	}
	return time.Time{}, false
}
