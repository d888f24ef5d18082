package extract

import (
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"gatekeeper/internal/domain"
)

func basicHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestBasic(t *testing.T) {
	cases := []struct {
		name     string
		auth     string
		wantUser string
		wantPass string
		wantErr  error
	}{
		{name: "valid", auth: basicHeader("fred", "scrum"), wantUser: "fred", wantPass: "scrum"},
		{name: "absent", auth: "", wantErr: domain.ErrMissingCredential},
		{name: "other scheme", auth: "Bearer sometoken", wantErr: domain.ErrMissingCredential},
		{name: "bad base64", auth: "Basic %%%not-base64%%%", wantErr: domain.ErrMalformedCredential},
		{name: "no colon", auth: "Basic " + base64.StdEncoding.EncodeToString([]byte("fredonly")), wantErr: domain.ErrMalformedCredential},
		{name: "lowercase prefix", auth: basicHeader("ivan", "terrible"), wantUser: "ivan", wantPass: "terrible"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			header := http.Header{}
			if tc.auth != "" {
				header.Set("Authorization", tc.auth)
			}
			cred, err := Basic{SchemeName: "isRegistered"}.Extract(header, url.Values{})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if cred.Username != tc.wantUser || cred.Password != tc.wantPass {
				t.Fatalf("unexpected credential: %+v", cred)
			}
			if cred.Scheme != "isRegistered" {
				t.Fatalf("scheme name not carried: %+v", cred)
			}
		})
	}
}

func TestAPIKeyHeader(t *testing.T) {
	ex := APIKeyHeader{SchemeName: "isReseller", Header: "X-Custom-Key"}

	header := http.Header{}
	header.Set("X-Custom-Key", "key-123")
	cred, err := ex.Extract(header, url.Values{})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if cred.Token != "key-123" {
		t.Fatalf("unexpected token: %q", cred.Token)
	}

	if _, err := ex.Extract(http.Header{}, url.Values{}); !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected missing, got %v", err)
	}
}

func TestAPIKeyQuery(t *testing.T) {
	ex := APIKeyQuery{SchemeName: "isResellerQuery", Param: "CustomKeyAsQuery"}

	query := url.Values{}
	query.Set("CustomKeyAsQuery", "key-456")
	cred, err := ex.Extract(http.Header{}, query)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if cred.Token != "key-456" {
		t.Fatalf("unexpected token: %q", cred.Token)
	}

	if _, err := ex.Extract(http.Header{}, url.Values{}); !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected missing, got %v", err)
	}
}

func TestBearer(t *testing.T) {
	ex := Bearer{SchemeName: "hasRole"}

	t.Run("header", func(t *testing.T) {
		header := http.Header{}
		header.Set("Authorization", "Bearer tok-1")
		cred, err := ex.Extract(header, url.Values{})
		if err != nil {
			t.Fatalf("extract: %v", err)
		}
		if cred.Token != "tok-1" {
			t.Fatalf("unexpected token: %q", cred.Token)
		}
	})

	t.Run("query fallback", func(t *testing.T) {
		query := url.Values{}
		query.Set("access_token", "tok-2")
		cred, err := ex.Extract(http.Header{}, query)
		if err != nil {
			t.Fatalf("extract: %v", err)
		}
		if cred.Token != "tok-2" {
			t.Fatalf("unexpected token: %q", cred.Token)
		}
	})

	t.Run("basic header plus query token coexist", func(t *testing.T) {
		// The Authorization header is occupied by the Basic scheme; the
		// token must come from the query without any ambiguity.
		header := http.Header{}
		header.Set("Authorization", basicHeader("fred", "scrum"))
		query := url.Values{}
		query.Set("access_token", "tok-3")
		cred, err := ex.Extract(header, query)
		if err != nil {
			t.Fatalf("extract: %v", err)
		}
		if cred.Token != "tok-3" {
			t.Fatalf("unexpected token: %q", cred.Token)
		}
	})

	t.Run("empty bearer token is malformed", func(t *testing.T) {
		header := http.Header{}
		header.Set("Authorization", "Bearer   ")
		if _, err := ex.Extract(header, url.Values{}); !errors.Is(err, domain.ErrMalformedCredential) {
			t.Fatalf("expected malformed, got %v", err)
		}
	})

	t.Run("absent", func(t *testing.T) {
		if _, err := ex.Extract(http.Header{}, url.Values{}); !errors.Is(err, domain.ErrMissingCredential) {
			t.Fatalf("expected missing, got %v", err)
		}
	})
}
