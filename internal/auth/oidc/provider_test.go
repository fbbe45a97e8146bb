package oidc

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"github.com/qa-dashboard/qa-dashboard/internal/config"
)

// newMockOIDCProvider constructs an OIDCProvider directly without network calls,
// pointing OAuth2 endpoints at an unreachable URL so error paths work correctly.
func newMockOIDCProvider() *OIDCProvider {
	return &OIDCProvider{
		config: &oauth2.Config{
			ClientID:     "test-client",
			ClientSecret: "test-secret",
			RedirectURL:  "http://localhost/auth/oidc/callback",
			Scopes:       []string{"openid"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://provider.example.com/auth",
				TokenURL: "http://127.0.0.1:1/token", // port 1: always refused
			},
		},
		groupClaim: "groups",
	}
}

func TestNewOIDCProvider_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.OIDCConfig
	}{
		{"issuer", config.OIDCConfig{ClientID: "client", ClientSecret: "secret"}},
		{"client id", config.OIDCConfig{IssuerURL: "https://example.com", ClientSecret: "secret"}},
		{"client secret", config.OIDCConfig{IssuerURL: "https://example.com", ClientID: "client"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if _, err := NewOIDCProvider(&cfg); err == nil {
				t.Errorf("expected error for missing %s, got nil", tt.name)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// GetAuthURL
// ---------------------------------------------------------------------------

func TestGetAuthURL(t *testing.T) {
	p := newMockOIDCProvider()
	url := p.GetAuthURL("my-state-123")
	for _, want := range []string{"state=my-state-123", "client_id=test-client", "response_type=code"} {
		if !strings.Contains(url, want) {
			t.Errorf("GetAuthURL = %q, want to contain %s", url, want)
		}
	}
}

func TestGetEndSessionEndpoint_NoProvider(t *testing.T) {
	if got := newMockOIDCProvider().GetEndSessionEndpoint(); got != "" {
		t.Errorf("GetEndSessionEndpoint = %q, want empty", got)
	}
}

// ---------------------------------------------------------------------------
// ExchangeCode / Authenticate
// ---------------------------------------------------------------------------

func TestExchangeCode_NetworkError(t *testing.T) {
	p := newMockOIDCProvider()
	_, err := p.ExchangeCode(context.Background(), "some-code")
	if err == nil {
		t.Error("ExchangeCode expected error for unreachable token endpoint, got nil")
	}
}

func TestAuthenticate_NetworkError(t *testing.T) {
	p := newMockOIDCProvider()
	id, err := p.Authenticate(context.Background(), "some-code")
	if err == nil {
		t.Error("Authenticate expected error for unreachable token endpoint, got nil")
	}
	if id != nil {
		t.Errorf("Authenticate identity = %+v, want nil", id)
	}
}

// ---------------------------------------------------------------------------
// Claims
// ---------------------------------------------------------------------------

func TestIdentityFromClaims(t *testing.T) {
	claims := map[string]interface{}{
		"sub":                "0f3a",
		"preferred_username": "jdoe",
		"name":               "Jane Doe",
		"email":              "jane@example.com",
		"groups":             []interface{}{"QA Approver", "", 7, "Viewer"},
	}
	id, err := identityFromClaims(claims, "groups")
	if err != nil {
		t.Fatalf("identityFromClaims error: %v", err)
	}
	if id.Username != "jdoe" || id.DisplayName != "Jane Doe" || id.Email != "jane@example.com" {
		t.Errorf("unexpected identity: %+v", id)
	}
	if id.Provider != "oidc" {
		t.Errorf("Provider = %q, want oidc", id.Provider)
	}
	if len(id.Groups) != 2 || id.Groups[0] != "QA Approver" || id.Groups[1] != "Viewer" {
		t.Errorf("Groups = %v", id.Groups)
	}
}

func TestIdentityFromClaims_FallsBackToSub(t *testing.T) {
	id, err := identityFromClaims(map[string]interface{}{"sub": "abc"}, "groups")
	if err != nil {
		t.Fatalf("identityFromClaims error: %v", err)
	}
	if id.Username != "abc" {
		t.Errorf("Username = %q, want abc", id.Username)
	}
	if id.Groups != nil {
		t.Errorf("Groups = %v, want nil", id.Groups)
	}
}

func TestIdentityFromClaims_MissingSubject(t *testing.T) {
	if _, err := identityFromClaims(map[string]interface{}{"email": "x@example.com"}, "groups"); err == nil {
		t.Error("expected error when sub and preferred_username are absent")
	}
}

func TestGroupsFromClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]interface{}
		claim  string
		want   int
	}{
		{"no claim name", map[string]interface{}{"groups": []string{"a"}}, "", 0},
		{"absent", map[string]interface{}{}, "groups", 0},
		{"string slice", map[string]interface{}{"roles": []string{"a", "b"}}, "roles", 2},
		{"single string", map[string]interface{}{"groups": "Admin"}, "groups", 1},
		{"empty string", map[string]interface{}{"groups": ""}, "groups", 0},
		{"wrong type", map[string]interface{}{"groups": 42}, "groups", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := groupsFromClaims(tt.claims, tt.claim); len(got) != tt.want {
				t.Errorf("groupsFromClaims = %v, want %d entries", got, tt.want)
			}
		})
	}
}
