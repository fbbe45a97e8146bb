// Package oidc implements OpenID Connect login for the dashboard.
// It handles discovery, the authorization code exchange and turning ID token claims into an identity.
package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/qa-dashboard/qa-dashboard/internal/auth"
	"github.com/qa-dashboard/qa-dashboard/internal/config"
)

// OIDCProvider wraps the generic OIDC provider
type OIDCProvider struct {
	verifier   *oidc.IDTokenVerifier
	config     *oauth2.Config
	provider   *oidc.Provider
	groupClaim string
}

// NewOIDCProvider initializes a new OIDC provider using a background context.
func NewOIDCProvider(cfg *config.OIDCConfig) (*OIDCProvider, error) {
	return NewOIDCProviderWithContext(context.Background(), cfg)
}

// NewOIDCProviderWithContext initializes a new OIDC provider with the given context,
// allowing callers to set deadlines or cancellation for the OIDC discovery request.
func NewOIDCProviderWithContext(ctx context.Context, cfg *config.OIDCConfig) (*OIDCProvider, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("OIDC issuer URL is required")
	}

	if cfg.ClientID == "" {
		return nil, fmt.Errorf("OIDC client ID is required")
	}

	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("OIDC client secret is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: cfg.ClientID,
	})

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       scopes,
	}

	return &OIDCProvider{
		verifier:   verifier,
		config:     oauth2Config,
		provider:   provider,
		groupClaim: cfg.GroupClaimName,
	}, nil
}

// GetAuthURL returns the OAuth2 authorization URL
func (p *OIDCProvider) GetAuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// GetEndSessionEndpoint returns the OIDC end_session_endpoint from the discovery document,
// or an empty string if the provider does not advertise one.
func (p *OIDCProvider) GetEndSessionEndpoint() string {
	if p.provider == nil {
		return ""
	}
	var claims struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := p.provider.Claims(&claims); err != nil {
		return ""
	}
	return claims.EndSessionEndpoint
}

// ExchangeCode exchanges the authorization code for tokens
func (p *OIDCProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}

	return token, nil
}

// VerifyIDToken verifies and extracts claims from the ID token
func (p *OIDCProvider) VerifyIDToken(ctx context.Context, rawIDToken string) (*oidc.IDToken, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	return idToken, nil
}

// Authenticate completes the authorization code flow and returns the logged-in identity
func (p *OIDCProvider) Authenticate(ctx context.Context, code string) (*auth.Identity, error) {
	token, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("token response did not include an id_token")
	}

	idToken, err := p.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse ID token claims: %w", err)
	}

	return identityFromClaims(claims, p.groupClaim)
}

// identityFromClaims builds an identity from decoded ID token claims.
// The username is preferred_username when present, otherwise sub.
func identityFromClaims(claims map[string]interface{}, groupClaim string) (*auth.Identity, error) {
	str := func(name string) string {
		s, _ := claims[name].(string)
		return s
	}

	username := str("preferred_username")
	if username == "" {
		username = str("sub")
	}
	if username == "" {
		return nil, fmt.Errorf("ID token missing 'sub' claim")
	}

	return &auth.Identity{
		Username:    username,
		DisplayName: str("name"),
		Email:       str("email"),
		Groups:      groupsFromClaims(claims, groupClaim),
		Provider:    "oidc",
	}, nil
}

// groupsFromClaims reads the named claim and returns its string values.
// claimName is typically "groups", "roles", or "memberOf" depending on the IdP.
// Returns nil (not an error) when the claim is absent or empty.
func groupsFromClaims(claims map[string]interface{}, claimName string) []string {
	if claimName == "" {
		return nil
	}

	switch v := claims[claimName].(type) {
	case []interface{}:
		groups := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				groups = append(groups, s)
			}
		}
		return groups
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}
