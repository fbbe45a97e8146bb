// Package saml implements SAML 2.0 service provider login for the dashboard.
// The identity provider metadata is loaded once at startup; assertions are turned into an auth.Identity
// and the caller issues its own session, so the samlsp session cookie is never used.
package saml

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/crewjam/saml"
	"github.com/crewjam/saml/samlsp"

	"github.com/qa-dashboard/qa-dashboard/internal/auth"
	"github.com/qa-dashboard/qa-dashboard/internal/config"
)

// ServiceProvider is the dashboard's SAML service provider
type ServiceProvider struct {
	middleware *samlsp.Middleware
	cfg        config.SAMLConfig
}

// New builds the service provider. publicURL is the externally visible root of the dashboard;
// the ACS and metadata endpoints are served under <publicURL>/auth/saml/.
func New(ctx context.Context, cfg *config.SAMLConfig, publicURL string) (*ServiceProvider, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, fmt.Errorf("SAML cert_file and key_file are required")
	}

	keyPair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load SAML key pair: %w", err)
	}
	cert, err := x509.ParseCertificate(keyPair.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse SAML certificate: %w", err)
	}
	key, ok := keyPair.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("SAML key must be an RSA private key")
	}

	idpMetadata, err := loadIDPMetadata(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rootURL, err := url.Parse(strings.TrimRight(publicURL, "/") + "/auth")
	if err != nil {
		return nil, fmt.Errorf("invalid public URL %q: %w", publicURL, err)
	}

	middleware, err := samlsp.New(samlsp.Options{
		EntityID:          cfg.EntityID,
		URL:               *rootURL,
		Key:               key,
		Certificate:       cert,
		IDPMetadata:       idpMetadata,
		AllowIDPInitiated: cfg.AllowIDPInitiated,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SAML service provider: %w", err)
	}

	return &ServiceProvider{middleware: middleware, cfg: *cfg}, nil
}

func loadIDPMetadata(ctx context.Context, cfg *config.SAMLConfig) (*saml.EntityDescriptor, error) {
	switch {
	case cfg.IDPMetadataFile != "":
		data, err := os.ReadFile(cfg.IDPMetadataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read IdP metadata file: %w", err)
		}
		md, err := samlsp.ParseMetadata(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse IdP metadata: %w", err)
		}
		return md, nil
	case cfg.IDPMetadataURL != "":
		u, err := url.Parse(cfg.IDPMetadataURL)
		if err != nil {
			return nil, fmt.Errorf("invalid IdP metadata URL: %w", err)
		}
		md, err := samlsp.FetchMetadata(ctx, http.DefaultClient, *u)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch IdP metadata: %w", err)
		}
		return md, nil
	default:
		return nil, fmt.Errorf("SAML idp_metadata_url or idp_metadata_file is required")
	}
}

// ServeMetadata writes the SP metadata document
func (sp *ServiceProvider) ServeMetadata(w http.ResponseWriter, r *http.Request) {
	sp.middleware.ServeMetadata(w, r)
}

// StartLogin redirects the browser to the identity provider, tracking the request in a cookie
func (sp *ServiceProvider) StartLogin(w http.ResponseWriter, r *http.Request) {
	sp.middleware.HandleStartAuthFlow(w, r)
}

// CompleteLogin validates the posted SAML response and returns the asserted identity together with
// the URI the login was started from (empty for IdP-initiated logins).
func (sp *ServiceProvider) CompleteLogin(w http.ResponseWriter, r *http.Request) (*auth.Identity, string, error) {
	if err := r.ParseForm(); err != nil {
		return nil, "", fmt.Errorf("failed to parse SAML response form: %w", err)
	}

	var possibleIDs []string
	for _, tr := range sp.middleware.RequestTracker.GetTrackedRequests(r) {
		possibleIDs = append(possibleIDs, tr.SAMLRequestID)
	}
	if sp.middleware.ServiceProvider.AllowIDPInitiated {
		possibleIDs = append(possibleIDs, "")
	}

	assertion, err := sp.middleware.ServiceProvider.ParseResponse(r, possibleIDs)
	if err != nil {
		return nil, "", describeResponseError(err)
	}

	redirectURI := ""
	if relayState := r.Form.Get("RelayState"); relayState != "" {
		if tr, err := sp.middleware.RequestTracker.GetTrackedRequest(r, relayState); err == nil {
			redirectURI = tr.URI
		}
		_ = sp.middleware.RequestTracker.StopTrackingRequest(w, r, relayState)
	}

	identity, err := IdentityFromAssertion(assertion, &sp.cfg)
	if err != nil {
		return nil, "", err
	}
	return identity, redirectURI, nil
}

// describeResponseError unwraps the private cause crewjam keeps out of Error()
func describeResponseError(err error) error {
	if ire, ok := err.(*saml.InvalidResponseError); ok && ire.PrivateErr != nil {
		return fmt.Errorf("invalid SAML response: %w", ire.PrivateErr)
	}
	return fmt.Errorf("invalid SAML response: %w", err)
}

// IdentityFromAssertion maps an assertion onto an identity. The NameID is the username;
// display name, email and groups come from the configured attributes.
func IdentityFromAssertion(assertion *saml.Assertion, cfg *config.SAMLConfig) (*auth.Identity, error) {
	if assertion == nil || assertion.Subject == nil || assertion.Subject.NameID == nil ||
		strings.TrimSpace(assertion.Subject.NameID.Value) == "" {
		return nil, fmt.Errorf("SAML assertion has no NameID")
	}

	identity := &auth.Identity{
		Username: strings.TrimSpace(assertion.Subject.NameID.Value),
		Provider: "saml",
	}

	for _, stmt := range assertion.AttributeStatements {
		for _, attr := range stmt.Attributes {
			values := attributeValues(attr)
			if len(values) == 0 {
				continue
			}
			switch {
			case attributeIs(attr, cfg.DisplayNameAttribute):
				identity.DisplayName = values[0]
			case attributeIs(attr, cfg.EmailAttribute):
				identity.Email = values[0]
			case attributeIs(attr, cfg.GroupsAttribute):
				identity.Groups = append(identity.Groups, values...)
			}
		}
	}

	return identity, nil
}

func attributeIs(attr saml.Attribute, name string) bool {
	if name == "" {
		return false
	}
	return attr.Name == name || attr.FriendlyName == name
}

func attributeValues(attr saml.Attribute) []string {
	values := make([]string, 0, len(attr.Values))
	for _, v := range attr.Values {
		if s := strings.TrimSpace(v.Value); s != "" {
			values = append(values, s)
		}
	}
	return values
}
