// Package auth - identity.go defines the authenticated identity carried by a dashboard session.
package auth

// Identity is what the SSO provider told us about the user at login
type Identity struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Groups      []string `json:"groups,omitempty"`
	// Provider is the SSO mechanism that produced the identity ("saml" or "oidc")
	Provider string `json:"provider"`
}

// Name returns the display name, falling back to the username
func (i *Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Username
}

// Session is one logged-in browser session
type Session struct {
	ID       string
	Identity Identity
}
