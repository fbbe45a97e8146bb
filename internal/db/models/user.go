// Package models - user.go defines the User model, created or refreshed on every SSO login.
package models

import "time"

// User is a dashboard account keyed by the identity provider's username (SAML NameID or OIDC subject)
type User struct {
	ID          string    `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Email       string    `db:"email" json:"email"`
	SSOProvider string    `db:"sso_provider" json:"sso_provider"`
	LastLoginAt time.Time `db:"last_login_at" json:"last_login_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
