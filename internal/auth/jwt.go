// Package auth - jwt.go issues and verifies the signed session tokens handed to the browser
// after SSO login. The token carries the identity; the role itself lives in the session store.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "qa-dashboard"

var (
	sessionSecret     string
	sessionSecretOnce sync.Once
	sessionSecretErr  error
)

// SessionClaims is the JWT payload of a session token
type SessionClaims struct {
	SessionID string   `json:"sid"`
	Identity  Identity `json:"identity"`
	jwt.RegisteredClaims
}

func isDevMode() bool {
	devMode := os.Getenv("DEV_MODE")
	return devMode == "true" || devMode == "1" || os.Getenv("GIN_MODE") == "debug"
}

func generateRandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// ValidateSessionSecret checks that QAD_SESSION_SECRET is configured.
// In dev mode a random secret is generated instead, so sessions do not survive a restart.
// Call this at application startup.
func ValidateSessionSecret() error {
	sessionSecretOnce.Do(func() {
		secret := os.Getenv("QAD_SESSION_SECRET")
		if secret == "" {
			if isDevMode() {
				sessionSecret = generateRandomSecret()
				slog.Warn("QAD_SESSION_SECRET not set, using an auto-generated secret for development")
				return
			}
			sessionSecretErr = errors.New("QAD_SESSION_SECRET environment variable is required; " +
				"generate one with: openssl rand -hex 32")
			return
		}
		if len(secret) < 32 {
			slog.Warn("QAD_SESSION_SECRET is shorter than the recommended 32 characters")
		}
		sessionSecret = secret
	})
	return sessionSecretErr
}

func getSessionSecret() (string, error) {
	if err := ValidateSessionSecret(); err != nil {
		return "", err
	}
	return sessionSecret, nil
}

// IssueSessionToken signs a session token for the given session
func IssueSessionToken(sess *Session, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	secret, err := getSessionSecret()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := &SessionClaims{
		SessionID: sess.ID,
		Identity:  sess.Identity,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   sess.Identity.Username,
			ID:        sess.ID,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseSessionToken verifies a session token and returns the session it describes
func ParseSessionToken(tokenString string) (*Session, error) {
	secret, err := getSessionSecret()
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid session token")
	}
	if claims.SessionID == "" || claims.Identity.Username == "" {
		return nil, errors.New("session token is missing the session or user")
	}

	return &Session{ID: claims.SessionID, Identity: claims.Identity}, nil
}
