// user_repository.go implements UserRepository. Users are never created by hand: every SSO
// login upserts the row keyed by username.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
)

const userColumns = `id, username, display_name, email, sso_provider, last_login_at, created_at`

// UserRepository handles user database operations
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertFromSSO creates the user or refreshes its display name and login time.
// An empty email from the identity provider keeps the stored one.
func (r *UserRepository) UpsertFromSSO(ctx context.Context, user *models.User) (*models.User, error) {
	now := time.Now()
	query := `
		INSERT INTO users (id, username, display_name, email, sso_provider, last_login_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (username) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE users.email END,
		    sso_provider = EXCLUDED.sso_provider,
		    last_login_at = EXCLUDED.last_login_at
		RETURNING ` + userColumns

	var saved models.User
	err := r.db.QueryRowxContext(ctx, query,
		uuid.New().String(),
		user.Username,
		user.DisplayName,
		user.Email,
		user.SSOProvider,
		now,
	).StructScan(&saved)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user %s: %w", user.Username, err)
	}
	return &saved, nil
}

// GetByUsername returns the user, or nil when unknown
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", username, err)
	}
	return &user, nil
}
