// Package identity is the user-store capability: users, credentials with
// lockout tracking, roles and claims over Postgres. Policy decisions
// (protected roles, token issue) live in the auth service; this package only
// answers questions about and mutates the stored identity state.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/mesworks/shopsched/pkg/apperrors"
	"github.com/mesworks/shopsched/pkg/database"
	"github.com/mesworks/shopsched/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxFailedLogins = 5
	lockoutDuration = 15 * time.Minute

	minPasswordLength = 8
)

// Service implements the user store over Postgres
type Service struct {
	db     database.Querier
	logger *logger.Logger
}

// NewService creates a new identity service
func NewService(db *database.PostgreSQL, logger *logger.Logger) *Service {
	return &Service{
		db:     db.Pool(),
		logger: logger,
	}
}

// User is a stored account
type User struct {
	ID                  int64
	Name                string
	Email               string
	PasswordHash        string
	Enabled             bool
	FailedLoginAttempts int
	LockoutUntil        *time.Time
	Created             time.Time
	Updated             time.Time
}

// Claim is a (type, value) pair attached to a user
type Claim struct {
	Type  string
	Value string
}

// CreateUser creates a user after enforcing password complexity and
// name/email uniqueness
func (s *Service) CreateUser(ctx context.Context, name, email, password string) (*User, error) {
	s.logger.Infof("Creating user: %s", name)

	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.Validation("username is required").
			WithField("username", "username is required")
	}

	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(user_name) = LOWER($1) OR LOWER(email) = LOWER($2))
	`, name, email).Scan(&exists)
	if err != nil {
		return nil, apperrors.Internal("failed to check user uniqueness", err)
	}
	if exists {
		return nil, apperrors.Conflict("a user with that name or email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("failed to hash password", err)
	}

	var id int64
	err = s.db.QueryRow(ctx, `
		INSERT INTO users (user_name, email, password_hash, enabled, failed_login_attempts, created, updated)
		VALUES ($1, $2, $3, true, 0, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id
	`, name, email, string(hash)).Scan(&id)
	if err != nil {
		s.logger.Errorf("Failed to create user %s: %v", name, err)
		return nil, apperrors.Internal("failed to create user", err)
	}

	return s.GetByID(ctx, id)
}

// GetByName retrieves a user by name, case-insensitively
func (s *Service) GetByName(ctx context.Context, name string) (*User, error) {
	return s.getUser(ctx, `LOWER(user_name) = LOWER($1)`, name)
}

// GetByID retrieves a user by id
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.getUser(ctx, `id = $1`, id)
}

func (s *Service) getUser(ctx context.Context, where string, arg any) (*User, error) {
	query := `
		SELECT id, user_name, email, password_hash, enabled, failed_login_attempts,
		       lockout_until, created, updated
		FROM users
		WHERE ` + where

	var u User
	err := s.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash,
		&u.Enabled, &u.FailedLoginAttempts, &u.LockoutUntil, &u.Created, &u.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.Internal("failed to get user", err)
	}
	return &u, nil
}

// CheckPassword verifies a user's password and maintains the lockout state:
// a locked-out or disabled account always fails, repeated failures lock the
// account out, success resets the counter.
func (s *Service) CheckPassword(ctx context.Context, user *User, password string) (bool, error) {
	if !user.Enabled {
		return false, nil
	}
	if user.LockoutUntil != nil && user.LockoutUntil.After(time.Now().UTC()) {
		s.logger.Warnf("Login attempt for locked-out user %s", user.Name)
		return false, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if recErr := s.recordFailedLogin(ctx, user); recErr != nil {
			return false, recErr
		}
		return false, nil
	}

	if user.FailedLoginAttempts > 0 || user.LockoutUntil != nil {
		_, err := s.db.Exec(ctx, `
			UPDATE users SET failed_login_attempts = 0, lockout_until = NULL, updated = CURRENT_TIMESTAMP
			WHERE id = $1
		`, user.ID)
		if err != nil {
			return false, apperrors.Internal("failed to reset login attempts", err)
		}
	}

	return true, nil
}

func (s *Service) recordFailedLogin(ctx context.Context, user *User) error {
	attempts := user.FailedLoginAttempts + 1

	var lockout *time.Time
	if attempts >= maxFailedLogins {
		until := time.Now().UTC().Add(lockoutDuration)
		lockout = &until
		attempts = 0
		s.logger.Warnf("User %s locked out until %s", user.Name, until.Format(time.RFC3339))
	}

	_, err := s.db.Exec(ctx, `
		UPDATE users SET failed_login_attempts = $1, lockout_until = $2, updated = CURRENT_TIMESTAMP
		WHERE id = $3
	`, attempts, lockout, user.ID)
	if err != nil {
		return apperrors.Internal("failed to record login attempt", err)
	}
	return nil
}

// DeleteUser soft-deletes a user account
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	s.logger.Infof("Deleting user %d", id)

	tag, err := s.db.Exec(ctx, `
		UPDATE users SET enabled = false, updated = CURRENT_TIMESTAMP WHERE id = $1
	`, id)
	if err != nil {
		return apperrors.Internal("failed to delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

// RoleExists reports whether a role exists by name
func (s *Service) RoleExists(ctx context.Context, roleName string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM roles WHERE role_name = $1)
	`, roleName).Scan(&exists)
	if err != nil {
		return false, apperrors.Internal("failed to check role", err)
	}
	return exists, nil
}

// EnsureRole creates a role if it does not exist yet
func (s *Service) EnsureRole(ctx context.Context, roleName string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO roles (role_name) VALUES ($1) ON CONFLICT (role_name) DO NOTHING
	`, roleName)
	if err != nil {
		return apperrors.Internal("failed to ensure role", err)
	}
	return nil
}

// GetUserRoles returns the role names held by a user
func (s *Service) GetUserRoles(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.role_name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY r.role_name
	`, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to get user roles", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperrors.Internal("failed to scan role", err)
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

// AddUserRole grants a role to a user. Granting an already held role is a
// no-op.
func (s *Service) AddUserRole(ctx context.Context, userID int64, roleName string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE role_name = $2
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, userID, roleName)
	if err != nil {
		return apperrors.Internal("failed to add user role", err)
	}
	return nil
}

// RemoveUserRole revokes a role from a user
func (s *Service) RemoveUserRole(ctx context.Context, userID int64, roleName string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM user_roles
		WHERE user_id = $1 AND role_id = (SELECT id FROM roles WHERE role_name = $2)
	`, userID, roleName)
	if err != nil {
		return apperrors.Internal("failed to remove user role", err)
	}
	return nil
}

// GetUserClaims returns the claims attached to a user
func (s *Service) GetUserClaims(ctx context.Context, userID int64) ([]Claim, error) {
	rows, err := s.db.Query(ctx, `
		SELECT claim_type, claim_value FROM user_claims WHERE user_id = $1 ORDER BY claim_type, claim_value
	`, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to get user claims", err)
	}
	defer rows.Close()

	var claims []Claim
	for rows.Next() {
		var c Claim
		if err := rows.Scan(&c.Type, &c.Value); err != nil {
			return nil, apperrors.Internal("failed to scan claim", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// AddUserClaim attaches a claim to a user
func (s *Service) AddUserClaim(ctx context.Context, userID int64, claim Claim) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_claims (user_id, claim_type, claim_value) VALUES ($1, $2, $3)
	`, userID, claim.Type, claim.Value)
	if err != nil {
		return apperrors.Internal("failed to add user claim", err)
	}
	return nil
}

// RemoveUserClaim detaches a claim from a user
func (s *Service) RemoveUserClaim(ctx context.Context, userID int64, claim Claim) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM user_claims WHERE user_id = $1 AND claim_type = $2 AND claim_value = $3
	`, userID, claim.Type, claim.Value)
	if err != nil {
		return apperrors.Internal("failed to remove user claim", err)
	}
	return nil
}

// RemoveUserClaimsOfType drops every claim of one type from a user
func (s *Service) RemoveUserClaimsOfType(ctx context.Context, userID int64, claimType string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM user_claims WHERE user_id = $1 AND claim_type = $2
	`, userID, claimType)
	if err != nil {
		return apperrors.Internal("failed to remove user claims", err)
	}
	return nil
}

func validatePassword(password string) error {
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if len(password) < minPasswordLength || !hasUpper || !hasLower || !hasDigit {
		return apperrors.Validation("password does not meet complexity requirements").
			WithField("password", "password must be at least 8 characters with upper case, lower case and a digit")
	}
	return nil
}
