// Package auth issues JWT bearer tokens and manages role/claim assignment
// with protected-role rules. Target-side restrictions (a user holding
// "Developer" keeps it, Developer/Owner claims are immutable) live here
// because transport-level policy can only see the caller's roles, never the
// target's.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mesworks/shopsched/internal/services/identity"
	"github.com/mesworks/shopsched/pkg/apperrors"
	"github.com/mesworks/shopsched/pkg/logger"
)

const (
	// RoleUser is auto-granted on registration
	RoleUser = "User"
	// RoleDeveloper can never be removed from a holder
	RoleDeveloper = "Developer"
	// RoleOwner protects its holder's claims and account
	RoleOwner = "Owner"

	defaultTokenLifetime = 24 * time.Hour
)

// UserStore is the identity capability the auth service runs against. It is
// satisfied by *identity.Service; tests substitute an in-memory fake.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, password string) (*identity.User, error)
	GetByName(ctx context.Context, name string) (*identity.User, error)
	GetByID(ctx context.Context, id int64) (*identity.User, error)
	CheckPassword(ctx context.Context, user *identity.User, password string) (bool, error)
	DeleteUser(ctx context.Context, id int64) error

	RoleExists(ctx context.Context, roleName string) (bool, error)
	EnsureRole(ctx context.Context, roleName string) error
	GetUserRoles(ctx context.Context, userID int64) ([]string, error)
	AddUserRole(ctx context.Context, userID int64, roleName string) error
	RemoveUserRole(ctx context.Context, userID int64, roleName string) error

	GetUserClaims(ctx context.Context, userID int64) ([]identity.Claim, error)
	AddUserClaim(ctx context.Context, userID int64, claim identity.Claim) error
	RemoveUserClaim(ctx context.Context, userID int64, claim identity.Claim) error
	RemoveUserClaimsOfType(ctx context.Context, userID int64, claimType string) error
}

// Claims is the JWT payload issued on login
type Claims struct {
	UserID   int64            `json:"uid"`
	Username string           `json:"username"`
	Roles    []string         `json:"roles"`
	Claims   []identity.Claim `json:"claims"`
	jwt.RegisteredClaims
}

// Service implements authentication and permission management
type Service struct {
	store         UserStore
	secret        []byte
	tokenLifetime time.Duration
	logger        *logger.Logger
}

// NewService creates a new auth service signing tokens with the given secret
func NewService(store UserStore, secret []byte, logger *logger.Logger) *Service {
	return &Service{
		store:         store,
		secret:        secret,
		tokenLifetime: defaultTokenLifetime,
		logger:        logger,
	}
}

// Authenticate checks credentials and returns a signed token. Every failure
// mode (unknown user, bad password, lockout, disabled account) reports the
// same Unauthorized error so callers cannot probe which part failed.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.GetByName(ctx, username)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return "", apperrors.Unauthorized("invalid username or password")
		}
		return "", err
	}

	ok, err := s.store.CheckPassword(ctx, user, password)
	if err != nil {
		return "", err
	}
	if !ok {
		s.logger.Warnf("Failed login for user %s", username)
		return "", apperrors.Unauthorized("invalid username or password")
	}

	token, err := s.issueToken(ctx, user)
	if err != nil {
		return "", err
	}

	s.logger.Infof("User %s authenticated", username)
	return token, nil
}

func (s *Service) issueToken(ctx context.Context, user *identity.User) (string, error) {
	roles, err := s.store.GetUserRoles(ctx, user.ID)
	if err != nil {
		return "", err
	}
	claims, err := s.store.GetUserClaims(ctx, user.ID)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	payload := Claims{
		UserID:   user.ID,
		Username: user.Name,
		Roles:    roles,
		Claims:   claims,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperrors.Internal("failed to sign token", err)
	}
	return signed, nil
}

// ParseToken verifies a bearer token and returns its claims
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.Unauthorized("invalid or expired token")
	}
	return claims, nil
}

// Register creates an account and auto-grants the default "User" role
func (s *Service) Register(ctx context.Context, username, email, password string) (*identity.User, error) {
	user, err := s.store.CreateUser(ctx, username, email, password)
	if err != nil {
		return nil, err
	}

	if err := s.store.EnsureRole(ctx, RoleUser); err != nil {
		return nil, err
	}
	if err := s.store.AddUserRole(ctx, user.ID, RoleUser); err != nil {
		return nil, err
	}

	s.logger.Infof("Registered user %s", username)
	return user, nil
}

// AssignRole grants a role to a user
func (s *Service) AssignRole(ctx context.Context, userID int64, roleName string) error {
	if _, err := s.store.GetByID(ctx, userID); err != nil {
		return err
	}

	exists, err := s.store.RoleExists(ctx, roleName)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.NotFound("role %q not found", roleName)
	}

	return s.store.AddUserRole(ctx, userID, roleName)
}

// RemoveRole revokes a role from a user. The "Developer" role can never be
// removed from a user who holds it, regardless of the caller.
func (s *Service) RemoveRole(ctx context.Context, userID int64, roleName string) error {
	if _, err := s.store.GetByID(ctx, userID); err != nil {
		return err
	}

	exists, err := s.store.RoleExists(ctx, roleName)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.NotFound("role %q not found", roleName)
	}

	if strings.EqualFold(roleName, RoleDeveloper) {
		holds, err := s.userHoldsAnyRole(ctx, userID, RoleDeveloper)
		if err != nil {
			return err
		}
		if holds {
			return apperrors.PermissionDenied("the %s role cannot be removed", RoleDeveloper)
		}
	}

	return s.store.RemoveUserRole(ctx, userID, roleName)
}

// AddClaim attaches a claim to a user
func (s *Service) AddClaim(ctx context.Context, userID int64, claim identity.Claim) error {
	if _, err := s.store.GetByID(ctx, userID); err != nil {
		return err
	}
	return s.store.AddUserClaim(ctx, userID, claim)
}

// RemoveClaim detaches a claim from a user. Claims of a user who holds
// "Developer" or "Owner" are immutable.
func (s *Service) RemoveClaim(ctx context.Context, userID int64, claim identity.Claim) error {
	if _, err := s.store.GetByID(ctx, userID); err != nil {
		return err
	}

	holds, err := s.userHoldsAnyRole(ctx, userID, RoleDeveloper, RoleOwner)
	if err != nil {
		return err
	}
	if holds {
		return apperrors.PermissionDenied("claims of %s and %s users cannot be removed", RoleDeveloper, RoleOwner)
	}

	return s.store.RemoveUserClaim(ctx, userID, claim)
}

// DeleteUser removes an account. Denied when the target holds "Developer";
// the combined Developer/Owner check is kept as an independent guard for
// "Owner" even though it re-covers "Developer".
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	if _, err := s.store.GetByID(ctx, userID); err != nil {
		return err
	}

	holdsDeveloper, err := s.userHoldsAnyRole(ctx, userID, RoleDeveloper)
	if err != nil {
		return err
	}
	if holdsDeveloper {
		return apperrors.PermissionDenied("%s users cannot be deleted", RoleDeveloper)
	}

	holdsProtected, err := s.userHoldsAnyRole(ctx, userID, RoleDeveloper, RoleOwner)
	if err != nil {
		return err
	}
	if holdsProtected {
		return apperrors.PermissionDenied("%s and %s users cannot be deleted", RoleDeveloper, RoleOwner)
	}

	return s.store.DeleteUser(ctx, userID)
}

// UpdateUserPermissions reconciles a user's roles against the desired set and
// replaces claims per mentioned type. A nil slice leaves that aspect
// untouched; individual failures are accumulated, not aborted on.
func (s *Service) UpdateUserPermissions(ctx context.Context, userID int64, desiredRoles []string, desiredClaims []identity.Claim) error {
	if _, err := s.store.GetByID(ctx, userID); err != nil {
		return err
	}

	var failures []string

	if desiredRoles != nil {
		current, err := s.store.GetUserRoles(ctx, userID)
		if err != nil {
			return err
		}

		desired := make(map[string]struct{}, len(desiredRoles))
		for _, r := range desiredRoles {
			desired[r] = struct{}{}
		}
		held := make(map[string]struct{}, len(current))
		for _, r := range current {
			held[r] = struct{}{}
		}

		for _, r := range current {
			if _, keep := desired[r]; keep {
				continue
			}
			if err := s.RemoveRole(ctx, userID, r); err != nil {
				failures = append(failures, fmt.Sprintf("remove role %s: %s", r, err))
			}
		}
		for _, r := range desiredRoles {
			if _, has := held[r]; has {
				continue
			}
			if err := s.AssignRole(ctx, userID, r); err != nil {
				failures = append(failures, fmt.Sprintf("assign role %s: %s", r, err))
			}
		}
	}

	if desiredClaims != nil {
		types := make(map[string][]identity.Claim)
		for _, c := range desiredClaims {
			types[c.Type] = append(types[c.Type], c)
		}

		// Replace-by-type: claim types not mentioned in the desired set are
		// left untouched.
		for claimType, claims := range types {
			if err := s.store.RemoveUserClaimsOfType(ctx, userID, claimType); err != nil {
				failures = append(failures, fmt.Sprintf("clear claims of type %s: %s", claimType, err))
				continue
			}
			for _, c := range claims {
				if err := s.store.AddUserClaim(ctx, userID, c); err != nil {
					failures = append(failures, fmt.Sprintf("add claim %s=%s: %s", c.Type, c.Value, err))
				}
			}
		}
	}

	if len(failures) > 0 {
		return apperrors.Validation("permission update completed with failures: %s", strings.Join(failures, "; "))
	}
	return nil
}

// GetUserRoles returns the role names held by a user
func (s *Service) GetUserRoles(ctx context.Context, userID int64) ([]string, error) {
	if _, err := s.store.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.GetUserRoles(ctx, userID)
}

// GetUserClaims returns the claims attached to a user
func (s *Service) GetUserClaims(ctx context.Context, userID int64) ([]identity.Claim, error) {
	if _, err := s.store.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.GetUserClaims(ctx, userID)
}

func (s *Service) userHoldsAnyRole(ctx context.Context, userID int64, roleNames ...string) (bool, error) {
	held, err := s.store.GetUserRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, have := range held {
		for _, want := range roleNames {
			if strings.EqualFold(have, want) {
				return true, nil
			}
		}
	}
	return false, nil
}
