package auth

import (
	"context"
	"sort"
	"testing"

	"github.com/mesworks/shopsched/internal/services/identity"
	"github.com/mesworks/shopsched/pkg/apperrors"
	"github.com/mesworks/shopsched/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	nextID    int64
	users     map[int64]*identity.User
	passwords map[int64]string
	roles     map[string]bool
	userRoles map[int64]map[string]bool
	claims    map[int64][]identity.Claim
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:    1,
		users:     make(map[int64]*identity.User),
		passwords: make(map[int64]string),
		roles:     map[string]bool{"User": true, "Admin": true, "Developer": true, "Owner": true},
		userRoles: make(map[int64]map[string]bool),
		claims:    make(map[int64][]identity.Claim),
	}
}

func (f *fakeStore) addUser(name, password string, roles ...string) *identity.User {
	u := &identity.User{ID: f.nextID, Name: name, Enabled: true}
	f.users[u.ID] = u
	f.passwords[u.ID] = password
	f.userRoles[u.ID] = make(map[string]bool)
	for _, r := range roles {
		f.userRoles[u.ID][r] = true
	}
	f.nextID++
	return u
}

func (f *fakeStore) CreateUser(ctx context.Context, name, email, password string) (*identity.User, error) {
	for _, u := range f.users {
		if u.Name == name {
			return nil, apperrors.Conflict("a user with that name or email already exists")
		}
	}
	return f.addUser(name, password), nil
}

func (f *fakeStore) GetByName(ctx context.Context, name string) (*identity.User, error) {
	for _, u := range f.users {
		if u.Name == name {
			return u, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*identity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	return u, nil
}

func (f *fakeStore) CheckPassword(ctx context.Context, user *identity.User, password string) (bool, error) {
	return f.passwords[user.ID] == password, nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, id int64) error {
	u, ok := f.users[id]
	if !ok {
		return apperrors.NotFound("user not found")
	}
	u.Enabled = false
	return nil
}

func (f *fakeStore) RoleExists(ctx context.Context, roleName string) (bool, error) {
	return f.roles[roleName], nil
}

func (f *fakeStore) EnsureRole(ctx context.Context, roleName string) error {
	f.roles[roleName] = true
	return nil
}

func (f *fakeStore) GetUserRoles(ctx context.Context, userID int64) ([]string, error) {
	var out []string
	for r := range f.userRoles[userID] {
		out = append(out, r)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) AddUserRole(ctx context.Context, userID int64, roleName string) error {
	if f.userRoles[userID] == nil {
		f.userRoles[userID] = make(map[string]bool)
	}
	f.userRoles[userID][roleName] = true
	return nil
}

func (f *fakeStore) RemoveUserRole(ctx context.Context, userID int64, roleName string) error {
	delete(f.userRoles[userID], roleName)
	return nil
}

func (f *fakeStore) GetUserClaims(ctx context.Context, userID int64) ([]identity.Claim, error) {
	return f.claims[userID], nil
}

func (f *fakeStore) AddUserClaim(ctx context.Context, userID int64, claim identity.Claim) error {
	f.claims[userID] = append(f.claims[userID], claim)
	return nil
}

func (f *fakeStore) RemoveUserClaim(ctx context.Context, userID int64, claim identity.Claim) error {
	kept := f.claims[userID][:0]
	for _, c := range f.claims[userID] {
		if c != claim {
			kept = append(kept, c)
		}
	}
	f.claims[userID] = kept
	return nil
}

func (f *fakeStore) RemoveUserClaimsOfType(ctx context.Context, userID int64, claimType string) error {
	kept := f.claims[userID][:0]
	for _, c := range f.claims[userID] {
		if c.Type != claimType {
			kept = append(kept, c)
		}
	}
	f.claims[userID] = kept
	return nil
}

func newTestService(store *fakeStore) *Service {
	log := logger.New("auth-test", "test")
	log.DisableConsoleOutput()
	return NewService(store, []byte("test-signing-secret"), log)
}

func TestAuthenticateIssuesParsableToken(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("alice", "Secret123", "User", "Admin")
	store.claims[user.ID] = []identity.Claim{{Type: "department", Value: "milling"}}
	svc := newTestService(store)

	token, err := svc.Authenticate(context.Background(), "alice", "Secret123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.ElementsMatch(t, []string{"User", "Admin"}, claims.Roles)
	require.Len(t, claims.Claims, 1)
	assert.Equal(t, "department", claims.Claims[0].Type)
	assert.NotEmpty(t, claims.ID)
}

func TestAuthenticateFailureIsUniform(t *testing.T) {
	store := newFakeStore()
	store.addUser("alice", "Secret123")
	svc := newTestService(store)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"unknown user", "nobody", "Secret123"},
		{"wrong password", "alice", "wrong"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), tc.username, tc.password)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
			assert.Equal(t, "invalid username or password", err.Error())
		})
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.ParseToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}

func TestRegisterGrantsDefaultRole(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	user, err := svc.Register(context.Background(), "bob", "bob@example.com", "Secret123")
	require.NoError(t, err)

	roles, err := store.GetUserRoles(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"User"}, roles)
}

func TestRemoveRoleDeniedForDeveloperHolder(t *testing.T) {
	store := newFakeStore()
	dev := store.addUser("dev", "Secret123", "Developer", "User")
	svc := newTestService(store)

	err := svc.RemoveRole(context.Background(), dev.ID, "Developer")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	// Other roles of the same user stay removable.
	require.NoError(t, svc.RemoveRole(context.Background(), dev.ID, "User"))
}

func TestRemoveRoleAllowedWhenNotHeld(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("plain", "Secret123", "User")
	svc := newTestService(store)

	// Removing "Developer" from a user who does not hold it is not a
	// protected-role violation.
	require.NoError(t, svc.RemoveRole(context.Background(), user.ID, "Developer"))
}

func TestRemoveClaimDeniedForProtectedHolders(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	for _, role := range []string{"Developer", "Owner"} {
		t.Run(role, func(t *testing.T) {
			user := store.addUser("holder-"+role, "Secret123", role)
			store.claims[user.ID] = []identity.Claim{{Type: "department", Value: "milling"}}

			err := svc.RemoveClaim(context.Background(), user.ID, identity.Claim{Type: "department", Value: "milling"})
			require.Error(t, err)
			assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))
			assert.Len(t, store.claims[user.ID], 1)
		})
	}
}

func TestDeleteUserDeniedForProtectedHolders(t *testing.T) {
	store := newFakeStore()
	dev := store.addUser("dev", "Secret123", "Developer")
	owner := store.addUser("owner", "Secret123", "Owner")
	plain := store.addUser("plain", "Secret123", "User")
	svc := newTestService(store)

	err := svc.DeleteUser(context.Background(), dev.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	err = svc.DeleteUser(context.Background(), owner.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	require.NoError(t, svc.DeleteUser(context.Background(), plain.ID))
	assert.False(t, store.users[plain.ID].Enabled)
}

func TestUpdateUserPermissionsDiffsRoles(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("carol", "Secret123", "User", "Admin")
	svc := newTestService(store)

	err := svc.UpdateUserPermissions(context.Background(), user.ID, []string{"User", "Owner"}, nil)
	require.NoError(t, err)

	roles, _ := store.GetUserRoles(context.Background(), user.ID)
	assert.Equal(t, []string{"Owner", "User"}, roles)
}

func TestUpdateUserPermissionsReplacesClaimsByType(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("carol", "Secret123", "User")
	store.claims[user.ID] = []identity.Claim{
		{Type: "department", Value: "milling"},
		{Type: "department", Value: "casting"},
		{Type: "shift", Value: "night"},
	}
	svc := newTestService(store)

	err := svc.UpdateUserPermissions(context.Background(), user.ID, nil, []identity.Claim{
		{Type: "department", Value: "packaging"},
	})
	require.NoError(t, err)

	// Both department claims are replaced; the shift claim's type was not
	// mentioned and survives.
	assert.ElementsMatch(t, []identity.Claim{
		{Type: "department", Value: "packaging"},
		{Type: "shift", Value: "night"},
	}, store.claims[user.ID])
}

func TestUpdateUserPermissionsAccumulatesFailures(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("carol", "Secret123", "Developer", "Admin")
	svc := newTestService(store)

	// Dropping Developer is denied and dropping a nonexistent role fails, but
	// the remaining changes still go through.
	err := svc.UpdateUserPermissions(context.Background(), user.ID, []string{"User"}, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	roles, _ := store.GetUserRoles(context.Background(), user.ID)
	assert.Equal(t, []string{"Developer", "User"}, roles)
}

func TestUpdateUserPermissionsUnknownUser(t *testing.T) {
	svc := newTestService(newFakeStore())

	err := svc.UpdateUserPermissions(context.Background(), 42, []string{"User"}, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}
