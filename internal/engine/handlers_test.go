package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mesworks/shopsched/internal/services/auth"
	"github.com/mesworks/shopsched/internal/services/identity"
	"github.com/mesworks/shopsched/internal/services/line"
	"github.com/mesworks/shopsched/internal/services/operationtype"
	"github.com/mesworks/shopsched/pkg/apperrors"
	"github.com/mesworks/shopsched/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuth satisfies AuthService; ParseToken accepts the fixed test token
type fakeAuth struct {
	AuthService
	claims *auth.Claims
}

func (f *fakeAuth) ParseToken(tokenString string) (*auth.Claims, error) {
	if tokenString != "good-token" {
		return nil, apperrors.Unauthorized("invalid or expired token")
	}
	return f.claims, nil
}

// fakeLines implements LineService with canned reconciliation behavior
type fakeLines struct {
	LineService
	disabled map[int64]bool
}

func (f *fakeLines) Create(ctx context.Context, in line.Input) (*line.Line, error) {
	if len(in.WorkCenterIDs) == 0 {
		return nil, apperrors.Validation("a line requires at least one work center").
			WithField("workCenterIds", "at least one work center is required")
	}

	now := time.Now().UTC()
	l := &line.Line{ID: 1, Name: in.Name, Enabled: true, Created: now, Updated: now}
	for i, wcID := range in.WorkCenterIDs {
		l.WorkCenterRoutes = append(l.WorkCenterRoutes, line.WorkCenterRoute{
			ID:             int64(i + 1),
			WorkCenterID:   wcID,
			Order:          i + 1,
			Version:        1,
			EffectiveStart: now,
		})
	}
	for i, pID := range in.ProductIDs {
		l.AvailableProducts = append(l.AvailableProducts, line.ProductMembership{
			ID:        int64(i + 1),
			ProductID: pID,
		})
	}
	return l, nil
}

func (f *fakeLines) Update(ctx context.Context, id int64, in line.Input) (*line.Line, error) {
	if f.disabled[id] {
		return nil, apperrors.Conflict("line %d is inactive and cannot be updated; create it again to reactivate", id)
	}
	return nil, apperrors.NotFound("line %d not found", id)
}

// fakeOperationTypes rejects a fixed duplicate name
type fakeOperationTypes struct {
	OperationTypeService
	existingName string
}

func (f *fakeOperationTypes) Create(ctx context.Context, in operationtype.Input) (*operationtype.OperationType, error) {
	if in.Name == f.existingName {
		return nil, apperrors.Conflict("an operation type named %q already exists", in.Name)
	}
	now := time.Now().UTC()
	return &operationtype.OperationType{ID: 7, Name: in.Name, Enabled: true, Created: now, Updated: now}, nil
}

func newTestEngine(services Services) *Engine {
	if services.Auth == nil {
		services.Auth = &fakeAuth{claims: &auth.Claims{
			UserID:   1,
			Username: "tester",
			Roles:    []string{"Admin"},
		}}
	}
	log := logger.New("engine-test", "test")
	log.DisableConsoleOutput()
	return NewEngine(services, log)
}

func doRequest(t *testing.T, e *Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	e.Router().ServeHTTP(rec, req)
	return rec
}

func TestCreateLineReturns201WithOrderedRoutes(t *testing.T) {
	e := newTestEngine(Services{Lines: &fakeLines{}})

	rec := doRequest(t, e, http.MethodPost, "/api/v1/lines", LineRequest{
		Name:          "Line1",
		WorkCenterIDs: []int64{1, 2},
		ProductIDs:    []int64{},
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/api/v1/lines/1", rec.Header().Get("Location"))

	var resp LineResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.WorkCenterRoutes, 2)
	assert.Equal(t, 1, resp.WorkCenterRoutes[0].Order)
	assert.Equal(t, 2, resp.WorkCenterRoutes[1].Order)
	assert.NotNil(t, resp.AvailableProducts)
	assert.Empty(t, resp.AvailableProducts)
}

func TestCreateLineWithoutWorkCentersReturns400(t *testing.T) {
	e := newTestEngine(Services{Lines: &fakeLines{}})

	rec := doRequest(t, e, http.MethodPost, "/api/v1/lines", LineRequest{Name: "Line1"})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problem ProblemResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Equal(t, "validation_failed", problem.Code)
	assert.Contains(t, problem.Errors, "workCenterIds")
}

func TestUpdateDisabledLineReturns409(t *testing.T) {
	e := newTestEngine(Services{Lines: &fakeLines{disabled: map[int64]bool{5: true}}})

	rec := doRequest(t, e, http.MethodPut, "/api/v1/lines/5", LineRequest{
		Name:          "Line5",
		WorkCenterIDs: []int64{1},
	})

	require.Equal(t, http.StatusConflict, rec.Code)

	var problem ProblemResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Equal(t, http.StatusConflict, problem.Status)
	assert.Contains(t, problem.Detail, "inactive")
}

func TestCreateDuplicateOperationTypeReturns409(t *testing.T) {
	e := newTestEngine(Services{OperationTypes: &fakeOperationTypes{existingName: "Milling"}})

	rec := doRequest(t, e, http.MethodPost, "/api/v1/operationtypes", OperationTypeRequest{Name: "Milling"})

	require.Equal(t, http.StatusConflict, rec.Code)

	var problem ProblemResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Equal(t, "conflict", problem.Code)
	assert.Contains(t, problem.Detail, "Milling")
}

func TestMissingTokenReturns401(t *testing.T) {
	e := newTestEngine(Services{Lines: &fakeLines{}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lines/1", nil)
	rec := httptest.NewRecorder()
	e.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var problem ProblemResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Equal(t, "unauthorized", problem.Code)
}

func TestHealthIsPublic(t *testing.T) {
	e := newTestEngine(Services{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminEndpointRequiresRole(t *testing.T) {
	e := newTestEngine(Services{Auth: &fakeAuth{claims: &auth.Claims{
		UserID:   2,
		Username: "plain",
		Roles:    []string{"User"},
	}}})

	rec := doRequest(t, e, http.MethodPost, "/api/v1/auth/assign-role", RoleRequest{UserID: 3, RoleName: "Admin"})

	require.Equal(t, http.StatusForbidden, rec.Code)

	var problem ProblemResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Equal(t, "permission_denied", problem.Code)
}

func TestMyRolesReadsTokenClaims(t *testing.T) {
	e := newTestEngine(Services{Auth: &fakeAuth{claims: &auth.Claims{
		UserID:   2,
		Username: "plain",
		Roles:    []string{"User"},
		Claims:   []identity.Claim{{Type: "shift", Value: "night"}},
	}}})

	rec := doRequest(t, e, http.MethodGet, "/api/v1/auth/my-roles", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var roles []string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&roles))
	assert.Equal(t, []string{"User"}, roles)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/auth/my-claims", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var claims []ClaimResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&claims))
	require.Len(t, claims, 1)
	assert.Equal(t, "shift", claims[0].ClaimType)
}
