package engine

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mesworks/shopsched/internal/services/identity"
	"github.com/mesworks/shopsched/pkg/apperrors"
)

func pathUserID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["userId"], 10, 64)
	if err != nil {
		return 0, apperrors.Validation("invalid user id")
	}
	return id, nil
}

func (e *Engine) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	token, err := e.services.Auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, LoginResponse{Token: token})
}

func (e *Engine) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	user, err := e.services.Auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusCreated, toUserResponse(user))
}

func (e *Engine) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	if err := e.services.Auth.AssignRole(r.Context(), req.UserID, req.RoleName); err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "role assigned"})
}

func (e *Engine) handleRemoveRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	if err := e.services.Auth.RemoveRole(r.Context(), req.UserID, req.RoleName); err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "role removed"})
}

func (e *Engine) handleAddClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	claim := identity.Claim{Type: req.ClaimType, Value: req.ClaimValue}
	if err := e.services.Auth.AddClaim(r.Context(), req.UserID, claim); err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "claim added"})
}

func (e *Engine) handleRemoveClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	claim := identity.Claim{Type: req.ClaimType, Value: req.ClaimValue}
	if err := e.services.Auth.RemoveClaim(r.Context(), req.UserID, claim); err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "claim removed"})
}

func (e *Engine) handleUpdatePermissions(w http.ResponseWriter, r *http.Request) {
	var req UpdatePermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	var claims []identity.Claim
	if req.Claims != nil {
		claims = make([]identity.Claim, 0, len(req.Claims))
		for _, c := range req.Claims {
			claims = append(claims, identity.Claim{Type: c.ClaimType, Value: c.ClaimValue})
		}
	}

	if err := e.services.Auth.UpdateUserPermissions(r.Context(), req.UserID, req.Roles, claims); err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "permissions updated"})
}

func (e *Engine) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	if err := e.services.Auth.DeleteUser(r.Context(), id); err != nil {
		e.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *Engine) handleGetUserRoles(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	roles, err := e.services.Auth.GetUserRoles(r.Context(), id)
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	if roles == nil {
		roles = []string{}
	}
	e.writeJSONResponse(w, http.StatusOK, roles)
}

func (e *Engine) handleGetUserClaims(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	claims, err := e.services.Auth.GetUserClaims(r.Context(), id)
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, toClaimResponses(claims))
}

func (e *Engine) handleMyRoles(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		e.writeServiceError(w, apperrors.Unauthorized("missing bearer token"))
		return
	}

	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}
	e.writeJSONResponse(w, http.StatusOK, roles)
}

func (e *Engine) handleMyClaims(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		e.writeServiceError(w, apperrors.Unauthorized("missing bearer token"))
		return
	}
	e.writeJSONResponse(w, http.StatusOK, toClaimResponses(claims.Claims))
}
