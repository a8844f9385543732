package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"relaycrm.org/internal/audit"
	"relaycrm.org/internal/crm"
	"relaycrm.org/internal/scope"
)

type createEmployeeRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	AdminID  string `json:"admin_id"`
}

type updateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Status   *string `json:"status"`
}

type permissionOverride struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Scope    string `json:"scope"`
}

type setPermissionsRequest struct {
	Overrides []permissionOverride `json:"overrides"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listUsers(w, r)
	case http.MethodPost:
		a.createEmployee(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if id, ok := strings.CutSuffix(path, "/permissions"); ok {
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.setPermissions(w, r, id)
		return
	}
	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getUser(w, r, path)
	case http.MethodPatch:
		a.updateUser(w, r, path)
	case http.MethodDelete:
		a.deleteUser(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) createEmployee(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req createEmployeeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.svc.CreateEmployee(r.Context(), actor, crm.EmployeeInput{
		Email:    req.Email,
		Password: req.Password,
		AdminID:  req.AdminID,
	})
	if err != nil {
		handleCRMError(w, r, "user", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.employee.created", map[string]any{
		"user_id":  user.ID,
		"admin_id": user.CreatedByAdminID,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	users, err := a.svc.ListUsers(r.Context(), actor)
	if err != nil {
		handleCRMError(w, r, "user", err)
		return
	}
	if users == nil {
		users = []crm.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	user, err := a.svc.GetUser(r.Context(), actor, id)
	if err != nil {
		handleCRMError(w, r, "user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.svc.UpdateUser(r.Context(), actor, id, crm.UserUpdate{
		Email:    req.Email,
		Password: req.Password,
		Status:   req.Status,
	})
	if err != nil {
		handleCRMError(w, r, "user", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.updated", map[string]any{"user_id": user.ID})
	writeJSON(w, http.StatusOK, user)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	if err := a.svc.DeleteUser(r.Context(), actor, id); err != nil {
		handleCRMError(w, r, "user", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.deleted", map[string]any{"user_id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) setPermissions(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req setPermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	overrides := make(map[scope.PermKey]scope.Scope, len(req.Overrides))
	for _, o := range req.Overrides {
		key := scope.PermKey{
			Resource: scope.Resource(strings.TrimSpace(strings.ToLower(o.Resource))),
			Action:   scope.Action(strings.TrimSpace(strings.ToLower(o.Action))),
		}
		overrides[key] = scope.Scope(strings.TrimSpace(strings.ToLower(o.Scope)))
	}
	user, err := a.svc.SetPermissions(r.Context(), actor, id, overrides)
	if err != nil {
		handleCRMError(w, r, "user", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.permissions.updated", map[string]any{
		"user_id": user.ID,
		"count":   len(overrides),
	})
	writeJSON(w, http.StatusOK, user)
}
