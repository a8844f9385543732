package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"relaycrm.org/internal/audit"
	"relaycrm.org/internal/crm"
)

type createRenewalRequest struct {
	CustomerID string    `json:"customer_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	DueAt      time.Time `json:"due_at"`
	Notes      string    `json:"notes"`
}

type updateRenewalRequest struct {
	Status *string    `json:"status"`
	Amount *int64     `json:"amount"`
	DueAt  *time.Time `json:"due_at"`
	Notes  *string    `json:"notes"`
}

func (a *API) handleRenewalsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listRenewals(w, r)
	case http.MethodPost:
		a.createRenewal(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRenewalResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/renewals/"), "/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getRenewal(w, r, path)
	case http.MethodPatch:
		a.updateRenewal(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) createRenewal(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req createRenewalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	renewal, err := a.svc.CreateRenewal(r.Context(), actor, crm.RenewalInput{
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		DueAt:      req.DueAt,
		Notes:      req.Notes,
	})
	if err != nil {
		handleCRMError(w, r, "customer", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "renewal.created", map[string]any{
		"renewal_id":  renewal.ID,
		"customer_id": renewal.CustomerID,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/renewals/%s", renewal.ID))
	writeJSON(w, http.StatusCreated, renewal)
}

func (a *API) listRenewals(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	renewals, err := a.svc.ListRenewals(r.Context(), actor)
	if err != nil {
		handleCRMError(w, r, "customer", err)
		return
	}
	if renewals == nil {
		renewals = []crm.Renewal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": renewals})
}

func (a *API) getRenewal(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	renewal, err := a.svc.GetRenewal(r.Context(), actor, id)
	if err != nil {
		handleCRMError(w, r, "customer", err)
		return
	}
	writeJSON(w, http.StatusOK, renewal)
}

func (a *API) updateRenewal(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req updateRenewalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	renewal, err := a.svc.UpdateRenewal(r.Context(), actor, id, crm.RenewalUpdate{
		Status: req.Status,
		Amount: req.Amount,
		DueAt:  req.DueAt,
		Notes:  req.Notes,
	})
	if err != nil {
		handleCRMError(w, r, "customer", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "renewal.updated", map[string]any{"renewal_id": renewal.ID})
	writeJSON(w, http.StatusOK, renewal)
}
