package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"relaycrm.org/internal/audit"
	"relaycrm.org/internal/crm"
)

type createLeadRequest struct {
	Name       string `json:"name"`
	Company    string `json:"company"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	AssignedTo string `json:"assigned_to"`
}

type updateLeadRequest struct {
	Name       *string `json:"name"`
	Company    *string `json:"company"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Status     *string `json:"status"`
	AssignedTo *string `json:"assigned_to"`
}

func (a *API) handleLeadsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listLeads(w, r)
	case http.MethodPost:
		a.createLead(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleLeadResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/leads/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if id, ok := strings.CutSuffix(path, "/convert"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.convertLead(w, r, id)
		return
	}
	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getLead(w, r, path)
	case http.MethodPatch:
		a.updateLead(w, r, path)
	case http.MethodDelete:
		a.deleteLead(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) createLead(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req createLeadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	lead, err := a.svc.CreateLead(r.Context(), actor, crm.LeadInput{
		Name:       req.Name,
		Company:    req.Company,
		Email:      req.Email,
		Phone:      req.Phone,
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		handleCRMError(w, r, "lead", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "lead.created", map[string]any{"lead_id": lead.ID})
	w.Header().Set("Location", fmt.Sprintf("/v1/leads/%s", lead.ID))
	writeJSON(w, http.StatusCreated, lead)
}

func (a *API) listLeads(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	leads, err := a.svc.ListLeads(r.Context(), actor)
	if err != nil {
		handleCRMError(w, r, "lead", err)
		return
	}
	if leads == nil {
		leads = []crm.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": leads})
}

func (a *API) getLead(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	lead, err := a.svc.GetLead(r.Context(), actor, id)
	if err != nil {
		handleCRMError(w, r, "lead", err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (a *API) updateLead(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req updateLeadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	lead, err := a.svc.UpdateLead(r.Context(), actor, id, crm.LeadUpdate{
		Name:       req.Name,
		Company:    req.Company,
		Email:      req.Email,
		Phone:      req.Phone,
		Status:     req.Status,
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		handleCRMError(w, r, "lead", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "lead.updated", map[string]any{"lead_id": lead.ID})
	writeJSON(w, http.StatusOK, lead)
}

func (a *API) deleteLead(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	if err := a.svc.DeleteLead(r.Context(), actor, id); err != nil {
		handleCRMError(w, r, "lead", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "lead.deleted", map[string]any{"lead_id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) convertLead(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	customer, err := a.svc.ConvertLead(r.Context(), actor, id)
	if err != nil {
		handleCRMError(w, r, "lead", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "lead.converted", map[string]any{
		"lead_id":     id,
		"customer_id": customer.ID,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/customers/%s", customer.ID))
	writeJSON(w, http.StatusCreated, customer)
}
