package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"relaycrm.org/internal/audit"
	"relaycrm.org/internal/crm"
)

type createCustomerRequest struct {
	Name       string `json:"name"`
	Company    string `json:"company"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	AssignedTo string `json:"assigned_to"`
}

type updateCustomerRequest struct {
	Name       *string `json:"name"`
	Company    *string `json:"company"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Status     *string `json:"status"`
	AssignedTo *string `json:"assigned_to"`
}

func (a *API) handleCustomersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listCustomers(w, r)
	case http.MethodPost:
		a.createCustomer(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleCustomerResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/customers/"), "/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getCustomer(w, r, path)
	case http.MethodPatch:
		a.updateCustomer(w, r, path)
	case http.MethodDelete:
		a.deleteCustomer(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) createCustomer(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req createCustomerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	customer, err := a.svc.CreateCustomer(r.Context(), actor, crm.CustomerInput{
		Name:       req.Name,
		Company:    req.Company,
		Email:      req.Email,
		Phone:      req.Phone,
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		handleCRMError(w, r, "customer", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "customer.created", map[string]any{"customer_id": customer.ID})
	w.Header().Set("Location", fmt.Sprintf("/v1/customers/%s", customer.ID))
	writeJSON(w, http.StatusCreated, customer)
}

func (a *API) listCustomers(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	customers, err := a.svc.ListCustomers(r.Context(), actor)
	if err != nil {
		handleCRMError(w, r, "customer", err)
		return
	}
	if customers == nil {
		customers = []crm.Customer{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": customers})
}

func (a *API) getCustomer(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	customer, err := a.svc.GetCustomer(r.Context(), actor, id)
	if err != nil {
		handleCRMError(w, r, "customer", err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (a *API) updateCustomer(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req updateCustomerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	customer, err := a.svc.UpdateCustomer(r.Context(), actor, id, crm.CustomerUpdate{
		Name:       req.Name,
		Company:    req.Company,
		Email:      req.Email,
		Phone:      req.Phone,
		Status:     req.Status,
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		handleCRMError(w, r, "customer", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "customer.updated", map[string]any{"customer_id": customer.ID})
	writeJSON(w, http.StatusOK, customer)
}

func (a *API) deleteCustomer(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	if err := a.svc.DeleteCustomer(r.Context(), actor, id); err != nil {
		handleCRMError(w, r, "customer", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "customer.deleted", map[string]any{"customer_id": id})
	w.WriteHeader(http.StatusNoContent)
}
