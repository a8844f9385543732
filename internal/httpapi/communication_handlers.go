package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"relaycrm.org/internal/audit"
	"relaycrm.org/internal/crm"
)

type logCommunicationRequest struct {
	LeadID     string    `json:"lead_id"`
	CustomerID string    `json:"customer_id"`
	Channel    string    `json:"channel"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (a *API) handleCommunicationsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listCommunications(w, r)
	case http.MethodPost:
		a.logCommunication(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleCommunicationResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/communications/"), "/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getCommunication(w, r, path)
	case http.MethodDelete:
		a.deleteCommunication(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) logCommunication(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req logCommunicationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	comm, err := a.svc.LogCommunication(r.Context(), actor, crm.CommunicationInput{
		LeadID:     req.LeadID,
		CustomerID: req.CustomerID,
		Channel:    req.Channel,
		Subject:    req.Subject,
		Body:       req.Body,
		OccurredAt: req.OccurredAt,
	})
	if err != nil {
		handleCRMError(w, r, "communication", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "communication.logged", map[string]any{
		"communication_id": comm.ID,
		"lead_id":          comm.LeadID,
		"customer_id":      comm.CustomerID,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/communications/%s", comm.ID))
	writeJSON(w, http.StatusCreated, comm)
}

func (a *API) listCommunications(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	comms, err := a.svc.ListCommunications(r.Context(), actor)
	if err != nil {
		handleCRMError(w, r, "communication", err)
		return
	}
	if comms == nil {
		comms = []crm.Communication{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": comms})
}

func (a *API) getCommunication(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	comm, err := a.svc.GetCommunication(r.Context(), actor, id)
	if err != nil {
		handleCRMError(w, r, "communication", err)
		return
	}
	writeJSON(w, http.StatusOK, comm)
}

func (a *API) deleteCommunication(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	if err := a.svc.DeleteCommunication(r.Context(), actor, id); err != nil {
		handleCRMError(w, r, "communication", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "communication.deleted", map[string]any{"communication_id": id})
	w.WriteHeader(http.StatusNoContent)
}
