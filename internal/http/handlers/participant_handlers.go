package handlers

import (
	"net/http"

	mw "github.com/confero/checkin-api/internal/http/middleware"
	"github.com/confero/checkin-api/internal/http/response"
)

// OwnStatus handles GET /v1/me/status. Always allowed for an authenticated
// participant regardless of approval state.
func (h *Handlers) OwnStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := mw.Actor(r)
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	status, err := h.approvalService.OwnStatus(r.Context(), actor.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, status)
}

// OwnCredential handles GET /v1/me/qr. Like OwnStatus, never gated on
// approval: a pending participant must still be able to fetch their code.
func (h *Handlers) OwnCredential(w http.ResponseWriter, r *http.Request) {
	actor, ok := mw.Actor(r)
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	cred, err := h.approvalService.OwnCredential(r.Context(), actor.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, cred)
}

// OwnSchedule handles GET /v1/me/schedule. Routed behind the approval gate.
func (h *Handlers) OwnSchedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := mw.Actor(r)
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	sessions, err := h.approvalService.OwnSchedule(r.Context(), actor.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string][]string{"sessions": sessions})
}
