package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/confero/checkin-api/internal/domain"
	mw "github.com/confero/checkin-api/internal/http/middleware"
	"github.com/confero/checkin-api/internal/http/response"
)

type scanRequest struct {
	QRData string `json:"qr_data"`
}

type approveRequest struct {
	Note string `json:"note"`
}

// Scan handles POST /v1/admin/scan: resolve a QR credential to a participant
// summary. Read-only; staff confirm before calling approve. A malformed
// string and an unmatched one both come back 404 so the two cases are
// indistinguishable to the scanner.
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	if req.QRData == "" {
		response.BadRequest(w, "qr_data is required")
		return
	}

	summary, err := h.approvalService.ValidateCredential(r.Context(), req.QRData)
	if err != nil {
		if err == domain.ErrNotFound {
			response.NotFound(w, "invalid QR code")
			return
		}
		writeDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, summary)
}

// Approve handles POST /v1/admin/participants/{id}/approve. Idempotent on
// an already approved participant.
func (h *Handlers) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := mw.Actor(r)
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Invalid participant ID")
		return
	}

	var req approveRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "Invalid JSON format")
			return
		}
	}

	result, err := h.approvalService.Approve(r.Context(), id, actor, req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, result)
}

// Reject handles POST /v1/admin/participants/{id}/reject.
func (h *Handlers) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := mw.Actor(r)
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Invalid participant ID")
		return
	}

	result, err := h.approvalService.Reject(r.Context(), id, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, result)
}

// ListParticipants handles GET /v1/admin/participants with optional status
// filter and pagination.
func (h *Handlers) ListParticipants(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	var status *domain.ApprovalStatus
	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		st, ok := domain.ParseApprovalStatus(statusParam)
		if !ok {
			response.BadRequest(w, "Invalid status parameter")
			return
		}
		status = &st
	}

	participants, err := h.approvalService.ListParticipants(r.Context(), status, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, participants)
}

// GetParticipant handles GET /v1/admin/participants/{id}, returning the
// participant with their approval log.
func (h *Handlers) GetParticipant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Invalid participant ID")
		return
	}

	p, logs, err := h.approvalService.GetParticipant(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if logs == nil {
		logs = []domain.ApprovalLog{}
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"participant":  p,
		"approval_log": logs,
	})
}

// RosterSummary handles GET /v1/admin/roster/summary from the live event
// consumer, not the database.
func (h *Handlers) RosterSummary(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.roster.Summary())
}

// BulkReset handles POST /v1/admin/participants/reset. Superadmin only;
// deletes the entire participant set.
func (h *Handlers) BulkReset(w http.ResponseWriter, r *http.Request) {
	actor, ok := mw.Actor(r)
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	deleted, err := h.approvalService.BulkReset(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
