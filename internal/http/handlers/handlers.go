package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/confero/checkin-api/internal/domain"
	"github.com/confero/checkin-api/internal/http/response"
	"github.com/confero/checkin-api/internal/notify"
	"github.com/confero/checkin-api/internal/service"
)

type Handlers struct {
	approvalService service.ApprovalService
	authService     service.AuthService
	roster          *notify.Roster
}

func New(approvalService service.ApprovalService, authService service.AuthService, roster *notify.Roster) *Handlers {
	return &Handlers{
		approvalService: approvalService,
		authService:     authService,
		roster:          roster,
	}
}

// writeDomainError maps domain errors onto HTTP responses. Admins get a
// specific reason for auth and not-found failures; anything else is a
// generic retry message so store failures never leak detail.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, "not found")
	case errors.Is(err, domain.ErrUnauthorized):
		response.Unauthorized(w, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(w, "forbidden")
	default:
		response.InternalError(w, "something went wrong, please try again")
	}
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	return limit, offset
}
