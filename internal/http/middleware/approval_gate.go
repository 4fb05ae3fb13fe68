package middleware

import (
	"context"
	"net/http"

	"github.com/confero/checkin-api/internal/domain"
	"github.com/confero/checkin-api/internal/http/response"
	"github.com/confero/checkin-api/pkg/logger"
)

// StatusReader is the slice of the participant store the gate needs.
type StatusReader interface {
	GetByID(ctx context.Context, id string) (*domain.Participant, error)
}

// RequireApproved gates participant routes on current approval state. The
// state is read fresh from the store on every request, never from token
// claims, so a rejection takes effect immediately. Admin and superadmin
// principals bypass the gate; ungated participant routes (own status, own
// QR) only need RequireJWT.
func RequireApproved(store StatusReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := Actor(r)
			if !ok {
				response.Unauthorized(w, "authentication required")
				return
			}

			if actor.IsStaff() {
				next.ServeHTTP(w, r)
				return
			}

			p, err := store.GetByID(r.Context(), actor.ID)
			if err != nil {
				logger.ErrorContext(r.Context(), "Approval gate lookup failed", "error", err, "participant_id", actor.ID)
				response.InternalError(w, "something went wrong, please try again")
				return
			}
			if p == nil {
				response.Unauthorized(w, "unknown participant")
				return
			}
			if !p.Approved() {
				response.Forbidden(w, "approval required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
