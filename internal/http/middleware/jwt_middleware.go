package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/confero/checkin-api/internal/domain"
	"github.com/confero/checkin-api/internal/http/response"
	"github.com/confero/checkin-api/pkg/auth"
)

type ctxKey string

const CtxActor ctxKey = "actor"

// RequireJWT validates the bearer token and, when roles are given, requires
// the principal to hold one of them.
func RequireJWT(secret string, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				response.Unauthorized(w, "invalid authorization header")
				return
			}
			raw := strings.TrimPrefix(authz, "Bearer ")
			claims, err := auth.Parse(raw, secret)
			if err != nil {
				response.Unauthorized(w, "invalid authorization token")
				return
			}

			role, ok := domain.ParseRole(claims.Role)
			if !ok {
				response.Unauthorized(w, "invalid authorization token")
				return
			}

			if len(roles) > 0 {
				allowed := false
				for _, want := range roles {
					if role == want {
						allowed = true
						break
					}
				}
				if !allowed {
					response.Forbidden(w, "insufficient role")
					return
				}
			}

			actor := domain.Actor{ID: claims.Sub, Email: claims.Email, Role: role}
			ctx := context.WithValue(r.Context(), CtxActor, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Actor returns the authenticated principal placed by RequireJWT.
func Actor(r *http.Request) (domain.Actor, bool) {
	v := r.Context().Value(CtxActor)
	if v == nil {
		return domain.Actor{}, false
	}
	return v.(domain.Actor), true
}
