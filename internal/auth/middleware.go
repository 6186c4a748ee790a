package auth

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/httpx"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user/entity"
)

// RequireSession rejects requests without a valid bearer session and puts
// the account on the request context.
func RequireSession(svc *AuthService, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := svc.VerifySession(r.Context(), httpx.BearerToken(r))
			if err != nil {
				httpx.WriteError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(user.WithActor(r.Context(), *u)))
		})
	}
}

// RequireAdmin is RequireSession plus role == admin.
func RequireAdmin(svc *AuthService, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	session := RequireSession(svc, logger)
	return func(next http.Handler) http.Handler {
		return session(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u, ok := user.ActorFrom(r.Context()); !ok || u.Role != entity.RoleAdmin {
				httpx.WriteError(w, r, logger, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
