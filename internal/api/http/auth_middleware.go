package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
)

type authContextKey string

const authActorKey authContextKey = "authActor"

func withActor(ctx context.Context, a user.Actor) context.Context {
	return context.WithValue(ctx, authActorKey, a)
}

func actorFromContext(ctx context.Context) (user.Actor, bool) {
	a, ok := ctx.Value(authActorKey).(user.Actor)
	return a, ok
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := s.auth.Verify(extractToken(r))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("actor", actor.ActorString())
		})
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
	})
}

func (s *Server) requireRole(roles ...user.Role) func(http.Handler) http.Handler {
	allowed := make(map[user.Role]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := actorFromContext(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth")
				return
			}
			if _, ok := allowed[actor.Role]; !ok {
				respondError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	// EventSource cannot set headers.
	if r.URL.Path == "/v1/events" {
		return r.URL.Query().Get("access_token")
	}
	return ""
}
