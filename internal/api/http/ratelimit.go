package httpapi

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/hlog"

	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/ratelimit"
)

// rateLimit throttles write-heavy routes per authenticated user. A limiter
// failure lets the request through.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		actor, ok := actorFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		res, err := s.limiter.Allow(r.Context(), actor.UserID.String())
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		if !res.Allowed {
			w.Header().Set("Retry-After", ratelimit.RetryAfterSeconds(res.RetryAfter))
			respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
