package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	appAudit "github.com/groupbuy-hub/groupbuy-hub/internal/application/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/bidding"
	appDispute "github.com/groupbuy-hub/groupbuy-hub/internal/application/dispute"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/ledger"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/lifecycle"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/scheduler"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/selection"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/ratelimit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	lifecycleSvc *lifecycle.Service
	biddingSvc   *bidding.Service
	selectionSvc *selection.Service
	ledgerSvc    *ledger.Service
	disputeSvc   *appDispute.Service
	auditSvc     *appAudit.Service
	sweeper      *scheduler.Service
	sseHub       *sse.Hub
	auth         *Authenticator
	limiter      ratelimit.Limiter
	validate     *validator.Validate
	logger       zerolog.Logger
}

// NewServer wires handlers. limiter may be nil to disable rate limiting.
func NewServer(
	lifecycleSvc *lifecycle.Service,
	biddingSvc *bidding.Service,
	selectionSvc *selection.Service,
	ledgerSvc *ledger.Service,
	disputeSvc *appDispute.Service,
	auditSvc *appAudit.Service,
	sweeper *scheduler.Service,
	sseHub *sse.Hub,
	auth *Authenticator,
	limiter ratelimit.Limiter,
	logger zerolog.Logger,
) *Server {
	return &Server{
		lifecycleSvc: lifecycleSvc,
		biddingSvc:   biddingSvc,
		selectionSvc: selectionSvc,
		ledgerSvc:    ledgerSvc,
		disputeSvc:   disputeSvc,
		auditSvc:     auditSvc,
		sweeper:      sweeper,
		sseHub:       sseHub,
		auth:         auth,
		limiter:      limiter,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		logger:       logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAuth)
		admin := s.requireRole(user.RoleAdmin)

		// The stream outlives the request timeout below.
		r.Get("/events", s.sseEndpoint)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Route("/group-purchases", func(r chi.Router) {
				r.With(s.rateLimit).Post("/", s.createInstance)
				r.Get("/", s.listInstances)
				r.Route("/{instanceId}", func(r chi.Router) {
					r.Get("/", s.getInstance)
					r.With(s.rateLimit).Post("/join", s.joinInstance)
					r.Post("/leave", s.leaveInstance)
					r.Post("/close", s.closeBidding)
					r.Post("/cancel", s.cancelInstance)
					r.Get("/participants", s.listParticipants)

					r.With(s.rateLimit).Post("/bids", s.submitBid)
					r.Get("/bids", s.listBids)
					r.Post("/bids/withdraw", s.withdrawBid)

					r.Get("/decisions", s.listDecisions)
					r.Post("/decisions", s.recordDecision)
					r.With(admin).Post("/decisions/evaluate", s.evaluateDecisions)
				})
			})

			r.Get("/bids/mine", s.listMyBids)

			r.Route("/tokens", func(r chi.Router) {
				r.Get("/balance", s.tokenBalance)
				r.Get("/grants", s.listGrants)
				r.Get("/consumptions", s.listConsumptions)
			})
			r.With(admin).Post("/payments/token-purchases", s.tokenPurchase)

			r.Route("/reports", func(r chi.Router) {
				r.With(s.rateLimit).Post("/", s.createReport)
				r.Get("/", s.listReports)
				r.Get("/{reportId}", s.getReport)
				r.Patch("/{reportId}", s.editReport)
				r.Post("/{reportId}/cancel", s.cancelReport)
				r.With(s.rateLimit).Post("/{reportId}/objection", s.createObjection)
			})
			r.Route("/objections", func(r chi.Router) {
				r.Get("/{objectionId}", s.getObjection)
				r.Patch("/{objectionId}", s.editObjection)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(admin)
				r.Post("/tokens/grants", s.adminGrant)
				r.Post("/reports/{reportId}/resolve", s.resolveReport)
				r.Post("/objections/{objectionId}/resolve", s.resolveObjection)
				r.Post("/sweep", s.sweep)
				r.Get("/audit", s.queryAudit)
				r.Get("/audit/{auditId}/verify", s.verifyAudit)
			})
		})
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, key))
}

// decodeBody decodes a JSON body into v and runs its validate tags. An empty
// body decodes to the zero value.
func (s *Server) decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return s.validate.Struct(v)
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func parseOptionalUUID(r *http.Request, key string) (*uuid.UUID, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
