package httpapi

import (
	"net/http"
	"strconv"
	"time"

	appAudit "github.com/groupbuy-hub/groupbuy-hub/internal/application/audit"
)

func (s *Server) sweep(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			limit = l
		}
	}
	res, err := s.sweeper.SweepDue(r.Context(), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) queryAudit(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	limit, offset := parseLimitOffset(r, 50, 200)
	params := appAudit.QueryParams{Limit: limit, Offset: offset}
	if v := r.URL.Query().Get("entityType"); v != "" {
		params.EntityType = &v
	}
	if v := r.URL.Query().Get("entityId"); v != "" {
		params.EntityID = &v
	}
	if v := r.URL.Query().Get("actor"); v != "" {
		params.Actor = &v
	}
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION", "since must be RFC3339")
			return
		}
		params.Since = &since
	}
	res, err := s.auditSvc.Query(r.Context(), actor, params)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) verifyAudit(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "auditId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid audit id")
		return
	}
	res, err := s.auditSvc.VerifyIntegrity(r.Context(), actor, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
