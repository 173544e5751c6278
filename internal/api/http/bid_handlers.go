package httpapi

import (
	"net/http"

	"github.com/groupbuy-hub/groupbuy-hub/internal/application/bidding"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/decision"
)

type submitBidRequest struct {
	Amount          int64  `json:"amount" validate:"gt=0"`
	Terms           string `json:"terms,omitempty" validate:"max=2000"`
	ClientRequestID string `json:"clientRequestId,omitempty" validate:"max=64"`
}

type decisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=CONFIRM DECLINE CONFIRMED DECLINED"`
}

func (s *Server) submitBid(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "instanceId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid instance id")
		return
	}
	var req submitBidRequest
	if err := s.decodeBody(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	if req.ClientRequestID == "" {
		req.ClientRequestID = r.Header.Get("Idempotency-Key")
	}
	res, err := s.biddingSvc.SubmitBid(r.Context(), actor, id, bidding.SubmitInput{
		Amount:          req.Amount,
		Terms:           req.Terms,
		ClientRequestID: req.ClientRequestID,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, status, res)
}

func (s *Server) withdrawBid(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "instanceId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid instance id")
		return
	}
	b, err := s.biddingSvc.WithdrawBid(r.Context(), actor, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (s *Server) listBids(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "instanceId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid instance id")
		return
	}
	items, err := s.biddingSvc.ListBids(r.Context(), actor, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) listMyBids(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	instanceID, err := parseOptionalUUID(r, "instanceId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid instanceId")
		return
	}
	limit, offset := parseLimitOffset(r, 50, 200)
	items, err := s.biddingSvc.ListMyBids(r.Context(), actor, instanceID, limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) recordDecision(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "instanceId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid instance id")
		return
	}
	var req decisionRequest
	if err := s.decodeBody(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	d, _ := decision.ParseDecision(req.Decision)
	res, err := s.selectionSvc.RecordDecision(r.Context(), actor, id, d)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) listDecisions(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "instanceId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid instance id")
		return
	}
	items, err := s.selectionSvc.ListDecisions(r.Context(), actor, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) evaluateDecisions(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "instanceId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid instance id")
		return
	}
	res, err := s.selectionSvc.EvaluateExpiredDecisions(r.Context(), actor, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
