package httpapi

import (
	"net/http"
	"time"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/groupbuy"
)

type productRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Name      string `json:"name" validate:"required,max=200"`
	BasePrice int64  `json:"basePrice" validate:"gte=0"`
}

type createInstanceRequest struct {
	Title           string         `json:"title" validate:"required,max=200"`
	Product         productRequest `json:"product"`
	MinParticipants int            `json:"minParticipants" validate:"gte=1"`
	MaxParticipants int            `json:"maxParticipants" validate:"gtefield=MinParticipants"`
	StartTime       *time.Time     `json:"startTime,omitempty"`
	EndTime         time.Time      `json:"endTime" validate:"required"`
	BidRule         string         `json:"bidRule,omitempty" validate:"max=500"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (s *Server) createInstance(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	var req createInstanceRequest
	if err := s.decodeBody(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	in := groupbuy.NewInstanceInput{
		Title: req.Title,
		Product: groupbuy.Product{
			ProductID: req.Product.ProductID,
			Name:      req.Product.Name,
			BasePrice: req.Product.BasePrice,
		},
		MinParticipants: req.MinParticipants,
		MaxParticipants: req.MaxParticipants,
		EndTime:         req.EndTime,
		BidRule:         req.BidRule,
	}
	if req.StartTime != nil {
		in.StartTime = *req.StartTime
	}
	inst, err := s.lifecycleSvc.Create(r.Context(), actor, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, inst)
}

func (s *Server) listInstances(w http.ResponseWriter, r *http.Request) {
	var filter groupbuy.Filter
	if v := r.URL.Query().Get("status"); v != "" {
		st, ok := groupbuy.ParseStatus(v)
		if !ok {
			respondError(w, http.StatusBadRequest, "VALIDATION", "invalid status")
			return
		}
		filter.Status = &st
	}
	creator, err := parseOptionalUUID(r, "creatorId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid creatorId")
		return
	}
	filter.CreatorID = creator
	limit, offset := parseLimitOffset(r, 50, 200)
	items, err := s.lifecycleSvc.List(r.Context(), filter, limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) getInstance(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "instanceId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid instance id")
		return
	}
	inst, err := s.lifecycleSvc.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inst)
}

func (s *Server) joinInstance(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "instanceId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid instance id")
		return
	}
	p, err := s.lifecycleSvc.Join(r.Context(), actor, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) leaveInstance(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "instanceId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid instance id")
		return
	}
	if err := s.lifecycleSvc.Leave(r.Context(), actor, id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) closeBidding(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "instanceId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid instance id")
		return
	}
	res, err := s.lifecycleSvc.CloseBidding(r.Context(), actor, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) cancelInstance(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "instanceId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid instance id")
		return
	}
	var req reasonRequest
	if err := s.decodeBody(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	inst, err := s.lifecycleSvc.Cancel(r.Context(), actor, id, req.Reason)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inst)
}

func (s *Server) listParticipants(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "instanceId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid instance id")
		return
	}
	items, err := s.lifecycleSvc.ListParticipants(r.Context(), actor, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}
