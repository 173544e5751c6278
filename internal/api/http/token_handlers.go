package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/groupbuy-hub/groupbuy-hub/internal/application/ledger"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/token"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
)

type grantRequest struct {
	SellerID  uuid.UUID  `json:"sellerId" validate:"required"`
	Type      string     `json:"type" validate:"required,oneof=SINGLE_USE SUBSCRIPTION"`
	Quantity  int        `json:"quantity" validate:"gte=0"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type purchaseRequest struct {
	grantRequest
	ExternalOrderID string `json:"externalOrderId" validate:"required,max=128"`
}

// sellerParam resolves whose ledger is read: the caller, or ?sellerId= for admins.
func sellerParam(r *http.Request, actor user.Actor) (uuid.UUID, error) {
	id, err := parseOptionalUUID(r, "sellerId")
	if err != nil {
		return uuid.Nil, err
	}
	if id == nil {
		return actor.UserID, nil
	}
	return *id, nil
}

func (s *Server) tokenBalance(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	sellerID, err := sellerParam(r, actor)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid sellerId")
		return
	}
	bal, err := s.ledgerSvc.GetAvailableBalance(r.Context(), actor, sellerID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bal)
}

func (s *Server) listGrants(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	sellerID, err := sellerParam(r, actor)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid sellerId")
		return
	}
	items, err := s.ledgerSvc.ListGrants(r.Context(), actor, sellerID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) listConsumptions(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	sellerID, err := sellerParam(r, actor)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid sellerId")
		return
	}
	limit, offset := parseLimitOffset(r, 50, 200)
	items, err := s.ledgerSvc.ListConsumptions(r.Context(), actor, sellerID, limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) adminGrant(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	var req grantRequest
	if err := s.decodeBody(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	g, err := s.ledgerSvc.Grant(r.Context(), actor, ledger.GrantRequest{
		SellerID:  req.SellerID,
		Type:      token.GrantType(req.Type),
		Quantity:  req.Quantity,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, g)
}

func (s *Server) tokenPurchase(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	var req purchaseRequest
	if err := s.decodeBody(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	g, created, err := s.ledgerSvc.GrantForPurchase(r.Context(), actor, ledger.GrantRequest{
		SellerID:        req.SellerID,
		Type:            token.GrantType(req.Type),
		Quantity:        req.Quantity,
		ExpiresAt:       req.ExpiresAt,
		ExternalOrderID: req.ExternalOrderID,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, g)
}
