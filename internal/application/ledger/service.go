package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appAudit "github.com/groupbuy-hub/groupbuy-hub/internal/application/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/store"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/token"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
)

// Service manages seller bid-token entitlements.
type Service struct {
	uow      store.UnitOfWork
	auditSvc *appAudit.Service
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a ledger service.
func NewService(uow store.UnitOfWork, auditSvc *appAudit.Service, logger zerolog.Logger) *Service {
	return &Service{
		uow:      uow,
		auditSvc: auditSvc,
		logger:   logger.With().Str("service", "ledger").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func canReadSeller(actor user.Actor, sellerID uuid.UUID) error {
	if actor.IsAdmin() || (actor.IsSeller() && actor.UserID == sellerID) {
		return nil
	}
	return errs.NotAuthorized("token balances are visible to the seller and admins only")
}

// GetAvailableBalance returns the seller's spendable tokens at call time.
func (s *Service) GetAvailableBalance(ctx context.Context, actor user.Actor, sellerID uuid.UUID) (token.Balance, error) {
	if err := canReadSeller(actor, sellerID); err != nil {
		return token.Balance{}, err
	}
	grants, err := s.uow.Repositories().Tokens.ListGrants(ctx, sellerID)
	if err != nil {
		return token.Balance{}, fmt.Errorf("list grants: %w", err)
	}
	return token.ComputeBalance(grants, s.now()), nil
}

// GrantRequest describes an admin or purchase grant.
type GrantRequest struct {
	SellerID        uuid.UUID
	Type            token.GrantType
	Quantity        int
	ExpiresAt       *time.Time
	ExternalOrderID string
}

// Grant appends an admin-issued grant.
func (s *Service) Grant(ctx context.Context, actor user.Actor, req GrantRequest) (*token.Grant, error) {
	if !actor.IsAdmin() {
		return nil, errs.NotAuthorized("only admins can grant tokens")
	}
	g, err := token.NewGrant(token.GrantInput{
		SellerID:  req.SellerID,
		Type:      req.Type,
		Source:    token.SourceAdmin,
		Quantity:  req.Quantity,
		ExpiresAt: req.ExpiresAt,
		GrantedBy: actor.ActorString(),
	}, s.now())
	if err != nil {
		return nil, err
	}
	if _, err := s.uow.Repositories().Tokens.InsertGrant(ctx, g); err != nil {
		return nil, fmt.Errorf("insert grant: %w", err)
	}
	s.logger.Info().Str("sellerId", g.SellerID.String()).Str("type", string(g.Type)).Int("quantity", g.Quantity).Msg("tokens granted")
	s.auditSvc.Record(actor, audit.EntityTokenGrant, g.GrantID, audit.ActionGrant, "", g)
	return g, nil
}

// GrantForPurchase records a grant for a confirmed payment. A retried
// confirmation with the same external order id returns the original grant
// and created=false.
func (s *Service) GrantForPurchase(ctx context.Context, actor user.Actor, req GrantRequest) (*token.Grant, bool, error) {
	if !actor.IsAdmin() {
		return nil, false, errs.NotAuthorized("only the payment collaborator can confirm purchases")
	}
	orderID := strings.TrimSpace(req.ExternalOrderID)
	if orderID == "" {
		return nil, false, errs.Validation("external order id is required")
	}
	g, err := token.NewGrant(token.GrantInput{
		SellerID:        req.SellerID,
		Type:            req.Type,
		Source:          token.SourcePurchase,
		Quantity:        req.Quantity,
		ExpiresAt:       req.ExpiresAt,
		ExternalOrderID: &orderID,
		GrantedBy:       actor.ActorString(),
	}, s.now())
	if err != nil {
		return nil, false, err
	}
	repo := s.uow.Repositories().Tokens
	inserted, err := repo.InsertGrant(ctx, g)
	if err != nil {
		return nil, false, fmt.Errorf("insert grant: %w", err)
	}
	if !inserted {
		existing, err := repo.GetByExternalOrderID(ctx, orderID)
		if err != nil {
			return nil, false, fmt.Errorf("load grant by order: %w", err)
		}
		if existing == nil {
			return nil, false, fmt.Errorf("grant for order %s vanished", orderID)
		}
		s.logger.Debug().Str("externalOrderId", orderID).Msg("duplicate purchase confirmation ignored")
		return existing, false, nil
	}
	s.logger.Info().Str("sellerId", g.SellerID.String()).Str("externalOrderId", orderID).Msg("purchase tokens granted")
	s.auditSvc.Record(actor, audit.EntityTokenGrant, g.GrantID, audit.ActionGrant, "purchase "+orderID, g)
	return g, true, nil
}

// Reserve debits one token for a bid. It must run inside the transaction
// that persists the bid; repo is that transaction's token repository.
// The returned balance is the seller's balance after the debit.
func (s *Service) Reserve(ctx context.Context, repo token.Repository, sellerID, instanceID, bidID uuid.UUID, now time.Time) (token.Balance, error) {
	grants, err := repo.ListGrantsForUpdate(ctx, sellerID)
	if err != nil {
		return token.Balance{}, fmt.Errorf("lock grants: %w", err)
	}
	bal := token.ComputeBalance(grants, now)
	consumption := &token.Consumption{
		ConsumptionID: uuid.New(),
		SellerID:      sellerID,
		InstanceID:    instanceID,
		BidID:         bidID,
		ConsumedAt:    now,
	}
	switch {
	case bal.Unlimited:
		consumption.Unlimited = true
	default:
		g := token.PickForDebit(grants, now)
		if g == nil {
			return bal, errs.ErrInsufficientTokens
		}
		ok, err := repo.DebitOne(ctx, g.GrantID)
		if err != nil {
			return token.Balance{}, fmt.Errorf("debit grant: %w", err)
		}
		if !ok {
			return bal, errs.ErrInsufficientTokens
		}
		grantID := g.GrantID
		consumption.GrantID = &grantID
		bal.Available--
	}
	if err := repo.RecordConsumption(ctx, consumption); err != nil {
		return token.Balance{}, fmt.Errorf("record consumption: %w", err)
	}
	return bal, nil
}

// ListGrants returns every grant of the seller, expired ones included.
func (s *Service) ListGrants(ctx context.Context, actor user.Actor, sellerID uuid.UUID) ([]*token.Grant, error) {
	if err := canReadSeller(actor, sellerID); err != nil {
		return nil, err
	}
	grants, err := s.uow.Repositories().Tokens.ListGrants(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return grants, nil
}

// ListConsumptions returns the seller's debit history, newest first.
func (s *Service) ListConsumptions(ctx context.Context, actor user.Actor, sellerID uuid.UUID, limit, offset int) ([]*token.Consumption, error) {
	if err := canReadSeller(actor, sellerID); err != nil {
		return nil, err
	}
	items, err := s.uow.Repositories().Tokens.ListConsumptions(ctx, sellerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list consumptions: %w", err)
	}
	return items, nil
}
