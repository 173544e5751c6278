package bidding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appAudit "github.com/groupbuy-hub/groupbuy-hub/internal/application/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/bid"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/store"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/token"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
)

// TokenReserver debits a bid token inside the caller's transaction.
type TokenReserver interface {
	Reserve(ctx context.Context, repo token.Repository, sellerID, instanceID, bidID uuid.UUID, now time.Time) (token.Balance, error)
}

// Service handles seller bids.
type Service struct {
	uow      store.UnitOfWork
	tokens   TokenReserver
	auditSvc *appAudit.Service
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a bidding service.
func NewService(uow store.UnitOfWork, tokens TokenReserver, auditSvc *appAudit.Service, logger zerolog.Logger) *Service {
	return &Service{
		uow:      uow,
		tokens:   tokens,
		auditSvc: auditSvc,
		logger:   logger.With().Str("service", "bidding").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SubmitInput is a seller's offer.
type SubmitInput struct {
	Amount int64
	Terms  string
	// ClientRequestID makes retries of the same submission idempotent.
	ClientRequestID string
}

// SubmitResult is returned by SubmitBid.
type SubmitResult struct {
	Bid     *bid.Bid      `json:"bid"`
	Balance token.Balance `json:"balance"`
	// Replayed is true when the call matched an earlier submission and
	// nothing was charged.
	Replayed bool `json:"replayed"`
}

// SubmitBid places or replaces the seller's pending bid and consumes one
// token in the same transaction.
func (s *Service) SubmitBid(ctx context.Context, actor user.Actor, instanceID uuid.UUID, in SubmitInput) (*SubmitResult, error) {
	if !actor.IsSeller() {
		return nil, errs.NotAuthorized("only sellers can bid")
	}
	if !actor.ProfileComplete {
		return nil, errs.ErrProfileIncomplete
	}
	if in.Amount <= 0 {
		return nil, errs.Validation("amount must be positive")
	}
	terms := strings.TrimSpace(in.Terms)
	requestID := strings.TrimSpace(in.ClientRequestID)
	now := s.now()

	var result *SubmitResult
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		inst, err := repos.Instances.GetForUpdate(ctx, instanceID)
		if err != nil {
			return fmt.Errorf("lock group purchase: %w", err)
		}
		if inst == nil {
			return errs.NotFound("group purchase")
		}
		if err := inst.EnsureRecruiting(now); err != nil {
			return err
		}
		existing, err := repos.Bids.GetPending(ctx, instanceID, actor.UserID)
		if err != nil {
			return fmt.Errorf("get pending bid: %w", err)
		}

		if existing != nil && requestID != "" && existing.ClientRequestID != nil &&
			*existing.ClientRequestID == requestID && existing.Amount == in.Amount {
			grants, err := repos.Tokens.ListGrants(ctx, actor.UserID)
			if err != nil {
				return fmt.Errorf("list grants: %w", err)
			}
			result = &SubmitResult{Bid: existing, Balance: token.ComputeBalance(grants, now), Replayed: true}
			return nil
		}

		b := existing
		if b != nil {
			b.Replace(in.Amount, terms, now)
		} else {
			b = bid.NewBid(instanceID, actor.UserID, in.Amount, terms, now)
		}
		b.ClientRequestID = nil
		if requestID != "" {
			b.ClientRequestID = &requestID
		}

		bal, err := s.tokens.Reserve(ctx, repos.Tokens, actor.UserID, instanceID, b.BidID, now)
		if err != nil {
			return err
		}
		if existing != nil {
			err = repos.Bids.Update(ctx, b)
		} else {
			err = repos.Bids.Create(ctx, b)
		}
		if err != nil {
			return fmt.Errorf("save bid: %w", err)
		}
		result = &SubmitResult{Bid: b, Balance: bal}
		return nil
	})
	if err != nil {
		if errs.KindOf(err) == "" {
			s.logger.Error().Err(err).Str("instanceId", instanceID.String()).Msg("submit bid failed")
		} else {
			s.logger.Debug().Err(err).Str("instanceId", instanceID.String()).Str("sellerId", actor.UserID.String()).Msg("bid rejected")
		}
		return nil, err
	}
	if !result.Replayed {
		s.logger.Info().
			Str("instanceId", instanceID.String()).
			Str("bidId", result.Bid.BidID.String()).
			Int("revision", result.Bid.Revision).
			Msg("bid submitted")
		s.auditSvc.Record(actor, audit.EntityBid, result.Bid.BidID, audit.ActionSubmit, "", result.Bid)
	}
	return result, nil
}

// WithdrawBid withdraws the seller's pending bid. The consumed token is
// not restored.
func (s *Service) WithdrawBid(ctx context.Context, actor user.Actor, instanceID uuid.UUID) (*bid.Bid, error) {
	if !actor.IsSeller() {
		return nil, errs.NotAuthorized("only sellers can withdraw bids")
	}
	now := s.now()
	var withdrawn *bid.Bid
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		inst, err := repos.Instances.GetForUpdate(ctx, instanceID)
		if err != nil {
			return fmt.Errorf("lock group purchase: %w", err)
		}
		if inst == nil {
			return errs.NotFound("group purchase")
		}
		if err := inst.EnsureRecruiting(now); err != nil {
			return err
		}
		b, err := repos.Bids.GetPending(ctx, instanceID, actor.UserID)
		if err != nil {
			return fmt.Errorf("get pending bid: %w", err)
		}
		if b == nil {
			return errs.NotFound("pending bid")
		}
		b.Withdraw(now)
		if err := repos.Bids.Update(ctx, b); err != nil {
			return fmt.Errorf("withdraw bid: %w", err)
		}
		withdrawn = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.auditSvc.Record(actor, audit.EntityBid, withdrawn.BidID, audit.ActionWithdraw, "", nil)
	return withdrawn, nil
}

// ListBids returns the bids of an instance visible to actor: all of them for
// the creator and admins, only their own for a seller.
func (s *Service) ListBids(ctx context.Context, actor user.Actor, instanceID uuid.UUID) ([]*bid.Bid, error) {
	repos := s.uow.Repositories()
	inst, err := repos.Instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("get group purchase: %w", err)
	}
	if inst == nil {
		return nil, errs.NotFound("group purchase")
	}
	switch {
	case actor.IsAdmin() || actor.UserID == inst.CreatorID:
		bids, err := repos.Bids.ListByInstance(ctx, instanceID)
		if err != nil {
			return nil, fmt.Errorf("list bids: %w", err)
		}
		return bids, nil
	case actor.IsSeller():
		bids, err := repos.Bids.ListBySeller(ctx, actor.UserID, &instanceID, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("list bids: %w", err)
		}
		return bids, nil
	default:
		return nil, errs.NotAuthorized("bids are visible to the creator and bidding sellers only")
	}
}

// ListMyBids returns the seller's bids across instances, newest first.
func (s *Service) ListMyBids(ctx context.Context, actor user.Actor, instanceID *uuid.UUID, limit, offset int) ([]*bid.Bid, error) {
	if !actor.IsSeller() {
		return nil, errs.NotAuthorized("only sellers have bids")
	}
	bids, err := s.uow.Repositories().Bids.ListBySeller(ctx, actor.UserID, instanceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	return bids, nil
}
