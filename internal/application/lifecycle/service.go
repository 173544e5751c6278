package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appAudit "github.com/groupbuy-hub/groupbuy-hub/internal/application/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/bid"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/decision"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/event"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/groupbuy"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/store"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
)

// Config holds the final-selection windows fixed at close time.
type Config struct {
	BuyerDecisionWindow  time.Duration
	SellerDecisionWindow time.Duration
}

// Service drives the group-purchase state machine.
type Service struct {
	uow      store.UnitOfWork
	auditSvc *appAudit.Service
	events   event.Publisher
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a lifecycle service.
func NewService(uow store.UnitOfWork, auditSvc *appAudit.Service, events event.Publisher, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		uow:      uow,
		auditSvc: auditSvc,
		events:   events,
		cfg:      cfg,
		logger:   logger.With().Str("service", "lifecycle").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Create opens a new recruiting instance on behalf of a buyer.
func (s *Service) Create(ctx context.Context, actor user.Actor, in groupbuy.NewInstanceInput) (*groupbuy.Instance, error) {
	if !actor.IsBuyer() {
		return nil, errs.NotAuthorized("only buyers can open a group purchase")
	}
	inst, err := groupbuy.NewInstance(actor.UserID, in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.uow.Repositories().Instances.Create(ctx, inst); err != nil {
		return nil, fmt.Errorf("create group purchase: %w", err)
	}
	s.logger.Info().Str("instanceId", inst.InstanceID.String()).Str("creatorId", actor.UserID.String()).Msg("group purchase created")
	s.auditSvc.Record(actor, audit.EntityGroupPurchase, inst.InstanceID, audit.ActionCreate, "", inst)
	return inst, nil
}

// Get returns one instance.
func (s *Service) Get(ctx context.Context, instanceID uuid.UUID) (*groupbuy.Instance, error) {
	inst, err := s.uow.Repositories().Instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("get group purchase: %w", err)
	}
	if inst == nil {
		return nil, errs.NotFound("group purchase")
	}
	return inst, nil
}

// List returns instances matching filter, newest first.
func (s *Service) List(ctx context.Context, filter groupbuy.Filter, limit, offset int) ([]*groupbuy.Instance, error) {
	items, err := s.uow.Repositories().Instances.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list group purchases: %w", err)
	}
	return items, nil
}

// ListParticipants returns the active roster. Visible to the creator,
// participants, the winning seller and admins.
func (s *Service) ListParticipants(ctx context.Context, actor user.Actor, instanceID uuid.UUID) ([]*groupbuy.Participation, error) {
	repos := s.uow.Repositories()
	inst, err := s.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	parts, err := repos.Instances.ListParticipations(ctx, instanceID, true)
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	if actor.IsAdmin() || actor.UserID == inst.CreatorID || hasActive(parts, actor.UserID) {
		return parts, nil
	}
	if inst.WinningBidID != nil {
		winner, err := repos.Bids.GetByID(ctx, *inst.WinningBidID)
		if err != nil {
			return nil, fmt.Errorf("get winning bid: %w", err)
		}
		if winner != nil && winner.SellerID == actor.UserID {
			return parts, nil
		}
	}
	return nil, errs.NotAuthorized("roster is visible to the group purchase's members only")
}

func hasActive(parts []*groupbuy.Participation, buyerID uuid.UUID) bool {
	for _, p := range parts {
		if p.BuyerID == buyerID && p.IsActive() {
			return true
		}
	}
	return false
}

func loadLocked(ctx context.Context, repos store.Repositories, instanceID uuid.UUID) (*groupbuy.Instance, error) {
	inst, err := repos.Instances.GetForUpdate(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("lock group purchase: %w", err)
	}
	if inst == nil {
		return nil, errs.NotFound("group purchase")
	}
	return inst, nil
}

// Join adds the buyer to the roster.
func (s *Service) Join(ctx context.Context, actor user.Actor, instanceID uuid.UUID) (*groupbuy.Participation, error) {
	if !actor.IsBuyer() {
		return nil, errs.NotAuthorized("only buyers can join a group purchase")
	}
	if !actor.ProfileComplete {
		return nil, errs.ErrProfileIncomplete
	}
	now := s.now()
	var part *groupbuy.Participation
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		inst, err := loadLocked(ctx, repos, instanceID)
		if err != nil {
			return err
		}
		if inst.CreatorID == actor.UserID {
			return errs.NotAuthorized("cannot join your own group purchase")
		}
		if err := inst.EnsureRecruiting(now); err != nil {
			return err
		}
		existing, err := repos.Instances.GetParticipation(ctx, instanceID, actor.UserID)
		if err != nil {
			return fmt.Errorf("get participation: %w", err)
		}
		if existing != nil && existing.IsActive() {
			return errs.ErrDuplicateParticipation
		}
		if err := inst.AddParticipant(now); err != nil {
			return err
		}
		if existing != nil {
			existing.Rejoin(now)
			if err := repos.Instances.UpdateParticipation(ctx, existing); err != nil {
				return fmt.Errorf("update participation: %w", err)
			}
			part = existing
		} else {
			part = groupbuy.NewParticipation(instanceID, actor.UserID, now)
			if err := repos.Instances.CreateParticipation(ctx, part); err != nil {
				return fmt.Errorf("create participation: %w", err)
			}
		}
		if err := repos.Instances.Update(ctx, inst); err != nil {
			return fmt.Errorf("update group purchase: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(err, "join", instanceID)
		return nil, err
	}
	s.auditSvc.Record(actor, audit.EntityGroupPurchase, instanceID, audit.ActionJoin, "", part)
	return part, nil
}

// Leave withdraws the buyer from the roster while recruiting.
func (s *Service) Leave(ctx context.Context, actor user.Actor, instanceID uuid.UUID) error {
	now := s.now()
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		inst, err := loadLocked(ctx, repos, instanceID)
		if err != nil {
			return err
		}
		if err := inst.EnsureRecruiting(now); err != nil {
			return err
		}
		part, err := repos.Instances.GetParticipation(ctx, instanceID, actor.UserID)
		if err != nil {
			return fmt.Errorf("get participation: %w", err)
		}
		if part == nil || !part.IsActive() {
			return errs.NotFound("participation")
		}
		part.Withdraw(now)
		inst.RemoveParticipant(now)
		if err := repos.Instances.UpdateParticipation(ctx, part); err != nil {
			return fmt.Errorf("update participation: %w", err)
		}
		if err := repos.Instances.Update(ctx, inst); err != nil {
			return fmt.Errorf("update group purchase: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(err, "leave", instanceID)
		return err
	}
	s.auditSvc.Record(actor, audit.EntityGroupPurchase, instanceID, audit.ActionLeave, "", nil)
	return nil
}

// CloseResult describes how bidding closed.
type CloseResult struct {
	Instance *groupbuy.Instance `json:"instance"`
	Winner   *bid.Bid           `json:"winner,omitempty"`
	Rejected int                `json:"rejected"`
	Records  []*decision.Record `json:"decisions,omitempty"`
}

// CloseBidding ends recruitment: either a winning bid moves the instance into
// buyer confirmation, or the instance expires. Admins (including the
// scheduler) and the creator may close.
func (s *Service) CloseBidding(ctx context.Context, actor user.Actor, instanceID uuid.UUID) (*CloseResult, error) {
	now := s.now()
	var (
		result     *CloseResult
		from       groupbuy.Status
		recipients []uuid.UUID
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		inst, err := loadLocked(ctx, repos, instanceID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && actor.UserID != inst.CreatorID {
			return errs.NotAuthorized("only the creator or an admin can close bidding")
		}
		if inst.Status != groupbuy.StatusRecruiting {
			return errs.InvalidTransition("group purchase is %s, bidding already closed", inst.Status)
		}
		from = inst.Status
		bids, err := repos.Bids.ListByInstance(ctx, instanceID)
		if err != nil {
			return fmt.Errorf("list bids: %w", err)
		}
		closing, err := groupbuy.PlanClosing(inst, bids)
		if err != nil {
			return errs.Validation("bid rule failed: %v", err)
		}
		parts, err := repos.Instances.ListParticipations(ctx, instanceID, true)
		if err != nil {
			return fmt.Errorf("list participations: %w", err)
		}
		recipients = audience(inst, parts, bids)

		for _, b := range closing.Rejected {
			b.Reject(now)
			if err := repos.Bids.Update(ctx, b); err != nil {
				return fmt.Errorf("reject bid: %w", err)
			}
		}
		result = &CloseResult{Instance: inst, Rejected: len(closing.Rejected)}

		if closing.Winner == nil {
			if err := inst.Expire(closing.ExpireReason, now); err != nil {
				return err
			}
			if err := repos.Instances.Update(ctx, inst); err != nil {
				return fmt.Errorf("update group purchase: %w", err)
			}
			return nil
		}

		winner := closing.Winner
		winner.Select(now)
		if err := repos.Bids.Update(ctx, winner); err != nil {
			return fmt.Errorf("select bid: %w", err)
		}
		if err := inst.EnterFinalSelection(winner.BidID, now); err != nil {
			return err
		}
		if err := repos.Instances.Update(ctx, inst); err != nil {
			return fmt.Errorf("update group purchase: %w", err)
		}
		buyerDeadline := now.Add(s.cfg.BuyerDecisionWindow)
		records := make([]*decision.Record, 0, len(parts)+1)
		for _, p := range parts {
			records = append(records, decision.NewRecord(instanceID, p.BuyerID, decision.RoleBuyer, buyerDeadline, now))
		}
		records = append(records, decision.NewRecord(instanceID, winner.SellerID, decision.RoleSeller, buyerDeadline.Add(s.cfg.SellerDecisionWindow), now))
		if err := repos.Decisions.CreateBatch(ctx, records); err != nil {
			return fmt.Errorf("create decision records: %w", err)
		}
		result.Winner = winner
		result.Records = records
		return nil
	})
	if err != nil {
		s.logFailure(err, "close", instanceID)
		return nil, err
	}

	inst := result.Instance
	reason := ""
	if inst.StatusReason != nil {
		reason = *inst.StatusReason
	}
	s.logger.Info().
		Str("instanceId", instanceID.String()).
		Str("status", string(inst.Status)).
		Int("rejected", result.Rejected).
		Msg("bidding closed")
	s.events.Publish(event.New(event.InstanceStatusChanged, instanceID, recipients,
		event.StatusChange{From: string(from), To: string(inst.Status), Reason: reason}, now))
	if result.Winner != nil {
		s.events.Publish(event.New(event.BidSelected, instanceID,
			[]uuid.UUID{result.Winner.SellerID, inst.CreatorID}, result.Winner, now))
	}
	s.auditSvc.Record(actor, audit.EntityGroupPurchase, instanceID, audit.ActionClose, reason, inst)
	return result, nil
}

// Cancel soft-cancels an instance. The creator may cancel while recruiting;
// admins may cancel any non-terminal instance. Pending and selected bids
// become rejected; consumed tokens are not refunded.
func (s *Service) Cancel(ctx context.Context, actor user.Actor, instanceID uuid.UUID, reason string) (*groupbuy.Instance, error) {
	now := s.now()
	var (
		inst       *groupbuy.Instance
		from       groupbuy.Status
		recipients []uuid.UUID
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		inst, err = loadLocked(ctx, repos, instanceID)
		if err != nil {
			return err
		}
		switch {
		case actor.IsAdmin():
		case actor.UserID == inst.CreatorID:
			if inst.Status != groupbuy.StatusRecruiting {
				return errs.InvalidTransition("creator can cancel only while recruiting")
			}
		default:
			return errs.NotAuthorized("only the creator or an admin can cancel")
		}
		from = inst.Status
		if reason == "" {
			reason = "cancelled by " + actor.ActorString()
		}
		if err := inst.Cancel(reason, now); err != nil {
			return err
		}
		bids, err := repos.Bids.ListByInstance(ctx, instanceID)
		if err != nil {
			return fmt.Errorf("list bids: %w", err)
		}
		if err := RejectOpenBids(ctx, repos, bids, now); err != nil {
			return err
		}
		parts, err := repos.Instances.ListParticipations(ctx, instanceID, true)
		if err != nil {
			return fmt.Errorf("list participations: %w", err)
		}
		recipients = audience(inst, parts, bids)
		return repos.Instances.Update(ctx, inst)
	})
	if err != nil {
		s.logFailure(err, "cancel", instanceID)
		return nil, err
	}
	s.logger.Info().Str("instanceId", instanceID.String()).Str("actor", actor.ActorString()).Msg("group purchase cancelled")
	s.events.Publish(event.New(event.InstanceStatusChanged, instanceID, recipients,
		event.StatusChange{From: string(from), To: string(inst.Status), Reason: reason}, now))
	s.auditSvc.Record(actor, audit.EntityGroupPurchase, instanceID, audit.ActionCancel, reason, inst)
	return inst, nil
}

// RejectOpenBids rejects every pending or selected bid in bids.
func RejectOpenBids(ctx context.Context, repos store.Repositories, bids []*bid.Bid, now time.Time) error {
	for _, b := range bids {
		if b.Status != bid.StatusPending && b.Status != bid.StatusSelected {
			continue
		}
		b.Reject(now)
		if err := repos.Bids.Update(ctx, b); err != nil {
			return fmt.Errorf("reject bid: %w", err)
		}
	}
	return nil
}

// audience lists everyone with a stake in the instance: the creator, active
// buyers and every seller that bid.
func audience(inst *groupbuy.Instance, parts []*groupbuy.Participation, bids []*bid.Bid) []uuid.UUID {
	seen := map[uuid.UUID]bool{inst.CreatorID: true}
	out := []uuid.UUID{inst.CreatorID}
	add := func(id uuid.UUID) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, p := range parts {
		add(p.BuyerID)
	}
	for _, b := range bids {
		add(b.SellerID)
	}
	return out
}

func (s *Service) logFailure(err error, op string, instanceID uuid.UUID) {
	if errs.KindOf(err) != "" {
		s.logger.Debug().Err(err).Str("op", op).Str("instanceId", instanceID.String()).Msg("request rejected")
		return
	}
	s.logger.Error().Err(err).Str("op", op).Str("instanceId", instanceID.String()).Msg("operation failed")
}
