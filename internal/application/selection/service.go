package selection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appAudit "github.com/groupbuy-hub/groupbuy-hub/internal/application/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/decision"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/event"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/groupbuy"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/store"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
)

// Cancellation reasons.
const (
	ReasonBuyerDeclined  = "buyer declined"
	ReasonSellerDeclined = "seller declined"
	ReasonBuyerLapsed    = "buyer decision deadline missed"
	ReasonSellerLapsed   = "seller decision deadline missed"
)

// Service coordinates buyer and seller final decisions.
type Service struct {
	uow      store.UnitOfWork
	auditSvc *appAudit.Service
	events   event.Publisher
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a final-selection service.
func NewService(uow store.UnitOfWork, auditSvc *appAudit.Service, events event.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		uow:      uow,
		auditSvc: auditSvc,
		events:   events,
		logger:   logger.With().Str("service", "selection").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func phaseRole(status groupbuy.Status) (decision.Role, bool) {
	switch status {
	case groupbuy.StatusFinalSelectionBuyers:
		return decision.RoleBuyer, true
	case groupbuy.StatusFinalSelectionSeller:
		return decision.RoleSeller, true
	default:
		return "", false
	}
}

// transition is one status change applied while settling.
type transition struct {
	From   groupbuy.Status
	To     groupbuy.Status
	Reason string
}

// settlement collects what settle changed.
type settlement struct {
	Lapsed      []*decision.Record
	Transitions []transition
}

// settle lapses overdue records of the active phase and advances the
// instance as far as the records allow. It must run under the instance lock.
func settle(ctx context.Context, repos store.Repositories, inst *groupbuy.Instance, records []*decision.Record, now time.Time) (*settlement, error) {
	out := &settlement{}
	for {
		role, ok := phaseRole(inst.Status)
		if !ok {
			return out, nil
		}
		for _, r := range decision.LapseOverdue(records, role, now) {
			if err := saveRecord(ctx, repos, r, now); err != nil {
				return nil, err
			}
			out.Lapsed = append(out.Lapsed, r)
		}

		outcome := decision.Aggregate(records, role)
		if outcome == decision.OutcomeWaiting && !hasRole(records, role) {
			outcome = decision.OutcomeConfirmed
		}
		from := inst.Status
		switch outcome {
		case decision.OutcomeWaiting:
			return out, nil
		case decision.OutcomeDeclined:
			reason := declineReason(records, role)
			if err := rollback(ctx, repos, inst, reason, now); err != nil {
				return nil, err
			}
			out.Transitions = append(out.Transitions, transition{From: from, To: inst.Status, Reason: reason})
			return out, nil
		case decision.OutcomeConfirmed:
			var err error
			if role == decision.RoleBuyer {
				err = inst.AwaitSeller(now)
			} else {
				err = inst.Complete(now)
			}
			if err != nil {
				return nil, err
			}
			if err := repos.Instances.Update(ctx, inst); err != nil {
				return nil, fmt.Errorf("update group purchase: %w", err)
			}
			out.Transitions = append(out.Transitions, transition{From: from, To: inst.Status})
		}
	}
}

func hasRole(records []*decision.Record, role decision.Role) bool {
	for _, r := range records {
		if r.Role == role {
			return true
		}
	}
	return false
}

func declineReason(records []*decision.Record, role decision.Role) string {
	lapsed := true
	for _, r := range records {
		if r.Role == role && r.Decision == decision.DecisionDeclined && !r.Lapsed {
			lapsed = false
		}
	}
	switch {
	case role == decision.RoleBuyer && lapsed:
		return ReasonBuyerLapsed
	case role == decision.RoleBuyer:
		return ReasonBuyerDeclined
	case lapsed:
		return ReasonSellerLapsed
	default:
		return ReasonSellerDeclined
	}
}

// rollback cancels the instance and reverts the selected bid to rejected.
// Consumed tokens stay consumed.
func rollback(ctx context.Context, repos store.Repositories, inst *groupbuy.Instance, reason string, now time.Time) error {
	if err := inst.Cancel(reason, now); err != nil {
		return err
	}
	if inst.WinningBidID != nil {
		b, err := repos.Bids.GetByID(ctx, *inst.WinningBidID)
		if err != nil {
			return fmt.Errorf("get winning bid: %w", err)
		}
		if b != nil {
			b.Reject(now)
			if err := repos.Bids.Update(ctx, b); err != nil {
				return fmt.Errorf("reject winning bid: %w", err)
			}
		}
	}
	if err := repos.Instances.Update(ctx, inst); err != nil {
		return fmt.Errorf("update group purchase: %w", err)
	}
	return nil
}

// saveRecord persists a decided record and mirrors buyer decisions onto the
// participation.
func saveRecord(ctx context.Context, repos store.Repositories, r *decision.Record, now time.Time) error {
	if err := repos.Decisions.Update(ctx, r); err != nil {
		return fmt.Errorf("update decision: %w", err)
	}
	if r.Role != decision.RoleBuyer {
		return nil
	}
	p, err := repos.Instances.GetParticipation(ctx, r.InstanceID, r.PartyID)
	if err != nil {
		return fmt.Errorf("get participation: %w", err)
	}
	if p == nil {
		return nil
	}
	p.Decide(groupbuy.FinalDecision(r.Decision), now)
	if err := repos.Instances.UpdateParticipation(ctx, p); err != nil {
		return fmt.Errorf("update participation: %w", err)
	}
	return nil
}

// DecisionResult is returned by RecordDecision.
type DecisionResult struct {
	Instance *groupbuy.Instance `json:"instance"`
	Record   *decision.Record   `json:"record"`
}

// RecordDecision stores a party's confirm or decline and re-evaluates the
// phase under the same instance lock. A decision arriving after its
// deadline lapses the record and fails with INVALID_DECISION_CONTEXT.
func (s *Service) RecordDecision(ctx context.Context, actor user.Actor, instanceID uuid.UUID, d decision.Decision) (*DecisionResult, error) {
	if d != decision.DecisionConfirmed && d != decision.DecisionDeclined {
		return nil, errs.Validation("decision must be CONFIRM or DECLINE")
	}
	now := s.now()
	var (
		result  *DecisionResult
		settled *settlement
		late    error
		parties []uuid.UUID
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		inst, err := repos.Instances.GetForUpdate(ctx, instanceID)
		if err != nil {
			return fmt.Errorf("lock group purchase: %w", err)
		}
		if inst == nil {
			return errs.NotFound("group purchase")
		}
		role, ok := phaseRole(inst.Status)
		if !ok {
			return errs.New(errs.KindInvalidDecisionContext, "group purchase is %s, decisions are closed", inst.Status)
		}
		records, err := repos.Decisions.ListByInstance(ctx, instanceID)
		if err != nil {
			return fmt.Errorf("list decisions: %w", err)
		}
		parties = partiesOf(inst, records)
		rec := decision.Find(records, actor.UserID)
		if rec == nil {
			return errs.New(errs.KindInvalidDecisionContext, "caller is not a party to this final selection")
		}
		if rec.Role != role {
			return errs.New(errs.KindInvalidDecisionContext, "%s decisions are not collected while %s", rec.Role, inst.Status)
		}
		if !rec.IsPending() {
			return errs.New(errs.KindInvalidDecisionContext, "decision already recorded as %s", rec.Decision)
		}
		if rec.Overdue(now) {
			late = errs.New(errs.KindInvalidDecisionContext, "decision deadline passed at %s", rec.Deadline.Format(time.RFC3339))
		} else {
			rec.Decide(d, now)
			if err := saveRecord(ctx, repos, rec, now); err != nil {
				return err
			}
		}
		settled, err = settle(ctx, repos, inst, records, now)
		if err != nil {
			return err
		}
		result = &DecisionResult{Instance: inst, Record: rec}
		return nil
	})
	if err != nil {
		if errs.KindOf(err) == "" {
			s.logger.Error().Err(err).Str("instanceId", instanceID.String()).Msg("record decision failed")
		}
		return nil, err
	}
	s.publish(instanceID, parties, settled, now)
	if late != nil {
		return nil, late
	}

	s.logger.Info().
		Str("instanceId", instanceID.String()).
		Str("party", actor.ActorString()).
		Str("decision", string(d)).
		Str("status", string(result.Instance.Status)).
		Msg("decision recorded")
	s.events.Publish(event.New(event.DecisionRecorded, instanceID, parties, result.Record, now))
	s.auditSvc.Record(actor, audit.EntityDecision, result.Record.RecordID, audit.ActionDecide, "", result.Record)
	return result, nil
}

// EvaluateResult is returned by EvaluateExpiredDecisions.
type EvaluateResult struct {
	Instance *groupbuy.Instance `json:"instance"`
	Lapsed   int                `json:"lapsed"`
}

// EvaluateExpiredDecisions converts overdue pending records of the active
// phase to declines and re-runs aggregation. Calling it again, or outside a
// final-selection phase, changes nothing.
func (s *Service) EvaluateExpiredDecisions(ctx context.Context, actor user.Actor, instanceID uuid.UUID) (*EvaluateResult, error) {
	if !actor.IsAdmin() {
		return nil, errs.NotAuthorized("only admins can evaluate decision deadlines")
	}
	now := s.now()
	var (
		result  *EvaluateResult
		settled *settlement
		parties []uuid.UUID
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		inst, err := repos.Instances.GetForUpdate(ctx, instanceID)
		if err != nil {
			return fmt.Errorf("lock group purchase: %w", err)
		}
		if inst == nil {
			return errs.NotFound("group purchase")
		}
		result = &EvaluateResult{Instance: inst}
		if !inst.Status.IsFinalSelection() {
			return nil
		}
		records, err := repos.Decisions.ListByInstance(ctx, instanceID)
		if err != nil {
			return fmt.Errorf("list decisions: %w", err)
		}
		parties = partiesOf(inst, records)
		settled, err = settle(ctx, repos, inst, records, now)
		if err != nil {
			return err
		}
		result.Lapsed = len(settled.Lapsed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(instanceID, parties, settled, now)
	if settled != nil {
		for _, r := range settled.Lapsed {
			s.auditSvc.Record(actor, audit.EntityDecision, r.RecordID, audit.ActionLapse, "deadline passed", r)
		}
	}
	return result, nil
}

// ListDecisions returns the decision records of an instance to its parties,
// its creator and admins.
func (s *Service) ListDecisions(ctx context.Context, actor user.Actor, instanceID uuid.UUID) ([]*decision.Record, error) {
	repos := s.uow.Repositories()
	inst, err := repos.Instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("get group purchase: %w", err)
	}
	if inst == nil {
		return nil, errs.NotFound("group purchase")
	}
	records, err := repos.Decisions.ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	if actor.IsAdmin() || actor.UserID == inst.CreatorID || decision.Find(records, actor.UserID) != nil {
		return records, nil
	}
	return nil, errs.NotAuthorized("decisions are visible to the parties only")
}

func partiesOf(inst *groupbuy.Instance, records []*decision.Record) []uuid.UUID {
	out := []uuid.UUID{inst.CreatorID}
	for _, r := range records {
		if r.PartyID != inst.CreatorID {
			out = append(out, r.PartyID)
		}
	}
	return out
}

func (s *Service) publish(instanceID uuid.UUID, parties []uuid.UUID, settled *settlement, now time.Time) {
	if settled == nil {
		return
	}
	for _, t := range settled.Transitions {
		s.logger.Info().
			Str("instanceId", instanceID.String()).
			Str("from", string(t.From)).
			Str("to", string(t.To)).
			Str("reason", t.Reason).
			Msg("final selection advanced")
		s.events.Publish(event.New(event.InstanceStatusChanged, instanceID, parties,
			event.StatusChange{From: string(t.From), To: string(t.To), Reason: t.Reason}, now))
	}
}
