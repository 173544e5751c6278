package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/groupbuy-hub/groupbuy-hub/internal/application/lifecycle"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/selection"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/store"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
)

// Closer closes bidding on a due instance.
type Closer interface {
	CloseBidding(ctx context.Context, actor user.Actor, instanceID uuid.UUID) (*lifecycle.CloseResult, error)
}

// Evaluator lapses overdue decisions on an instance.
type Evaluator interface {
	EvaluateExpiredDecisions(ctx context.Context, actor user.Actor, instanceID uuid.UUID) (*selection.EvaluateResult, error)
}

// Service runs the deadline sweep. It only calls idempotent entry points, so
// several replicas may sweep concurrently.
type Service struct {
	uow       store.UnitOfWork
	closer    Closer
	evaluator Evaluator
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a sweep service.
func NewService(uow store.UnitOfWork, closer Closer, evaluator Evaluator, logger zerolog.Logger) *Service {
	return &Service{
		uow:       uow,
		closer:    closer,
		evaluator: evaluator,
		logger:    logger.With().Str("service", "scheduler").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SweepResult counts what one sweep touched.
type SweepResult struct {
	Closed    int `json:"closed"`
	Evaluated int `json:"evaluated"`
	Lapsed    int `json:"lapsed"`
	Failed    int `json:"failed"`
}

// SweepDue closes recruiting instances past their end time and evaluates
// overdue final decisions, up to limit of each.
func (s *Service) SweepDue(ctx context.Context, limit int) (*SweepResult, error) {
	if limit <= 0 {
		limit = 50
	}
	now := s.now()
	repos := s.uow.Repositories()
	actor := user.System()
	res := &SweepResult{}

	due, err := repos.Instances.ListDue(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due instances: %w", err)
	}
	for _, id := range due {
		if _, err := s.closer.CloseBidding(ctx, actor, id); err != nil {
			s.skip(res, err, "close", id)
			continue
		}
		res.Closed++
	}

	overdue, err := repos.Decisions.ListOverdueInstances(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue decisions: %w", err)
	}
	for _, id := range overdue {
		out, err := s.evaluator.EvaluateExpiredDecisions(ctx, actor, id)
		if err != nil {
			s.skip(res, err, "evaluate", id)
			continue
		}
		res.Evaluated++
		res.Lapsed += out.Lapsed
	}

	if res.Closed+res.Evaluated+res.Failed > 0 {
		s.logger.Info().
			Int("closed", res.Closed).
			Int("evaluated", res.Evaluated).
			Int("lapsed", res.Lapsed).
			Int("failed", res.Failed).
			Msg("deadline sweep finished")
	}
	return res, nil
}

// skip tolerates races with another sweeper or a manual action; anything
// else counts as a failure and is retried on the next tick.
func (s *Service) skip(res *SweepResult, err error, op string, id uuid.UUID) {
	if errs.KindOf(err) == errs.KindInvalidTransition {
		s.logger.Debug().Err(err).Str("op", op).Str("instanceId", id.String()).Msg("already handled")
		return
	}
	res.Failed++
	s.logger.Error().Err(err).Str("op", op).Str("instanceId", id.String()).Msg("sweep step failed")
}

// Run sweeps every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration, limit int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepDue(ctx, limit); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("deadline sweep failed")
			}
		}
	}
}
