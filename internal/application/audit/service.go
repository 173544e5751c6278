package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
)

// Service handles audit log operations
type Service struct {
	repo    audit.Repository
	logger  zerolog.Logger
	signKey []byte
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewService creates a new audit service
func NewService(repo audit.Repository, logger zerolog.Logger, signKey []byte) *Service {
	return &Service{
		repo:    repo,
		signKey: signKey,
		logger:  logger.With().Str("service", "audit").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Record is a convenience for the common actor-driven entry.
func (s *Service) Record(actor user.Actor, entityType audit.EntityType, entityID uuid.UUID, action audit.Action, reason string, values interface{}) {
	s.Log(&audit.Entry{
		EntityType: entityType,
		EntityID:   entityID.String(),
		Action:     action,
		Actor:      actor.ActorString(),
		ActorRole:  string(actor.Role),
		Reason:     reason,
		RiskLevel:  riskFor(actor, action),
		NewValues:  values,
	})
}

// riskFor grades an entry. Admin cancellations and resolutions override
// another party's outcome and are recorded as high risk.
func riskFor(actor user.Actor, action audit.Action) audit.RiskLevel {
	if !actor.IsAdmin() {
		return audit.RiskLevelLow
	}
	switch action {
	case audit.ActionCancel, audit.ActionResolve:
		return audit.RiskLevelHigh
	default:
		return audit.RiskLevelMedium
	}
}

// Log creates a new audit log entry asynchronously
func (s *Service) Log(entry *audit.Entry) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.LogSync(context.Background(), entry); err != nil {
			s.logger.Error().Err(err).
				Str("entityType", string(entry.EntityType)).
				Str("entityId", entry.EntityID).
				Str("action", string(entry.Action)).
				Msg("failed to create audit log")
		}
	}()
}

// Flush waits for in-flight asynchronous writes.
func (s *Service) Flush() {
	s.wg.Wait()
}

// LogSync creates a new audit log entry synchronously
func (s *Service) LogSync(ctx context.Context, entry *audit.Entry) error {
	l, err := audit.NewLog(entry, s.now())
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	if len(s.signKey) > 0 {
		sig, err := audit.Sign(l, s.signKey)
		if err != nil {
			return fmt.Errorf("failed to sign audit log: %w", err)
		}
		l.Signature = sig
	}

	if err := s.repo.Create(ctx, l); err != nil {
		return fmt.Errorf("failed to save audit log: %w", err)
	}

	s.logger.Debug().
		Str("auditId", l.AuditID.String()).
		Str("entityType", string(l.EntityType)).
		Str("entityId", l.EntityID).
		Str("action", string(l.Action)).
		Str("actor", l.Actor).
		Msg("audit log created")

	if l.RiskLevel == audit.RiskLevelHigh || l.RiskLevel == audit.RiskLevelCritical {
		s.logger.Warn().
			Str("auditId", l.AuditID.String()).
			Str("action", string(l.Action)).
			Str("actor", l.Actor).
			Msg("high-risk operation recorded")
	}
	return nil
}

// QueryParams represents query parameters for audit logs
type QueryParams struct {
	EntityType *string
	EntityID   *string
	Actor      *string
	Since      *time.Time
	Limit      int
	Offset     int
}

// Query retrieves audit logs. Admin only.
func (s *Service) Query(ctx context.Context, actor user.Actor, params QueryParams) ([]*audit.Log, error) {
	if !actor.IsAdmin() {
		return nil, errs.NotAuthorized("only admins can read the audit log")
	}
	if params.Limit <= 0 {
		params.Limit = 50
	}
	if params.Limit > 200 {
		params.Limit = 200
	}
	filter := audit.Filter{EntityID: params.EntityID, Actor: params.Actor, Since: params.Since}
	if params.EntityType != nil {
		et := audit.EntityType(*params.EntityType)
		filter.EntityType = &et
	}
	logs, err := s.repo.Query(ctx, filter, params.Limit, params.Offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query audit logs")
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	return logs, nil
}

// VerifyResult reports the integrity check of one entry.
type VerifyResult struct {
	AuditID  uuid.UUID `json:"auditId"`
	Verified bool      `json:"verified"`
	Message  string    `json:"message"`
}

// VerifyIntegrity checks the signature of an audit log entry.
func (s *Service) VerifyIntegrity(ctx context.Context, actor user.Actor, auditID uuid.UUID) (*VerifyResult, error) {
	if !actor.IsAdmin() {
		return nil, errs.NotAuthorized("only admins can read the audit log")
	}
	l, err := s.repo.GetByID(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}
	if l == nil {
		return nil, errs.NotFound("audit log")
	}
	result := &VerifyResult{AuditID: auditID}
	if len(s.signKey) == 0 {
		result.Message = "Audit signing is disabled"
		return result, nil
	}
	verified, err := audit.Verify(l, s.signKey)
	if err != nil {
		return nil, fmt.Errorf("failed to verify signature: %w", err)
	}
	result.Verified = verified
	if verified {
		result.Message = "Audit log integrity verified"
	} else {
		result.Message = "Audit log signature mismatch - possible tampering detected"
		s.logger.Warn().Str("auditId", auditID.String()).Msg("audit log signature verification failed")
	}
	return result, nil
}
