package dispute

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appAudit "github.com/groupbuy-hub/groupbuy-hub/internal/application/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/dispute"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/event"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/groupbuy"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/store"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
)

// Config holds deployment-specific dispute policy.
type Config struct {
	// AllowObjectionOnHold also accepts objections while a report is on hold.
	AllowObjectionOnHold bool
}

// Service handles no-show reports and objections.
type Service struct {
	uow      store.UnitOfWork
	auditSvc *appAudit.Service
	events   event.Publisher
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a dispute service.
func NewService(uow store.UnitOfWork, auditSvc *appAudit.Service, events event.Publisher, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		uow:      uow,
		auditSvc: auditSvc,
		events:   events,
		cfg:      cfg,
		logger:   logger.With().Str("service", "dispute").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ReportRequest carries CreateReport input.
type ReportRequest struct {
	InstanceID uuid.UUID
	ReportedID uuid.UUID
	Type       dispute.ReportType
	Content    string
	Evidence   []dispute.Evidence
}

// CreateReport files a no-show report about a finished group purchase.
// The reporter must be an active buyer reporting the winning seller, or the
// winning seller reporting an active buyer.
func (s *Service) CreateReport(ctx context.Context, actor user.Actor, req ReportRequest) (*dispute.Report, error) {
	if !actor.ProfileComplete {
		return nil, errs.ErrProfileIncomplete
	}
	now := s.now()
	var rep *dispute.Report
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		inst, err := repos.Instances.GetByID(ctx, req.InstanceID)
		if err != nil {
			return fmt.Errorf("get group purchase: %w", err)
		}
		if inst == nil {
			return errs.NotFound("group purchase")
		}
		if !inst.Status.Reportable() {
			return errs.New(errs.KindNotReportable, "group purchase is %s; reports need COMPLETED or CANCELLED", inst.Status)
		}
		winningSeller, err := winningSellerOf(ctx, repos, inst)
		if err != nil {
			return err
		}
		reporterIsBuyer, err := isActiveBuyer(ctx, repos, inst.InstanceID, actor.UserID)
		if err != nil {
			return err
		}
		switch {
		case reporterIsBuyer:
			if req.Type != dispute.ReportSellerNoShow || winningSeller == nil || req.ReportedID != *winningSeller {
				return errs.Validation("buyers can only report the winning seller as SELLER_NO_SHOW")
			}
		case winningSeller != nil && actor.UserID == *winningSeller:
			reportedIsBuyer, err := isActiveBuyer(ctx, repos, inst.InstanceID, req.ReportedID)
			if err != nil {
				return err
			}
			if req.Type != dispute.ReportBuyerNoShow || !reportedIsBuyer {
				return errs.Validation("sellers can only report a participating buyer as BUYER_NO_SHOW")
			}
		default:
			return errs.NotAuthorized("only participants of the group purchase can report")
		}

		rep, err = dispute.NewReport(dispute.ReportInput{
			InstanceID: req.InstanceID,
			ReporterID: actor.UserID,
			ReportedID: req.ReportedID,
			Type:       req.Type,
			Content:    req.Content,
			Evidence:   req.Evidence,
		}, now)
		if err != nil {
			return err
		}
		if err := repos.Disputes.CreateReport(ctx, rep); err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("reportId", rep.ReportID.String()).Str("type", string(rep.Type)).Msg("no-show report created")
	s.events.Publish(event.New(event.ReportCreated, rep.InstanceID, []uuid.UUID{rep.ReportedID}, rep, now))
	s.auditSvc.Record(actor, audit.EntityReport, rep.ReportID, audit.ActionCreate, "", rep)
	return rep, nil
}

func winningSellerOf(ctx context.Context, repos store.Repositories, inst *groupbuy.Instance) (*uuid.UUID, error) {
	if inst.WinningBidID == nil {
		return nil, nil
	}
	b, err := repos.Bids.GetByID(ctx, *inst.WinningBidID)
	if err != nil {
		return nil, fmt.Errorf("get winning bid: %w", err)
	}
	if b == nil {
		return nil, nil
	}
	return &b.SellerID, nil
}

func isActiveBuyer(ctx context.Context, repos store.Repositories, instanceID, buyerID uuid.UUID) (bool, error) {
	p, err := repos.Instances.GetParticipation(ctx, instanceID, buyerID)
	if err != nil {
		return false, fmt.Errorf("get participation: %w", err)
	}
	return p != nil && p.IsActive(), nil
}

func (s *Service) loadReport(ctx context.Context, repo dispute.Repository, reportID uuid.UUID, forUpdate bool) (*dispute.Report, error) {
	get := repo.GetReport
	if forUpdate {
		get = repo.GetReportForUpdate
	}
	rep, err := get(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if rep == nil {
		return nil, errs.NotFound("report")
	}
	return rep, nil
}

// EditReport applies the reporter's single permitted edit.
func (s *Service) EditReport(ctx context.Context, actor user.Actor, reportID uuid.UUID, content string, evidence []dispute.Evidence) (*dispute.Report, error) {
	repo := s.uow.Repositories().Disputes
	rep, err := s.loadReport(ctx, repo, reportID, false)
	if err != nil {
		return nil, err
	}
	if rep.ReporterID != actor.UserID {
		return nil, errs.NotAuthorized("only the reporter can edit a report")
	}
	clean, err := rep.PrepareEdit(content, evidence)
	if err != nil {
		return nil, err
	}
	applied, err := repo.EditReport(ctx, reportID, clean, evidence, s.now())
	if err != nil {
		return nil, fmt.Errorf("edit report: %w", err)
	}
	current, err := s.loadReport(ctx, repo, reportID, false)
	if err != nil {
		return nil, err
	}
	if !applied {
		if current.EditCount >= dispute.MaxEdits {
			return nil, errs.ErrEditLimitExceeded
		}
		return nil, errs.InvalidTransition("report can no longer be edited")
	}
	s.auditSvc.Record(actor, audit.EntityReport, reportID, audit.ActionEdit, "", current)
	return current, nil
}

// CancelReport lets the reporter withdraw a pending report. The row is kept.
func (s *Service) CancelReport(ctx context.Context, actor user.Actor, reportID uuid.UUID, reason string) (*dispute.Report, error) {
	var rep *dispute.Report
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		rep, err = s.loadReport(ctx, repos.Disputes, reportID, true)
		if err != nil {
			return err
		}
		if rep.ReporterID != actor.UserID {
			return errs.NotAuthorized("only the reporter can cancel a report")
		}
		if err := rep.Cancel(reason, s.now()); err != nil {
			return err
		}
		return repos.Disputes.UpdateReport(ctx, rep)
	})
	if err != nil {
		return nil, err
	}
	s.auditSvc.Record(actor, audit.EntityReport, reportID, audit.ActionCancel, reason, nil)
	return rep, nil
}

// CreateObjection files the reported party's rebuttal.
func (s *Service) CreateObjection(ctx context.Context, actor user.Actor, reportID uuid.UUID, content string, evidence []dispute.Evidence) (*dispute.Objection, error) {
	now := s.now()
	var (
		rep *dispute.Report
		obj *dispute.Objection
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		rep, err = s.loadReport(ctx, repos.Disputes, reportID, true)
		if err != nil {
			return err
		}
		if rep.ReportedID != actor.UserID {
			return errs.NotAuthorized("only the reported party can object")
		}
		if !dispute.ObjectionAllowed(rep, s.cfg.AllowObjectionOnHold) {
			return errs.InvalidTransition("report no longer accepts objections")
		}
		obj, err = dispute.NewObjection(rep, actor.UserID, content, evidence, now)
		if err != nil {
			return err
		}
		created, err := repos.Disputes.CreateObjection(ctx, obj)
		if err != nil {
			return fmt.Errorf("create objection: %w", err)
		}
		if !created {
			return errs.ErrDuplicateObjection
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.Publish(event.New(event.ObjectionCreated, rep.InstanceID, []uuid.UUID{rep.ReporterID}, obj, now))
	s.auditSvc.Record(actor, audit.EntityObjection, obj.ObjectionID, audit.ActionCreate, "", obj)
	return obj, nil
}

func (s *Service) loadObjection(ctx context.Context, repo dispute.Repository, objectionID uuid.UUID, forUpdate bool) (*dispute.Objection, error) {
	get := repo.GetObjection
	if forUpdate {
		get = repo.GetObjectionForUpdate
	}
	obj, err := get(ctx, objectionID)
	if err != nil {
		return nil, fmt.Errorf("get objection: %w", err)
	}
	if obj == nil {
		return nil, errs.NotFound("objection")
	}
	return obj, nil
}

// EditObjection applies the author's single permitted edit.
func (s *Service) EditObjection(ctx context.Context, actor user.Actor, objectionID uuid.UUID, content string, evidence []dispute.Evidence) (*dispute.Objection, error) {
	repo := s.uow.Repositories().Disputes
	obj, err := s.loadObjection(ctx, repo, objectionID, false)
	if err != nil {
		return nil, err
	}
	if obj.AuthorID != actor.UserID {
		return nil, errs.NotAuthorized("only the author can edit an objection")
	}
	clean, err := obj.PrepareEdit(content, evidence)
	if err != nil {
		return nil, err
	}
	applied, err := repo.EditObjection(ctx, objectionID, clean, evidence, s.now())
	if err != nil {
		return nil, fmt.Errorf("edit objection: %w", err)
	}
	current, err := s.loadObjection(ctx, repo, objectionID, false)
	if err != nil {
		return nil, err
	}
	if !applied {
		if current.EditCount >= dispute.MaxEdits {
			return nil, errs.ErrEditLimitExceeded
		}
		return nil, errs.InvalidTransition("objection can no longer be edited")
	}
	s.auditSvc.Record(actor, audit.EntityObjection, objectionID, audit.ActionEdit, "", current)
	return current, nil
}

// AdminResolve moves a report to CONFIRMED, REJECTED or ON_HOLD.
func (s *Service) AdminResolve(ctx context.Context, actor user.Actor, reportID uuid.UUID, outcome dispute.ReportStatus, comment string) (*dispute.Report, error) {
	if !actor.IsAdmin() {
		return nil, errs.NotAuthorized("only admins can resolve reports")
	}
	now := s.now()
	var rep *dispute.Report
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		rep, err = s.loadReport(ctx, repos.Disputes, reportID, true)
		if err != nil {
			return err
		}
		if err := rep.Resolve(outcome, comment, actor.UserID, now); err != nil {
			return err
		}
		return repos.Disputes.UpdateReport(ctx, rep)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("reportId", reportID.String()).Str("status", string(rep.Status)).Msg("report resolved")
	s.events.Publish(event.New(event.ReportResolved, rep.InstanceID, []uuid.UUID{rep.ReporterID, rep.ReportedID}, rep, now))
	s.auditSvc.Record(actor, audit.EntityReport, reportID, audit.ActionResolve, comment, rep)
	return rep, nil
}

// AdminResolveObjection accepts or rejects an objection.
func (s *Service) AdminResolveObjection(ctx context.Context, actor user.Actor, objectionID uuid.UUID, outcome dispute.ObjectionStatus, response string) (*dispute.Objection, error) {
	if !actor.IsAdmin() {
		return nil, errs.NotAuthorized("only admins can resolve objections")
	}
	now := s.now()
	var obj *dispute.Objection
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		obj, err = s.loadObjection(ctx, repos.Disputes, objectionID, true)
		if err != nil {
			return err
		}
		if err := obj.Resolve(outcome, response, actor.UserID, now); err != nil {
			return err
		}
		return repos.Disputes.UpdateObjection(ctx, obj)
	})
	if err != nil {
		return nil, err
	}
	s.auditSvc.Record(actor, audit.EntityObjection, objectionID, audit.ActionResolve, response, obj)
	return obj, nil
}

// ReportView is a report with its objection, if any.
type ReportView struct {
	*dispute.Report
	Objection *dispute.Objection `json:"objection,omitempty"`
}

// GetReport returns a report to its reporter, the reported party and admins.
func (s *Service) GetReport(ctx context.Context, actor user.Actor, reportID uuid.UUID) (*ReportView, error) {
	repo := s.uow.Repositories().Disputes
	rep, err := s.loadReport(ctx, repo, reportID, false)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.UserID != rep.ReporterID && actor.UserID != rep.ReportedID {
		return nil, errs.NotAuthorized("report is visible to its parties only")
	}
	obj, err := repo.GetObjectionByReport(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("get objection: %w", err)
	}
	return &ReportView{Report: rep, Objection: obj}, nil
}

// ListReports lists reports; non-admins only see reports they are party to.
func (s *Service) ListReports(ctx context.Context, actor user.Actor, filter dispute.ReportFilter, limit, offset int) ([]*dispute.Report, error) {
	if !actor.IsAdmin() {
		id := actor.UserID
		filter.PartyID = &id
	}
	items, err := s.uow.Repositories().Disputes.ListReports(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return items, nil
}

// GetObjection returns an objection to the report's parties and admins.
func (s *Service) GetObjection(ctx context.Context, actor user.Actor, objectionID uuid.UUID) (*dispute.Objection, error) {
	repo := s.uow.Repositories().Disputes
	obj, err := s.loadObjection(ctx, repo, objectionID, false)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || actor.UserID == obj.AuthorID {
		return obj, nil
	}
	rep, err := s.loadReport(ctx, repo, obj.ReportID, false)
	if err != nil {
		return nil, err
	}
	if actor.UserID != rep.ReporterID {
		return nil, errs.NotAuthorized("objection is visible to the report's parties only")
	}
	return obj, nil
}
