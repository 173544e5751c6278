package dispute

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReportFilter narrows ListReports.
type ReportFilter struct {
	Status     *ReportStatus
	InstanceID *uuid.UUID
	// PartyID matches reports where the user is reporter or reported.
	PartyID *uuid.UUID
}

// Repository defines report and objection persistence.
type Repository interface {
	CreateReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, reportID uuid.UUID) (*Report, error)
	GetReportForUpdate(ctx context.Context, reportID uuid.UUID) (*Report, error)
	ListReports(ctx context.Context, filter ReportFilter, limit, offset int) ([]*Report, error)
	// EditReport applies content only while edit_count is still 0; it
	// returns false when another edit already won.
	EditReport(ctx context.Context, reportID uuid.UUID, content string, evidence []Evidence, now time.Time) (bool, error)
	UpdateReport(ctx context.Context, r *Report) error

	// CreateObjection returns false when the report already has one.
	CreateObjection(ctx context.Context, o *Objection) (bool, error)
	GetObjection(ctx context.Context, objectionID uuid.UUID) (*Objection, error)
	GetObjectionForUpdate(ctx context.Context, objectionID uuid.UUID) (*Objection, error)
	GetObjectionByReport(ctx context.Context, reportID uuid.UUID) (*Objection, error)
	EditObjection(ctx context.Context, objectionID uuid.UUID, content string, evidence []Evidence, now time.Time) (bool, error)
	UpdateObjection(ctx context.Context, o *Objection) error
}
