package dispute

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
)

// MaxEvidence caps the attachments on a report or objection.
const MaxEvidence = 3

// MaxEdits is the number of edits a report or objection allows.
const MaxEdits = 1

// ReportType identifies which side failed to show up.
type ReportType string

const (
	ReportBuyerNoShow  ReportType = "BUYER_NO_SHOW"
	ReportSellerNoShow ReportType = "SELLER_NO_SHOW"
)

// ReportStatus represents no-show report status.
type ReportStatus string

const (
	ReportPending   ReportStatus = "PENDING"
	ReportConfirmed ReportStatus = "CONFIRMED"
	ReportRejected  ReportStatus = "REJECTED"
	ReportOnHold    ReportStatus = "ON_HOLD"
)

var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportPending:   {ReportConfirmed, ReportRejected, ReportOnHold},
	ReportOnHold:    {ReportConfirmed, ReportRejected},
	ReportConfirmed: {},
	ReportRejected:  {},
}

// ParseReportStatus validates a status value.
func ParseReportStatus(v string) (ReportStatus, bool) {
	s := ReportStatus(strings.ToUpper(strings.TrimSpace(v)))
	_, ok := reportTransitions[s]
	return s, ok
}

// ObjectionStatus represents objection status.
type ObjectionStatus string

const (
	ObjectionPending  ObjectionStatus = "PENDING"
	ObjectionAccepted ObjectionStatus = "ACCEPTED"
	ObjectionRejected ObjectionStatus = "REJECTED"
)

// Evidence is a reference to an externally stored attachment.
type Evidence struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Report is a no-show claim against a counterparty.
type Report struct {
	ID           int64        `json:"-"`
	ReportID     uuid.UUID    `json:"reportId"`
	InstanceID   uuid.UUID    `json:"instanceId"`
	ReporterID   uuid.UUID    `json:"reporterId"`
	ReportedID   uuid.UUID    `json:"reportedId"`
	Type         ReportType   `json:"type"`
	Content      string       `json:"content"`
	Evidence     []Evidence   `json:"evidence"`
	Status       ReportStatus `json:"status"`
	AdminComment *string      `json:"adminComment,omitempty"`
	EditCount    int          `json:"editCount"`
	Cancelled    bool         `json:"cancelled"`
	CancelReason *string      `json:"cancelReason,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	ProcessedAt  *time.Time   `json:"processedAt,omitempty"`
	ProcessedBy  *uuid.UUID   `json:"processedBy,omitempty"`
}

// ReportInput carries report creation parameters.
type ReportInput struct {
	InstanceID uuid.UUID
	ReporterID uuid.UUID
	ReportedID uuid.UUID
	Type       ReportType
	Content    string
	Evidence   []Evidence
}

func validateContent(content string, evidence []Evidence) (string, error) {
	c := strings.TrimSpace(content)
	if c == "" {
		return "", errs.Validation("content is required")
	}
	if len(evidence) > MaxEvidence {
		return "", errs.Validation("at most %d evidence attachments are allowed", MaxEvidence)
	}
	for _, e := range evidence {
		if strings.TrimSpace(e.URL) == "" {
			return "", errs.Validation("evidence url is required")
		}
	}
	return c, nil
}

// NewReport validates input and creates a pending report.
func NewReport(in ReportInput, now time.Time) (*Report, error) {
	if in.Type != ReportBuyerNoShow && in.Type != ReportSellerNoShow {
		return nil, errs.Validation("invalid report type %q", in.Type)
	}
	if in.ReporterID == in.ReportedID {
		return nil, errs.Validation("cannot report yourself")
	}
	content, err := validateContent(in.Content, in.Evidence)
	if err != nil {
		return nil, err
	}
	evidence := in.Evidence
	if evidence == nil {
		evidence = []Evidence{}
	}
	return &Report{
		ReportID:   uuid.New(),
		InstanceID: in.InstanceID,
		ReporterID: in.ReporterID,
		ReportedID: in.ReportedID,
		Type:       in.Type,
		Content:    content,
		Evidence:   evidence,
		Status:     ReportPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsOpen reports whether the reporter may still edit or cancel.
func (r *Report) IsOpen() bool {
	return r.Status == ReportPending && !r.Cancelled
}

// CanTransitionTo validates an admin resolution target.
func (r *Report) CanTransitionTo(target ReportStatus) bool {
	if r.Cancelled {
		return false
	}
	for _, s := range reportTransitions[r.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// PrepareEdit validates an edit. The edit itself is applied by the
// repository as a compare-and-swap on EditCount.
func (r *Report) PrepareEdit(content string, evidence []Evidence) (string, error) {
	if !r.IsOpen() {
		return "", errs.InvalidTransition("report is %s and can no longer be edited", r.displayStatus())
	}
	if r.EditCount >= MaxEdits {
		return "", errs.ErrEditLimitExceeded
	}
	return validateContent(content, evidence)
}

// Cancel withdraws a pending report.
func (r *Report) Cancel(reason string, now time.Time) error {
	if !r.IsOpen() {
		return errs.InvalidTransition("report is %s and can no longer be cancelled", r.displayStatus())
	}
	reason = strings.TrimSpace(reason)
	r.Cancelled = true
	r.CancelReason = &reason
	r.UpdatedAt = now
	return nil
}

// Resolve applies an admin decision.
func (r *Report) Resolve(target ReportStatus, comment string, adminID uuid.UUID, now time.Time) error {
	if !r.CanTransitionTo(target) {
		return errs.InvalidTransition("cannot resolve report from %s to %s", r.displayStatus(), target)
	}
	r.Status = target
	if comment != "" {
		r.AdminComment = &comment
	}
	r.UpdatedAt = now
	r.ProcessedAt = &now
	r.ProcessedBy = &adminID
	return nil
}

func (r *Report) displayStatus() string {
	if r.Cancelled {
		return "CANCELLED"
	}
	return string(r.Status)
}

// Objection is the reported party's rebuttal.
type Objection struct {
	ID            int64           `json:"-"`
	ObjectionID   uuid.UUID       `json:"objectionId"`
	ReportID      uuid.UUID       `json:"reportId"`
	AuthorID      uuid.UUID       `json:"authorId"`
	Content       string          `json:"content"`
	Evidence      []Evidence      `json:"evidence"`
	Status        ObjectionStatus `json:"status"`
	AdminResponse *string         `json:"adminResponse,omitempty"`
	EditCount     int             `json:"editCount"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	ProcessedAt   *time.Time      `json:"processedAt,omitempty"`
	ProcessedBy   *uuid.UUID      `json:"processedBy,omitempty"`
}

// ObjectionAllowed reports whether the report accepts an objection.
func ObjectionAllowed(r *Report, allowOnHold bool) bool {
	if r.Cancelled {
		return false
	}
	return r.Status == ReportPending || (allowOnHold && r.Status == ReportOnHold)
}

// NewObjection creates a pending objection by the reported party.
func NewObjection(r *Report, authorID uuid.UUID, content string, evidence []Evidence, now time.Time) (*Objection, error) {
	c, err := validateContent(content, evidence)
	if err != nil {
		return nil, err
	}
	if evidence == nil {
		evidence = []Evidence{}
	}
	return &Objection{
		ObjectionID: uuid.New(),
		ReportID:    r.ReportID,
		AuthorID:    authorID,
		Content:     c,
		Evidence:    evidence,
		Status:      ObjectionPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// PrepareEdit validates an objection edit.
func (o *Objection) PrepareEdit(content string, evidence []Evidence) (string, error) {
	if o.Status != ObjectionPending {
		return "", errs.InvalidTransition("objection is %s and can no longer be edited", o.Status)
	}
	if o.EditCount >= MaxEdits {
		return "", errs.ErrEditLimitExceeded
	}
	return validateContent(content, evidence)
}

// Resolve applies an admin decision.
func (o *Objection) Resolve(target ObjectionStatus, response string, adminID uuid.UUID, now time.Time) error {
	if o.Status != ObjectionPending {
		return errs.InvalidTransition("objection is already %s", o.Status)
	}
	if target != ObjectionAccepted && target != ObjectionRejected {
		return errs.Validation("invalid objection outcome %q", target)
	}
	o.Status = target
	if response != "" {
		o.AdminResponse = &response
	}
	o.UpdatedAt = now
	o.ProcessedAt = &now
	o.ProcessedBy = &adminID
	return nil
}
