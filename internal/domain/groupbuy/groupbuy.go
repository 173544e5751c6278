package groupbuy

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
)

// Status represents group-purchase lifecycle status.
type Status string

const (
	StatusRecruiting           Status = "RECRUITING"
	StatusFinalSelectionBuyers Status = "FINAL_SELECTION_BUYERS"
	StatusFinalSelectionSeller Status = "FINAL_SELECTION_SELLER"
	StatusCompleted            Status = "COMPLETED"
	StatusCancelled            Status = "CANCELLED"
	StatusExpired              Status = "EXPIRED"
)

var transitions = map[Status][]Status{
	StatusRecruiting:           {StatusFinalSelectionBuyers, StatusCancelled, StatusExpired},
	StatusFinalSelectionBuyers: {StatusFinalSelectionSeller, StatusCancelled},
	StatusFinalSelectionSeller: {StatusCompleted, StatusCancelled},
	StatusCompleted:            {},
	StatusCancelled:            {},
	StatusExpired:              {},
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsFinalSelection reports whether decisions are being collected.
func (s Status) IsFinalSelection() bool {
	return s == StatusFinalSelectionBuyers || s == StatusFinalSelectionSeller
}

// Reportable reports whether no-show reports may reference the instance.
func (s Status) Reportable() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus validates a status filter value.
func ParseStatus(v string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(v)))
	_, ok := transitions[s]
	return s, ok
}

// Product is the immutable catalog snapshot attached at creation.
type Product struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	BasePrice int64  `json:"basePrice"`
}

// Instance is one collective-buy listing.
type Instance struct {
	ID                  int64      `json:"-"`
	InstanceID          uuid.UUID  `json:"instanceId"`
	Title               string     `json:"title"`
	Product             Product    `json:"product"`
	MinParticipants     int        `json:"minParticipants"`
	MaxParticipants     int        `json:"maxParticipants"`
	CurrentParticipants int        `json:"currentParticipants"`
	StartTime           time.Time  `json:"startTime"`
	EndTime             time.Time  `json:"endTime"`
	Status              Status     `json:"status"`
	CreatorID           uuid.UUID  `json:"creatorId"`
	BidRule             string     `json:"bidRule,omitempty"`
	WinningBidID        *uuid.UUID `json:"winningBidId,omitempty"`
	StatusReason        *string    `json:"statusReason,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
	ClosedAt            *time.Time `json:"closedAt,omitempty"`
	FinishedAt          *time.Time `json:"finishedAt,omitempty"`
}

// NewInstanceInput carries creation parameters.
type NewInstanceInput struct {
	Title           string
	Product         Product
	MinParticipants int
	MaxParticipants int
	StartTime       time.Time
	EndTime         time.Time
	BidRule         string
}

// NewInstance validates input and creates a recruiting instance.
func NewInstance(creatorID uuid.UUID, in NewInstanceInput, now time.Time) (*Instance, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errs.Validation("title is required")
	}
	if in.MinParticipants < 1 {
		return nil, errs.Validation("min participants must be at least 1")
	}
	if in.MaxParticipants < in.MinParticipants {
		return nil, errs.Validation("max participants must be >= min participants")
	}
	start := in.StartTime
	if start.IsZero() {
		start = now
	}
	if !in.EndTime.After(start) {
		return nil, errs.Validation("end time must be after start time")
	}
	if !in.EndTime.After(now) {
		return nil, errs.Validation("end time must be in the future")
	}
	if in.Product.BasePrice < 0 {
		return nil, errs.Validation("base price must not be negative")
	}
	rule := strings.TrimSpace(in.BidRule)
	if err := ValidateBidRule(rule); err != nil {
		return nil, errs.Validation("invalid bid rule: %v", err)
	}
	return &Instance{
		InstanceID:      uuid.New(),
		Title:           title,
		Product:         in.Product,
		MinParticipants: in.MinParticipants,
		MaxParticipants: in.MaxParticipants,
		StartTime:       start.UTC(),
		EndTime:         in.EndTime.UTC(),
		Status:          StatusRecruiting,
		CreatorID:       creatorID,
		BidRule:         rule,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CanTransitionTo validates a status transition.
func (i *Instance) CanTransitionTo(target Status) bool {
	for _, s := range transitions[i.Status] {
		if s == target {
			return true
		}
	}
	return false
}

func (i *Instance) transition(target Status, reason string, now time.Time) error {
	if !i.CanTransitionTo(target) {
		return errs.InvalidTransition("cannot move group purchase from %s to %s", i.Status, target)
	}
	i.Status = target
	if reason != "" {
		i.StatusReason = &reason
	}
	i.UpdatedAt = now
	if target.IsTerminal() {
		i.FinishedAt = &now
	}
	return nil
}

// RecruitmentOpen reports whether buyers and sellers may still act at now.
func (i *Instance) RecruitmentOpen(now time.Time) bool {
	return i.Status == StatusRecruiting && !now.Before(i.StartTime) && now.Before(i.EndTime)
}

// EnsureRecruiting fails unless the instance accepts recruiting-phase actions at now.
func (i *Instance) EnsureRecruiting(now time.Time) error {
	if i.Status != StatusRecruiting {
		return errs.InvalidTransition("group purchase is %s, not recruiting", i.Status)
	}
	if now.Before(i.StartTime) {
		return errs.InvalidTransition("recruitment has not started yet")
	}
	if !now.Before(i.EndTime) {
		return errs.InvalidTransition("recruitment deadline has passed")
	}
	return nil
}

// AddParticipant increments the roster count.
func (i *Instance) AddParticipant(now time.Time) error {
	if i.CurrentParticipants >= i.MaxParticipants {
		return errs.ErrCapacityExceeded
	}
	i.CurrentParticipants++
	i.UpdatedAt = now
	return nil
}

// RemoveParticipant decrements the roster count.
func (i *Instance) RemoveParticipant(now time.Time) {
	if i.CurrentParticipants > 0 {
		i.CurrentParticipants--
	}
	i.UpdatedAt = now
}

// EnterFinalSelection records the winning bid and starts buyer confirmation.
func (i *Instance) EnterFinalSelection(winningBidID uuid.UUID, now time.Time) error {
	if err := i.transition(StatusFinalSelectionBuyers, "", now); err != nil {
		return err
	}
	i.WinningBidID = &winningBidID
	i.ClosedAt = &now
	return nil
}

// Expire ends recruitment without a deal.
func (i *Instance) Expire(reason string, now time.Time) error {
	if err := i.transition(StatusExpired, reason, now); err != nil {
		return err
	}
	i.ClosedAt = &now
	return nil
}

// AwaitSeller moves to the seller confirmation phase.
func (i *Instance) AwaitSeller(now time.Time) error {
	return i.transition(StatusFinalSelectionSeller, "", now)
}

// Complete marks the transaction as agreed by every party.
func (i *Instance) Complete(now time.Time) error {
	return i.transition(StatusCompleted, "", now)
}

// Cancel soft-cancels the instance.
func (i *Instance) Cancel(reason string, now time.Time) error {
	return i.transition(StatusCancelled, reason, now)
}
