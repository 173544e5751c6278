package groupbuy

import (
	"time"

	"github.com/google/uuid"
)

// ParticipationStatus represents roster membership state.
type ParticipationStatus string

const (
	ParticipationActive    ParticipationStatus = "ACTIVE"
	ParticipationWithdrawn ParticipationStatus = "WITHDRAWN"
)

// FinalDecision mirrors the buyer's final-selection decision.
type FinalDecision string

const (
	FinalDecisionPending   FinalDecision = "PENDING"
	FinalDecisionConfirmed FinalDecision = "CONFIRMED"
	FinalDecisionDeclined  FinalDecision = "DECLINED"
)

// Participation is one buyer's membership in one instance.
type Participation struct {
	ID              int64               `json:"-"`
	ParticipationID uuid.UUID           `json:"participationId"`
	InstanceID      uuid.UUID           `json:"instanceId"`
	BuyerID         uuid.UUID           `json:"buyerId"`
	Status          ParticipationStatus `json:"status"`
	JoinedAt        time.Time           `json:"joinedAt"`
	WithdrawnAt     *time.Time          `json:"withdrawnAt,omitempty"`
	Decision        FinalDecision       `json:"decision"`
	DecidedAt       *time.Time          `json:"decidedAt,omitempty"`
}

// NewParticipation creates an active membership.
func NewParticipation(instanceID, buyerID uuid.UUID, now time.Time) *Participation {
	return &Participation{
		ParticipationID: uuid.New(),
		InstanceID:      instanceID,
		BuyerID:         buyerID,
		Status:          ParticipationActive,
		JoinedAt:        now,
		Decision:        FinalDecisionPending,
	}
}

func (p *Participation) IsActive() bool {
	return p.Status == ParticipationActive
}

// Rejoin reactivates a withdrawn membership.
func (p *Participation) Rejoin(now time.Time) {
	p.Status = ParticipationActive
	p.JoinedAt = now
	p.WithdrawnAt = nil
	p.Decision = FinalDecisionPending
	p.DecidedAt = nil
}

func (p *Participation) Withdraw(now time.Time) {
	p.Status = ParticipationWithdrawn
	p.WithdrawnAt = &now
}

func (p *Participation) Decide(d FinalDecision, now time.Time) {
	p.Decision = d
	p.DecidedAt = &now
}
