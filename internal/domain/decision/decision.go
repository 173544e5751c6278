package decision

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies which side of the deal a record belongs to.
type Role string

const (
	RoleBuyer  Role = "BUYER"
	RoleSeller Role = "SELLER"
)

// Decision represents a party's final-selection decision.
type Decision string

const (
	DecisionPending   Decision = "PENDING"
	DecisionConfirmed Decision = "CONFIRMED"
	DecisionDeclined  Decision = "DECLINED"
)

// ParseDecision accepts CONFIRM/CONFIRMED and DECLINE/DECLINED.
func ParseDecision(v string) (Decision, bool) {
	switch v {
	case "CONFIRM", "CONFIRMED":
		return DecisionConfirmed, true
	case "DECLINE", "DECLINED":
		return DecisionDeclined, true
	default:
		return "", false
	}
}

// Record is one party's final decision for one instance.
type Record struct {
	ID         int64      `json:"-"`
	RecordID   uuid.UUID  `json:"recordId"`
	InstanceID uuid.UUID  `json:"instanceId"`
	PartyID    uuid.UUID  `json:"partyId"`
	Role       Role       `json:"role"`
	Decision   Decision   `json:"decision"`
	Deadline   time.Time  `json:"deadline"`
	DecidedAt  *time.Time `json:"decidedAt,omitempty"`
	// Lapsed is set when the decline was implied by a missed deadline.
	Lapsed    bool      `json:"lapsed"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewRecord creates a pending record.
func NewRecord(instanceID, partyID uuid.UUID, role Role, deadline, now time.Time) *Record {
	return &Record{
		RecordID:   uuid.New(),
		InstanceID: instanceID,
		PartyID:    partyID,
		Role:       role,
		Decision:   DecisionPending,
		Deadline:   deadline,
		CreatedAt:  now,
	}
}

func (r *Record) IsPending() bool {
	return r.Decision == DecisionPending
}

// Overdue reports whether a pending record missed its deadline at now.
func (r *Record) Overdue(now time.Time) bool {
	return r.IsPending() && !now.Before(r.Deadline)
}

func (r *Record) Decide(d Decision, now time.Time) {
	r.Decision = d
	r.DecidedAt = &now
}

// Lapse converts an overdue record into an implicit decline.
func (r *Record) Lapse(now time.Time) {
	r.Decide(DecisionDeclined, now)
	r.Lapsed = true
}

// Outcome is the aggregate state of one role's records.
type Outcome string

const (
	OutcomeWaiting   Outcome = "WAITING"
	OutcomeConfirmed Outcome = "CONFIRMED"
	OutcomeDeclined  Outcome = "DECLINED"
)

// Aggregate evaluates the records of a role. A single decline settles the
// outcome as declined; otherwise the outcome is confirmed once no record is
// pending. No records for the role yields waiting.
func Aggregate(records []*Record, role Role) Outcome {
	seen := 0
	pending := false
	for _, r := range records {
		if r.Role != role {
			continue
		}
		seen++
		switch r.Decision {
		case DecisionDeclined:
			return OutcomeDeclined
		case DecisionPending:
			pending = true
		}
	}
	if seen == 0 || pending {
		return OutcomeWaiting
	}
	return OutcomeConfirmed
}

// LapseOverdue declines every overdue pending record of role and returns them.
func LapseOverdue(records []*Record, role Role, now time.Time) []*Record {
	var lapsed []*Record
	for _, r := range records {
		if r.Role == role && r.Overdue(now) {
			r.Lapse(now)
			lapsed = append(lapsed, r)
		}
	}
	return lapsed
}

// Find returns the record of party, or nil.
func Find(records []*Record, partyID uuid.UUID) *Record {
	for _, r := range records {
		if r.PartyID == partyID {
			return r
		}
	}
	return nil
}
