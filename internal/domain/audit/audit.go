package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntityType identifies the audited aggregate.
type EntityType string

const (
	EntityGroupPurchase EntityType = "GROUP_PURCHASE"
	EntityBid           EntityType = "BID"
	EntityTokenGrant    EntityType = "TOKEN_GRANT"
	EntityDecision      EntityType = "DECISION"
	EntityReport        EntityType = "REPORT"
	EntityObjection     EntityType = "OBJECTION"
)

// Action is the audited operation.
type Action string

const (
	ActionCreate   Action = "CREATE"
	ActionJoin     Action = "JOIN"
	ActionLeave    Action = "LEAVE"
	ActionClose    Action = "CLOSE"
	ActionCancel   Action = "CANCEL"
	ActionSubmit   Action = "SUBMIT"
	ActionWithdraw Action = "WITHDRAW"
	ActionGrant    Action = "GRANT"
	ActionDecide   Action = "DECIDE"
	ActionLapse    Action = "LAPSE"
	ActionEdit     Action = "EDIT"
	ActionResolve  Action = "RESOLVE"
)

// RiskLevel grades how sensitive an action is.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// Entry is the input for a new audit record.
type Entry struct {
	EntityType EntityType
	EntityID   string
	Action     Action
	Actor      string
	ActorRole  string
	Reason     string
	RiskLevel  RiskLevel
	NewValues  interface{}
}

// Log is a persisted, signed audit record.
type Log struct {
	ID         int64           `json:"-"`
	AuditID    uuid.UUID       `json:"auditId"`
	EntityType EntityType      `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Action     Action          `json:"action"`
	Actor      string          `json:"actor"`
	ActorRole  string          `json:"actorRole,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	RiskLevel  RiskLevel       `json:"riskLevel"`
	NewValues  json.RawMessage `json:"newValues,omitempty"`
	Signature  []byte          `json:"-"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// NewLog builds a log record from an entry.
func NewLog(e *Entry, now time.Time) (*Log, error) {
	if e.EntityType == "" || e.EntityID == "" || e.Action == "" {
		return nil, fmt.Errorf("entity type, entity id and action are required")
	}
	risk := e.RiskLevel
	if risk == "" {
		risk = RiskLevelLow
	}
	l := &Log{
		AuditID:    uuid.New(),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		Actor:      e.Actor,
		ActorRole:  e.ActorRole,
		Reason:     e.Reason,
		RiskLevel:  risk,
		CreatedAt:  now.UTC(),
	}
	if e.NewValues != nil {
		raw, err := json.Marshal(e.NewValues)
		if err != nil {
			return nil, fmt.Errorf("marshal audit values: %w", err)
		}
		l.NewValues = raw
	}
	return l, nil
}

// Filter narrows Query.
type Filter struct {
	EntityType *EntityType
	EntityID   *string
	Actor      *string
	Since      *time.Time
}

// Repository persists audit logs.
type Repository interface {
	Create(ctx context.Context, l *Log) error
	GetByID(ctx context.Context, auditID uuid.UUID) (*Log, error)
	Query(ctx context.Context, filter Filter, limit, offset int) ([]*Log, error)
}
