package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_publisher.go -package=mocks . Publisher

// Type names a notification event.
type Type string

const (
	InstanceStatusChanged Type = "InstanceStatusChanged"
	BidSelected           Type = "BidSelected"
	DecisionRecorded      Type = "DecisionRecorded"
	ReportCreated         Type = "ReportCreated"
	ObjectionCreated      Type = "ObjectionCreated"
	ReportResolved        Type = "ReportResolved"
)

// Event is a fire-and-forget signal for the notification collaborator.
type Event struct {
	EventID    uuid.UUID       `json:"eventId"`
	Type       Type            `json:"type"`
	InstanceID uuid.UUID       `json:"instanceId"`
	Recipients []uuid.UUID     `json:"recipients,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// New builds an event. A payload that cannot be encoded is dropped.
func New(t Type, instanceID uuid.UUID, recipients []uuid.UUID, payload interface{}, now time.Time) Event {
	e := Event{
		EventID:    uuid.New(),
		Type:       t,
		InstanceID: instanceID,
		Recipients: recipients,
		OccurredAt: now,
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			e.Payload = raw
		}
	}
	return e
}

// Publisher delivers events without blocking the caller.
type Publisher interface {
	Publish(e Event)
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(Event) {}

// StatusChange is the payload of InstanceStatusChanged.
type StatusChange struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}
