package groupbuy

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter controls instance listing.
type Filter struct {
	Status    *Status
	CreatorID *uuid.UUID
}

// Repository defines group-purchase persistence.
type Repository interface {
	Create(ctx context.Context, inst *Instance) error
	GetByID(ctx context.Context, instanceID uuid.UUID) (*Instance, error)
	// GetForUpdate loads the instance and holds its lock until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, instanceID uuid.UUID) (*Instance, error)
	Update(ctx context.Context, inst *Instance) error
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Instance, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	CreateParticipation(ctx context.Context, p *Participation) error
	UpdateParticipation(ctx context.Context, p *Participation) error
	GetParticipation(ctx context.Context, instanceID, buyerID uuid.UUID) (*Participation, error)
	ListParticipations(ctx context.Context, instanceID uuid.UUID, activeOnly bool) ([]*Participation, error)
}
