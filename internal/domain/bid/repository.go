package bid

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines bid persistence.
type Repository interface {
	Create(ctx context.Context, b *Bid) error
	Update(ctx context.Context, b *Bid) error
	GetByID(ctx context.Context, bidID uuid.UUID) (*Bid, error)
	GetPending(ctx context.Context, instanceID, sellerID uuid.UUID) (*Bid, error)
	ListByInstance(ctx context.Context, instanceID uuid.UUID) ([]*Bid, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, instanceID *uuid.UUID, limit, offset int) ([]*Bid, error)
}
