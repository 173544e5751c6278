package token

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines bid-token ledger persistence.
type Repository interface {
	// InsertGrant stores g. It returns false without error when a grant with
	// the same external order id already exists.
	InsertGrant(ctx context.Context, g *Grant) (bool, error)
	GetByExternalOrderID(ctx context.Context, externalOrderID string) (*Grant, error)
	ListGrants(ctx context.Context, sellerID uuid.UUID) ([]*Grant, error)
	// ListGrantsForUpdate loads the seller's grants and locks them until the
	// surrounding transaction ends.
	ListGrantsForUpdate(ctx context.Context, sellerID uuid.UUID) ([]*Grant, error)
	// DebitOne decrements remaining by one if it is still positive.
	DebitOne(ctx context.Context, grantID uuid.UUID) (bool, error)
	RecordConsumption(ctx context.Context, c *Consumption) error
	ListConsumptions(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]*Consumption, error)
}
