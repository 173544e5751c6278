package decision

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines final-decision persistence.
type Repository interface {
	CreateBatch(ctx context.Context, records []*Record) error
	Update(ctx context.Context, r *Record) error
	ListByInstance(ctx context.Context, instanceID uuid.UUID) ([]*Record, error)
	// ListOverdueInstances returns instances in a final-selection phase
	// holding at least one pending record past its deadline.
	ListOverdueInstances(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}
