package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/audit"
)

// AuditRepository keeps audit logs outside the transactional state; audit
// writes happen after commit.
type AuditRepository struct {
	mu   sync.RWMutex
	logs []*audit.Log
}

func (r *AuditRepository) Create(ctx context.Context, l *audit.Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.ID = int64(len(r.logs) + 1)
	c := *l
	r.logs = append(r.logs, &c)
	return nil
}

func (r *AuditRepository) GetByID(ctx context.Context, auditID uuid.UUID) (*audit.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.logs {
		if l.AuditID == auditID {
			c := *l
			return &c, nil
		}
	}
	return nil, nil
}

func (r *AuditRepository) Query(ctx context.Context, filter audit.Filter, limit, offset int) ([]*audit.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*audit.Log
	for i := len(r.logs) - 1; i >= 0; i-- {
		l := r.logs[i]
		if filter.EntityType != nil && l.EntityType != *filter.EntityType {
			continue
		}
		if filter.EntityID != nil && l.EntityID != *filter.EntityID {
			continue
		}
		if filter.Actor != nil && l.Actor != *filter.Actor {
			continue
		}
		if filter.Since != nil && l.CreatedAt.Before(*filter.Since) {
			continue
		}
		c := *l
		out = append(out, &c)
	}
	return page(out, limit, offset), nil
}
