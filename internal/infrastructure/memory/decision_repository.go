package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/decision"
)

type decisionRepository struct {
	s *session
}

func (r *decisionRepository) CreateBatch(ctx context.Context, records []*decision.Record) error {
	return r.s.view(func(st *state) error {
		for _, rec := range records {
			rec.ID = st.nextID()
			st.decisions[rec.RecordID] = shallow(rec)
		}
		return nil
	})
}

func (r *decisionRepository) Update(ctx context.Context, rec *decision.Record) error {
	return r.s.view(func(st *state) error {
		st.decisions[rec.RecordID] = shallow(rec)
		return nil
	})
}

func (r *decisionRepository) ListByInstance(ctx context.Context, instanceID uuid.UUID) ([]*decision.Record, error) {
	var out []*decision.Record
	err := r.s.view(func(st *state) error {
		for _, rec := range st.decisions {
			if rec.InstanceID == instanceID {
				out = append(out, shallow(rec))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *decisionRepository) ListOverdueInstances(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.s.view(func(st *state) error {
		seen := map[uuid.UUID]bool{}
		for _, rec := range st.decisions {
			if seen[rec.InstanceID] || !rec.Overdue(now) {
				continue
			}
			inst, ok := st.instances[rec.InstanceID]
			if !ok || !inst.Status.IsFinalSelection() {
				continue
			}
			seen[rec.InstanceID] = true
			ids = append(ids, rec.InstanceID)
		}
		return nil
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return page(ids, limit, 0), err
}
