package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/groupbuy"
)

type instanceRepository struct {
	s *session
}

func (r *instanceRepository) Create(ctx context.Context, inst *groupbuy.Instance) error {
	return r.s.view(func(st *state) error {
		inst.ID = st.nextID()
		st.instances[inst.InstanceID] = shallow(inst)
		return nil
	})
}

func (r *instanceRepository) GetByID(ctx context.Context, instanceID uuid.UUID) (*groupbuy.Instance, error) {
	var out *groupbuy.Instance
	err := r.s.view(func(st *state) error {
		if inst, ok := st.instances[instanceID]; ok {
			out = shallow(inst)
		}
		return nil
	})
	return out, err
}

// GetForUpdate needs no extra locking: transactions are already serialized.
func (r *instanceRepository) GetForUpdate(ctx context.Context, instanceID uuid.UUID) (*groupbuy.Instance, error) {
	return r.GetByID(ctx, instanceID)
}

func (r *instanceRepository) Update(ctx context.Context, inst *groupbuy.Instance) error {
	return r.s.view(func(st *state) error {
		st.instances[inst.InstanceID] = shallow(inst)
		return nil
	})
}

func (r *instanceRepository) List(ctx context.Context, filter groupbuy.Filter, limit, offset int) ([]*groupbuy.Instance, error) {
	var out []*groupbuy.Instance
	err := r.s.view(func(st *state) error {
		for _, inst := range st.instances {
			if filter.Status != nil && inst.Status != *filter.Status {
				continue
			}
			if filter.CreatorID != nil && inst.CreatorID != *filter.CreatorID {
				continue
			}
			out = append(out, shallow(inst))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, limit, offset), err
}

func (r *instanceRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var due []*groupbuy.Instance
	err := r.s.view(func(st *state) error {
		for _, inst := range st.instances {
			if inst.Status == groupbuy.StatusRecruiting && !now.Before(inst.EndTime) {
				due = append(due, inst)
			}
		}
		return nil
	})
	sort.Slice(due, func(i, j int) bool { return due[i].EndTime.Before(due[j].EndTime) })
	due = page(due, limit, 0)
	ids := make([]uuid.UUID, 0, len(due))
	for _, inst := range due {
		ids = append(ids, inst.InstanceID)
	}
	return ids, err
}

func (r *instanceRepository) CreateParticipation(ctx context.Context, p *groupbuy.Participation) error {
	return r.s.view(func(st *state) error {
		p.ID = st.nextID()
		st.participations[p.ParticipationID] = shallow(p)
		return nil
	})
}

func (r *instanceRepository) UpdateParticipation(ctx context.Context, p *groupbuy.Participation) error {
	return r.s.view(func(st *state) error {
		st.participations[p.ParticipationID] = shallow(p)
		return nil
	})
}

func (r *instanceRepository) GetParticipation(ctx context.Context, instanceID, buyerID uuid.UUID) (*groupbuy.Participation, error) {
	var out *groupbuy.Participation
	err := r.s.view(func(st *state) error {
		for _, p := range st.participations {
			if p.InstanceID == instanceID && p.BuyerID == buyerID {
				out = shallow(p)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *instanceRepository) ListParticipations(ctx context.Context, instanceID uuid.UUID, activeOnly bool) ([]*groupbuy.Participation, error) {
	var out []*groupbuy.Participation
	err := r.s.view(func(st *state) error {
		for _, p := range st.participations {
			if p.InstanceID != instanceID || (activeOnly && !p.IsActive()) {
				continue
			}
			out = append(out, shallow(p))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}
