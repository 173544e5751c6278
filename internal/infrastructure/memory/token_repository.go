package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/token"
)

type tokenRepository struct {
	s *session
}

func (r *tokenRepository) InsertGrant(ctx context.Context, g *token.Grant) (bool, error) {
	inserted := false
	err := r.s.view(func(st *state) error {
		if g.ExternalOrderID != nil {
			for _, existing := range st.grants {
				if existing.ExternalOrderID != nil && *existing.ExternalOrderID == *g.ExternalOrderID {
					return nil
				}
			}
		}
		g.ID = st.nextID()
		st.grants[g.GrantID] = shallow(g)
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *tokenRepository) GetByExternalOrderID(ctx context.Context, externalOrderID string) (*token.Grant, error) {
	var out *token.Grant
	err := r.s.view(func(st *state) error {
		for _, g := range st.grants {
			if g.ExternalOrderID != nil && *g.ExternalOrderID == externalOrderID {
				out = shallow(g)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *tokenRepository) ListGrants(ctx context.Context, sellerID uuid.UUID) ([]*token.Grant, error) {
	var out []*token.Grant
	err := r.s.view(func(st *state) error {
		for _, g := range st.grants {
			if g.SellerID == sellerID {
				out = append(out, shallow(g))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *tokenRepository) ListGrantsForUpdate(ctx context.Context, sellerID uuid.UUID) ([]*token.Grant, error) {
	return r.ListGrants(ctx, sellerID)
}

func (r *tokenRepository) DebitOne(ctx context.Context, grantID uuid.UUID) (bool, error) {
	debited := false
	err := r.s.view(func(st *state) error {
		g, ok := st.grants[grantID]
		if !ok || g.Remaining <= 0 {
			return nil
		}
		c := shallow(g)
		c.Remaining--
		st.grants[grantID] = c
		debited = true
		return nil
	})
	return debited, err
}

func (r *tokenRepository) RecordConsumption(ctx context.Context, c *token.Consumption) error {
	return r.s.view(func(st *state) error {
		c.ID = st.nextID()
		st.consumptions[c.ConsumptionID] = shallow(c)
		return nil
	})
}

func (r *tokenRepository) ListConsumptions(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]*token.Consumption, error) {
	var out []*token.Consumption
	err := r.s.view(func(st *state) error {
		for _, c := range st.consumptions {
			if c.SellerID == sellerID {
				out = append(out, shallow(c))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, limit, offset), err
}
