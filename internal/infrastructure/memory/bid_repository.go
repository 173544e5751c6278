package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/bid"
)

type bidRepository struct {
	s *session
}

func (r *bidRepository) Create(ctx context.Context, b *bid.Bid) error {
	return r.s.view(func(st *state) error {
		b.ID = st.nextID()
		st.bids[b.BidID] = shallow(b)
		return nil
	})
}

func (r *bidRepository) Update(ctx context.Context, b *bid.Bid) error {
	return r.s.view(func(st *state) error {
		st.bids[b.BidID] = shallow(b)
		return nil
	})
}

func (r *bidRepository) GetByID(ctx context.Context, bidID uuid.UUID) (*bid.Bid, error) {
	var out *bid.Bid
	err := r.s.view(func(st *state) error {
		if b, ok := st.bids[bidID]; ok {
			out = shallow(b)
		}
		return nil
	})
	return out, err
}

func (r *bidRepository) GetPending(ctx context.Context, instanceID, sellerID uuid.UUID) (*bid.Bid, error) {
	var out *bid.Bid
	err := r.s.view(func(st *state) error {
		for _, b := range st.bids {
			if b.InstanceID == instanceID && b.SellerID == sellerID && b.IsPending() {
				out = shallow(b)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *bidRepository) ListByInstance(ctx context.Context, instanceID uuid.UUID) ([]*bid.Bid, error) {
	var out []*bid.Bid
	err := r.s.view(func(st *state) error {
		for _, b := range st.bids {
			if b.InstanceID == instanceID {
				out = append(out, shallow(b))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *bidRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID, instanceID *uuid.UUID, limit, offset int) ([]*bid.Bid, error) {
	var out []*bid.Bid
	err := r.s.view(func(st *state) error {
		for _, b := range st.bids {
			if b.SellerID != sellerID || (instanceID != nil && b.InstanceID != *instanceID) {
				continue
			}
			out = append(out, shallow(b))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, limit, offset), err
}
