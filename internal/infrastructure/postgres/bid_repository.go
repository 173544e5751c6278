package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/bid"
)

// BidRepository implements bid.Repository.
type BidRepository struct {
	q querier
}

const bidColumns = `id, bid_id, instance_id, seller_id, amount, terms, status, revision, client_request_id, submitted_at, withdrawn_at, resolved_at, created_at, updated_at`

func (r *BidRepository) Create(ctx context.Context, b *bid.Bid) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO bids
		(bid_id, instance_id, seller_id, amount, terms, status, revision, client_request_id, submitted_at, withdrawn_at, resolved_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id
	`, b.BidID, b.InstanceID, b.SellerID, b.Amount, b.Terms, b.Status, b.Revision, b.ClientRequestID, b.SubmittedAt, b.WithdrawnAt, b.ResolvedAt, b.CreatedAt, b.UpdatedAt).Scan(&b.ID)
}

func (r *BidRepository) Update(ctx context.Context, b *bid.Bid) error {
	_, err := r.q.Exec(ctx, `
		UPDATE bids
		SET amount=$1, terms=$2, status=$3, revision=$4, client_request_id=$5, submitted_at=$6, withdrawn_at=$7, resolved_at=$8, updated_at=$9
		WHERE bid_id=$10
	`, b.Amount, b.Terms, b.Status, b.Revision, b.ClientRequestID, b.SubmittedAt, b.WithdrawnAt, b.ResolvedAt, b.UpdatedAt, b.BidID)
	return err
}

func (r *BidRepository) GetByID(ctx context.Context, bidID uuid.UUID) (*bid.Bid, error) {
	return scanBidRow(r.q.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE bid_id=$1`, bidID))
}

func (r *BidRepository) GetPending(ctx context.Context, instanceID, sellerID uuid.UUID) (*bid.Bid, error) {
	return scanBidRow(r.q.QueryRow(ctx, `
		SELECT `+bidColumns+` FROM bids
		WHERE instance_id=$1 AND seller_id=$2 AND status=$3
	`, instanceID, sellerID, bid.StatusPending))
}

func (r *BidRepository) ListByInstance(ctx context.Context, instanceID uuid.UUID) ([]*bid.Bid, error) {
	return r.list(ctx, `SELECT `+bidColumns+` FROM bids WHERE instance_id=$1 ORDER BY id ASC`, instanceID)
}

func (r *BidRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID, instanceID *uuid.UUID, limit, offset int) ([]*bid.Bid, error) {
	var w filter
	w.add("seller_id", "=", sellerID)
	if instanceID != nil {
		w.add("instance_id", "=", *instanceID)
	}
	query, args := paginate(`SELECT `+bidColumns+` FROM bids`+w.where(), w.args, "id DESC", limit, offset)
	return r.list(ctx, query, args...)
}

func (r *BidRepository) list(ctx context.Context, query string, args ...interface{}) ([]*bid.Bid, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*bid.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBidRow(row pgx.Row) (*bid.Bid, error) {
	b, err := scanBid(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func scanBid(row pgx.Row) (*bid.Bid, error) {
	var b bid.Bid
	if err := row.Scan(&b.ID, &b.BidID, &b.InstanceID, &b.SellerID, &b.Amount, &b.Terms, &b.Status, &b.Revision, &b.ClientRequestID, &b.SubmittedAt, &b.WithdrawnAt, &b.ResolvedAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}
