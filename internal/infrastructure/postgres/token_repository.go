package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/token"
)

// TokenRepository implements token.Repository.
type TokenRepository struct {
	q querier
}

const grantColumns = `id, grant_id, seller_id, type, source, quantity, remaining, issued_at, expires_at, external_order_id, granted_by`

func (r *TokenRepository) InsertGrant(ctx context.Context, g *token.Grant) (bool, error) {
	err := r.q.QueryRow(ctx, `
		INSERT INTO token_grants
		(grant_id, seller_id, type, source, quantity, remaining, issued_at, expires_at, external_order_id, granted_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (external_order_id) WHERE external_order_id IS NOT NULL DO NOTHING
		RETURNING id
	`, g.GrantID, g.SellerID, g.Type, g.Source, g.Quantity, g.Remaining, g.IssuedAt, g.ExpiresAt, g.ExternalOrderID, g.GrantedBy).Scan(&g.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *TokenRepository) GetByExternalOrderID(ctx context.Context, externalOrderID string) (*token.Grant, error) {
	g, err := scanGrant(r.q.QueryRow(ctx, `SELECT `+grantColumns+` FROM token_grants WHERE external_order_id=$1`, externalOrderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return g, err
}

func (r *TokenRepository) ListGrants(ctx context.Context, sellerID uuid.UUID) ([]*token.Grant, error) {
	return r.listGrants(ctx, `SELECT `+grantColumns+` FROM token_grants WHERE seller_id=$1 ORDER BY id ASC`, sellerID)
}

func (r *TokenRepository) ListGrantsForUpdate(ctx context.Context, sellerID uuid.UUID) ([]*token.Grant, error) {
	return r.listGrants(ctx, `SELECT `+grantColumns+` FROM token_grants WHERE seller_id=$1 ORDER BY id ASC FOR UPDATE`, sellerID)
}

func (r *TokenRepository) DebitOne(ctx context.Context, grantID uuid.UUID) (bool, error) {
	tag, err := r.q.Exec(ctx, `UPDATE token_grants SET remaining = remaining - 1 WHERE grant_id=$1 AND remaining > 0`, grantID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TokenRepository) RecordConsumption(ctx context.Context, c *token.Consumption) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO token_consumptions
		(consumption_id, seller_id, grant_id, instance_id, bid_id, unlimited, consumed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, c.ConsumptionID, c.SellerID, c.GrantID, c.InstanceID, c.BidID, c.Unlimited, c.ConsumedAt).Scan(&c.ID)
}

func (r *TokenRepository) ListConsumptions(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]*token.Consumption, error) {
	query, args := paginate(`
		SELECT id, consumption_id, seller_id, grant_id, instance_id, bid_id, unlimited, consumed_at
		FROM token_consumptions WHERE seller_id=$1`, []interface{}{sellerID}, "id DESC", limit, offset)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*token.Consumption
	for rows.Next() {
		var c token.Consumption
		if err := rows.Scan(&c.ID, &c.ConsumptionID, &c.SellerID, &c.GrantID, &c.InstanceID, &c.BidID, &c.Unlimited, &c.ConsumedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *TokenRepository) listGrants(ctx context.Context, query string, args ...interface{}) ([]*token.Grant, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*token.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanGrant(row pgx.Row) (*token.Grant, error) {
	var g token.Grant
	if err := row.Scan(&g.ID, &g.GrantID, &g.SellerID, &g.Type, &g.Source, &g.Quantity, &g.Remaining, &g.IssuedAt, &g.ExpiresAt, &g.ExternalOrderID, &g.GrantedBy); err != nil {
		return nil, err
	}
	return &g, nil
}
