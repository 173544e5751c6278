package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/groupbuy"
)

// InstanceRepository implements groupbuy.Repository.
type InstanceRepository struct {
	q querier
}

const instanceColumns = `id, instance_id, title, product_id, product_name, base_price, min_participants, max_participants, current_participants, start_time, end_time, status, creator_id, bid_rule, winning_bid_id, status_reason, created_at, updated_at, closed_at, finished_at`

func (r *InstanceRepository) Create(ctx context.Context, inst *groupbuy.Instance) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO group_buy_instances
		(instance_id, title, product_id, product_name, base_price, min_participants, max_participants, current_participants, start_time, end_time, status, creator_id, bid_rule, winning_bid_id, status_reason, created_at, updated_at, closed_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING id
	`, inst.InstanceID, inst.Title, inst.Product.ProductID, inst.Product.Name, inst.Product.BasePrice, inst.MinParticipants, inst.MaxParticipants, inst.CurrentParticipants, inst.StartTime, inst.EndTime, inst.Status, inst.CreatorID, inst.BidRule, inst.WinningBidID, inst.StatusReason, inst.CreatedAt, inst.UpdatedAt, inst.ClosedAt, inst.FinishedAt).Scan(&inst.ID)
}

func (r *InstanceRepository) GetByID(ctx context.Context, instanceID uuid.UUID) (*groupbuy.Instance, error) {
	return scanInstance(r.q.QueryRow(ctx, `SELECT `+instanceColumns+` FROM group_buy_instances WHERE instance_id=$1`, instanceID))
}

func (r *InstanceRepository) GetForUpdate(ctx context.Context, instanceID uuid.UUID) (*groupbuy.Instance, error) {
	return scanInstance(r.q.QueryRow(ctx, `SELECT `+instanceColumns+` FROM group_buy_instances WHERE instance_id=$1 FOR UPDATE`, instanceID))
}

func (r *InstanceRepository) Update(ctx context.Context, inst *groupbuy.Instance) error {
	_, err := r.q.Exec(ctx, `
		UPDATE group_buy_instances
		SET current_participants=$1, status=$2, winning_bid_id=$3, status_reason=$4, updated_at=$5, closed_at=$6, finished_at=$7
		WHERE instance_id=$8
	`, inst.CurrentParticipants, inst.Status, inst.WinningBidID, inst.StatusReason, inst.UpdatedAt, inst.ClosedAt, inst.FinishedAt, inst.InstanceID)
	return err
}

func (r *InstanceRepository) List(ctx context.Context, f groupbuy.Filter, limit, offset int) ([]*groupbuy.Instance, error) {
	var w filter
	if f.Status != nil {
		w.add("status", "=", *f.Status)
	}
	if f.CreatorID != nil {
		w.add("creator_id", "=", *f.CreatorID)
	}
	query, args := paginate(`SELECT `+instanceColumns+` FROM group_buy_instances`+w.where(), w.args, "id DESC", limit, offset)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*groupbuy.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (r *InstanceRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query, args := paginate(`
		SELECT instance_id FROM group_buy_instances
		WHERE status=$1 AND end_time <= $2`, []interface{}{groupbuy.StatusRecruiting, now}, "end_time ASC", limit, 0)
	return scanIDs(ctx, r.q, query, args...)
}

func (r *InstanceRepository) CreateParticipation(ctx context.Context, p *groupbuy.Participation) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO participations
		(participation_id, instance_id, buyer_id, status, joined_at, withdrawn_at, decision, decided_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, p.ParticipationID, p.InstanceID, p.BuyerID, p.Status, p.JoinedAt, p.WithdrawnAt, p.Decision, p.DecidedAt).Scan(&p.ID)
}

func (r *InstanceRepository) UpdateParticipation(ctx context.Context, p *groupbuy.Participation) error {
	_, err := r.q.Exec(ctx, `
		UPDATE participations
		SET status=$1, joined_at=$2, withdrawn_at=$3, decision=$4, decided_at=$5
		WHERE participation_id=$6
	`, p.Status, p.JoinedAt, p.WithdrawnAt, p.Decision, p.DecidedAt, p.ParticipationID)
	return err
}

const participationColumns = `id, participation_id, instance_id, buyer_id, status, joined_at, withdrawn_at, decision, decided_at`

func (r *InstanceRepository) GetParticipation(ctx context.Context, instanceID, buyerID uuid.UUID) (*groupbuy.Participation, error) {
	row := r.q.QueryRow(ctx, `SELECT `+participationColumns+` FROM participations WHERE instance_id=$1 AND buyer_id=$2`, instanceID, buyerID)
	p, err := scanParticipation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *InstanceRepository) ListParticipations(ctx context.Context, instanceID uuid.UUID, activeOnly bool) ([]*groupbuy.Participation, error) {
	w := filter{}
	w.add("instance_id", "=", instanceID)
	if activeOnly {
		w.add("status", "=", groupbuy.ParticipationActive)
	}
	rows, err := r.q.Query(ctx, `SELECT `+participationColumns+` FROM participations`+w.where()+` ORDER BY id ASC`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*groupbuy.Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanInstance(row pgx.Row) (*groupbuy.Instance, error) {
	var i groupbuy.Instance
	if err := row.Scan(&i.ID, &i.InstanceID, &i.Title, &i.Product.ProductID, &i.Product.Name, &i.Product.BasePrice, &i.MinParticipants, &i.MaxParticipants, &i.CurrentParticipants, &i.StartTime, &i.EndTime, &i.Status, &i.CreatorID, &i.BidRule, &i.WinningBidID, &i.StatusReason, &i.CreatedAt, &i.UpdatedAt, &i.ClosedAt, &i.FinishedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &i, nil
}

func scanParticipation(row pgx.Row) (*groupbuy.Participation, error) {
	var p groupbuy.Participation
	if err := row.Scan(&p.ID, &p.ParticipationID, &p.InstanceID, &p.BuyerID, &p.Status, &p.JoinedAt, &p.WithdrawnAt, &p.Decision, &p.DecidedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanIDs(ctx context.Context, q querier, query string, args ...interface{}) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
