package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/decision"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/groupbuy"
)

// DecisionRepository implements decision.Repository.
type DecisionRepository struct {
	q querier
}

func (r *DecisionRepository) CreateBatch(ctx context.Context, records []*decision.Record) error {
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
			INSERT INTO decision_records
			(record_id, instance_id, party_id, role, decision, deadline, decided_at, lapsed, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			RETURNING id
		`, rec.RecordID, rec.InstanceID, rec.PartyID, rec.Role, rec.Decision, rec.Deadline, rec.DecidedAt, rec.Lapsed, rec.CreatedAt).
			QueryRow(func(row pgx.Row) error { return row.Scan(&rec.ID) })
	}
	return r.q.SendBatch(ctx, batch).Close()
}

func (r *DecisionRepository) Update(ctx context.Context, rec *decision.Record) error {
	_, err := r.q.Exec(ctx, `
		UPDATE decision_records SET decision=$1, decided_at=$2, lapsed=$3 WHERE record_id=$4
	`, rec.Decision, rec.DecidedAt, rec.Lapsed, rec.RecordID)
	return err
}

func (r *DecisionRepository) ListByInstance(ctx context.Context, instanceID uuid.UUID) ([]*decision.Record, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, record_id, instance_id, party_id, role, decision, deadline, decided_at, lapsed, created_at
		FROM decision_records WHERE instance_id=$1 ORDER BY id ASC
	`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*decision.Record
	for rows.Next() {
		var rec decision.Record
		if err := rows.Scan(&rec.ID, &rec.RecordID, &rec.InstanceID, &rec.PartyID, &rec.Role, &rec.Decision, &rec.Deadline, &rec.DecidedAt, &rec.Lapsed, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *DecisionRepository) ListOverdueInstances(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query, args := paginate(`
		SELECT DISTINCT d.instance_id FROM decision_records d
		JOIN group_buy_instances i ON i.instance_id = d.instance_id
		WHERE d.decision=$1 AND d.deadline <= $2 AND i.status IN ($3, $4)`,
		[]interface{}{decision.DecisionPending, now, groupbuy.StatusFinalSelectionBuyers, groupbuy.StatusFinalSelectionSeller},
		"d.instance_id", limit, 0)
	return scanIDs(ctx, r.q, query, args...)
}
