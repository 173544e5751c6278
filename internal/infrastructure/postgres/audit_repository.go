package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/audit"
)

// AuditRepository implements audit.Repository.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

const auditColumns = `id, audit_id, entity_type, entity_id, action, actor, actor_role, reason, risk_level, new_values, signature, created_at`

func (r *AuditRepository) Create(ctx context.Context, entry *audit.Log) error {
	var values []byte
	if len(entry.NewValues) > 0 {
		values = entry.NewValues
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO audit_logs
		(audit_id, entity_type, entity_id, action, actor, actor_role, reason, risk_level, new_values, signature, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`, entry.AuditID, entry.EntityType, entry.EntityID, entry.Action, entry.Actor, entry.ActorRole, entry.Reason, entry.RiskLevel, values, entry.Signature, entry.CreatedAt).Scan(&entry.ID)
}

func (r *AuditRepository) GetByID(ctx context.Context, auditID uuid.UUID) (*audit.Log, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE audit_id=$1`, auditID)
	l, err := scanAudit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

func (r *AuditRepository) Query(ctx context.Context, f audit.Filter, limit, offset int) ([]*audit.Log, error) {
	var w filter
	if f.EntityType != nil {
		w.add("entity_type", "=", *f.EntityType)
	}
	if f.EntityID != nil {
		w.add("entity_id", "=", *f.EntityID)
	}
	if f.Actor != nil {
		w.add("actor", "=", *f.Actor)
	}
	if f.Since != nil {
		w.add("created_at", " >= ", *f.Since)
	}
	query, args := paginate(`SELECT `+auditColumns+` FROM audit_logs`+w.where(), w.args, "created_at DESC, id DESC", limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*audit.Log
	for rows.Next() {
		l, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanAudit(row pgx.Row) (*audit.Log, error) {
	var l audit.Log
	var values []byte
	if err := row.Scan(&l.ID, &l.AuditID, &l.EntityType, &l.EntityID, &l.Action, &l.Actor, &l.ActorRole, &l.Reason, &l.RiskLevel, &values, &l.Signature, &l.CreatedAt); err != nil {
		return nil, err
	}
	if len(values) > 0 {
		l.NewValues = values
	}
	return &l, nil
}
