package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/dispute"
)

// DisputeRepository implements dispute.Repository.
type DisputeRepository struct {
	q querier
}

const reportColumns = `id, report_id, instance_id, reporter_id, reported_id, type, content, evidence, status, admin_comment, edit_count, cancelled, cancel_reason, created_at, updated_at, processed_at, processed_by`

const objectionColumns = `id, objection_id, report_id, author_id, content, evidence, status, admin_response, edit_count, created_at, updated_at, processed_at, processed_by`

func marshalEvidence(evidence []dispute.Evidence) ([]byte, error) {
	if evidence == nil {
		evidence = []dispute.Evidence{}
	}
	raw, err := json.Marshal(evidence)
	if err != nil {
		return nil, fmt.Errorf("marshal evidence: %w", err)
	}
	return raw, nil
}

func (r *DisputeRepository) CreateReport(ctx context.Context, rep *dispute.Report) error {
	evidence, err := marshalEvidence(rep.Evidence)
	if err != nil {
		return err
	}
	return r.q.QueryRow(ctx, `
		INSERT INTO no_show_reports
		(report_id, instance_id, reporter_id, reported_id, type, content, evidence, status, admin_comment, edit_count, cancelled, cancel_reason, created_at, updated_at, processed_at, processed_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id
	`, rep.ReportID, rep.InstanceID, rep.ReporterID, rep.ReportedID, rep.Type, rep.Content, evidence, rep.Status, rep.AdminComment, rep.EditCount, rep.Cancelled, rep.CancelReason, rep.CreatedAt, rep.UpdatedAt, rep.ProcessedAt, rep.ProcessedBy).Scan(&rep.ID)
}

func (r *DisputeRepository) GetReport(ctx context.Context, reportID uuid.UUID) (*dispute.Report, error) {
	return scanReportRow(r.q.QueryRow(ctx, `SELECT `+reportColumns+` FROM no_show_reports WHERE report_id=$1`, reportID))
}

func (r *DisputeRepository) GetReportForUpdate(ctx context.Context, reportID uuid.UUID) (*dispute.Report, error) {
	return scanReportRow(r.q.QueryRow(ctx, `SELECT `+reportColumns+` FROM no_show_reports WHERE report_id=$1 FOR UPDATE`, reportID))
}

func (r *DisputeRepository) ListReports(ctx context.Context, f dispute.ReportFilter, limit, offset int) ([]*dispute.Report, error) {
	var w filter
	if f.Status != nil {
		w.add("status", "=", *f.Status)
	}
	if f.InstanceID != nil {
		w.add("instance_id", "=", *f.InstanceID)
	}
	if f.PartyID != nil {
		w.raw("(reporter_id=$? OR reported_id=$?)", *f.PartyID)
	}
	query, args := paginate(`SELECT `+reportColumns+` FROM no_show_reports`+w.where(), w.args, "id DESC", limit, offset)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*dispute.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (r *DisputeRepository) EditReport(ctx context.Context, reportID uuid.UUID, content string, evidence []dispute.Evidence, now time.Time) (bool, error) {
	raw, err := marshalEvidence(evidence)
	if err != nil {
		return false, err
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE no_show_reports
		SET content=$1, evidence=$2, edit_count=edit_count+1, updated_at=$3
		WHERE report_id=$4 AND edit_count=0 AND status=$5 AND NOT cancelled
	`, content, raw, now, reportID, dispute.ReportPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DisputeRepository) UpdateReport(ctx context.Context, rep *dispute.Report) error {
	_, err := r.q.Exec(ctx, `
		UPDATE no_show_reports
		SET status=$1, admin_comment=$2, cancelled=$3, cancel_reason=$4, updated_at=$5, processed_at=$6, processed_by=$7
		WHERE report_id=$8
	`, rep.Status, rep.AdminComment, rep.Cancelled, rep.CancelReason, rep.UpdatedAt, rep.ProcessedAt, rep.ProcessedBy, rep.ReportID)
	return err
}

func (r *DisputeRepository) CreateObjection(ctx context.Context, o *dispute.Objection) (bool, error) {
	evidence, err := marshalEvidence(o.Evidence)
	if err != nil {
		return false, err
	}
	err = r.q.QueryRow(ctx, `
		INSERT INTO report_objections
		(objection_id, report_id, author_id, content, evidence, status, admin_response, edit_count, created_at, updated_at, processed_at, processed_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (report_id) DO NOTHING
		RETURNING id
	`, o.ObjectionID, o.ReportID, o.AuthorID, o.Content, evidence, o.Status, o.AdminResponse, o.EditCount, o.CreatedAt, o.UpdatedAt, o.ProcessedAt, o.ProcessedBy).Scan(&o.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *DisputeRepository) GetObjection(ctx context.Context, objectionID uuid.UUID) (*dispute.Objection, error) {
	return scanObjection(r.q.QueryRow(ctx, `SELECT `+objectionColumns+` FROM report_objections WHERE objection_id=$1`, objectionID))
}

func (r *DisputeRepository) GetObjectionForUpdate(ctx context.Context, objectionID uuid.UUID) (*dispute.Objection, error) {
	return scanObjection(r.q.QueryRow(ctx, `SELECT `+objectionColumns+` FROM report_objections WHERE objection_id=$1 FOR UPDATE`, objectionID))
}

func (r *DisputeRepository) GetObjectionByReport(ctx context.Context, reportID uuid.UUID) (*dispute.Objection, error) {
	return scanObjection(r.q.QueryRow(ctx, `SELECT `+objectionColumns+` FROM report_objections WHERE report_id=$1`, reportID))
}

func (r *DisputeRepository) EditObjection(ctx context.Context, objectionID uuid.UUID, content string, evidence []dispute.Evidence, now time.Time) (bool, error) {
	raw, err := marshalEvidence(evidence)
	if err != nil {
		return false, err
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE report_objections
		SET content=$1, evidence=$2, edit_count=edit_count+1, updated_at=$3
		WHERE objection_id=$4 AND edit_count=0 AND status=$5
	`, content, raw, now, objectionID, dispute.ObjectionPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DisputeRepository) UpdateObjection(ctx context.Context, o *dispute.Objection) error {
	_, err := r.q.Exec(ctx, `
		UPDATE report_objections
		SET status=$1, admin_response=$2, updated_at=$3, processed_at=$4, processed_by=$5
		WHERE objection_id=$6
	`, o.Status, o.AdminResponse, o.UpdatedAt, o.ProcessedAt, o.ProcessedBy, o.ObjectionID)
	return err
}

func scanReportRow(row pgx.Row) (*dispute.Report, error) {
	rep, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rep, err
}

func scanReport(row pgx.Row) (*dispute.Report, error) {
	var rep dispute.Report
	var evidence []byte
	if err := row.Scan(&rep.ID, &rep.ReportID, &rep.InstanceID, &rep.ReporterID, &rep.ReportedID, &rep.Type, &rep.Content, &evidence, &rep.Status, &rep.AdminComment, &rep.EditCount, &rep.Cancelled, &rep.CancelReason, &rep.CreatedAt, &rep.UpdatedAt, &rep.ProcessedAt, &rep.ProcessedBy); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(evidence, &rep.Evidence); err != nil {
		return nil, fmt.Errorf("decode evidence: %w", err)
	}
	return &rep, nil
}

func scanObjection(row pgx.Row) (*dispute.Objection, error) {
	var o dispute.Objection
	var evidence []byte
	if err := row.Scan(&o.ID, &o.ObjectionID, &o.ReportID, &o.AuthorID, &o.Content, &evidence, &o.Status, &o.AdminResponse, &o.EditCount, &o.CreatedAt, &o.UpdatedAt, &o.ProcessedAt, &o.ProcessedBy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(evidence, &o.Evidence); err != nil {
		return nil, fmt.Errorf("decode evidence: %w", err)
	}
	return &o, nil
}
