package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/dispute"
)

type disputeRepository struct {
	s *session
}

func (r *disputeRepository) CreateReport(ctx context.Context, rep *dispute.Report) error {
	return r.s.view(func(st *state) error {
		rep.ID = st.nextID()
		st.reports[rep.ReportID] = copyReport(rep)
		return nil
	})
}

func (r *disputeRepository) GetReport(ctx context.Context, reportID uuid.UUID) (*dispute.Report, error) {
	var out *dispute.Report
	err := r.s.view(func(st *state) error {
		if rep, ok := st.reports[reportID]; ok {
			out = copyReport(rep)
		}
		return nil
	})
	return out, err
}

func (r *disputeRepository) GetReportForUpdate(ctx context.Context, reportID uuid.UUID) (*dispute.Report, error) {
	return r.GetReport(ctx, reportID)
}

func (r *disputeRepository) ListReports(ctx context.Context, filter dispute.ReportFilter, limit, offset int) ([]*dispute.Report, error) {
	var out []*dispute.Report
	err := r.s.view(func(st *state) error {
		for _, rep := range st.reports {
			if filter.Status != nil && rep.Status != *filter.Status {
				continue
			}
			if filter.InstanceID != nil && rep.InstanceID != *filter.InstanceID {
				continue
			}
			if filter.PartyID != nil && rep.ReporterID != *filter.PartyID && rep.ReportedID != *filter.PartyID {
				continue
			}
			out = append(out, copyReport(rep))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, limit, offset), err
}

func (r *disputeRepository) EditReport(ctx context.Context, reportID uuid.UUID, content string, evidence []dispute.Evidence, now time.Time) (bool, error) {
	applied := false
	err := r.s.view(func(st *state) error {
		rep, ok := st.reports[reportID]
		if !ok || rep.EditCount != 0 || rep.Status != dispute.ReportPending || rep.Cancelled {
			return nil
		}
		c := copyReport(rep)
		c.Content = content
		c.Evidence = append([]dispute.Evidence{}, evidence...)
		c.EditCount++
		c.UpdatedAt = now
		st.reports[reportID] = c
		applied = true
		return nil
	})
	return applied, err
}

func (r *disputeRepository) UpdateReport(ctx context.Context, rep *dispute.Report) error {
	return r.s.view(func(st *state) error {
		st.reports[rep.ReportID] = copyReport(rep)
		return nil
	})
}

func (r *disputeRepository) CreateObjection(ctx context.Context, o *dispute.Objection) (bool, error) {
	created := false
	err := r.s.view(func(st *state) error {
		for _, existing := range st.objections {
			if existing.ReportID == o.ReportID {
				return nil
			}
		}
		o.ID = st.nextID()
		st.objections[o.ObjectionID] = copyObjection(o)
		created = true
		return nil
	})
	return created, err
}

func (r *disputeRepository) GetObjection(ctx context.Context, objectionID uuid.UUID) (*dispute.Objection, error) {
	var out *dispute.Objection
	err := r.s.view(func(st *state) error {
		if o, ok := st.objections[objectionID]; ok {
			out = copyObjection(o)
		}
		return nil
	})
	return out, err
}

func (r *disputeRepository) GetObjectionForUpdate(ctx context.Context, objectionID uuid.UUID) (*dispute.Objection, error) {
	return r.GetObjection(ctx, objectionID)
}

func (r *disputeRepository) GetObjectionByReport(ctx context.Context, reportID uuid.UUID) (*dispute.Objection, error) {
	var out *dispute.Objection
	err := r.s.view(func(st *state) error {
		for _, o := range st.objections {
			if o.ReportID == reportID {
				out = copyObjection(o)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *disputeRepository) EditObjection(ctx context.Context, objectionID uuid.UUID, content string, evidence []dispute.Evidence, now time.Time) (bool, error) {
	applied := false
	err := r.s.view(func(st *state) error {
		o, ok := st.objections[objectionID]
		if !ok || o.EditCount != 0 || o.Status != dispute.ObjectionPending {
			return nil
		}
		c := copyObjection(o)
		c.Content = content
		c.Evidence = append([]dispute.Evidence{}, evidence...)
		c.EditCount++
		c.UpdatedAt = now
		st.objections[objectionID] = c
		applied = true
		return nil
	})
	return applied, err
}

func (r *disputeRepository) UpdateObjection(ctx context.Context, o *dispute.Objection) error {
	return r.s.view(func(st *state) error {
		st.objections[o.ObjectionID] = copyObjection(o)
		return nil
	})
}
