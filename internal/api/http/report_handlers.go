package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	appDispute "github.com/groupbuy-hub/groupbuy-hub/internal/application/dispute"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/dispute"
)

type evidenceRequest struct {
	URL         string `json:"url" validate:"required,url"`
	Description string `json:"description,omitempty" validate:"max=500"`
}

type createReportRequest struct {
	InstanceID uuid.UUID         `json:"instanceId" validate:"required"`
	ReportedID uuid.UUID         `json:"reportedId" validate:"required"`
	Type       string            `json:"type" validate:"required,oneof=BUYER_NO_SHOW SELLER_NO_SHOW"`
	Content    string            `json:"content" validate:"required,max=5000"`
	Evidence   []evidenceRequest `json:"evidence,omitempty" validate:"max=3,dive"`
}

type statementRequest struct {
	Content  string            `json:"content" validate:"required,max=5000"`
	Evidence []evidenceRequest `json:"evidence,omitempty" validate:"max=3,dive"`
}

type resolveRequest struct {
	Status  string `json:"status" validate:"required"`
	Comment string `json:"comment,omitempty" validate:"max=2000"`
}

func toEvidence(in []evidenceRequest) []dispute.Evidence {
	out := make([]dispute.Evidence, 0, len(in))
	for _, e := range in {
		out = append(out, dispute.Evidence{URL: e.URL, Description: e.Description})
	}
	return out
}

func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	var req createReportRequest
	if err := s.decodeBody(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	rep, err := s.disputeSvc.CreateReport(r.Context(), actor, appDispute.ReportRequest{
		InstanceID: req.InstanceID,
		ReportedID: req.ReportedID,
		Type:       dispute.ReportType(req.Type),
		Content:    req.Content,
		Evidence:   toEvidence(req.Evidence),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rep)
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	var filter dispute.ReportFilter
	if v := r.URL.Query().Get("status"); v != "" {
		st, ok := dispute.ParseReportStatus(v)
		if !ok {
			respondError(w, http.StatusBadRequest, "VALIDATION", "invalid status")
			return
		}
		filter.Status = &st
	}
	instanceID, err := parseOptionalUUID(r, "instanceId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid instanceId")
		return
	}
	filter.InstanceID = instanceID
	limit, offset := parseLimitOffset(r, 50, 200)
	items, err := s.disputeSvc.ListReports(r.Context(), actor, filter, limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "reportId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid report id")
		return
	}
	view, err := s.disputeSvc.GetReport(r.Context(), actor, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) editReport(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "reportId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid report id")
		return
	}
	var req statementRequest
	if err := s.decodeBody(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	rep, err := s.disputeSvc.EditReport(r.Context(), actor, id, req.Content, toEvidence(req.Evidence))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

func (s *Server) cancelReport(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "reportId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid report id")
		return
	}
	var req reasonRequest
	if err := s.decodeBody(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	rep, err := s.disputeSvc.CancelReport(r.Context(), actor, id, req.Reason)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

func (s *Server) createObjection(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "reportId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid report id")
		return
	}
	var req statementRequest
	if err := s.decodeBody(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	obj, err := s.disputeSvc.CreateObjection(r.Context(), actor, id, req.Content, toEvidence(req.Evidence))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, obj)
}

func (s *Server) getObjection(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "objectionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid objection id")
		return
	}
	obj, err := s.disputeSvc.GetObjection(r.Context(), actor, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, obj)
}

func (s *Server) editObjection(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "objectionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid objection id")
		return
	}
	var req statementRequest
	if err := s.decodeBody(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	obj, err := s.disputeSvc.EditObjection(r.Context(), actor, id, req.Content, toEvidence(req.Evidence))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, obj)
}

func (s *Server) resolveReport(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "reportId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid report id")
		return
	}
	var req resolveRequest
	if err := s.decodeBody(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	outcome, ok := dispute.ParseReportStatus(req.Status)
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid status")
		return
	}
	rep, err := s.disputeSvc.AdminResolve(r.Context(), actor, id, outcome, req.Comment)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

func (s *Server) resolveObjection(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	id, err := parseUUIDParam(r, "objectionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION", "invalid objection id")
		return
	}
	var req resolveRequest
	if err := s.decodeBody(r, &req); err != nil {
		respondBadRequest(w, err)
		return
	}
	obj, err := s.disputeSvc.AdminResolveObjection(r.Context(), actor, id, dispute.ObjectionStatus(strings.ToUpper(req.Status)), req.Comment)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, obj)
}
