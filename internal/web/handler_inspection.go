package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vbonduro/renocheck/internal/checklist"
	"github.com/vbonduro/renocheck/internal/inspection"
)

const maxPatchSize = 64 << 20

type inspectionResponse struct {
	InspectionID   string              `json:"inspectionId"`
	State          inspection.State    `json:"state"`
	Status         string              `json:"status"`
	CurrentSection checklist.SectionID `json:"currentSection,omitempty"`
	Progress       int                 `json:"progress"`
	Document       *checklist.Document `json:"document"`
}

type validationResponse struct {
	Progress      int                   `json:"progress"`
	FullyReported bool                  `json:"fullyReported"`
	Order         []checklist.SectionID `json:"order"`
	Incomplete    *checklist.Incomplete `json:"incomplete,omitempty"`
}

type finalizeRequest struct {
	CompletedBy     string         `json:"completedBy"`
	VisitDate       string         `json:"visitDate"`
	RequireComplete bool           `json:"requireComplete"`
	Fields          map[string]any `json:"fields"`
}

// session resolves the path into a loaded session. It writes the error
// response itself and returns nil when the request cannot proceed.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *inspection.Session {
	t, err := checklist.ParseType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil
	}
	key := inspection.Key{PropertyID: chi.URLParam(r, "propertyID"), Type: t}
	sess, err := s.sessions.Open(r.Context(), key)
	if err != nil {
		s.writeFailure(w, r, "failed to open inspection", err)
		return nil
	}
	return sess
}

func (s *Server) handleGetInspection(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, inspectionView(sess))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	changed, err := sess.Refresh(r.Context())
	if err != nil {
		s.writeFailure(w, r, "failed to refresh inspection", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

func (s *Server) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	id := checklist.SectionID(chi.URLParam(r, "sectionID"))
	if !id.Valid() {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown section %q", id))
		return
	}
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var patch checklist.SectionPatch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPatchSize)).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid section patch")
		return
	}
	if err := validatePatch(patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := sess.UpdateSection(id, patch); err != nil {
		s.writeFailure(w, r, "failed to update section", err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Document().Sections[id])
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	res, err := sess.SaveCurrentSection(r.Context())
	if err != nil {
		s.writeFailure(w, r, "failed to save section", err)
		return
	}
	status := http.StatusOK
	switch {
	case res.Skipped:
		status = http.StatusAccepted
	case !res.Complete():
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, res)
}

func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	doc := sess.Document()
	inc := checklist.FirstIncompleteSection(doc)
	writeJSON(w, http.StatusOK, validationResponse{
		Progress:      checklist.Progress(doc),
		FullyReported: inc == nil,
		Order:         checklist.SectionOrder(doc.Type),
		Incomplete:    inc,
	})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var body finalizeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid finalize request")
			return
		}
	}
	req := inspection.FinalizeRequest{
		CompletedBy:     body.CompletedBy,
		RequireComplete: body.RequireComplete,
		Fields:          body.Fields,
	}
	if body.VisitDate != "" {
		visit, err := parseDate(body.VisitDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "visitDate must be YYYY-MM-DD or RFC 3339")
			return
		}
		req.VisitDate = &visit
	}

	res, err := sess.FinalizeChecklist(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, inspection.ErrPartialSave) && res != nil:
			s.logger.Error("finalize stopped by partial save", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusBadGateway, res)
			return
		case errors.Is(err, inspection.ErrNotCompleted) && res != nil:
			// Saved is set in the body; the client only needs to retry.
			s.logger.Error("finalize saved but did not complete", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, res)
			return
		}
		s.writeFailure(w, r, "failed to finalize inspection", err)
		return
	}
	status := http.StatusOK
	if !res.Completed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func inspectionView(sess *inspection.Session) inspectionResponse {
	doc := sess.Document()
	out := inspectionResponse{
		State:          sess.State(),
		CurrentSection: sess.CurrentSection(),
		Document:       doc,
	}
	if in := sess.Inspection(); in != nil {
		out.InspectionID = in.ID
		out.Status = string(in.Status)
	}
	if doc != nil {
		out.Progress = checklist.Progress(doc)
	}
	return out
}

// validatePatch rejects statuses outside the closed set. The document model
// accepts anything, so this is the only place bad input is caught.
func validatePatch(p checklist.SectionPatch) error {
	check := func(st checklist.Status) error {
		if !st.Valid() {
			return fmt.Errorf("invalid status %q", st)
		}
		return nil
	}
	for _, q := range p.Questions {
		if err := check(q.Status); err != nil {
			return err
		}
	}
	if err := checkItems(p.Items, check); err != nil {
		return err
	}
	for _, d := range p.DynamicItems {
		for _, q := range d.Questions {
			if err := check(q.Status); err != nil {
				return err
			}
		}
		if err := checkItems(d.Items, check); err != nil {
			return err
		}
	}
	if p.Furniture != nil && p.Furniture.Question != nil {
		return check(p.Furniture.Question.Status)
	}
	return nil
}

func checkItems(items map[checklist.Category][]checklist.Item, check func(checklist.Status) error) error {
	for _, list := range items {
		for _, it := range list {
			if err := check(it.Status); err != nil {
				return err
			}
			for _, u := range it.Units {
				if err := check(u.Status); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// writeFailure maps sentinel errors to status codes. Anything else is logged
// and reported as an internal error.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, inspection.ErrPropertyNotFound), errors.Is(err, checklist.ErrUnknownSection):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, inspection.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, inspection.ErrNotLoaded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error(msg, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
