package inspection

import (
	"context"
	"fmt"
	"time"

	"github.com/vbonduro/renocheck/internal/checklist"
	"github.com/vbonduro/renocheck/internal/crm"
	"github.com/vbonduro/renocheck/internal/domain"
)

type FinalizeRequest struct {
	CompletedBy string
	// VisitDate defaults to the time of the call.
	VisitDate *time.Time
	// RequireComplete refuses to complete an inspection that still has an
	// unreported section.
	RequireComplete bool
	// Fields are extra CRM fields written alongside the summary.
	Fields map[string]any
}

type FinalizeResult struct {
	Save        *SaveResult           `json:"save,omitempty"`
	Saved       bool                  `json:"saved"`
	Completed   bool                  `json:"completed"`
	CRMSynced   bool                  `json:"crmSynced"`
	CRMRecordID string                `json:"crmRecordId,omitempty"`
	CRMReason   string                `json:"crmReason,omitempty"`
	Progress    int                   `json:"progress"`
	Incomplete  *checklist.Incomplete `json:"incomplete,omitempty"`
	Sections    []checklist.SectionID `json:"sections"`
}

// FinalizeChecklist saves every locally edited section, marks the inspection
// completed and pushes a summary to the CRM. A CRM failure never undoes the
// local completion; it is reported in the result instead.
func (s *Session) FinalizeChecklist(ctx context.Context, req FinalizeRequest) (*FinalizeResult, error) {
	log := s.deps.logger()

	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return nil, ErrNotLoaded
	}
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	var ids []checklist.SectionID
	for _, id := range checklist.AllSections {
		if s.dirty[id] || id == s.current {
			ids = append(ids, id)
		}
	}
	job := s.beginLocked(StateFinalizing, ids)
	s.mu.Unlock()
	defer s.finish(StateFinalizing)

	res := &FinalizeResult{Sections: ids}
	save, err := s.persist(ctx, job)
	res.Save = save
	if err != nil {
		return res, err
	}
	if !save.Complete() {
		return res, fmt.Errorf("%w: %d element(s) failed", ErrPartialSave, len(save.Failures))
	}
	res.Saved = true

	s.mu.Lock()
	doc := s.doc.Clone()
	prop := *s.property
	inspectionID := s.inspection.ID
	s.mu.Unlock()

	res.Progress = checklist.Progress(doc)
	res.Incomplete = checklist.FirstIncompleteSection(doc)
	if req.RequireComplete && res.Incomplete != nil {
		log.Info("finalize refused, checklist incomplete",
			"property_id", prop.ID, "inspection_id", inspectionID,
			"section", res.Incomplete.SectionID, "reason", res.Incomplete.Message)
		return res, nil
	}

	completedAt := time.Now().UTC()
	if err := s.deps.Inspections.Complete(ctx, inspectionID, req.CompletedBy, completedAt); err != nil {
		log.Error("failed to complete inspection", "property_id", prop.ID, "inspection_id", inspectionID, "error", err)
		return res, fmt.Errorf("%w: %w", ErrNotCompleted, err)
	}
	res.Completed = true
	s.mu.Lock()
	if s.inspection != nil && s.inspection.ID == inspectionID {
		in := *s.inspection
		in.Status = domain.InspectionCompleted
		in.CompletedBy = req.CompletedBy
		in.CompletedAt = &completedAt
		s.inspection = &in
	}
	s.mu.Unlock()

	visit := req.VisitDate
	if visit == nil {
		visit = &completedAt
	}
	var out crm.Outcome
	if s.deps.CRM == nil {
		out = crm.Outcome{Reason: crm.ReasonDisabled}
	} else {
		out = s.deps.CRM.PushFinalization(ctx, prop.UniqueID, crm.Summary{
			VisitDate: visit,
			Status:    CompletedStatus(s.key.Type),
			Progress:  res.Progress,
			Extra:     req.Fields,
		})
	}
	res.CRMSynced = out.Synced
	res.CRMRecordID = out.RecordID
	res.CRMReason = out.Reason

	log.Info("inspection finalized",
		"property_id", prop.ID, "inspection_id", inspectionID, "type", s.key.Type,
		"progress", res.Progress, "crm_synced", out.Synced, "crm_reason", out.Reason)
	return res, nil
}
