// Package inspection synchronises a checklist document with the relational
// store, blob storage and the CRM.
package inspection

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vbonduro/renocheck/internal/blobstore"
	"github.com/vbonduro/renocheck/internal/checklist"
	"github.com/vbonduro/renocheck/internal/crm"
	"github.com/vbonduro/renocheck/internal/domain"
	"github.com/vbonduro/renocheck/internal/metrics"
)

var (
	ErrPropertyNotFound = errors.New("property not found")
	ErrNotLoaded        = errors.New("inspection not loaded")
	ErrBusy             = errors.New("inspection is busy")
	ErrPartialSave      = errors.New("inspection was not fully saved")
	// ErrNotCompleted means every section was saved but the inspection could
	// not be marked completed.
	ErrNotCompleted     = errors.New("inspection saved but not completed")
)

// PropertyRepository is the subset of store.PropertyStore that Session requires.
type PropertyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Property, error)
}

// InspectionRepository is the subset of store.InspectionStore that Session requires.
type InspectionRepository interface {
	FindLatest(ctx context.Context, propertyID, inspectionType string) (*domain.Inspection, error)
	Create(ctx context.Context, in *domain.Inspection) (*domain.Inspection, error)
	Complete(ctx context.Context, id, completedBy string, at time.Time) error
	RowCounts(ctx context.Context, id string) (zones, elements int, err error)
}

// ZoneRepository is the subset of store.ZoneStore that Session requires.
type ZoneRepository interface {
	Create(ctx context.Context, z *domain.Zone) (*domain.Zone, error)
	ListByInspection(ctx context.Context, inspectionID string) ([]*domain.Zone, error)
}

// ElementRepository is the subset of store.ElementStore that Session requires.
type ElementRepository interface {
	Upsert(ctx context.Context, e *domain.Element) (*domain.Element, error)
	ListByInspection(ctx context.Context, inspectionID string) ([]*domain.Element, error)
}

// CRMPusher is satisfied by *crm.Finalizer.
type CRMPusher interface {
	PushFinalization(ctx context.Context, businessKey string, s crm.Summary) crm.Outcome
}

// Deps are the collaborators shared by every session. CRM may be nil.
type Deps struct {
	Properties  PropertyRepository
	Inspections InspectionRepository
	Zones       ZoneRepository
	Elements    ElementRepository
	Blobs       blobstore.Store
	CRM         CRMPusher
	Logger      *slog.Logger
	Metrics     *metrics.Metrics

	UploadConcurrency int
	// AutosaveDelay saves the current section after edits go quiet. Zero
	// disables autosave.
	AutosaveDelay     time.Duration
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Key identifies a session.
type Key struct {
	PropertyID string         `json:"propertyId"`
	Type       checklist.Type `json:"checklistType"`
}

type State string

const (
	StateIdle               State = "idle"
	StateLocatingInspection State = "locating_inspection"
	StateCreatingInspection State = "creating_inspection"
	StateCreatingZones      State = "creating_zones"
	StateLoaded             State = "loaded"
	StateSavingSection      State = "saving_section"
	StateFinalizing         State = "finalizing"
	StateFailed             State = "failed"
)

// CompletedStatus is the CRM status label written when a checklist of type t
// is finalized.
func CompletedStatus(t checklist.Type) string {
	return string(t) + "-check-completed"
}
