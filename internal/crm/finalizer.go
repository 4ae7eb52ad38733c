package crm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vbonduro/renocheck/internal/metrics"
	"github.com/vbonduro/renocheck/internal/retry"
)

// Fields holds the CRM field ids written on finalize. Empty ids are skipped.
type Fields struct {
	VisitDate string
	Status    string
	Progress  string
}

// Summary is what a finalized inspection reports to the CRM.
type Summary struct {
	VisitDate *time.Time
	Status    string
	Progress  int
	// Extra is merged into the update as is, keyed by field id.
	Extra map[string]any
}

// Outcome is the result of a push. Reason is meant for the end user and is set
// whenever Synced is false.
type Outcome struct {
	Synced   bool   `json:"synced"`
	RecordID string `json:"recordId,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ReasonDisabled is reported when no CRM is configured.
const ReasonDisabled = "CRM sync disabled"

// recordClient is the subset of Client that Finalizer requires.
type recordClient interface {
	FindByBusinessKey(ctx context.Context, key string) (*Record, error)
	UpdateFields(ctx context.Context, recordID string, fields map[string]any) error
}

type Finalizer struct {
	client  recordClient
	fields  Fields
	policy  retry.Policy
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewFinalizer(client recordClient, fields Fields, policy retry.Policy, logger *slog.Logger, m *metrics.Metrics) *Finalizer {
	return &Finalizer{client: client, fields: fields, policy: policy, logger: logger, metrics: m}
}

// PushFinalization resolves the record for businessKey and writes the summary
// to it. Failures never surface as errors: the local inspection is already
// saved, so they are reported through Outcome. A nil Finalizer reports that
// sync is disabled.
func (f *Finalizer) PushFinalization(ctx context.Context, businessKey string, s Summary) Outcome {
	if f == nil {
		return Outcome{Reason: ReasonDisabled}
	}

	fields := f.buildFields(s)
	if len(fields) == 0 {
		f.metrics.CRMPush("disabled")
		return Outcome{Reason: ReasonDisabled + ": no CRM fields configured"}
	}
	if businessKey == "" {
		f.metrics.CRMPush("not_found")
		return Outcome{Reason: "Saved locally, not synced: the property has no CRM key"}
	}

	rec, err := retry.DoValue(ctx, f.policy, func(ctx context.Context) (*Record, error) {
		rec, err := f.client.FindByBusinessKey(ctx, businessKey)
		return rec, classify(err)
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			f.logger.Warn("crm record not found", "key", businessKey)
			f.metrics.CRMPush("not_found")
			return Outcome{Reason: fmt.Sprintf("Saved locally, not synced: no CRM record for property %s", businessKey)}
		}
		f.logger.Error("crm lookup failed", "key", businessKey, "error", err)
		f.metrics.CRMPush("failed")
		return Outcome{Reason: fmt.Sprintf("Saved locally, not synced: CRM lookup failed (%v)", err)}
	}

	err = retry.Do(ctx, f.policy, func(ctx context.Context) error {
		return classify(f.client.UpdateFields(ctx, rec.ID, fields))
	})
	if err != nil {
		f.logger.Error("crm update failed", "key", businessKey, "record", rec.ID, "error", err)
		f.metrics.CRMPush("failed")
		return Outcome{RecordID: rec.ID, Reason: fmt.Sprintf("Saved locally, not synced: CRM update failed (%v)", err)}
	}

	f.logger.Info("crm record updated", "key", businessKey, "record", rec.ID, "fields", len(fields))
	f.metrics.CRMPush("synced")
	return Outcome{Synced: true, RecordID: rec.ID}
}

func (f *Finalizer) buildFields(s Summary) map[string]any {
	fields := make(map[string]any, 3+len(s.Extra))
	if f.fields.VisitDate != "" && s.VisitDate != nil {
		fields[f.fields.VisitDate] = s.VisitDate.Format(time.DateOnly)
	}
	if f.fields.Status != "" && s.Status != "" {
		fields[f.fields.Status] = s.Status
	}
	if f.fields.Progress != "" {
		fields[f.fields.Progress] = s.Progress
	}
	for k, v := range s.Extra {
		fields[k] = v
	}
	return fields
}

// classify marks errors that repeating cannot fix.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRecordNotFound) {
		return retry.Permanent(err)
	}
	var se *StatusError
	if errors.As(err, &se) && !se.Temporary() {
		return retry.Permanent(err)
	}
	return err
}
