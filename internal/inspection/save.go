package inspection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/renocheck/internal/blobstore"
	"github.com/vbonduro/renocheck/internal/checklist"
	"github.com/vbonduro/renocheck/internal/domain"
	"github.com/vbonduro/renocheck/internal/projection"
)

const defaultUploadConcurrency = 4

// Failure is one part of a save that did not reach the store. Element is empty
// when the whole section failed.
type Failure struct {
	SectionID checklist.SectionID
	Element   string
	Err       error
}

func (f Failure) Error() string {
	if f.Element == "" {
		return fmt.Sprintf("%s: %v", f.SectionID, f.Err)
	}
	return fmt.Sprintf("%s/%s: %v", f.SectionID, f.Element, f.Err)
}

func (f Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SectionID checklist.SectionID `json:"sectionId"`
		Element   string              `json:"element,omitempty"`
		Error     string              `json:"error"`
	}{f.SectionID, f.Element, f.Err.Error()})
}

type SaveResult struct {
	// Skipped is set when another save was already running.
	Skipped  bool                  `json:"skipped"`
	Sections []checklist.SectionID `json:"sections"`
	// Uploaded attachments now hold public URLs. Inline ones were left as
	// data URLs because storage was unavailable; FailedUploads errored
	// individually and were left inline too.
	Uploaded      int       `json:"uploaded"`
	Inline        int       `json:"inline"`
	FailedUploads int       `json:"failedUploads"`
	BucketMissing bool      `json:"bucketMissing"`
	Elements      int       `json:"elements"`
	Failures      []Failure `json:"failures,omitempty"`
}

// Complete reports whether every element of every section was stored.
func (r *SaveResult) Complete() bool {
	return !r.Skipped && len(r.Failures) == 0
}

type saveJob struct {
	ids        []checklist.SectionID
	sections   []*checklist.Section
	property   domain.Property
	inspection domain.Inspection
	zones      []*domain.Zone
	counts     checklist.Counts
}

type attachmentKey struct {
	section int
	id      string
}

type uploadTask struct {
	section int
	att     checklist.Attachment
	zoneID  string
}

// SaveCurrentSection persists the section last passed to UpdateSection. A call
// made while another save or a finalize is running returns a skipped result
// without queueing.
func (s *Session) SaveCurrentSection(ctx context.Context) (*SaveResult, error) {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return nil, ErrNotLoaded
	}
	if s.busy {
		s.mu.Unlock()
		s.deps.Metrics.SectionSave("skipped", 0)
		return &SaveResult{Skipped: true}, nil
	}
	if s.current == "" {
		s.mu.Unlock()
		return &SaveResult{}, nil
	}
	job := s.beginLocked(StateSavingSection, []checklist.SectionID{s.current})
	s.mu.Unlock()

	res, err := s.persist(ctx, job)
	s.finish(StateSavingSection)
	return res, err
}

// beginLocked marks the session busy and snapshots the sections to persist.
// Must be called with mu held.
func (s *Session) beginLocked(st State, ids []checklist.SectionID) *saveJob {
	s.busy = true
	s.state = st
	if s.timer != nil {
		s.timer.Stop()
	}
	job := &saveJob{
		ids:        ids,
		property:   *s.property,
		inspection: *s.inspection,
		zones:      s.zones,
		counts:     s.doc.Counts,
	}
	for _, id := range ids {
		job.sections = append(job.sections, s.doc.Section(id))
		delete(s.dirty, id)
	}
	return job
}

func (s *Session) finish(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if s.state == st {
		s.state = StateLoaded
	}
}

// persist uploads pending attachments, writes element rows and reloads the
// document from the store. URLs are substituted before any row is written.
func (s *Session) persist(ctx context.Context, job *saveJob) (*SaveResult, error) {
	log := s.deps.logger()
	start := time.Now()
	res := &SaveResult{Sections: job.ids}

	var tasks []uploadTask
	for i, id := range job.ids {
		sec := job.sections[i]
		sec.MapAttachments(idAssigner())
		for _, owned := range sec.Attachments() {
			if owned.Attachment.IsUploaded() {
				continue
			}
			zone := projection.ResolveZone(id, job.zones, max(owned.DynamicIndex, 0))
			if zone == nil {
				res.Inline++
				s.deps.Metrics.AttachmentUpload("inline")
				continue
			}
			tasks = append(tasks, uploadTask{section: i, att: owned.Attachment, zoneID: zone.ID})
		}
	}

	urls := s.uploadAll(ctx, job, tasks, res)
	for i, sec := range job.sections {
		sec.MapAttachments(func(_ int, a checklist.Attachment) checklist.Attachment {
			if a.IsUploaded() {
				return a
			}
			if url, ok := urls[attachmentKey{i, a.ID}]; ok {
				a.Data = url
			}
			return a
		})
	}

	failed := make(map[checklist.SectionID]bool)
	for i, id := range job.ids {
		rows, err := projection.SectionToElementRows(id, job.sections[i], job.zones)
		if err != nil {
			log.Error("failed to project section", "section", id, "error", err)
			res.Failures = append(res.Failures, Failure{SectionID: id, Err: err})
			failed[id] = true
			continue
		}
		for _, row := range rows {
			if _, err := s.deps.Elements.Upsert(ctx, row); err != nil {
				log.Error("failed to save element", "section", id, "element", row.ElementName, "error", err)
				res.Failures = append(res.Failures, Failure{SectionID: id, Element: row.ElementName, Err: err})
				failed[id] = true
				s.deps.Metrics.ElementUpsert("failed")
				continue
			}
			res.Elements++
			s.deps.Metrics.ElementUpsert("ok")
		}
	}

	zones, elements, err := s.fetchRows(ctx, job.inspection.ID)

	s.mu.Lock()
	// Sections that did not fully persist keep their local copy, now with
	// the uploaded URLs, and stay dirty for the next save.
	var saved []checklist.SectionID
	for i, id := range job.ids {
		if failed[id] || err != nil {
			if !s.closed {
				s.doc = s.doc.UpdateSection(id, checklist.PatchFrom(job.sections[i]))
				if p, ok := s.pending[id]; ok {
					s.doc = s.doc.UpdateSection(id, p)
				}
			}
			s.dirty[id] = true
			continue
		}
		saved = append(saved, id)
	}
	if err == nil {
		doc := checklist.NewDocument(job.property.ID, s.key.Type, projection.RowsToSections(zones, elements, job.counts), job.counts)
		s.install(doc, zones, len(elements), saved)
	}
	s.mu.Unlock()

	result := "ok"
	switch {
	case err != nil:
		result = "failed"
	case len(res.Failures) > 0:
		result = "partial"
	}
	s.deps.Metrics.SectionSave(result, time.Since(start))

	if err != nil {
		return res, fmt.Errorf("failed to reload inspection after save: %w", err)
	}
	log.Info("sections saved",
		"property_id", job.property.ID, "inspection_id", job.inspection.ID, "sections", job.ids,
		"elements", res.Elements, "uploaded", res.Uploaded, "inline", res.Inline,
		"failed_uploads", res.FailedUploads, "failures", len(res.Failures),
		"duration", time.Since(start))
	return res, nil
}

func (s *Session) fetchRows(ctx context.Context, inspectionID string) ([]*domain.Zone, []*domain.Element, error) {
	zones, err := s.deps.Zones.ListByInspection(ctx, inspectionID)
	if err != nil {
		return nil, nil, err
	}
	elements, err := s.deps.Elements.ListByInspection(ctx, inspectionID)
	if err != nil {
		return nil, nil, err
	}
	return zones, elements, nil
}

// uploadAll uploads tasks with bounded concurrency and returns the public URL
// of each uploaded attachment keyed by section index and attachment id. Once
// the bucket is found missing the remaining attachments stay inline.
func (s *Session) uploadAll(ctx context.Context, job *saveJob, tasks []uploadTask, res *SaveResult) map[attachmentKey]string {
	log := s.deps.logger()
	urls := make(map[attachmentKey]string, len(tasks))
	if len(tasks) == 0 {
		return urls
	}
	if s.deps.Blobs == nil {
		res.Inline += len(tasks)
		for range tasks {
			s.deps.Metrics.AttachmentUpload("inline")
		}
		return urls
	}

	limit := s.deps.UploadConcurrency
	if limit <= 0 {
		limit = defaultUploadConcurrency
	}

	var mu sync.Mutex
	var bucketMissing atomic.Bool
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, t := range tasks {
		g.Go(func() error {
			var url string
			var err error
			if bucketMissing.Load() {
				err = blobstore.ErrBucketNotFound
			} else {
				url, err = s.uploadOne(gctx, job, t)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				urls[attachmentKey{t.section, t.att.ID}] = url
				res.Uploaded++
				s.deps.Metrics.AttachmentUpload("uploaded")
			case errors.Is(err, blobstore.ErrBucketNotFound):
				if bucketMissing.CompareAndSwap(false, true) {
					log.Warn("storage bucket missing, keeping attachments inline", "error", err)
				}
				res.Inline++
				s.deps.Metrics.AttachmentUpload("inline")
			default:
				log.Error("failed to upload attachment", "attachment", t.att.ID, "error", err)
				res.FailedUploads++
				s.deps.Metrics.AttachmentUpload("failed")
			}
			return nil
		})
	}
	_ = g.Wait()
	res.BucketMissing = bucketMissing.Load()
	return urls
}

func (s *Session) uploadOne(ctx context.Context, job *saveJob, t uploadTask) (string, error) {
	data, mimeType, err := t.att.DecodeInline()
	if err != nil {
		return "", err
	}
	objectPath := blobstore.ObjectPath(job.property.ID, job.inspection.ID, t.zoneID, t.att.ID+blobstore.Extension(mimeType))
	if err := s.deps.Blobs.Upload(ctx, objectPath, mimeType, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", err
	}
	return s.deps.Blobs.PublicURL(ctx, objectPath)
}

var safeID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// idAssigner returns a mapper that gives pending attachments an id usable as a
// file name and unique within the section. Uploaded attachments keep theirs.
// Use one mapper per section.
func idAssigner() func(int, checklist.Attachment) checklist.Attachment {
	seen := make(map[string]bool)
	return func(_ int, a checklist.Attachment) checklist.Attachment {
		if !a.IsUploaded() && (!safeID.MatchString(a.ID) || seen[a.ID]) {
			a.ID = uuid.NewString()
		}
		seen[a.ID] = true
		return a
	}
}
