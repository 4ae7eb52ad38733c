package inspection

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/renocheck/internal/blobstore"
	"github.com/vbonduro/renocheck/internal/checklist"
	"github.com/vbonduro/renocheck/internal/crm"
	"github.com/vbonduro/renocheck/internal/db"
	"github.com/vbonduro/renocheck/internal/domain"
	"github.com/vbonduro/renocheck/internal/store"
)

const (
	jpeg = "data:image/jpeg;base64,/9j/4AAQ"
	png  = "data:image/png;base64,iVBORw0KGgo="
)

// stubBlobs records uploads in memory. missing simulates an absent bucket and
// gate, when set, blocks every upload until it is closed.
type stubBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	missing bool
	failOn  string
	started chan struct{}
	gate    chan struct{}
}

func newStubBlobs() *stubBlobs {
	return &stubBlobs{objects: make(map[string][]byte)}
}

func (b *stubBlobs) Upload(ctx context.Context, objectPath, _ string, r io.Reader, _ int64) error {
	if b.started != nil {
		select {
		case b.started <- struct{}{}:
		default:
		}
	}
	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if b.missing {
		return blobstore.ErrBucketNotFound
	}
	if b.failOn != "" && strings.Contains(objectPath, b.failOn) {
		return errors.New("connection reset")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[objectPath] = data
	return nil
}

func (b *stubBlobs) PublicURL(_ context.Context, objectPath string) (string, error) {
	return "https://cdn.test/" + objectPath, nil
}

func (b *stubBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type stubCRM struct {
	mu       sync.Mutex
	outcome  crm.Outcome
	keys     []string
	summary  crm.Summary
	attempts int
}

func (c *stubCRM) PushFinalization(_ context.Context, key string, s crm.Summary) crm.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	c.keys = append(c.keys, key)
	c.summary = s
	return c.outcome
}

// failingElements rejects upserts of one element name.
type failingElements struct {
	ElementRepository
	name string
}

func (f failingElements) Upsert(ctx context.Context, e *domain.Element) (*domain.Element, error) {
	if e.ElementName == f.name {
		return nil, errors.New("disk I/O error")
	}
	return f.ElementRepository.Upsert(ctx, e)
}

// stallingElements blocks the first ListByInspection after armed is set,
// once the rows have been read, until release is closed.
type stallingElements struct {
	ElementRepository
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func (e *stallingElements) ListByInspection(ctx context.Context, inspectionID string) ([]*domain.Element, error) {
	list, err := e.ElementRepository.ListByInspection(ctx, inspectionID)
	if e.armed.CompareAndSwap(true, false) {
		close(e.reached)
		<-e.release
	}
	return list, err
}

type harness struct {
	db          *sql.DB
	deps        Deps
	blobs       *stubBlobs
	crm         *stubCRM
	inspections *store.InspectionStore
	property    *domain.Property
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	return newHarnessWithDB(t, d)
}

func newHarnessWithDB(t *testing.T, d *sql.DB) *harness {
	t.Helper()
	t.Cleanup(func() { _ = d.Close() })
	ctx := context.Background()

	caps, err := store.ProbeSchema(ctx, d)
	require.NoError(t, err)
	properties := store.NewPropertyStore(d)
	prop, err := properties.Create(ctx, &domain.Property{
		UniqueID:  "PROP-001",
		Address:   "Calle Mayor 1",
		Bedrooms:  2,
		Bathrooms: 1,
	})
	require.NoError(t, err)

	h := &harness{
		db:          d,
		blobs:       newStubBlobs(),
		crm:         &stubCRM{outcome: crm.Outcome{Synced: true, RecordID: "rec1"}},
		inspections: store.NewInspectionStore(d, caps),
		property:    prop,
	}
	h.deps = Deps{
		Properties:  properties,
		Inspections: h.inspections,
		Zones:       store.NewZoneStore(d),
		Elements:    store.NewElementStore(d),
		Blobs:       h.blobs,
		CRM:         h.crm,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return h
}

func (h *harness) key() Key {
	return Key{PropertyID: h.property.ID, Type: checklist.TypeInitial}
}

func (h *harness) open(t *testing.T) *Session {
	t.Helper()
	s := NewSession(h.deps, h.key())
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(s.Close)
	return s
}

func (h *harness) counts(t *testing.T, s *Session) (int, int) {
	t.Helper()
	z, e, err := h.inspections.RowCounts(context.Background(), s.Inspection().ID)
	require.NoError(t, err)
	return z, e
}

func livingPatch(photo string) checklist.SectionPatch {
	return checklist.SectionPatch{
		UploadZones: []checklist.UploadZone{{ID: "salon", Photos: []checklist.Attachment{{ID: "p1", Data: photo}}}},
		Questions:   []checklist.Question{{ID: "paredes", Status: checklist.StatusGood, Notes: "recién pintadas"}},
	}
}

func TestInitializeCreatesInspectionAndZones(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)

	assert.Equal(t, StateLoaded, s.State())
	in := s.Inspection()
	require.NotNil(t, in)
	assert.Equal(t, "initial", in.InspectionType)
	assert.Equal(t, domain.InspectionInProgress, in.Status)

	// Six plain sections, two bedrooms and one bathroom.
	zones, elements := h.counts(t, s)
	assert.Equal(t, 9, zones)
	assert.Zero(t, elements)

	doc := s.Document()
	require.NotNil(t, doc)
	assert.Len(t, doc.Sections[checklist.SectionBedrooms].DynamicItems, 2)
	assert.Len(t, doc.Sections[checklist.SectionBathrooms].DynamicItems, 1)
}

func TestInitializeReusesInspection(t *testing.T) {
	h := newHarness(t)
	first := h.open(t)
	second := h.open(t)

	assert.Equal(t, first.Inspection().ID, second.Inspection().ID)
	zones, _ := h.counts(t, second)
	assert.Equal(t, 9, zones)
}

func TestInitializeConcurrentCallsShareOneLoad(t *testing.T) {
	h := newHarness(t)
	s := NewSession(h.deps, h.key())
	t.Cleanup(s.Close)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.Initialize(context.Background())
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var n int
	require.NoError(t, h.db.QueryRow(`SELECT COUNT(*) FROM inspections`).Scan(&n))
	assert.Equal(t, 1, n)
	zones, _ := h.counts(t, s)
	assert.Equal(t, 9, zones)
}

func TestInitializePropertyNotFound(t *testing.T) {
	h := newHarness(t)
	s := NewSession(h.deps, Key{PropertyID: "missing", Type: checklist.TypeInitial})

	err := s.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrPropertyNotFound)
	assert.Equal(t, StateFailed, s.State())
	assert.ErrorIs(t, s.Err(), ErrPropertyNotFound)
	assert.Nil(t, s.Document())
}

func TestInitializeOnSchemaWithoutInspectionType(t *testing.T) {
	d, err := db.OpenForTestingAt(1)
	require.NoError(t, err)
	h := newHarnessWithDB(t, d)
	require.False(t, h.inspections.Capabilities().InspectionType)

	s := h.open(t)
	require.NoError(t, s.UpdateSection(checklist.SectionLiving, livingPatch(jpeg)))
	res, err := s.SaveCurrentSection(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Complete())

	again := h.open(t)
	assert.Equal(t, s.Inspection().ID, again.Inspection().ID)
	q := again.Document().Sections[checklist.SectionLiving].Questions[0]
	assert.Equal(t, checklist.StatusGood, q.Status)
}

func TestSaveCurrentSectionUploadsAndPersists(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)

	require.NoError(t, s.UpdateSection(checklist.SectionLiving, livingPatch(jpeg)))
	res, err := s.SaveCurrentSection(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, 1, res.Uploaded)
	assert.Zero(t, res.Inline)
	assert.Equal(t, []checklist.SectionID{checklist.SectionLiving}, res.Sections)
	assert.Equal(t, 1, h.blobs.count())

	photo := s.Document().Sections[checklist.SectionLiving].UploadZones[0].Photos[0]
	assert.Equal(t, "p1", photo.ID)
	assert.True(t, strings.HasPrefix(photo.Data, "https://cdn.test/"+h.property.ID+"/"+s.Inspection().ID+"/"))
	assert.True(t, strings.HasSuffix(photo.Data, "/p1.jpg"))

	// A fresh session sees the same document.
	reloaded := h.open(t).Document().Sections[checklist.SectionLiving]
	assert.Equal(t, s.Document().Sections[checklist.SectionLiving], reloaded)
}

func TestSaveIsIdempotent(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)
	require.NoError(t, s.UpdateSection(checklist.SectionLiving, livingPatch(jpeg)))

	_, err := s.SaveCurrentSection(context.Background())
	require.NoError(t, err)
	_, first := h.counts(t, s)

	res, err := s.SaveCurrentSection(context.Background())
	require.NoError(t, err)
	_, second := h.counts(t, s)

	assert.Equal(t, first, second)
	assert.Zero(t, res.Uploaded, "uploaded attachments are not uploaded again")
	assert.Equal(t, 1, h.blobs.count())
}

func TestSaveReplacesUnsafeAttachmentIDs(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)
	patch := livingPatch(jpeg)
	patch.UploadZones[0].Photos[0].ID = "../escape"
	require.NoError(t, s.UpdateSection(checklist.SectionLiving, patch))

	_, err := s.SaveCurrentSection(context.Background())
	require.NoError(t, err)

	photo := s.Document().Sections[checklist.SectionLiving].UploadZones[0].Photos[0]
	assert.NotEqual(t, "../escape", photo.ID)
	assert.NotContains(t, photo.Data, "..")
}

func TestSaveWithMissingBucketKeepsAttachmentsInline(t *testing.T) {
	h := newHarness(t)
	h.blobs.missing = true
	s := h.open(t)

	require.NoError(t, s.UpdateSection(checklist.SectionLiving, livingPatch(jpeg)))
	res, err := s.SaveCurrentSection(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.True(t, res.BucketMissing)
	assert.Equal(t, 1, res.Inline)
	assert.Zero(t, res.Uploaded)

	reloaded := h.open(t).Document().Sections[checklist.SectionLiving]
	assert.Equal(t, jpeg, reloaded.UploadZones[0].Photos[0].Data)
}

func TestSaveKeepsFailedUploadsInline(t *testing.T) {
	h := newHarness(t)
	h.blobs.failOn = "p2"
	s := h.open(t)

	patch := livingPatch(jpeg)
	patch.UploadZones[0].Photos = append(patch.UploadZones[0].Photos, checklist.Attachment{ID: "p2", Data: jpeg})
	require.NoError(t, s.UpdateSection(checklist.SectionLiving, patch))

	res, err := s.SaveCurrentSection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Uploaded)
	assert.Equal(t, 1, res.FailedUploads)
	assert.False(t, res.BucketMissing)

	photos := s.Document().Sections[checklist.SectionLiving].UploadZones[0].Photos
	require.Len(t, photos, 2)
	assert.True(t, photos[0].IsUploaded())
	assert.Equal(t, jpeg, photos[1].Data)
}

func TestSaveDynamicItems(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)

	items := s.Document().Sections[checklist.SectionBedrooms].DynamicItems
	items[1].Questions[0].Status = checklist.StatusNeedsRepair
	items[1].Questions[0].Notes = "humedad en la esquina"
	items[1].UploadZone.Photos = []checklist.Attachment{{ID: "d2", Data: jpeg}}
	require.NoError(t, s.UpdateSection(checklist.SectionBedrooms, checklist.SectionPatch{DynamicItems: items}))

	res, err := s.SaveCurrentSection(context.Background())
	require.NoError(t, err)
	require.True(t, res.Complete())

	var zoneName string
	require.NoError(t, h.db.QueryRow(`
		SELECT z.zone_name FROM elements e JOIN zones z ON z.id = e.zone_id
		WHERE e.notes = ?`, "humedad en la esquina").Scan(&zoneName))
	assert.Equal(t, "Dormitorio 2", zoneName)

	reloaded := h.open(t).Document().Sections[checklist.SectionBedrooms].DynamicItems
	require.Len(t, reloaded, 2)
	assert.Equal(t, "humedad en la esquina", reloaded[1].Questions[0].Notes)
	assert.Empty(t, reloaded[0].Questions[0].Notes)
	assert.True(t, reloaded[1].UploadZone.Photos[0].IsUploaded())
}

func TestInlinePhotosInDifferentBedroomsUploadSeparately(t *testing.T) {
	h := newHarness(t)
	h.blobs.missing = true
	s := h.open(t)

	items := s.Document().Sections[checklist.SectionBedrooms].DynamicItems
	items[0].UploadZone.Photos = []checklist.Attachment{{ID: "a", Data: jpeg}}
	items[1].UploadZone.Photos = []checklist.Attachment{{ID: "b", Data: png}}
	require.NoError(t, s.UpdateSection(checklist.SectionBedrooms, checklist.SectionPatch{DynamicItems: items}))

	res, err := s.SaveCurrentSection(context.Background())
	require.NoError(t, err)
	require.True(t, res.BucketMissing)
	require.Equal(t, 2, res.Inline)

	inline := s.Document().Sections[checklist.SectionBedrooms].DynamicItems
	first, second := inline[0].UploadZone.Photos[0], inline[1].UploadZone.Photos[0]
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, jpeg, first.Data)
	assert.Equal(t, png, second.Data)

	h.blobs.missing = false
	res, err = s.SaveCurrentSection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Uploaded)
	assert.Equal(t, 2, h.blobs.count())

	uploaded := s.Document().Sections[checklist.SectionBedrooms].DynamicItems
	first, second = uploaded[0].UploadZone.Photos[0], uploaded[1].UploadZone.Photos[0]
	assert.NotEqual(t, first.Data, second.Data)
	assert.True(t, strings.HasSuffix(first.Data, ".jpg"), first.Data)
	assert.True(t, strings.HasSuffix(second.Data, ".png"), second.Data)
}

func TestSaveGivesRepeatedAttachmentIDsTheirOwnFile(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)

	items := s.Document().Sections[checklist.SectionBedrooms].DynamicItems
	items[0].UploadZone.Photos = []checklist.Attachment{{ID: "foto", Data: jpeg}}
	items[1].UploadZone.Photos = []checklist.Attachment{{ID: "foto", Data: png}}
	require.NoError(t, s.UpdateSection(checklist.SectionBedrooms, checklist.SectionPatch{DynamicItems: items}))

	res, err := s.SaveCurrentSection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Uploaded)

	saved := s.Document().Sections[checklist.SectionBedrooms].DynamicItems
	first, second := saved[0].UploadZone.Photos[0], saved[1].UploadZone.Photos[0]
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, strings.HasSuffix(first.Data, ".jpg"), first.Data)
	assert.True(t, strings.HasSuffix(second.Data, ".png"), second.Data)
}

func TestSaveWhileBusyIsSkippedAndEditsSurvive(t *testing.T) {
	h := newHarness(t)
	h.blobs.started = make(chan struct{}, 1)
	h.blobs.gate = make(chan struct{})
	s := h.open(t)
	require.NoError(t, s.UpdateSection(checklist.SectionLiving, livingPatch(jpeg)))

	done := make(chan error, 1)
	go func() {
		_, err := s.SaveCurrentSection(context.Background())
		done <- err
	}()
	<-h.blobs.started
	assert.Equal(t, StateSavingSection, s.State())

	res, err := s.SaveCurrentSection(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	_, err = s.FinalizeChecklist(context.Background(), FinalizeRequest{})
	assert.ErrorIs(t, err, ErrBusy)
	assert.NoError(t, s.Initialize(context.Background()), "an open session stays usable while saving")

	later := []checklist.Question{{ID: "paredes", Status: checklist.StatusNeedsRepair, Notes: "desconchones"}}
	require.NoError(t, s.UpdateSection(checklist.SectionLiving, checklist.SectionPatch{Questions: later}))

	close(h.blobs.gate)
	require.NoError(t, <-done)
	assert.Equal(t, StateLoaded, s.State())

	living := s.Document().Sections[checklist.SectionLiving]
	assert.Equal(t, "desconchones", living.Questions[0].Notes)
	assert.True(t, living.UploadZones[0].Photos[0].IsUploaded())

	// The later edit was not part of the first save; the next one stores it.
	_, err = s.SaveCurrentSection(context.Background())
	require.NoError(t, err)
	reloaded := h.open(t).Document().Sections[checklist.SectionLiving]
	assert.Equal(t, "desconchones", reloaded.Questions[0].Notes)
}

func TestSaveElementFailureKeepsSectionDirty(t *testing.T) {
	h := newHarness(t)
	h.deps.Elements = failingElements{ElementRepository: h.deps.Elements, name: "techos"}
	s := h.open(t)
	require.NoError(t, s.UpdateSection(checklist.SectionLiving, livingPatch(jpeg)))

	res, err := s.SaveCurrentSection(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "techos", res.Failures[0].Element)
	assert.Greater(t, res.Elements, 0, "sibling elements are still written")
	assert.False(t, res.Complete())

	// Local edits and the uploaded URL are kept.
	living := s.Document().Sections[checklist.SectionLiving]
	assert.Equal(t, "recién pintadas", living.Questions[0].Notes)
	assert.True(t, living.UploadZones[0].Photos[0].IsUploaded())

	fin, err := s.FinalizeChecklist(context.Background(), FinalizeRequest{})
	assert.ErrorIs(t, err, ErrPartialSave)
	require.NotNil(t, fin)
	assert.False(t, fin.Saved)
	assert.Equal(t, []checklist.SectionID{checklist.SectionLiving}, fin.Sections)
	assert.Zero(t, h.crm.attempts)
}

func TestSaveWithoutCurrentSection(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)

	res, err := s.SaveCurrentSection(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Sections)
	assert.False(t, res.Skipped)
}

func TestUpdateSectionErrors(t *testing.T) {
	h := newHarness(t)
	s := NewSession(h.deps, h.key())
	assert.ErrorIs(t, s.UpdateSection(checklist.SectionLiving, checklist.SectionPatch{}), ErrNotLoaded)

	_, err := s.SaveCurrentSection(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)

	require.NoError(t, s.Initialize(context.Background()))
	assert.ErrorIs(t, s.UpdateSection("garage", checklist.SectionPatch{}), checklist.ErrUnknownSection)
	assert.Empty(t, s.CurrentSection())
}

func TestRefreshReloadsExternalChanges(t *testing.T) {
	h := newHarness(t)
	reader := h.open(t)
	writer := h.open(t)

	changed, err := reader.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, writer.UpdateSection(checklist.SectionLiving, livingPatch(jpeg)))
	_, err = writer.SaveCurrentSection(context.Background())
	require.NoError(t, err)

	changed, err = reader.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, checklist.StatusGood, reader.Document().Sections[checklist.SectionLiving].Questions[0].Status)
}

func TestRefreshKeepsUnsavedEdits(t *testing.T) {
	h := newHarness(t)
	reader := h.open(t)
	writer := h.open(t)

	kitchen := []checklist.Question{{ID: "paredes", Notes: "azulejos rotos"}}
	require.NoError(t, reader.UpdateSection(checklist.SectionKitchen, checklist.SectionPatch{Questions: kitchen}))

	require.NoError(t, writer.UpdateSection(checklist.SectionLiving, livingPatch(jpeg)))
	_, err := writer.SaveCurrentSection(context.Background())
	require.NoError(t, err)

	changed, err := reader.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, changed)
	doc := reader.Document()
	assert.Equal(t, "azulejos rotos", doc.Sections[checklist.SectionKitchen].Questions[0].Notes)
	assert.Equal(t, "recién pintadas", doc.Sections[checklist.SectionLiving].Questions[0].Notes)
}

func TestSaveDuringRefreshIsSkippedAndEditsSurvive(t *testing.T) {
	h := newHarness(t)
	writer := h.open(t)

	stall := &stallingElements{
		ElementRepository: h.deps.Elements,
		reached:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	deps := h.deps
	deps.Elements = stall
	reader := NewSession(deps, h.key())
	require.NoError(t, reader.Initialize(context.Background()))
	t.Cleanup(reader.Close)

	require.NoError(t, writer.UpdateSection(checklist.SectionLiving, livingPatch(jpeg)))
	_, err := writer.SaveCurrentSection(context.Background())
	require.NoError(t, err)

	type refreshed struct {
		changed bool
		err     error
	}
	done := make(chan refreshed, 1)
	stall.armed.Store(true)
	go func() {
		changed, err := reader.Refresh(context.Background())
		done <- refreshed{changed, err}
	}()
	<-stall.reached
	assert.NotEqual(t, StateLoaded, reader.State())

	kitchen := []checklist.Question{{ID: "paredes", Notes: "azulejos rotos"}}
	require.NoError(t, reader.UpdateSection(checklist.SectionKitchen, checklist.SectionPatch{Questions: kitchen}))
	res, err := reader.SaveCurrentSection(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	_, err = reader.FinalizeChecklist(context.Background(), FinalizeRequest{})
	assert.ErrorIs(t, err, ErrBusy)

	close(stall.release)
	got := <-done
	require.NoError(t, got.err)
	assert.True(t, got.changed)
	assert.Equal(t, StateLoaded, reader.State())

	doc := reader.Document()
	assert.Equal(t, "azulejos rotos", doc.Sections[checklist.SectionKitchen].Questions[0].Notes)
	assert.Equal(t, "recién pintadas", doc.Sections[checklist.SectionLiving].Questions[0].Notes)

	res, err = reader.SaveCurrentSection(context.Background())
	require.NoError(t, err)
	require.False(t, res.Skipped)
	assert.True(t, res.Complete())
	reloaded := h.open(t).Document().Sections[checklist.SectionKitchen]
	assert.Equal(t, "azulejos rotos", reloaded.Questions[0].Notes)
}

func TestAutosave(t *testing.T) {
	h := newHarness(t)
	h.deps.AutosaveDelay = 10 * time.Millisecond
	s := h.open(t)

	require.NoError(t, s.UpdateSection(checklist.SectionLiving, livingPatch(jpeg)))
	id := s.Inspection().ID
	require.Eventually(t, func() bool {
		_, elements, err := h.inspections.RowCounts(context.Background(), id)
		return err == nil && elements > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseStopsAutosave(t *testing.T) {
	h := newHarness(t)
	h.deps.AutosaveDelay = 20 * time.Millisecond
	s := h.open(t)

	require.NoError(t, s.UpdateSection(checklist.SectionLiving, livingPatch(jpeg)))
	s.Close()
	time.Sleep(60 * time.Millisecond)

	_, elements := h.counts(t, s)
	assert.Zero(t, elements)
}
