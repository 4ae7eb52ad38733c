package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/renocheck/internal/db"
	"github.com/vbonduro/renocheck/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func newTestInspection(t *testing.T, d *sql.DB) (*InspectionStore, *domain.Inspection) {
	t.Helper()
	caps, err := ProbeSchema(context.Background(), d)
	require.NoError(t, err)
	inspections := NewInspectionStore(d, caps)
	in, err := inspections.Create(context.Background(), &domain.Inspection{PropertyID: "prop-1", InspectionType: "initial"})
	require.NoError(t, err)
	return inspections, in
}

func TestProbeSchema(t *testing.T) {
	ctx := context.Background()

	d := openTestDB(t)
	caps, err := ProbeSchema(ctx, d)
	require.NoError(t, err)
	assert.True(t, caps.InspectionType)

	old, err := db.OpenForTestingAt(1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = old.Close() })
	caps, err = ProbeSchema(ctx, old)
	require.NoError(t, err)
	assert.False(t, caps.InspectionType)
}

func TestProbeSchemaQueryError(t *testing.T) {
	d, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer d.Close()

	mock.ExpectQuery(`SELECT name FROM pragma_table_info`).
		WithArgs("inspections").
		WillReturnError(errors.New("database is locked"))

	_, err = ProbeSchema(context.Background(), d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to probe schema")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProbeSchemaMissingTable(t *testing.T) {
	d, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer d.Close()

	mock.ExpectQuery(`SELECT name FROM pragma_table_info`).
		WithArgs("inspections").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	_, err = ProbeSchema(context.Background(), d)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProbeSchemaDetectsColumn(t *testing.T) {
	d, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer d.Close()

	mock.ExpectQuery(`SELECT name FROM pragma_table_info`).
		WithArgs("inspections").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("id").AddRow("inspection_type"))

	caps, err := ProbeSchema(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, caps.InspectionType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPropertyStore(t *testing.T) {
	d := openTestDB(t)
	properties := NewPropertyStore(d)
	ctx := context.Background()

	p, err := properties.Create(ctx, &domain.Property{UniqueID: "PROP-001", Address: "Calle Mayor 1", Bedrooms: 2, Bathrooms: 1, HasElevator: true})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "PROP-001", p.UniqueID)
	assert.Equal(t, 2, p.Bedrooms)
	assert.True(t, p.HasElevator)

	got, err := properties.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	missing, err := properties.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInspectionStoreCreateAndFind(t *testing.T) {
	d := openTestDB(t)
	inspections, first := newTestInspection(t, d)
	ctx := context.Background()

	assert.Equal(t, domain.InspectionInProgress, first.Status)
	assert.Equal(t, "initial", first.InspectionType)
	assert.Nil(t, first.CompletedAt)

	final, err := inspections.Create(ctx, &domain.Inspection{PropertyID: "prop-1", InspectionType: "final", CreatedBy: "ana"})
	require.NoError(t, err)
	assert.Equal(t, "ana", final.CreatedBy)

	got, err := inspections.FindLatest(ctx, "prop-1", "initial")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)

	got, err = inspections.FindLatest(ctx, "prop-1", "intermediate")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = inspections.FindLatest(ctx, "prop-2", "initial")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInspectionStoreWithoutTypeColumn(t *testing.T) {
	d, err := db.OpenForTestingAt(1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	ctx := context.Background()

	caps, err := ProbeSchema(ctx, d)
	require.NoError(t, err)
	inspections := NewInspectionStore(d, caps)

	first, err := inspections.Create(ctx, &domain.Inspection{PropertyID: "prop-1", InspectionType: "initial"})
	require.NoError(t, err)
	assert.Empty(t, first.InspectionType)
	second, err := inspections.Create(ctx, &domain.Inspection{PropertyID: "prop-1", InspectionType: "final"})
	require.NoError(t, err)

	// Most recent of any type.
	got, err := inspections.FindLatest(ctx, "prop-1", "initial")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)
}

func TestInspectionStoreComplete(t *testing.T) {
	d := openTestDB(t)
	inspections, in := newTestInspection(t, d)
	ctx := context.Background()

	at := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, inspections.Complete(ctx, in.ID, "luis", at))

	got, err := inspections.GetByID(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InspectionCompleted, got.Status)
	assert.Equal(t, "luis", got.CompletedBy)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, at.Equal(*got.CompletedAt))

	assert.Error(t, inspections.Complete(ctx, "nope", "luis", at))
}

func TestDeleteInspectionCascades(t *testing.T) {
	d := openTestDB(t)
	inspections, in := newTestInspection(t, d)
	zones := NewZoneStore(d)
	elements := NewElementStore(d)
	ctx := context.Background()

	z, err := zones.Create(ctx, &domain.Zone{InspectionID: in.ID, ZoneType: "cocina", ZoneName: "Cocina"})
	require.NoError(t, err)
	_, err = elements.Upsert(ctx, &domain.Element{ZoneID: z.ID, ElementName: "paredes"})
	require.NoError(t, err)

	nz, ne, err := inspections.RowCounts(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, nz)
	assert.Equal(t, 1, ne)

	require.NoError(t, inspections.Delete(ctx, in.ID))

	nz, ne, err = inspections.RowCounts(ctx, in.ID)
	require.NoError(t, err)
	assert.Zero(t, nz)
	assert.Zero(t, ne)

	assert.Error(t, inspections.Delete(ctx, in.ID))
}

func TestZoneStore(t *testing.T) {
	d := openTestDB(t)
	_, in := newTestInspection(t, d)
	zones := NewZoneStore(d)
	ctx := context.Background()

	a, err := zones.Create(ctx, &domain.Zone{InspectionID: in.ID, ZoneType: "dormitorio", ZoneName: "Dormitorio 1"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	_, err = zones.Create(ctx, &domain.Zone{InspectionID: in.ID, ZoneType: "dormitorio", ZoneName: "Dormitorio 2"})
	require.NoError(t, err)

	list, err := zones.ListByInspection(ctx, in.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Dormitorio 1", list[0].ZoneName)
	assert.Equal(t, "Dormitorio 2", list[1].ZoneName)

	_, err = zones.Create(ctx, &domain.Zone{InspectionID: "missing", ZoneType: "cocina", ZoneName: "Cocina"})
	assert.Error(t, err, "foreign key should reject unknown inspection")
}

func TestElementUpsertIsIdempotent(t *testing.T) {
	d := openTestDB(t)
	_, in := newTestInspection(t, d)
	zones := NewZoneStore(d)
	elements := NewElementStore(d)
	ctx := context.Background()

	z, err := zones.Create(ctx, &domain.Zone{InspectionID: in.ID, ZoneType: "salon", ZoneName: "Salón"})
	require.NoError(t, err)

	qty := 3
	exists := true
	first, err := elements.Upsert(ctx, &domain.Element{
		ZoneID:      z.ID,
		ElementName: "carpinteria-ventanas",
		Condition:   "buen_estado",
		ImageURLs:   []string{"https://cdn/a.jpg"},
		Quantity:    &qty,
	})
	require.NoError(t, err)
	_, err = elements.Upsert(ctx, &domain.Element{ZoneID: z.ID, ElementName: "mobiliario", Exists: &exists})
	require.NoError(t, err)

	second, err := elements.Upsert(ctx, &domain.Element{
		ZoneID:      z.ID,
		ElementName: "carpinteria-ventanas",
		Notes:       "repainted",
		Quantity:    &qty,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	list, err := elements.ListByInspection(ctx, in.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byName := map[string]*domain.Element{}
	for _, e := range list {
		byName[e.ElementName] = e
	}
	w := byName["carpinteria-ventanas"]
	assert.Empty(t, w.Condition)
	assert.Equal(t, "repainted", w.Notes)
	assert.Nil(t, w.ImageURLs)
	require.NotNil(t, w.Quantity)
	assert.Equal(t, 3, *w.Quantity)
	assert.Nil(t, w.Exists)

	f := byName["mobiliario"]
	require.NotNil(t, f.Exists)
	assert.True(t, *f.Exists)
	assert.Nil(t, f.Quantity)
}

func TestElementURLsRoundTrip(t *testing.T) {
	d := openTestDB(t)
	_, in := newTestInspection(t, d)
	zones := NewZoneStore(d)
	elements := NewElementStore(d)
	ctx := context.Background()

	z, err := zones.Create(ctx, &domain.Zone{InspectionID: in.ID, ZoneType: "cocina", ZoneName: "Cocina"})
	require.NoError(t, err)

	urls := []string{"https://cdn/a.jpg", "data:image/png;base64,AA=="}
	_, err = elements.Upsert(ctx, &domain.Element{ZoneID: z.ID, ElementName: "fotos-cocina", ImageURLs: urls})
	require.NoError(t, err)
	_, err = elements.Upsert(ctx, &domain.Element{ZoneID: z.ID, ElementName: "videos-cocina", VideoURLs: []string{"https://cdn/v.mp4"}})
	require.NoError(t, err)

	list, err := elements.ListByInspection(ctx, in.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, urls, list[0].ImageURLs)
	assert.Equal(t, []string{"https://cdn/v.mp4"}, list[1].VideoURLs)
}
