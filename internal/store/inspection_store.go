package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vbonduro/renocheck/internal/domain"
)

type InspectionStore struct {
	db   *sql.DB
	caps Capabilities
}

func NewInspectionStore(db *sql.DB, caps Capabilities) *InspectionStore {
	return &InspectionStore{db: db, caps: caps}
}

func (s *InspectionStore) Capabilities() Capabilities {
	return s.caps
}

func (s *InspectionStore) columns() string {
	typeCol := "'' AS inspection_type"
	if s.caps.InspectionType {
		typeCol = "inspection_type"
	}
	return `id, property_id, ` + typeCol + `, inspection_status, created_by, completed_by,
		completed_at, has_elevator, public_link_id, created_at`
}

// Create inserts a new in-progress inspection. The type is dropped on schemas
// without the column.
func (s *InspectionStore) Create(ctx context.Context, in *domain.Inspection) (*domain.Inspection, error) {
	id := uuid.NewString()
	status := in.Status
	if status == "" {
		status = domain.InspectionInProgress
	}

	var err error
	if s.caps.InspectionType {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO inspections (id, property_id, inspection_type, inspection_status, created_by, has_elevator, public_link_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, in.PropertyID, in.InspectionType, status, nullString(in.CreatedBy), in.HasElevator, nullString(in.PublicLinkID))
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO inspections (id, property_id, inspection_status, created_by, has_elevator, public_link_id)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, in.PropertyID, status, nullString(in.CreatedBy), in.HasElevator, nullString(in.PublicLinkID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create inspection: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *InspectionStore) GetByID(ctx context.Context, id string) (*domain.Inspection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+s.columns()+` FROM inspections WHERE id = ?`, id)
	in, err := scanInspection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inspection: %w", err)
	}
	return in, nil
}

// FindLatest returns the newest inspection of a property. When the schema has
// no inspection_type column the type is ignored and the newest inspection of
// any type is returned. A nil inspection means none exists.
func (s *InspectionStore) FindLatest(ctx context.Context, propertyID, inspectionType string) (*domain.Inspection, error) {
	var row *sql.Row
	if s.caps.InspectionType {
		row = s.db.QueryRowContext(ctx, `
			SELECT `+s.columns()+` FROM inspections
			WHERE property_id = ? AND inspection_type = ?
			ORDER BY created_at DESC, rowid DESC LIMIT 1
		`, propertyID, inspectionType)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT `+s.columns()+` FROM inspections
			WHERE property_id = ?
			ORDER BY created_at DESC, rowid DESC LIMIT 1
		`, propertyID)
	}

	in, err := scanInspection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find inspection: %w", err)
	}
	return in, nil
}

func (s *InspectionStore) Complete(ctx context.Context, id, completedBy string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE inspections SET inspection_status = ?, completed_by = ?, completed_at = ? WHERE id = ?
	`, domain.InspectionCompleted, nullString(completedBy), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to complete inspection: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("inspection not found")
	}

	return nil
}

// Delete removes an inspection with its zones and elements.
func (s *InspectionStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM inspections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete inspection: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("inspection not found")
	}

	return nil
}

// RowCounts returns how many zones and elements the inspection has.
func (s *InspectionStore) RowCounts(ctx context.Context, id string) (zones, elements int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM zones WHERE inspection_id = ?),
			(SELECT COUNT(*) FROM elements e JOIN zones z ON z.id = e.zone_id WHERE z.inspection_id = ?)
	`, id, id).Scan(&zones, &elements)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count inspection rows: %w", err)
	}
	return zones, elements, nil
}

func scanInspection(row *sql.Row) (*domain.Inspection, error) {
	in := &domain.Inspection{}
	var createdBy, completedBy, publicLink sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&in.ID, &in.PropertyID, &in.InspectionType, &in.Status, &createdBy, &completedBy,
		&completedAt, &in.HasElevator, &publicLink, &in.CreatedAt)
	if err != nil {
		return nil, err
	}
	in.CreatedBy = createdBy.String
	in.CompletedBy = completedBy.String
	in.PublicLinkID = publicLink.String
	if completedAt.Valid {
		t := completedAt.Time
		in.CompletedAt = &t
	}
	return in, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
