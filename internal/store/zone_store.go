package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/vbonduro/renocheck/internal/domain"
)

type ZoneStore struct {
	db *sql.DB
}

func NewZoneStore(db *sql.DB) *ZoneStore {
	return &ZoneStore{db: db}
}

func (s *ZoneStore) Create(ctx context.Context, z *domain.Zone) (*domain.Zone, error) {
	out := *z
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO zones (id, inspection_id, zone_type, zone_name) VALUES (?, ?, ?, ?)
	`, out.ID, out.InspectionID, out.ZoneType, out.ZoneName)
	if err != nil {
		return nil, fmt.Errorf("failed to create zone: %w", err)
	}
	return &out, nil
}

func (s *ZoneStore) ListByInspection(ctx context.Context, inspectionID string) ([]*domain.Zone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, inspection_id, zone_type, zone_name FROM zones
		WHERE inspection_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	defer rows.Close()

	var zones []*domain.Zone
	for rows.Next() {
		z := &domain.Zone{}
		if err := rows.Scan(&z.ID, &z.InspectionID, &z.ZoneType, &z.ZoneName); err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		zones = append(zones, z)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating zones: %w", err)
	}

	return zones, nil
}
