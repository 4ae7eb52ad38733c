package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/vbonduro/renocheck/internal/domain"
)

type ElementStore struct {
	db *sql.DB
}

func NewElementStore(db *sql.DB) *ElementStore {
	return &ElementStore{db: db}
}

// Upsert writes an element keyed by (zone_id, element_name). Saving the same
// element twice updates the existing row and keeps its id.
func (s *ElementStore) Upsert(ctx context.Context, e *domain.Element) (*domain.Element, error) {
	images, err := encodeURLs(e.ImageURLs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image urls: %w", err)
	}
	videos, err := encodeURLs(e.VideoURLs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode video urls: %w", err)
	}

	out := *e
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO elements (id, zone_id, element_name, condition, notes, image_urls, video_urls, quantity, "exists")
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (zone_id, element_name) DO UPDATE SET
			condition  = excluded.condition,
			notes      = excluded.notes,
			image_urls = excluded.image_urls,
			video_urls = excluded.video_urls,
			quantity   = excluded.quantity,
			"exists"   = excluded."exists",
			updated_at = datetime('now')
		RETURNING id
	`, uuid.NewString(), e.ZoneID, e.ElementName, nullString(e.Condition), nullString(e.Notes),
		images, videos, e.Quantity, e.Exists).Scan(&out.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert element %q: %w", e.ElementName, err)
	}
	return &out, nil
}

// ListByInspection returns every element of every zone of the inspection.
func (s *ElementStore) ListByInspection(ctx context.Context, inspectionID string) ([]*domain.Element, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.zone_id, e.element_name, e.condition, e.notes, e.image_urls, e.video_urls, e.quantity, e."exists"
		FROM elements e
		JOIN zones z ON z.id = e.zone_id
		WHERE z.inspection_id = ?
		ORDER BY e.zone_id, e.element_name
	`, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list elements: %w", err)
	}
	defer rows.Close()

	var elements []*domain.Element
	for rows.Next() {
		e := &domain.Element{}
		var condition, notes sql.NullString
		var images, videos string
		var quantity sql.NullInt64
		var exists sql.NullBool
		if err := rows.Scan(&e.ID, &e.ZoneID, &e.ElementName, &condition, &notes, &images, &videos, &quantity, &exists); err != nil {
			return nil, fmt.Errorf("failed to scan element: %w", err)
		}
		e.Condition = condition.String
		e.Notes = notes.String
		if e.ImageURLs, err = decodeURLs(images); err != nil {
			return nil, fmt.Errorf("failed to decode image urls of %q: %w", e.ElementName, err)
		}
		if e.VideoURLs, err = decodeURLs(videos); err != nil {
			return nil, fmt.Errorf("failed to decode video urls of %q: %w", e.ElementName, err)
		}
		if quantity.Valid {
			q := int(quantity.Int64)
			e.Quantity = &q
		}
		if exists.Valid {
			b := exists.Bool
			e.Exists = &b
		}
		elements = append(elements, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating elements: %w", err)
	}

	return elements, nil
}
