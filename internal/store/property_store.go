package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/vbonduro/renocheck/internal/domain"
)

type PropertyStore struct {
	db *sql.DB
}

func NewPropertyStore(db *sql.DB) *PropertyStore {
	return &PropertyStore{db: db}
}

func (s *PropertyStore) Create(ctx context.Context, p *domain.Property) (*domain.Property, error) {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO properties (id, unique_id, address, bedrooms, bathrooms, has_elevator)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, p.UniqueID, p.Address, p.Bedrooms, p.Bathrooms, p.HasElevator)
	if err != nil {
		return nil, fmt.Errorf("failed to create property: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *PropertyStore) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	p := &domain.Property{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, unique_id, address, bedrooms, bathrooms, has_elevator, created_at
		FROM properties WHERE id = ?
	`, id).Scan(&p.ID, &p.UniqueID, &p.Address, &p.Bedrooms, &p.Bathrooms, &p.HasElevator, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}

	return p, nil
}
