package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/visitbooking/internal/domain"
	"github.com/jackc/pgx/v5"
)

// InstitutionRepository is a read-only view of the institutions table.
type InstitutionRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Institution, error)
}

type PGInstitutionRepository struct {
	db DB
}

func NewInstitutionRepository(db DB) InstitutionRepository {
	return &PGInstitutionRepository{db: db}
}

func (r *PGInstitutionRepository) GetByID(ctx context.Context, id string) (*domain.Institution, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, address, city, state, contact, COALESCE(visiting_hours, '') FROM institutions WHERE id=$1`, id)
	var i domain.Institution
	if err := row.Scan(&i.ID, &i.Name, &i.Address, &i.City, &i.State, &i.Contact, &i.VisitingHours); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("institution %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &i, nil
}

var _ InstitutionRepository = (*PGInstitutionRepository)(nil)
