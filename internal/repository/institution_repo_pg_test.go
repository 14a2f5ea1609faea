package repository

import (
	"context"
	"testing"

	"github.com/Domenick1991/visitbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGInstitutionRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewInstitutionRepository(mock)

	mock.ExpectQuery("FROM institutions WHERE id").
		WithArgs("I1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "address", "city", "state", "contact", "visiting_hours"}).
			AddRow("I1", "Hill School", "1 Main Rd", "Pune", "MH", "020-1234", "9:00-17:00"))

	inst, err := repo.GetByID(context.Background(), "I1")
	require.NoError(t, err)
	assert.Equal(t, "Hill School", inst.Name)
	assert.Equal(t, "Pune", inst.City)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGInstitutionRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewInstitutionRepository(mock)

	mock.ExpectQuery("FROM institutions WHERE id").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
