package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
)

func offerRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "description", "offer_type", "line_of_business", "status",
		"catalog_tags", "valid_from", "valid_until", "created_at", "updated_at",
		"created_by", "updated_by",
	})
}

func TestOfferRepositoryListWithSearch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOfferRepository(db)
	now := time.Now()
	rows := offerRows().AddRow(
		int64(1), "Double Data Weekend", "2x data for the weekend", "Data Bundle", "Prepaid",
		"active", "{catalog:12}", now, nil, now, now, int64(1), int64(1),
	)
	mock.ExpectQuery("SELECT id, name, description").
		WithArgs("active", "%data%").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("active", "%data%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	offers, total, err := repo.List(context.Background(), models.OfferFilter{
		Status: models.OfferStatusActive,
		Search: "Data",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, offers, 1)
	assert.Equal(t, "Double Data Weekend", offers[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOfferRepository(db)
	mock.ExpectQuery("SELECT 1 FROM offers").
		WithArgs("Double Data Weekend").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByName(context.Background(), "Double Data Weekend", 0)
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT 1 FROM offers").
		WithArgs("Unknown Offer").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.ExistsByName(context.Background(), "Unknown Offer", 0)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestOfferRepositoryCreateReturnsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOfferRepository(db)
	mock.ExpectQuery("INSERT INTO offers").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(17)))

	offer := &models.Offer{
		Name:           "Night Surfer",
		Description:    "Unlimited browsing midnight to 6am",
		OfferType:      "Data Bundle",
		LineOfBusiness: "Prepaid",
		Status:         models.OfferStatusDraft,
	}
	require.NoError(t, repo.Create(context.Background(), offer))
	assert.Equal(t, int64(17), offer.ID)
	assert.False(t, offer.UpdatedAt.IsZero())
}

func TestOfferRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOfferRepository(db)
	mock.ExpectExec("DELETE FROM offers").
		WithArgs(int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), 404), sql.ErrNoRows)
}
