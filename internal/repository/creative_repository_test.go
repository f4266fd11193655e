package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func creativeRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "offer_id", "channel", "locale", "title", "text_body", "html_body",
		"variables", "default_values", "required_variables", "version",
		"is_active", "is_latest", "created_at", "updated_at", "created_by", "updated_by",
	})
}

func TestCreativeRepositoryListFiltersAndCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCreativeRepository(db)
	now := time.Now()
	rows := creativeRows().AddRow(
		int64(7), int64(42), "SMS", "en", "Welcome", "Hi {{name}}", "",
		[]byte(`{"name":"Customer"}`), []byte(`{}`), "{name}", 3,
		true, true, now, now, int64(1), int64(1),
	)
	mock.ExpectQuery("SELECT id, offer_id, channel").
		WithArgs(int64(42), "SMS").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(42), "SMS").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	offerID := int64(42)
	result, total, err := repo.List(context.Background(), models.CreativeFilter{
		OfferID:    &offerID,
		Channel:    models.ChannelSMS,
		LatestOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, result, 1)
	assert.Equal(t, "Welcome", result[0].Title)
	assert.Equal(t, 3, result[0].Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreativeRepositoryCreateAssignsNextVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCreativeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT MAX\\(version\\)").
		WithArgs(int64(42), models.ChannelEmail, "en").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(4))
	mock.ExpectExec("UPDATE offer_creatives SET is_latest = FALSE").
		WithArgs(int64(42), models.ChannelEmail, "en").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO offer_creatives").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(99)))
	mock.ExpectCommit()

	creative := &models.OfferCreative{
		OfferID:  42,
		Channel:  models.ChannelEmail,
		Locale:   "en",
		Title:    "Promo",
		TextBody: "Get {{discount}} off",
		IsActive: true,
	}
	require.NoError(t, repo.Create(context.Background(), creative))
	assert.Equal(t, int64(99), creative.ID)
	assert.Equal(t, 5, creative.Version)
	assert.True(t, creative.IsLatest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreativeRepositoryCreateFirstVersionIsOne(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCreativeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT MAX\\(version\\)").
		WithArgs(int64(42), models.ChannelSMS, "fr").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectExec("UPDATE offer_creatives SET is_latest = FALSE").
		WithArgs(int64(42), models.ChannelSMS, "fr").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO offer_creatives").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	creative := &models.OfferCreative{OfferID: 42, Channel: models.ChannelSMS, Locale: "fr", Title: "Bonjour"}
	require.NoError(t, repo.Create(context.Background(), creative))
	assert.Equal(t, 1, creative.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreativeRepositoryUpdateMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCreativeRepository(db)
	mock.ExpectExec("UPDATE offer_creatives SET title").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.OfferCreative{ID: 12345, Title: "Ghost"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreativeRepositoryDeletePromotesSurvivor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCreativeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, offer_id, channel, locale, version, is_latest").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "offer_id", "channel", "locale", "version", "is_latest"}).
			AddRow(int64(7), int64(42), "SMS", "en", 3, true))
	mock.ExpectExec("DELETE FROM offer_creatives").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE offer_creatives SET is_latest = TRUE").
		WithArgs(int64(42), "SMS", "en").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreativeRepositoryStats(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCreativeRepository(db)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS total").
		WillReturnRows(sqlmock.NewRows([]string{"total", "active", "locales"}).AddRow(10, 8, 2))
	mock.ExpectQuery("SELECT channel, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"channel", "total", "active"}).
			AddRow("Email", 4, 3).
			AddRow("SMS", 6, 5))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 8, stats.Active)
	require.Len(t, stats.ByChannel, 2)
	assert.Equal(t, models.ChannelEmail, stats.ByChannel[0].Channel)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(sql.ErrNoRows))
	assert.False(t, IsUniqueViolation(nil))
}
