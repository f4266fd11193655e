package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
)

const creativeColumns = `id, offer_id, channel, locale, title, text_body, html_body, variables,
default_values, required_variables, version, is_active, is_latest,
created_at, updated_at, created_by, updated_by`

// CreativeRepository handles persistence for offer creatives.
type CreativeRepository struct {
	db *sqlx.DB
}

// NewCreativeRepository creates a new repository instance.
func NewCreativeRepository(db *sqlx.DB) *CreativeRepository {
	return &CreativeRepository{db: db}
}

// List returns creatives matching filters with pagination metadata.
func (r *CreativeRepository) List(ctx context.Context, filter models.CreativeFilter) ([]models.OfferCreative, int, error) {
	base := "FROM offer_creatives WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.OfferID != nil {
		conditions = append(conditions, fmt.Sprintf("offer_id = $%d", len(args)+1))
		args = append(args, *filter.OfferID)
	}
	if filter.Channel != "" {
		conditions = append(conditions, fmt.Sprintf("channel = $%d", len(args)+1))
		args = append(args, filter.Channel)
	}
	if filter.Locale != "" {
		conditions = append(conditions, fmt.Sprintf("locale = $%d", len(args)+1))
		args = append(args, filter.Locale)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.LatestOnly {
		conditions = append(conditions, "is_latest = TRUE")
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(text_body) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"offer_id":   true,
		"channel":    true,
		"locale":     true,
		"version":    true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "updated_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", creativeColumns, base, sortBy, order, size, offset)
	var creatives []models.OfferCreative
	if err := r.db.SelectContext(ctx, &creatives, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list creatives: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count creatives: %w", err)
	}

	return creatives, total, nil
}

// FindByID returns a creative by id.
func (r *CreativeRepository) FindByID(ctx context.Context, id int64) (*models.OfferCreative, error) {
	query := fmt.Sprintf("SELECT %s FROM offer_creatives WHERE id = $1", creativeColumns)
	var creative models.OfferCreative
	if err := r.db.GetContext(ctx, &creative, query, id); err != nil {
		return nil, err
	}
	return &creative, nil
}

// FindVersion returns a specific version for a creative key.
func (r *CreativeRepository) FindVersion(ctx context.Context, offerID int64, channel models.Channel, locale string, version int) (*models.OfferCreative, error) {
	query := fmt.Sprintf("SELECT %s FROM offer_creatives WHERE offer_id = $1 AND channel = $2 AND locale = $3 AND version = $4", creativeColumns)
	var creative models.OfferCreative
	if err := r.db.GetContext(ctx, &creative, query, offerID, channel, locale, version); err != nil {
		return nil, err
	}
	return &creative, nil
}

// ListVersions returns every version for a creative key, newest first.
func (r *CreativeRepository) ListVersions(ctx context.Context, offerID int64, channel models.Channel, locale string) ([]models.OfferCreative, error) {
	query := fmt.Sprintf("SELECT %s FROM offer_creatives WHERE offer_id = $1 AND channel = $2 AND locale = $3 ORDER BY version DESC", creativeColumns)
	var creatives []models.OfferCreative
	if err := r.db.SelectContext(ctx, &creatives, query, offerID, channel, locale); err != nil {
		return nil, fmt.Errorf("list creative versions: %w", err)
	}
	return creatives, nil
}

// Create inserts a new head version for its (offer, channel, locale)
// key: the version number is max existing + 1 and any previous head
// loses its is_latest mark, all inside one transaction.
func (r *CreativeRepository) Create(ctx context.Context, creative *models.OfferCreative) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create creative tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxVersion sql.NullInt64
	const versionQuery = `SELECT MAX(version) FROM offer_creatives WHERE offer_id = $1 AND channel = $2 AND locale = $3`
	if err := tx.GetContext(ctx, &maxVersion, versionQuery, creative.OfferID, creative.Channel, creative.Locale); err != nil {
		return fmt.Errorf("resolve creative version: %w", err)
	}
	creative.Version = int(maxVersion.Int64) + 1
	creative.IsLatest = true

	const clearQuery = `UPDATE offer_creatives SET is_latest = FALSE WHERE offer_id = $1 AND channel = $2 AND locale = $3 AND is_latest = TRUE`
	if _, err := tx.ExecContext(ctx, clearQuery, creative.OfferID, creative.Channel, creative.Locale); err != nil {
		return fmt.Errorf("clear previous head version: %w", err)
	}

	now := time.Now().UTC()
	if creative.CreatedAt.IsZero() {
		creative.CreatedAt = now
	}
	creative.UpdatedAt = now

	const insertQuery = `INSERT INTO offer_creatives
(offer_id, channel, locale, title, text_body, html_body, variables, default_values, required_variables,
 version, is_active, is_latest, created_at, updated_at, created_by, updated_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING id`
	if err := tx.GetContext(ctx, &creative.ID, insertQuery,
		creative.OfferID, creative.Channel, creative.Locale,
		creative.Title, creative.TextBody, creative.HTMLBody,
		creative.Variables, creative.DefaultValues, creative.RequiredVariables,
		creative.Version, creative.IsActive, creative.IsLatest,
		creative.CreatedAt, creative.UpdatedAt, creative.CreatedBy, creative.UpdatedBy,
	); err != nil {
		return fmt.Errorf("insert creative: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create creative tx: %w", err)
	}
	return nil
}

// Update modifies the mutable fields of an existing creative row.
func (r *CreativeRepository) Update(ctx context.Context, creative *models.OfferCreative) error {
	creative.UpdatedAt = time.Now().UTC()
	const query = `UPDATE offer_creatives SET title = :title, text_body = :text_body, html_body = :html_body,
variables = :variables, default_values = :default_values, required_variables = :required_variables,
is_active = :is_active, updated_at = :updated_at, updated_by = :updated_by WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, creative)
	if err != nil {
		return fmt.Errorf("update creative: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a creative. When the head version is removed the
// highest surviving version of the same key becomes the new head.
func (r *CreativeRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete creative tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var victim models.OfferCreative
	const selectQuery = `SELECT id, offer_id, channel, locale, version, is_latest FROM offer_creatives WHERE id = $1`
	if err := tx.GetContext(ctx, &victim, selectQuery, id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM offer_creatives WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete creative: %w", err)
	}

	if victim.IsLatest {
		const promoteQuery = `UPDATE offer_creatives SET is_latest = TRUE
WHERE offer_id = $1 AND channel = $2 AND locale = $3
  AND version = (SELECT MAX(version) FROM offer_creatives WHERE offer_id = $1 AND channel = $2 AND locale = $3)`
		if _, err := tx.ExecContext(ctx, promoteQuery, victim.OfferID, victim.Channel, victim.Locale); err != nil {
			return fmt.Errorf("promote surviving version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete creative tx: %w", err)
	}
	return nil
}

// Stats aggregates totals across the creative inventory.
func (r *CreativeRepository) Stats(ctx context.Context) (*models.CreativeStats, error) {
	stats := &models.CreativeStats{GeneratedAt: time.Now().UTC()}

	const totalsQuery = `SELECT COUNT(*) AS total,
COUNT(*) FILTER (WHERE is_active) AS active,
COUNT(DISTINCT locale) AS locales
FROM offer_creatives`
	row := r.db.QueryRowxContext(ctx, totalsQuery)
	if err := row.Scan(&stats.Total, &stats.Active, &stats.Locales); err != nil {
		return nil, fmt.Errorf("creative totals: %w", err)
	}

	const channelQuery = `SELECT channel, COUNT(*) AS total, COUNT(*) FILTER (WHERE is_active) AS active
FROM offer_creatives GROUP BY channel ORDER BY channel`
	if err := r.db.SelectContext(ctx, &stats.ByChannel, channelQuery); err != nil {
		return nil, fmt.Errorf("creative channel stats: %w", err)
	}

	return stats, nil
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation, used to map duplicate (offer, channel, locale, version)
// writes onto a conflict response.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
