package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
)

const offerColumns = `id, name, description, offer_type, line_of_business, status, catalog_tags,
valid_from, valid_until, created_at, updated_at, created_by, updated_by`

// OfferRepository handles persistence for marketing offers.
type OfferRepository struct {
	db *sqlx.DB
}

// NewOfferRepository creates a new repository instance.
func NewOfferRepository(db *sqlx.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

// List returns offers matching filters with pagination metadata.
func (r *OfferRepository) List(ctx context.Context, filter models.OfferFilter) ([]models.Offer, int, error) {
	base := "FROM offers WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.OfferType != "" {
		conditions = append(conditions, fmt.Sprintf("offer_type = $%d", len(args)+1))
		args = append(args, filter.OfferType)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"status":     true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", offerColumns, base, sortBy, order, size, offset)
	var offers []models.Offer
	if err := r.db.SelectContext(ctx, &offers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list offers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count offers: %w", err)
	}

	return offers, total, nil
}

// FindByID returns an offer by id.
func (r *OfferRepository) FindByID(ctx context.Context, id int64) (*models.Offer, error) {
	query := fmt.Sprintf("SELECT %s FROM offers WHERE id = $1", offerColumns)
	var offer models.Offer
	if err := r.db.GetContext(ctx, &offer, query, id); err != nil {
		return nil, err
	}
	return &offer, nil
}

// ExistsByName checks uniqueness of offer name.
func (r *OfferRepository) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	query := "SELECT 1 FROM offers WHERE LOWER(name) = LOWER($1)"
	args := []interface{}{name}
	if excludeID > 0 {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}

	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check offer name: %w", err)
	}
	return true, nil
}

// Create persists a new offer and fills in its generated id.
func (r *OfferRepository) Create(ctx context.Context, offer *models.Offer) error {
	now := time.Now().UTC()
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = now
	}
	offer.UpdatedAt = now

	const query = `INSERT INTO offers
(name, description, offer_type, line_of_business, status, catalog_tags, valid_from, valid_until,
 created_at, updated_at, created_by, updated_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id`
	if err := r.db.GetContext(ctx, &offer.ID, query,
		offer.Name, offer.Description, offer.OfferType, offer.LineOfBusiness,
		offer.Status, offer.CatalogTags, offer.ValidFrom, offer.ValidUntil,
		offer.CreatedAt, offer.UpdatedAt, offer.CreatedBy, offer.UpdatedBy,
	); err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	return nil
}

// Update modifies an offer.
func (r *OfferRepository) Update(ctx context.Context, offer *models.Offer) error {
	offer.UpdatedAt = time.Now().UTC()
	const query = `UPDATE offers SET name = :name, description = :description, offer_type = :offer_type,
line_of_business = :line_of_business, status = :status, catalog_tags = :catalog_tags,
valid_from = :valid_from, valid_until = :valid_until, updated_at = :updated_at, updated_by = :updated_by
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, offer); err != nil {
		return fmt.Errorf("update offer: %w", err)
	}
	return nil
}

// Delete removes an offer.
func (r *OfferRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM offers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete offer: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountCreatives returns how many creatives reference the offer.
func (r *OfferRepository) CountCreatives(ctx context.Context, id int64) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM offer_creatives WHERE offer_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count offer creatives: %w", err)
	}
	return count, nil
}
