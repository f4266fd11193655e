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

const segmentColumns = `id, name, description, segment_type, criteria, estimated_size,
created_at, updated_at, created_by, updated_by`

// SegmentRepository handles persistence for customer segments.
type SegmentRepository struct {
	db *sqlx.DB
}

// NewSegmentRepository creates a new repository instance.
func NewSegmentRepository(db *sqlx.DB) *SegmentRepository {
	return &SegmentRepository{db: db}
}

// List returns segments matching filters with pagination metadata.
func (r *SegmentRepository) List(ctx context.Context, filter models.SegmentFilter) ([]models.Segment, int, error) {
	base := "FROM segments WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.SegmentType != "" {
		conditions = append(conditions, fmt.Sprintf("segment_type = $%d", len(args)+1))
		args = append(args, filter.SegmentType)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", segmentColumns, base, sortBy, order, size, offset)
	var segments []models.Segment
	if err := r.db.SelectContext(ctx, &segments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list segments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count segments: %w", err)
	}

	return segments, total, nil
}

// FindByID returns a segment by id.
func (r *SegmentRepository) FindByID(ctx context.Context, id int64) (*models.Segment, error) {
	query := fmt.Sprintf("SELECT %s FROM segments WHERE id = $1", segmentColumns)
	var segment models.Segment
	if err := r.db.GetContext(ctx, &segment, query, id); err != nil {
		return nil, err
	}
	return &segment, nil
}

// Create persists a new segment and fills in its generated id.
func (r *SegmentRepository) Create(ctx context.Context, segment *models.Segment) error {
	now := time.Now().UTC()
	if segment.CreatedAt.IsZero() {
		segment.CreatedAt = now
	}
	segment.UpdatedAt = now

	const query = `INSERT INTO segments
(name, description, segment_type, criteria, estimated_size, created_at, updated_at, created_by, updated_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`
	if err := r.db.GetContext(ctx, &segment.ID, query,
		segment.Name, segment.Description, segment.SegmentType, segment.Criteria,
		segment.EstimatedSize, segment.CreatedAt, segment.UpdatedAt, segment.CreatedBy, segment.UpdatedBy,
	); err != nil {
		return fmt.Errorf("create segment: %w", err)
	}
	return nil
}

// Update modifies a segment.
func (r *SegmentRepository) Update(ctx context.Context, segment *models.Segment) error {
	segment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE segments SET name = :name, description = :description, segment_type = :segment_type,
criteria = :criteria, estimated_size = :estimated_size, updated_at = :updated_at, updated_by = :updated_by
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, segment); err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	return nil
}

// Delete removes a segment.
func (r *SegmentRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM segments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
