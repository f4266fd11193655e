package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
	appErrors "github.com/cvm-platform/cvm-admin-api/pkg/errors"
)

type segmentRepository interface {
	List(ctx context.Context, filter models.SegmentFilter) ([]models.Segment, int, error)
	FindByID(ctx context.Context, id int64) (*models.Segment, error)
	Create(ctx context.Context, segment *models.Segment) error
	Update(ctx context.Context, segment *models.Segment) error
	Delete(ctx context.Context, id int64) error
}

// SegmentService handles customer segment workflows.
type SegmentService struct {
	repo      segmentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSegmentService constructs the service.
func NewSegmentService(repo segmentRepository, validate *validator.Validate, logger *zap.Logger) *SegmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SegmentService{repo: repo, validator: validate, logger: logger}
}

// SegmentRequest describes a create or update payload.
type SegmentRequest struct {
	Name          string         `json:"name" validate:"required,max=120"`
	Description   string         `json:"description" validate:"max=500"`
	SegmentType   string         `json:"segment_type"`
	Criteria      models.JSONMap `json:"criteria"`
	EstimatedSize *int64         `json:"estimated_size" validate:"omitempty,gte=0"`
}

// List returns segments with pagination.
func (s *SegmentService) List(ctx context.Context, filter models.SegmentFilter) ([]models.Segment, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list segments")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// Get returns a segment by id.
func (s *SegmentService) Get(ctx context.Context, id int64) (*models.Segment, error) {
	segment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "segment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load segment")
	}
	return segment, nil
}

// Create registers a new segment.
func (s *SegmentService) Create(ctx context.Context, req SegmentRequest, userID int64) (*models.Segment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid segment payload")
	}
	segment := &models.Segment{
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		SegmentType:   req.SegmentType,
		Criteria:      req.Criteria,
		EstimatedSize: req.EstimatedSize,
		CreatedBy:     userID,
		UpdatedBy:     userID,
	}
	if err := s.repo.Create(ctx, segment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create segment")
	}
	return segment, nil
}

// Update modifies an existing segment.
func (s *SegmentService) Update(ctx context.Context, id int64, req SegmentRequest, userID int64) (*models.Segment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid segment payload")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	existing.Name = strings.TrimSpace(req.Name)
	existing.Description = req.Description
	existing.SegmentType = req.SegmentType
	existing.Criteria = req.Criteria
	existing.EstimatedSize = req.EstimatedSize
	existing.UpdatedBy = userID

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update segment")
	}
	return existing, nil
}

// Delete removes a segment.
func (s *SegmentService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "segment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete segment")
	}
	return nil
}
