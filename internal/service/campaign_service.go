package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
	appErrors "github.com/cvm-platform/cvm-admin-api/pkg/errors"
)

type campaignRepository interface {
	List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, int, error)
	FindByID(ctx context.Context, id int64) (*models.Campaign, error)
	Create(ctx context.Context, campaign *models.Campaign) error
	Update(ctx context.Context, campaign *models.Campaign) error
	Delete(ctx context.Context, id int64) error
}

type campaignSegmentRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Segment, error)
}

// CampaignService handles campaign workflows.
type CampaignService struct {
	repo      campaignRepository
	segments  campaignSegmentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCampaignService constructs the service.
func NewCampaignService(repo campaignRepository, segments campaignSegmentRepository, validate *validator.Validate, logger *zap.Logger) *CampaignService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &CampaignService{repo: repo, segments: segments, validator: validate, logger: logger}
	svc.validator.RegisterValidation("campaign_status", func(fl validator.FieldLevel) bool {
		switch models.CampaignStatus(strings.ToLower(fl.Field().String())) {
		case models.CampaignStatusDraft, models.CampaignStatusScheduled, models.CampaignStatusRunning,
			models.CampaignStatusCompleted, models.CampaignStatusCancelled:
			return true
		default:
			return false
		}
	})
	return svc
}

// CampaignRequest describes a create or update payload.
type CampaignRequest struct {
	Name       string     `json:"name" validate:"required,max=120"`
	Objective  string     `json:"objective"`
	Department string     `json:"department"`
	SegmentID  *int64     `json:"segment_id"`
	OfferIDs   []int64    `json:"offer_ids"`
	Status     string     `json:"status" validate:"omitempty,campaign_status"`
	StartsAt   *time.Time `json:"starts_at"`
	EndsAt     *time.Time `json:"ends_at"`
}

// List returns campaigns with pagination.
func (s *CampaignService) List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list campaigns")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// Get returns a campaign by id.
func (s *CampaignService) Get(ctx context.Context, id int64) (*models.Campaign, error) {
	campaign, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load campaign")
	}
	return campaign, nil
}

// Create registers a new campaign.
func (s *CampaignService) Create(ctx context.Context, req CampaignRequest, userID int64) (*models.Campaign, error) {
	if err := s.validateRequest(ctx, req); err != nil {
		return nil, err
	}

	status := models.CampaignStatus(strings.ToLower(req.Status))
	if status == "" {
		status = models.CampaignStatusDraft
	}
	campaign := &models.Campaign{
		Name:       strings.TrimSpace(req.Name),
		Objective:  req.Objective,
		Department: req.Department,
		SegmentID:  req.SegmentID,
		OfferIDs:   req.OfferIDs,
		Status:     status,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
		CreatedBy:  userID,
		UpdatedBy:  userID,
	}
	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create campaign")
	}
	return campaign, nil
}

// Update modifies an existing campaign.
func (s *CampaignService) Update(ctx context.Context, id int64, req CampaignRequest, userID int64) (*models.Campaign, error) {
	if err := s.validateRequest(ctx, req); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	existing.Name = strings.TrimSpace(req.Name)
	existing.Objective = req.Objective
	existing.Department = req.Department
	existing.SegmentID = req.SegmentID
	existing.OfferIDs = req.OfferIDs
	if req.Status != "" {
		existing.Status = models.CampaignStatus(strings.ToLower(req.Status))
	}
	existing.StartsAt = req.StartsAt
	existing.EndsAt = req.EndsAt
	existing.UpdatedBy = userID

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update campaign")
	}
	return existing, nil
}

// Delete removes a campaign.
func (s *CampaignService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete campaign")
	}
	return nil
}

func (s *CampaignService) validateRequest(ctx context.Context, req CampaignRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid campaign payload")
	}
	if req.StartsAt != nil && req.EndsAt != nil && req.EndsAt.Before(*req.StartsAt) {
		return appErrors.Clone(appErrors.ErrValidation, "ends_at must be after starts_at")
	}
	if req.SegmentID != nil {
		if _, err := s.segments.FindByID(ctx, *req.SegmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "segment does not exist")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check segment")
		}
	}
	return nil
}
