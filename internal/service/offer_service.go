package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
	appErrors "github.com/cvm-platform/cvm-admin-api/pkg/errors"
)

type offerRepository interface {
	List(ctx context.Context, filter models.OfferFilter) ([]models.Offer, int, error)
	FindByID(ctx context.Context, id int64) (*models.Offer, error)
	ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error)
	Create(ctx context.Context, offer *models.Offer) error
	Update(ctx context.Context, offer *models.Offer) error
	Delete(ctx context.Context, id int64) error
	CountCreatives(ctx context.Context, id int64) (int, error)
}

// OfferService handles offer workflows.
type OfferService struct {
	repo      offerRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOfferService constructs the service.
func NewOfferService(repo offerRepository, validate *validator.Validate, logger *zap.Logger) *OfferService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &OfferService{repo: repo, validator: validate, logger: logger}
	svc.validator.RegisterValidation("offer_status", func(fl validator.FieldLevel) bool {
		switch models.OfferStatus(strings.ToLower(fl.Field().String())) {
		case models.OfferStatusDraft, models.OfferStatusActive, models.OfferStatusPaused, models.OfferStatusArchived:
			return true
		default:
			return false
		}
	})
	return svc
}

// CreateOfferRequest describes a create payload.
type CreateOfferRequest struct {
	Name           string     `json:"name" validate:"required,max=120"`
	Description    string     `json:"description" validate:"max=500"`
	OfferType      string     `json:"offer_type"`
	LineOfBusiness string     `json:"line_of_business"`
	Status         string     `json:"status" validate:"omitempty,offer_status"`
	CatalogTags    []string   `json:"catalog_tags"`
	ValidFrom      *time.Time `json:"valid_from"`
	ValidUntil     *time.Time `json:"valid_until"`
}

// UpdateOfferRequest describes an update payload.
type UpdateOfferRequest struct {
	Name           string     `json:"name" validate:"required,max=120"`
	Description    string     `json:"description" validate:"max=500"`
	OfferType      string     `json:"offer_type"`
	LineOfBusiness string     `json:"line_of_business"`
	Status         string     `json:"status" validate:"required,offer_status"`
	CatalogTags    []string   `json:"catalog_tags"`
	ValidFrom      *time.Time `json:"valid_from"`
	ValidUntil     *time.Time `json:"valid_until"`
}

// List returns offers with pagination.
func (s *OfferService) List(ctx context.Context, filter models.OfferFilter) ([]models.Offer, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offers")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// Get returns an offer by id.
func (s *OfferService) Get(ctx context.Context, id int64) (*models.Offer, error) {
	offer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offer")
	}
	return offer, nil
}

// Create registers a new offer. Names are unique case-insensitively.
func (s *OfferService) Create(ctx context.Context, req CreateOfferRequest, userID int64) (*models.Offer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offer payload")
	}
	if err := validateWindow(req.ValidFrom, req.ValidUntil); err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByName(ctx, req.Name, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check offer name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("offer %q already exists", req.Name))
	}

	status := models.OfferStatus(strings.ToLower(req.Status))
	if status == "" {
		status = models.OfferStatusDraft
	}
	offer := &models.Offer{
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		OfferType:      req.OfferType,
		LineOfBusiness: req.LineOfBusiness,
		Status:         status,
		CatalogTags:    req.CatalogTags,
		ValidFrom:      req.ValidFrom,
		ValidUntil:     req.ValidUntil,
		CreatedBy:      userID,
		UpdatedBy:      userID,
	}
	if err := s.repo.Create(ctx, offer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create offer")
	}
	return offer, nil
}

// Update modifies an existing offer.
func (s *OfferService) Update(ctx context.Context, id int64, req UpdateOfferRequest, userID int64) (*models.Offer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offer payload")
	}
	if err := validateWindow(req.ValidFrom, req.ValidUntil); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByName(ctx, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check offer name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("offer %q already exists", req.Name))
	}

	existing.Name = strings.TrimSpace(req.Name)
	existing.Description = req.Description
	existing.OfferType = req.OfferType
	existing.LineOfBusiness = req.LineOfBusiness
	existing.Status = models.OfferStatus(strings.ToLower(req.Status))
	existing.CatalogTags = req.CatalogTags
	existing.ValidFrom = req.ValidFrom
	existing.ValidUntil = req.ValidUntil
	existing.UpdatedBy = userID

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update offer")
	}
	return existing, nil
}

// Delete removes an offer. Offers with creatives attached are
// protected from deletion.
func (s *OfferService) Delete(ctx context.Context, id int64) error {
	count, err := s.repo.CountCreatives(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count offer creatives")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("offer has %d creatives attached", count))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "offer not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete offer")
	}
	return nil
}

func validateWindow(from, until *time.Time) error {
	if from != nil && until != nil && until.Before(*from) {
		return appErrors.Clone(appErrors.ErrValidation, "valid_until must be after valid_from")
	}
	return nil
}
