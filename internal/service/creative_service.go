package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
	"github.com/cvm-platform/cvm-admin-api/internal/repository"
	"github.com/cvm-platform/cvm-admin-api/internal/template"
	appErrors "github.com/cvm-platform/cvm-admin-api/pkg/errors"
)

var localePattern = regexp.MustCompile(`^[a-z]{2}(-[A-Z]{2})?$`)

type creativeRepository interface {
	List(ctx context.Context, filter models.CreativeFilter) ([]models.OfferCreative, int, error)
	FindByID(ctx context.Context, id int64) (*models.OfferCreative, error)
	FindVersion(ctx context.Context, offerID int64, channel models.Channel, locale string, version int) (*models.OfferCreative, error)
	ListVersions(ctx context.Context, offerID int64, channel models.Channel, locale string) ([]models.OfferCreative, error)
	Create(ctx context.Context, creative *models.OfferCreative) error
	Update(ctx context.Context, creative *models.OfferCreative) error
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*models.CreativeStats, error)
}

type creativeOfferRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Offer, error)
}

type creativeCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type creativeAuditor interface {
	Record(action, resource, resourceID string, userID int64, oldValue, newValue interface{})
}

type cacheMetrics interface {
	RecordCacheOperation(hit bool)
}

const (
	creativeStatsCacheKey    = "creatives:stats"
	creativeCachePattern     = "creatives:*"
	creativeResource         = "offer_creatives"
	defaultMaxVersionsPerKey = 50
)

// CreativeService handles the offer-creative lifecycle: CRUD, version
// history, clone, rollback, stats and rendering.
type CreativeService struct {
	repo        creativeRepository
	offers      creativeOfferRepository
	cache       creativeCache
	auditor     creativeAuditor
	metrics     cacheMetrics
	validator   *validator.Validate
	logger      *zap.Logger
	statsTTL    time.Duration
	listTTL     time.Duration
	maxVersions int
}

// CreativeServiceConfig bundles optional collaborators.
type CreativeServiceConfig struct {
	Cache       creativeCache
	Auditor     creativeAuditor
	Metrics     cacheMetrics
	StatsTTL    time.Duration
	ListTTL     time.Duration
	MaxVersions int
}

// NewCreativeService constructs the service.
func NewCreativeService(repo creativeRepository, offers creativeOfferRepository, validate *validator.Validate, logger *zap.Logger, cfg CreativeServiceConfig) *CreativeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = 5 * time.Minute
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = time.Minute
	}
	if cfg.MaxVersions <= 0 {
		cfg.MaxVersions = defaultMaxVersionsPerKey
	}
	svc := &CreativeService{
		repo:        repo,
		offers:      offers,
		cache:       cfg.Cache,
		auditor:     cfg.Auditor,
		metrics:     cfg.Metrics,
		validator:   validate,
		logger:      logger,
		statsTTL:    cfg.StatsTTL,
		listTTL:     cfg.ListTTL,
		maxVersions: cfg.MaxVersions,
	}
	svc.validator.RegisterValidation("channel", func(fl validator.FieldLevel) bool {
		return models.ValidChannel(models.Channel(fl.Field().String()))
	})
	svc.validator.RegisterValidation("locale", func(fl validator.FieldLevel) bool {
		return localePattern.MatchString(fl.Field().String())
	})
	return svc
}

// CreateCreativeRequest describes a create payload.
type CreateCreativeRequest struct {
	OfferID           int64          `json:"offer_id" validate:"required,gt=0"`
	Channel           string         `json:"channel" validate:"required,channel"`
	Locale            string         `json:"locale" validate:"required,locale"`
	Title             string         `json:"title" validate:"max=200"`
	TextBody          string         `json:"text_body"`
	HTMLBody          string         `json:"html_body"`
	Variables         models.JSONMap `json:"variables"`
	DefaultValues     models.JSONMap `json:"default_values"`
	RequiredVariables []string       `json:"required_variables"`
	IsActive          *bool          `json:"is_active"`
}

// UpdateCreativeRequest describes a partial update; nil fields keep
// their current value.
type UpdateCreativeRequest struct {
	Title             *string        `json:"title" validate:"omitempty,max=200"`
	TextBody          *string        `json:"text_body"`
	HTMLBody          *string        `json:"html_body"`
	Variables         models.JSONMap `json:"variables"`
	DefaultValues     models.JSONMap `json:"default_values"`
	RequiredVariables []string       `json:"required_variables"`
	IsActive          *bool          `json:"is_active"`
}

// CloneCreativeRequest describes a clone target.
type CloneCreativeRequest struct {
	TargetOfferID int64  `json:"target_offer_id" validate:"required,gt=0"`
	TargetLocale  string `json:"target_locale" validate:"omitempty,locale"`
}

// RenderCreativeRequest drives a render. Persisted selects the path:
// when true the creative identified by ID is loaded and rendered;
// when false the submitted draft body is rendered directly.
type RenderCreativeRequest struct {
	Persisted bool           `json:"persisted"`
	ID        int64          `json:"id"`
	TextBody  string         `json:"text_body"`
	HTMLBody  string         `json:"html_body"`
	Variables models.JSONMap `json:"variables"`
}

// RenderedCreative is the outcome of a render.
type RenderedCreative struct {
	TextBody         string   `json:"text_body"`
	HTMLBody         string   `json:"html_body,omitempty"`
	UnresolvedTokens []string `json:"unresolved_tokens,omitempty"`
}

// List returns creatives matching the filter.
func (s *CreativeService) List(ctx context.Context, filter models.CreativeFilter) ([]models.OfferCreative, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.Channel != "" && !models.ValidChannel(filter.Channel) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown channel %q", filter.Channel))
	}

	key := listCacheKey(filter)
	if s.cache != nil {
		var cached cachedCreativeList
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			s.recordCacheRead(true)
			return cached.Items, cached.Pagination, nil
		}
		s.recordCacheRead(false)
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("creative list cache read failed", zap.Error(err))
		}
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list creatives")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedCreativeList{Items: rows, Pagination: pagination}, s.listTTL); err != nil {
			s.logger.Warn("creative list cache write failed", zap.Error(err))
		}
	}
	return rows, pagination, nil
}

type cachedCreativeList struct {
	Items      []models.OfferCreative `json:"items"`
	Pagination *models.Pagination     `json:"pagination"`
}

func listCacheKey(filter models.CreativeFilter) string {
	offerID := int64(0)
	if filter.OfferID != nil {
		offerID = *filter.OfferID
	}
	active := "any"
	if filter.Active != nil {
		active = fmt.Sprintf("%t", *filter.Active)
	}
	return fmt.Sprintf("creatives:list:%d:%s:%s:%s:%t:%s:%d:%d:%s:%s",
		offerID, filter.Channel, filter.Locale, active, filter.LatestOnly,
		filter.Search, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

// Get returns one creative by id.
func (s *CreativeService) Get(ctx context.Context, id int64) (*models.OfferCreative, error) {
	creative, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "creative not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load creative")
	}
	return creative, nil
}

// Create validates and persists a new creative head version.
func (s *CreativeService) Create(ctx context.Context, req CreateCreativeRequest, userID int64) (*models.OfferCreative, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid creative payload")
	}
	if _, err := s.offers.FindByID(ctx, req.OfferID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offer")
	}

	versions, err := s.repo.ListVersions(ctx, req.OfferID, models.Channel(req.Channel), req.Locale)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect versions")
	}
	if len(versions) >= s.maxVersions {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("version limit of %d reached for this creative", s.maxVersions))
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	creative := &models.OfferCreative{
		OfferID:           req.OfferID,
		Channel:           models.Channel(req.Channel),
		Locale:            req.Locale,
		Title:             req.Title,
		TextBody:          req.TextBody,
		HTMLBody:          req.HTMLBody,
		Variables:         req.Variables,
		DefaultValues:     req.DefaultValues,
		RequiredVariables: req.RequiredVariables,
		IsActive:          active,
		CreatedBy:         userID,
		UpdatedBy:         userID,
	}
	if err := s.repo.Create(ctx, creative); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "creative version already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create creative")
	}

	s.invalidateCache(ctx)
	s.audit(models.AuditActionCreativeCreate, creative.ID, userID, nil, creative)
	return creative, nil
}

// Update applies a partial update to an existing creative.
func (s *CreativeService) Update(ctx context.Context, id int64, req UpdateCreativeRequest, userID int64) (*models.OfferCreative, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid creative payload")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *existing

	if req.Title != nil {
		existing.Title = *req.Title
	}
	if req.TextBody != nil {
		existing.TextBody = *req.TextBody
	}
	if req.HTMLBody != nil {
		existing.HTMLBody = *req.HTMLBody
	}
	if req.Variables != nil {
		existing.Variables = req.Variables
	}
	if req.DefaultValues != nil {
		existing.DefaultValues = req.DefaultValues
	}
	if req.RequiredVariables != nil {
		existing.RequiredVariables = req.RequiredVariables
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	existing.UpdatedBy = userID

	if err := s.repo.Update(ctx, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "creative not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update creative")
	}

	s.invalidateCache(ctx)
	s.audit(models.AuditActionCreativeUpdate, id, userID, before, existing)
	return existing, nil
}

// Delete removes a creative version.
func (s *CreativeService) Delete(ctx context.Context, id int64, userID int64) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "creative not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete creative")
	}

	s.invalidateCache(ctx)
	s.audit(models.AuditActionCreativeDelete, id, userID, existing, nil)
	return nil
}

// Versions returns the full version history for the creative's
// (offer, channel, locale) key, newest first.
func (s *CreativeService) Versions(ctx context.Context, id int64) ([]models.OfferCreative, error) {
	creative, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	versions, err := s.repo.ListVersions(ctx, creative.OfferID, creative.Channel, creative.Locale)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list versions")
	}
	return versions, nil
}

// Clone copies a creative onto another offer and/or locale as a new
// head version there.
func (s *CreativeService) Clone(ctx context.Context, id int64, req CloneCreativeRequest, userID int64) (*models.OfferCreative, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clone payload")
	}
	source, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.offers.FindByID(ctx, req.TargetOfferID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target offer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target offer")
	}

	locale := source.Locale
	if req.TargetLocale != "" {
		locale = req.TargetLocale
	}
	if req.TargetOfferID == source.OfferID && locale == source.Locale {
		return nil, appErrors.Clone(appErrors.ErrValidation, "clone target matches the source creative")
	}

	clone := &models.OfferCreative{
		OfferID:           req.TargetOfferID,
		Channel:           source.Channel,
		Locale:            locale,
		Title:             source.Title,
		TextBody:          source.TextBody,
		HTMLBody:          source.HTMLBody,
		Variables:         source.Variables,
		DefaultValues:     source.DefaultValues,
		RequiredVariables: source.RequiredVariables,
		IsActive:          source.IsActive,
		CreatedBy:         userID,
		UpdatedBy:         userID,
	}
	if err := s.repo.Create(ctx, clone); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "creative version already exists at the target")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clone creative")
	}

	s.invalidateCache(ctx)
	s.audit(models.AuditActionCreativeClone, clone.ID, userID, source, clone)
	return clone, nil
}

// Rollback creates a new head version whose content is copied from an
// earlier version of the same creative key.
func (s *CreativeService) Rollback(ctx context.Context, id int64, version int, userID int64) (*models.OfferCreative, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if version <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rollback version must be a prior version")
	}
	target, err := s.repo.FindVersion(ctx, current.OfferID, current.Channel, current.Locale, version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrVersionGone, fmt.Sprintf("version %d no longer exists", version))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
	}
	if target.IsLatest {
		return nil, appErrors.Clone(appErrors.ErrValidation, "creative is already at this version")
	}

	restored := &models.OfferCreative{
		OfferID:           target.OfferID,
		Channel:           target.Channel,
		Locale:            target.Locale,
		Title:             target.Title,
		TextBody:          target.TextBody,
		HTMLBody:          target.HTMLBody,
		Variables:         target.Variables,
		DefaultValues:     target.DefaultValues,
		RequiredVariables: target.RequiredVariables,
		IsActive:          target.IsActive,
		CreatedBy:         userID,
		UpdatedBy:         userID,
	}
	if err := s.repo.Create(ctx, restored); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to roll back creative")
	}

	s.invalidateCache(ctx)
	s.audit(models.AuditActionCreativeRollback, restored.ID, userID, current, restored)
	return restored, nil
}

// Stats aggregates inventory totals, served from cache when warm.
func (s *CreativeService) Stats(ctx context.Context) (*models.CreativeStats, error) {
	if s.cache != nil {
		var cached models.CreativeStats
		err := s.cache.Get(ctx, creativeStatsCacheKey, &cached)
		if err == nil {
			s.recordCacheRead(true)
			return &cached, nil
		}
		s.recordCacheRead(false)
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("creative stats cache read failed", zap.Error(err))
		}
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute creative stats")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, creativeStatsCacheKey, stats, s.statsTTL); err != nil {
			s.logger.Warn("creative stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

// Render substitutes variables into a creative body. The Persisted
// flag selects the source: a stored creative or the submitted draft.
func (s *CreativeService) Render(ctx context.Context, req RenderCreativeRequest) (*RenderedCreative, error) {
	textBody := req.TextBody
	htmlBody := req.HTMLBody
	vars := map[string]interface{}(req.Variables)

	if req.Persisted {
		if req.ID <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "id is required for a persisted render")
		}
		creative, err := s.Get(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		textBody = creative.TextBody
		htmlBody = creative.HTMLBody
		vars = mergeVariables(creative.DefaultValues, creative.Variables, req.Variables)
	}

	rendered := &RenderedCreative{
		TextBody: template.Render(textBody, vars),
	}
	if htmlBody != "" {
		rendered.HTMLBody = template.Render(htmlBody, vars)
	}
	rendered.UnresolvedTokens = unresolvedTokens(rendered.TextBody, rendered.HTMLBody)
	return rendered, nil
}

// unresolvedTokens collects the leftover tokens across the rendered
// bodies, first occurrence wins.
func unresolvedTokens(bodies ...string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, body := range bodies {
		for _, token := range template.Tokens(body) {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			out = append(out, token)
		}
	}
	return out
}

// mergeVariables layers later maps over earlier ones.
func mergeVariables(maps ...models.JSONMap) map[string]interface{} {
	merged := map[string]interface{}{}
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}

func (s *CreativeService) recordCacheRead(hit bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCacheOperation(hit)
}

func (s *CreativeService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, creativeCachePattern); err != nil {
		s.logger.Warn("creative cache invalidation failed", zap.Error(err))
	}
}

func (s *CreativeService) audit(action string, creativeID, userID int64, oldValue, newValue interface{}) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(action, creativeResource, fmt.Sprintf("%d", creativeID), userID, oldValue, newValue)
}
