package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cvm-platform/cvm-admin-api/internal/middleware"
	"github.com/cvm-platform/cvm-admin-api/internal/models"
	"github.com/cvm-platform/cvm-admin-api/internal/service"
	appErrors "github.com/cvm-platform/cvm-admin-api/pkg/errors"
	"github.com/cvm-platform/cvm-admin-api/pkg/response"
)

type creativeService interface {
	List(ctx context.Context, filter models.CreativeFilter) ([]models.OfferCreative, *models.Pagination, error)
	Get(ctx context.Context, id int64) (*models.OfferCreative, error)
	Create(ctx context.Context, req service.CreateCreativeRequest, userID int64) (*models.OfferCreative, error)
	Update(ctx context.Context, id int64, req service.UpdateCreativeRequest, userID int64) (*models.OfferCreative, error)
	Delete(ctx context.Context, id int64, userID int64) error
	Versions(ctx context.Context, id int64) ([]models.OfferCreative, error)
	Clone(ctx context.Context, id int64, req service.CloneCreativeRequest, userID int64) (*models.OfferCreative, error)
	Rollback(ctx context.Context, id int64, version int, userID int64) (*models.OfferCreative, error)
	Stats(ctx context.Context) (*models.CreativeStats, error)
	Render(ctx context.Context, req service.RenderCreativeRequest) (*service.RenderedCreative, error)
}

// CreativeHandler exposes offer-creative endpoints.
type CreativeHandler struct {
	service creativeService
	metrics *service.MetricsService
}

// NewCreativeHandler builds a new handler.
func NewCreativeHandler(svc creativeService, metrics *service.MetricsService) *CreativeHandler {
	return &CreativeHandler{service: svc, metrics: metrics}
}

// List godoc
// @Summary List creatives
// @Tags Creatives
// @Produce json
// @Param offer_id query int false "Offer id"
// @Param channel query string false "Channel"
// @Param locale query string false "Locale"
// @Param active query bool false "Active only"
// @Param latest query bool false "Head versions only"
// @Param search query string false "Title or body substring"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /creatives [get]
func (h *CreativeHandler) List(c *gin.Context) {
	filter := models.CreativeFilter{
		Channel:   models.Channel(c.Query("channel")),
		Locale:    c.Query("locale"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("offer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "offer_id must be an integer"))
			return
		}
		filter.OfferID = &id
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}
	filter.LatestOnly = c.Query("latest") == "true"
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	creatives, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, creatives, pagination)
}

// Get godoc
// @Summary Get a creative
// @Tags Creatives
// @Produce json
// @Param id path int true "Creative id"
// @Success 200 {object} response.Envelope
// @Router /creatives/{id} [get]
func (h *CreativeHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	creative, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, creative, nil)
}

// Create godoc
// @Summary Create a creative
// @Tags Creatives
// @Accept json
// @Produce json
// @Param payload body service.CreateCreativeRequest true "Creative payload"
// @Success 201 {object} response.Envelope
// @Router /creatives [post]
func (h *CreativeHandler) Create(c *gin.Context) {
	var req service.CreateCreativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid creative payload"))
		return
	}
	creative, err := h.service.Create(c.Request.Context(), req, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, creative)
}

// Update godoc
// @Summary Update a creative
// @Tags Creatives
// @Accept json
// @Produce json
// @Param id path int true "Creative id"
// @Param payload body service.UpdateCreativeRequest true "Creative payload"
// @Success 200 {object} response.Envelope
// @Router /creatives/{id} [patch]
func (h *CreativeHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.UpdateCreativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid creative payload"))
		return
	}
	creative, err := h.service.Update(c.Request.Context(), id, req, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, creative, nil)
}

// Delete godoc
// @Summary Delete a creative version
// @Tags Creatives
// @Produce json
// @Param id path int true "Creative id"
// @Success 204
// @Router /creatives/{id} [delete]
func (h *CreativeHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id, middleware.CurrentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Versions godoc
// @Summary List all versions for a creative's key
// @Tags Creatives
// @Produce json
// @Param id path int true "Creative id"
// @Success 200 {object} response.Envelope
// @Router /creatives/{id}/versions [get]
func (h *CreativeHandler) Versions(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	versions, err := h.service.Versions(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// Clone godoc
// @Summary Clone a creative onto another offer or locale
// @Tags Creatives
// @Accept json
// @Produce json
// @Param id path int true "Source creative id"
// @Param payload body service.CloneCreativeRequest true "Clone target"
// @Success 201 {object} response.Envelope
// @Router /creatives/{id}/clone [post]
func (h *CreativeHandler) Clone(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.CloneCreativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid clone payload"))
		return
	}
	clone, err := h.service.Clone(c.Request.Context(), id, req, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, clone)
}

// Rollback godoc
// @Summary Roll a creative back to a prior version
// @Tags Creatives
// @Produce json
// @Param id path int true "Creative id"
// @Param version path int true "Target version"
// @Success 201 {object} response.Envelope
// @Router /creatives/{id}/rollback/{version} [post]
func (h *CreativeHandler) Rollback(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "version must be a positive integer"))
		return
	}
	restored, err := h.service.Rollback(c.Request.Context(), id, version, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, restored)
}

// Stats godoc
// @Summary Aggregate creative inventory stats
// @Tags Creatives
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /creatives/stats [get]
func (h *CreativeHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Render godoc
// @Summary Render a creative body with substituted variables
// @Tags Creatives
// @Accept json
// @Produce json
// @Param payload body service.RenderCreativeRequest true "Render payload"
// @Success 200 {object} response.Envelope
// @Router /creatives/render [post]
func (h *CreativeHandler) Render(c *gin.Context) {
	var req service.RenderCreativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid render payload"))
		return
	}
	rendered, err := h.service.Render(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordRender()
	response.JSON(c, http.StatusOK, rendered, nil)
}
