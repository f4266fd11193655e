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

type segmentService interface {
	List(ctx context.Context, filter models.SegmentFilter) ([]models.Segment, *models.Pagination, error)
	Get(ctx context.Context, id int64) (*models.Segment, error)
	Create(ctx context.Context, req service.SegmentRequest, userID int64) (*models.Segment, error)
	Update(ctx context.Context, id int64, req service.SegmentRequest, userID int64) (*models.Segment, error)
	Delete(ctx context.Context, id int64) error
}

// SegmentHandler exposes segment endpoints.
type SegmentHandler struct {
	service segmentService
}

// NewSegmentHandler builds a new handler.
func NewSegmentHandler(service segmentService) *SegmentHandler {
	return &SegmentHandler{service: service}
}

// List godoc
// @Summary List segments
// @Tags Segments
// @Produce json
// @Param segment_type query string false "Segment type"
// @Param search query string false "Name or description substring"
// @Success 200 {object} response.Envelope
// @Router /segments [get]
func (h *SegmentHandler) List(c *gin.Context) {
	filter := models.SegmentFilter{
		SegmentType: c.Query("segment_type"),
		Search:      c.Query("search"),
		SortBy:      c.Query("sort_by"),
		SortOrder:   c.Query("sort_order"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	segments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, segments, pagination)
}

// Get godoc
// @Summary Get a segment
// @Tags Segments
// @Produce json
// @Param id path int true "Segment id"
// @Success 200 {object} response.Envelope
// @Router /segments/{id} [get]
func (h *SegmentHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	segment, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, segment, nil)
}

// Create godoc
// @Summary Create a segment
// @Tags Segments
// @Accept json
// @Produce json
// @Param payload body service.SegmentRequest true "Segment payload"
// @Success 201 {object} response.Envelope
// @Router /segments [post]
func (h *SegmentHandler) Create(c *gin.Context) {
	var req service.SegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid segment payload"))
		return
	}
	segment, err := h.service.Create(c.Request.Context(), req, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, segment)
}

// Update godoc
// @Summary Update a segment
// @Tags Segments
// @Accept json
// @Produce json
// @Param id path int true "Segment id"
// @Param payload body service.SegmentRequest true "Segment payload"
// @Success 200 {object} response.Envelope
// @Router /segments/{id} [put]
func (h *SegmentHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.SegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid segment payload"))
		return
	}
	segment, err := h.service.Update(c.Request.Context(), id, req, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, segment, nil)
}

// Delete godoc
// @Summary Delete a segment
// @Tags Segments
// @Produce json
// @Param id path int true "Segment id"
// @Success 204
// @Router /segments/{id} [delete]
func (h *SegmentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
