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

type campaignService interface {
	List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, *models.Pagination, error)
	Get(ctx context.Context, id int64) (*models.Campaign, error)
	Create(ctx context.Context, req service.CampaignRequest, userID int64) (*models.Campaign, error)
	Update(ctx context.Context, id int64, req service.CampaignRequest, userID int64) (*models.Campaign, error)
	Delete(ctx context.Context, id int64) error
}

// CampaignHandler exposes campaign endpoints.
type CampaignHandler struct {
	service campaignService
}

// NewCampaignHandler builds a new handler.
func NewCampaignHandler(service campaignService) *CampaignHandler {
	return &CampaignHandler{service: service}
}

// List godoc
// @Summary List campaigns
// @Tags Campaigns
// @Produce json
// @Param status query string false "Status"
// @Param search query string false "Name substring"
// @Success 200 {object} response.Envelope
// @Router /campaigns [get]
func (h *CampaignHandler) List(c *gin.Context) {
	filter := models.CampaignFilter{
		Status:    models.CampaignStatus(c.Query("status")),
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	campaigns, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, campaigns, pagination)
}

// Get godoc
// @Summary Get a campaign
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign id"
// @Success 200 {object} response.Envelope
// @Router /campaigns/{id} [get]
func (h *CampaignHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	campaign, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, campaign, nil)
}

// Create godoc
// @Summary Create a campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param payload body service.CampaignRequest true "Campaign payload"
// @Success 201 {object} response.Envelope
// @Router /campaigns [post]
func (h *CampaignHandler) Create(c *gin.Context) {
	var req service.CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid campaign payload"))
		return
	}
	campaign, err := h.service.Create(c.Request.Context(), req, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, campaign)
}

// Update godoc
// @Summary Update a campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path int true "Campaign id"
// @Param payload body service.CampaignRequest true "Campaign payload"
// @Success 200 {object} response.Envelope
// @Router /campaigns/{id} [put]
func (h *CampaignHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid campaign payload"))
		return
	}
	campaign, err := h.service.Update(c.Request.Context(), id, req, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, campaign, nil)
}

// Delete godoc
// @Summary Delete a campaign
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign id"
// @Success 204
// @Router /campaigns/{id} [delete]
func (h *CampaignHandler) Delete(c *gin.Context) {
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
