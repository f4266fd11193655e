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

type offerService interface {
	List(ctx context.Context, filter models.OfferFilter) ([]models.Offer, *models.Pagination, error)
	Get(ctx context.Context, id int64) (*models.Offer, error)
	Create(ctx context.Context, req service.CreateOfferRequest, userID int64) (*models.Offer, error)
	Update(ctx context.Context, id int64, req service.UpdateOfferRequest, userID int64) (*models.Offer, error)
	Delete(ctx context.Context, id int64) error
}

// OfferHandler exposes offer endpoints.
type OfferHandler struct {
	service offerService
}

// NewOfferHandler builds a new handler.
func NewOfferHandler(service offerService) *OfferHandler {
	return &OfferHandler{service: service}
}

// List godoc
// @Summary List offers
// @Tags Offers
// @Produce json
// @Param status query string false "Status"
// @Param offer_type query string false "Offer type"
// @Param search query string false "Name or description substring"
// @Success 200 {object} response.Envelope
// @Router /offers [get]
func (h *OfferHandler) List(c *gin.Context) {
	filter := models.OfferFilter{
		Status:    models.OfferStatus(c.Query("status")),
		OfferType: c.Query("offer_type"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	offers, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offers, pagination)
}

// Get godoc
// @Summary Get an offer
// @Tags Offers
// @Produce json
// @Param id path int true "Offer id"
// @Success 200 {object} response.Envelope
// @Router /offers/{id} [get]
func (h *OfferHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	offer, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offer, nil)
}

// Create godoc
// @Summary Create an offer
// @Tags Offers
// @Accept json
// @Produce json
// @Param payload body service.CreateOfferRequest true "Offer payload"
// @Success 201 {object} response.Envelope
// @Router /offers [post]
func (h *OfferHandler) Create(c *gin.Context) {
	var req service.CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid offer payload"))
		return
	}
	offer, err := h.service.Create(c.Request.Context(), req, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, offer)
}

// Update godoc
// @Summary Update an offer
// @Tags Offers
// @Accept json
// @Produce json
// @Param id path int true "Offer id"
// @Param payload body service.UpdateOfferRequest true "Offer payload"
// @Success 200 {object} response.Envelope
// @Router /offers/{id} [put]
func (h *OfferHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.UpdateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid offer payload"))
		return
	}
	offer, err := h.service.Update(c.Request.Context(), id, req, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offer, nil)
}

// Delete godoc
// @Summary Delete an offer
// @Tags Offers
// @Produce json
// @Param id path int true "Offer id"
// @Success 204
// @Router /offers/{id} [delete]
func (h *OfferHandler) Delete(c *gin.Context) {
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
