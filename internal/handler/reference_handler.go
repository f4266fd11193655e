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

type referenceService interface {
	DescriptorList() []service.TypeDescriptor
	List(ctx context.Context, listType, search string) ([]models.ReferenceItem, error)
	Get(ctx context.Context, listType string, id int64) (*models.ReferenceItem, error)
	Create(ctx context.Context, listType string, input service.ReferenceItemInput, userID int64) (*models.ReferenceItem, error)
	Update(ctx context.Context, listType string, id int64, input service.ReferenceItemInput, userID int64) (*models.ReferenceItem, error)
	Delete(ctx context.Context, listType string, id int64, userID int64) error
	Preview(ctx context.Context, req service.PreviewRequest) (string, error)
}

// ReferenceHandler exposes the generic reference-data CRUD endpoints.
type ReferenceHandler struct {
	service referenceService
}

// NewReferenceHandler builds a new handler.
func NewReferenceHandler(service referenceService) *ReferenceHandler {
	return &ReferenceHandler{service: service}
}

// Types godoc
// @Summary List reference types and their descriptors
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reference [get]
func (h *ReferenceHandler) Types(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.DescriptorList(), nil)
}

// List godoc
// @Summary List items of a reference type
// @Tags Reference
// @Produce json
// @Param type path string true "Reference type"
// @Param search query string false "Name or description substring"
// @Success 200 {object} response.Envelope
// @Router /reference/{type} [get]
func (h *ReferenceHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), c.Param("type"), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get a reference item
// @Tags Reference
// @Produce json
// @Param type path string true "Reference type"
// @Param id path int true "Item id"
// @Success 200 {object} response.Envelope
// @Router /reference/{type}/{id} [get]
func (h *ReferenceHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), c.Param("type"), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Create a reference item
// @Tags Reference
// @Accept json
// @Produce json
// @Param type path string true "Reference type"
// @Param payload body service.ReferenceItemInput true "Item payload"
// @Success 201 {object} response.Envelope
// @Router /reference/{type} [post]
func (h *ReferenceHandler) Create(c *gin.Context) {
	var input service.ReferenceItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid item payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), c.Param("type"), input, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update a reference item
// @Tags Reference
// @Accept json
// @Produce json
// @Param type path string true "Reference type"
// @Param id path int true "Item id"
// @Param payload body service.ReferenceItemInput true "Item payload"
// @Success 200 {object} response.Envelope
// @Router /reference/{type}/{id} [put]
func (h *ReferenceHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input service.ReferenceItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid item payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("type"), id, input, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete a reference item
// @Tags Reference
// @Produce json
// @Param type path string true "Reference type"
// @Param id path int true "Item id"
// @Success 204
// @Router /reference/{type}/{id} [delete]
func (h *ReferenceHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("type"), id, middleware.CurrentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Preview godoc
// @Summary Preview a draft template body with substituted variables
// @Tags Reference
// @Accept json
// @Produce json
// @Param payload body service.PreviewRequest true "Preview payload"
// @Success 200 {object} response.Envelope
// @Router /reference/preview [post]
func (h *ReferenceHandler) Preview(c *gin.Context) {
	var req service.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preview payload"))
		return
	}
	rendered, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"rendered": rendered}, nil)
}

// pathID parses the :id path segment, responding with a validation
// error when it is not a positive integer.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id must be a positive integer"))
		return 0, false
	}
	return id, true
}
