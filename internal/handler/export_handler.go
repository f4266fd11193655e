package handler

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/cvm-platform/cvm-admin-api/internal/middleware"
	"github.com/cvm-platform/cvm-admin-api/internal/service"
	"github.com/cvm-platform/cvm-admin-api/pkg/response"
)

type exportService interface {
	CreativeStatsExport(ctx context.Context, format string, userID int64) (*service.ExportResult, error)
}

// ExportHandler exposes export generation endpoints.
type ExportHandler struct {
	service exportService
}

// NewExportHandler builds a new handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Creatives godoc
// @Summary Export creative stats as CSV or PDF
// @Tags Exports
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /exports/creatives [get]
func (h *ExportHandler) Creatives(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	result, err := h.service.CreativeStatsExport(c.Request.Context(), format, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(200, result.ContentType, result.Content)
}
