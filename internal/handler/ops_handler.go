package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
	"github.com/cvm-platform/cvm-admin-api/internal/service"
	"github.com/cvm-platform/cvm-admin-api/pkg/response"
)

type auditReader interface {
	List(ctx context.Context, action, resource string, page, pageSize int) ([]models.AuditLog, int, error)
}

// OpsHandler exposes operational endpoints: health, readiness, runtime
// metrics snapshot and the audit trail.
type OpsHandler struct {
	metrics *service.MetricsService
	audit   auditReader
	ready   func(ctx context.Context) error
}

// NewOpsHandler builds a new handler. ready is invoked on each
// readiness probe; nil means always ready.
func NewOpsHandler(metrics *service.MetricsService, audit auditReader, ready func(ctx context.Context) error) *OpsHandler {
	return &OpsHandler{metrics: metrics, audit: audit, ready: ready}
}

// Health godoc
// @Summary Liveness probe
// @Tags Ops
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /health [get]
func (h *OpsHandler) Health(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{"status": "ok"}, nil)
}

// Ready godoc
// @Summary Readiness probe
// @Tags Ops
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ready [get]
func (h *OpsHandler) Ready(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	response.JSON(c, http.StatusOK, gin.H{"status": "ready"}, nil)
}

// Snapshot godoc
// @Summary Runtime metrics snapshot
// @Tags Ops
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ops/metrics [get]
func (h *OpsHandler) Snapshot(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}

// AuditTrail godoc
// @Summary List audit trail entries
// @Tags Ops
// @Produce json
// @Param action query string false "Action filter"
// @Param resource query string false "Resource filter"
// @Success 200 {object} response.Envelope
// @Router /ops/audit [get]
func (h *OpsHandler) AuditTrail(c *gin.Context) {
	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 20)
	entries, total, err := h.audit.List(c.Request.Context(), c.Query("action"), c.Query("resource"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, entries, pagination)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
