package reports

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Cabralneto/site-tracker-pro/internal/permits"
	"github.com/Cabralneto/site-tracker-pro/pkg/workflows"
)

// Handler handles HTTP requests for report operations
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new reports handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers report routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports")
	{
		reports.GET("/pts", h.listRows)
		reports.GET("/stats", h.stats)
		reports.GET("/export/excel", h.exportExcel)
		reports.GET("/export/pdf", h.exportPDF)
	}
	router.GET("/dashboard/summary", h.dashboardSummary)
}

func (h *Handler) listRows(c *gin.Context) {
	filters, ok := h.parseFilters(c)
	if !ok {
		return
	}

	rows, err := h.service.Rows(c.Request.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to query report rows", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
		return
	}

	// hh_improdutivo is derived, so it rides alongside each row instead of
	// being stored.
	out := make([]gin.H, len(rows))
	for i, row := range rows {
		out[i] = gin.H{
			"pt":             row,
			"hh_improdutivo": row.HHImprodutivo(),
		}
	}

	c.JSON(http.StatusOK, gin.H{"rows": out, "total": len(rows)})
}

func (h *Handler) stats(c *gin.Context) {
	filters, ok := h.parseFilters(c)
	if !ok {
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to query report stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// dashboardSummary is the stats endpoint scoped to today by default.
func (h *Handler) dashboardSummary(c *gin.Context) {
	filters, ok := h.parseFilters(c)
	if !ok {
		return
	}
	if filters.DataInicio == nil && filters.DataFim == nil {
		today := time.Now().Truncate(24 * time.Hour)
		filters.DataInicio = &today
		filters.DataFim = &today
	}

	stats, err := h.service.Stats(c.Request.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to query dashboard summary", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build summary"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) exportExcel(c *gin.Context) {
	filters, ok := h.parseFilters(c)
	if !ok {
		return
	}

	result, err := h.service.ExportExcel(c.Request.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to export excel report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export report"})
		return
	}

	h.sendFile(c, result)
}

func (h *Handler) exportPDF(c *gin.Context) {
	filters, ok := h.parseFilters(c)
	if !ok {
		return
	}

	result, err := h.service.ExportPDF(c.Request.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to export pdf report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export report"})
		return
	}

	h.sendFile(c, result)
}

func (h *Handler) sendFile(c *gin.Context, result *ExportResult) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	if result.Truncated {
		c.Header("X-Report-Truncated", "true")
	}
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

// parseFilters reads filter query params; on a malformed value it writes the
// 400 response itself and reports ok=false.
func (h *Handler) parseFilters(c *gin.Context) (Filters, bool) {
	filters := Filters{}

	if v := c.Query("data_inicio"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "data_inicio must be YYYY-MM-DD"})
			return filters, false
		}
		filters.DataInicio = &t
	}
	if v := c.Query("data_fim"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "data_fim must be YYYY-MM-DD"})
			return filters, false
		}
		filters.DataFim = &t
	}
	if v := c.Query("status"); v != "" {
		status := workflows.Status(v)
		if !workflows.ValidStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return filters, false
		}
		filters.Status = &status
	}
	if v := c.Query("tipo_pt"); v != "" {
		tipo := permits.TipoPT(v)
		filters.TipoPT = &tipo
	}
	if v := c.Query("responsavel"); v != "" {
		resp := permits.Responsavel(v)
		filters.Responsavel = &resp
	}
	if v := c.Query("frente_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid frente_id"})
			return filters, false
		}
		filters.FrenteID = &id
	}
	if v := c.Query("disciplina_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid disciplina_id"})
			return filters, false
		}
		filters.DisciplinaID = &id
	}

	return filters, true
}
