package permits

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/Cabralneto/site-tracker-pro/internal/auth"
	"github.com/Cabralneto/site-tracker-pro/pkg/workflows"
)

// Handler handles HTTP requests for permit operations
type Handler struct {
	service       *Service
	logger        *zap.Logger
	publicBaseURL string
}

// NewHandler creates a new permits handler
func NewHandler(service *Service, logger *zap.Logger, publicBaseURL string) *Handler {
	return &Handler{
		service:       service,
		logger:        logger,
		publicBaseURL: publicBaseURL,
	}
}

// RegisterRoutes registers permit routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	permits := router.Group("/pts")
	{
		permits.POST("", h.createPermit)
		permits.GET("", h.listPermits)
		permits.GET("/:id", h.getPermit)
		permits.GET("/:id/qrcode", h.permitQRCode)
		permits.POST("/:id/events", h.transition)
		permits.PUT("/:id/delay-cause", h.updateDelayCause)
		permits.PUT("/events/:eventId/confirm", h.confirmArrival)
	}
}

func (h *Handler) createPermit(c *gin.Context) {
	var req CreatePermitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	permit, err := h.service.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.respondError(c, err, "Failed to create permit")
		return
	}

	c.JSON(http.StatusCreated, permit)
}

func (h *Handler) listPermits(c *gin.Context) {
	filters := &Filters{
		Search:   c.Query("search"),
		Page:     h.getIntParam(c, "page", 1),
		PageSize: h.getIntParam(c, "page_size", 20),
	}

	if v := c.Query("status"); v != "" {
		status := workflows.Status(v)
		if !workflows.ValidStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
		filters.Status = &status
	}
	if v := c.Query("tipo_pt"); v != "" {
		tipo := TipoPT(v)
		filters.TipoPT = &tipo
	}
	if v := c.Query("responsavel"); v != "" {
		resp := Responsavel(v)
		filters.Responsavel = &resp
	}
	if v := c.Query("frente_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid frente_id"})
			return
		}
		filters.FrenteID = &id
	}
	if v := c.Query("data_inicio"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "data_inicio must be YYYY-MM-DD"})
			return
		}
		filters.DataInicio = &t
	}
	if v := c.Query("data_fim"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "data_fim must be YYYY-MM-DD"})
			return
		}
		filters.DataFim = &t
	}

	permits, total, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		h.respondError(c, err, "Failed to list permits")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pts":       permits,
		"total":     total,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

func (h *Handler) getPermit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid permit id"})
		return
	}

	detail, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to get permit")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pt":             detail.Permit,
		"eventos":        detail.Events,
		"hh_improdutivo": detail.Permit.HHImprodutivo(),
	})
}

// permitQRCode renders a PNG QR code pointing at the permit detail page,
// for printing on the physical permit sheet.
func (h *Handler) permitQRCode(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid permit id"})
		return
	}

	if _, err := h.service.Get(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "Failed to get permit for QR code")
		return
	}

	url := fmt.Sprintf("%s/pt/%s", h.publicBaseURL, id)
	png, err := qrcode.Encode(url, qrcode.Medium, 300)
	if err != nil {
		h.logger.Error("Failed to encode QR code", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate QR code"})
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid permit id"})
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	if ua := c.Request.UserAgent(); ua != "" {
		req.UserAgent = &ua
	}
	if ip := c.ClientIP(); ip != "" {
		req.IP = &ip
	}

	result, err := h.service.Transition(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.respondError(c, err, "Failed to transition permit")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) updateDelayCause(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid permit id"})
		return
	}

	var req struct {
		CausaAtraso string `json:"causa_atraso" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	if err := h.service.UpdateDelayCause(c.Request.Context(), actor, id, req.CausaAtraso); err != nil {
		h.respondError(c, err, "Failed to update delay cause")
		return
	}

	c.JSON(http.StatusOK, gin.H{"pt_id": id, "causa_atraso": req.CausaAtraso})
}

func (h *Handler) confirmArrival(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	event, err := h.service.ConfirmArrival(c.Request.Context(), actor, eventID)
	if err != nil {
		h.respondError(c, err, "Failed to confirm arrival")
		return
	}

	c.JSON(http.StatusOK, event)
}

// respondError maps domain errors onto HTTP statuses. Guard violations
// carry the guard name so the UI can show a precise message.
func (h *Handler) respondError(c *gin.Context, err error, logMsg string) {
	var ge *workflows.GuardError
	var ve *ValidationError

	switch {
	case errors.As(err, &ge):
		c.JSON(http.StatusConflict, gin.H{"error": ge.Message, "guard": ge.Guard})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "field": ve.Field})
	case errors.Is(err, ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role for this action"})
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		h.logger.Error(logMsg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error, the operation may be retried"})
	}
}

func (h *Handler) getIntParam(c *gin.Context, name string, defaultValue int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
