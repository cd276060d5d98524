package sla

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Cabralneto/site-tracker-pro/internal/auth"
	"github.com/Cabralneto/site-tracker-pro/pkg/workflows"
)

// Handler exposes admin CRUD for SLA configuration.
type Handler struct {
	repo   Repository
	logger *zap.Logger
}

func NewHandler(repo Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	cfg := router.Group("/sla-config")
	{
		cfg.GET("", h.list)
		cfg.GET("/active", h.active)
		cfg.POST("", auth.RequireRole(workflows.RoleAdmin), h.create)
		cfg.PUT("/:id/activate", auth.RequireRole(workflows.RoleAdmin), h.activate)
	}
}

func (h *Handler) list(c *gin.Context) {
	configs, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list SLA configs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list SLA configs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"configs": configs})
}

func (h *Handler) active(c *gin.Context) {
	cfg, err := h.repo.Active(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load active SLA config", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load active SLA config"})
		return
	}
	if cfg == nil {
		c.JSON(http.StatusOK, gin.H{"config": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": cfg})
}

func (h *Handler) create(c *gin.Context) {
	var req CreateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, cutoff := range []string{req.HoraLimiteSolicitacao, req.HoraLimiteLiberacao} {
		if _, err := time.Parse("15:04:05", cutoff); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cutoffs must be HH:MM:SS"})
			return
		}
	}

	actor, _ := auth.ActorFrom(c)
	cfg := &Config{
		HoraLimiteSolicitacao: req.HoraLimiteSolicitacao,
		HoraLimiteLiberacao:   req.HoraLimiteLiberacao,
		Timezone:              req.Timezone,
		Ativo:                 req.Ativo,
		CriadoPor:             &actor.UserID,
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "America/Sao_Paulo"
	}

	if err := h.repo.Create(c.Request.Context(), cfg); err != nil {
		h.logger.Error("Failed to create SLA config", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create SLA config"})
		return
	}

	c.JSON(http.StatusCreated, cfg)
}

func (h *Handler) activate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config id"})
		return
	}

	if err := h.repo.Activate(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "config not found"})
			return
		}
		h.logger.Error("Failed to activate SLA config", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to activate SLA config"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"activated": id})
}
