package reference

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Cabralneto/site-tracker-pro/internal/auth"
	"github.com/Cabralneto/site-tracker-pro/pkg/workflows"
)

// Handler exposes the reference-data catalogues. Reads are open to every
// authenticated role; writes are admin-only.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	admin := auth.RequireRole(workflows.RoleAdmin)

	frentes := router.Group("/frentes")
	{
		frentes.GET("", h.listFrentes)
		frentes.POST("", admin, h.createFrente)
		frentes.PUT("/:id", admin, h.updateFrente)
		frentes.DELETE("/:id", admin, h.deactivateFrente)
	}

	disciplinas := router.Group("/disciplinas")
	{
		disciplinas.GET("", h.listDisciplinas)
		disciplinas.POST("", admin, h.createDisciplina)
		disciplinas.PUT("/:id", admin, h.updateDisciplina)
		disciplinas.DELETE("/:id", admin, h.deactivateDisciplina)
	}

	impedimentos := router.Group("/impedimentos")
	{
		impedimentos.GET("", h.listImpedimentos)
		impedimentos.POST("", admin, h.createImpedimento)
		impedimentos.PUT("/:id", admin, h.updateImpedimento)
		impedimentos.DELETE("/:id", admin, h.deactivateImpedimento)
	}
}

func (h *Handler) listFrentes(c *gin.Context) {
	onlyActive := c.Query("include_inactive") != "true"
	frentes, err := h.repo.ListFrentes(c.Request.Context(), onlyActive)
	if err != nil {
		h.logger.Error("Failed to list frentes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list frentes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"frentes": frentes})
}

func (h *Handler) createFrente(c *gin.Context) {
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, _ := auth.ActorFrom(c)
	frente := &Frente{Nome: req.Nome, Area: req.Area, Ativo: true, CriadoPor: &actor.UserID}
	if err := h.repo.CreateFrente(c.Request.Context(), frente); err != nil {
		h.logger.Error("Failed to create frente", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create frente"})
		return
	}
	c.JSON(http.StatusCreated, frente)
}

func (h *Handler) updateFrente(c *gin.Context) {
	id, req, ok := h.bindUpdate(c)
	if !ok {
		return
	}
	h.respond(c, h.repo.UpdateFrente(c.Request.Context(), id, req.Nome, req.Area), "frente")
}

func (h *Handler) deactivateFrente(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	h.respond(c, h.repo.SetFrenteAtivo(c.Request.Context(), id, false), "frente")
}

func (h *Handler) listDisciplinas(c *gin.Context) {
	onlyActive := c.Query("include_inactive") != "true"
	disciplinas, err := h.repo.ListDisciplinas(c.Request.Context(), onlyActive)
	if err != nil {
		h.logger.Error("Failed to list disciplinas", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list disciplinas"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"disciplinas": disciplinas})
}

func (h *Handler) createDisciplina(c *gin.Context) {
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, _ := auth.ActorFrom(c)
	disciplina := &Disciplina{Nome: req.Nome, Ativo: true, CriadoPor: &actor.UserID}
	if err := h.repo.CreateDisciplina(c.Request.Context(), disciplina); err != nil {
		h.logger.Error("Failed to create disciplina", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create disciplina"})
		return
	}
	c.JSON(http.StatusCreated, disciplina)
}

func (h *Handler) updateDisciplina(c *gin.Context) {
	id, req, ok := h.bindUpdate(c)
	if !ok {
		return
	}
	h.respond(c, h.repo.UpdateDisciplina(c.Request.Context(), id, req.Nome), "disciplina")
}

func (h *Handler) deactivateDisciplina(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	h.respond(c, h.repo.SetDisciplinaAtivo(c.Request.Context(), id, false), "disciplina")
}

func (h *Handler) listImpedimentos(c *gin.Context) {
	onlyActive := c.Query("include_inactive") != "true"
	impedimentos, err := h.repo.ListImpedimentos(c.Request.Context(), onlyActive)
	if err != nil {
		h.logger.Error("Failed to list impedimentos", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list impedimentos"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"impedimentos": impedimentos})
}

func (h *Handler) createImpedimento(c *gin.Context) {
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, _ := auth.ActorFrom(c)
	impedimento := &Impedimento{Nome: req.Nome, Ativo: true, CriadoPor: &actor.UserID}
	if err := h.repo.CreateImpedimento(c.Request.Context(), impedimento); err != nil {
		h.logger.Error("Failed to create impedimento", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create impedimento"})
		return
	}
	c.JSON(http.StatusCreated, impedimento)
}

func (h *Handler) updateImpedimento(c *gin.Context) {
	id, req, ok := h.bindUpdate(c)
	if !ok {
		return
	}
	h.respond(c, h.repo.UpdateImpedimento(c.Request.Context(), id, req.Nome), "impedimento")
}

func (h *Handler) deactivateImpedimento(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	h.respond(c, h.repo.SetImpedimentoAtivo(c.Request.Context(), id, false), "impedimento")
}

func (h *Handler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) bindUpdate(c *gin.Context) (uuid.UUID, *UpsertRequest, bool) {
	id, ok := h.parseID(c)
	if !ok {
		return uuid.Nil, nil, false
	}
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return uuid.Nil, nil, false
	}
	return id, &req, true
}

func (h *Handler) respond(c *gin.Context, err error, entity string) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": entity + " not found"})
			return
		}
		h.logger.Error("Reference data write failed", zap.String("entity", entity), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update " + entity})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
