package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Cabralneto/site-tracker-pro/internal/auth"
	"github.com/Cabralneto/site-tracker-pro/pkg/workflows"
)

// Handler exposes login, invite acceptance and admin user management.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublicRoutes registers the endpoints reachable without a token.
func (h *Handler) RegisterPublicRoutes(router *gin.RouterGroup) {
	router.POST("/auth/login", h.login)
	router.POST("/auth/accept-invite", h.acceptInvite)
}

// RegisterRoutes registers the authenticated user-management endpoints.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	{
		users.GET("", h.listUsers)
		users.POST("", h.createUser)
		users.POST("/invite", h.invite)
		users.POST("/invite/resend", h.resendInvite)
		users.DELETE("/:id", h.deleteUser)
		users.PUT("/:id/deactivate", h.deactivate)
		users.POST("/:id/roles", h.assignRole)
		users.DELETE("/:id/roles/:role", h.revokeRole)
	}
}

func (h *Handler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, profile, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		h.logger.Error("Login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": profile})
}

func (h *Handler) acceptInvite(c *gin.Context) {
	var req AcceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.service.AcceptInvite(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInviteNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "convite não encontrado"})
		case errors.Is(err, ErrInviteExpired):
			c.JSON(http.StatusGone, gin.H{"error": "convite expirado"})
		case errors.Is(err, ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": "senha deve ter ao menos 8 caracteres"})
		default:
			h.logger.Error("Failed to accept invite", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept invite"})
		}
		return
	}

	c.JSON(http.StatusCreated, profile)
}

func (h *Handler) listUsers(c *gin.Context) {
	actor, _ := auth.ActorFrom(c)
	views, err := h.service.ListUsers(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err, "Failed to list users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": views})
}

func (h *Handler) createUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, _ := auth.ActorFrom(c)
	profile, err := h.service.CreateUser(c.Request.Context(), actor, &req)
	if err != nil {
		h.respondError(c, err, "Failed to create user")
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func (h *Handler) invite(c *gin.Context) {
	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, _ := auth.ActorFrom(c)
	invite, err := h.service.Invite(c.Request.Context(), actor, &req)
	if err != nil {
		h.respondError(c, err, "Failed to create invite")
		return
	}
	c.JSON(http.StatusCreated, invite)
}

func (h *Handler) resendInvite(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, _ := auth.ActorFrom(c)
	invite, err := h.service.ResendInvite(c.Request.Context(), actor, req.Email)
	if err != nil {
		h.respondError(c, err, "Failed to resend invite")
		return
	}
	c.JSON(http.StatusOK, invite)
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	actor, _ := auth.ActorFrom(c)
	if err := h.service.DeleteUser(c.Request.Context(), actor, id); err != nil {
		h.respondError(c, err, "Failed to delete user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) deactivate(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	actor, _ := auth.ActorFrom(c)
	if err := h.service.Deactivate(c.Request.Context(), actor, id); err != nil {
		h.respondError(c, err, "Failed to deactivate user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deactivated": id})
}

func (h *Handler) assignRole(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req struct {
		Role workflows.Role `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, _ := auth.ActorFrom(c)
	if err := h.service.AssignRole(c.Request.Context(), actor, id, req.Role); err != nil {
		h.respondError(c, err, "Failed to assign role")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id, "role": req.Role})
}

func (h *Handler) revokeRole(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	actor, _ := auth.ActorFrom(c)
	role := workflows.Role(c.Param("role"))
	if err := h.service.RevokeRole(c.Request.Context(), actor, id, role); err != nil {
		h.respondError(c, err, "Failed to revoke role")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id, "revoked": role})
}

func (h *Handler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, auth.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
	case errors.Is(err, ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "formato de email inválido"})
	case errors.Is(err, ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "este email já está cadastrado no sistema"})
	case errors.Is(err, ErrInviteRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "limite de convites atingido, tente mais tarde"})
	case errors.Is(err, ErrSelfDelete):
		c.JSON(http.StatusBadRequest, gin.H{"error": "não é possível excluir a própria conta"})
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrInviteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error(logMsg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
