package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nayon117/custome-chat-server/internal/audit"
	"github.com/nayon117/custome-chat-server/internal/auth"
	"github.com/nayon117/custome-chat-server/internal/domain"
	"github.com/nayon117/custome-chat-server/internal/service"
)

type HTTPHandler struct {
	service service.RelayService
	auth    *auth.Service
}

func NewHTTPHandler(svc service.RelayService, authSvc *auth.Service) *HTTPHandler {
	return &HTTPHandler{
		service: svc,
		auth:    authSvc,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/auth/admin-login", h.AdminLogin)

	api := r.Group("/api/v1")
	{
		api.GET("/messages", h.auth.RequireAdmin(), h.GetAllMessages)
		api.POST("/messages", h.CreateMessage)
		api.GET("/messages/:user_id", h.auth.RequireAdmin(), h.GetUserMessages)
	}

	r.GET("/health", h.HealthCheck)
}

type adminLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type adminLoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
}

func (h *HTTPHandler) AdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, adminLoginResponse{
			Success: false,
			Message: "email and password are required",
		})
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		audit.LogWithDetail(c.Request.Context(), audit.ActionAdminLogin, req.Email, "failed", "admin login rejected")
		c.JSON(http.StatusUnauthorized, adminLoginResponse{
			Success: false,
			Message: "Invalid credentials",
		})
		return
	}

	audit.Log(c.Request.Context(), audit.ActionAdminLogin, domain.AdminIdentity, "admin logged in")
	c.JSON(http.StatusOK, adminLoginResponse{
		Success: true,
		Token:   token,
	})
}

// GetAllMessages returns every transcript grouped by user id.
func (h *HTTPHandler) GetAllMessages(c *gin.Context) {
	grouped, err := h.service.AllMessagesGrouped(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, domain.APIResponse{
			Success: false,
			Error:   "failed to get messages",
		})
		return
	}

	c.JSON(http.StatusOK, domain.APIResponse{
		Success: true,
		Data:    grouped,
	})
}

// GetUserMessages returns one user's transcript, oldest first.
func (h *HTTPHandler) GetUserMessages(c *gin.Context) {
	userID := c.Param("user_id")

	messages, err := h.service.HistoryForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, domain.APIResponse{
			Success: false,
			Error:   "failed to get messages",
		})
		return
	}

	c.JSON(http.StatusOK, domain.APIResponse{
		Success: true,
		Data:    messages,
	})
}

type createMessageRequest struct {
	UserID  string        `json:"userId" binding:"required"`
	Content string        `json:"content" binding:"required"`
	Origin  domain.Origin `json:"origin"`
}

// CreateMessage appends a message over REST. Connected clients are not
// notified; it exists for backfills and integrations, mirroring the
// append-only store contract.
func (h *HTTPHandler) CreateMessage(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.APIResponse{
			Success: false,
			Error:   "userId and content are required",
		})
		return
	}

	origin := req.Origin
	if origin == "" {
		origin = domain.OriginUser
	}
	if origin != domain.OriginUser && origin != domain.OriginAdmin {
		c.JSON(http.StatusBadRequest, domain.APIResponse{
			Success: false,
			Error:   "origin must be user or admin",
		})
		return
	}

	msg, err := h.service.AppendMessage(c.Request.Context(), req.UserID, req.Content, origin)
	if err != nil {
		c.JSON(http.StatusBadRequest, domain.APIResponse{
			Success: false,
			Error:   "failed to save message",
		})
		return
	}

	c.JSON(http.StatusCreated, domain.APIResponse{
		Success: true,
		Data:    msg,
	})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
