package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gigmarket/internal/service/auth"
)

type AuthHandler struct {
	auth   *auth.Service
	logger *zap.Logger
}

func NewAuthHandler(svc *auth.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, logger: logger}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterInput
	if !bind(c, &req) {
		return
	}
	sess, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bind(c, &req) {
		return
	}
	sess, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Me handles GET /me
func (h *AuthHandler) Me(c *gin.Context) {
	id, _ := principal(c)
	acct, err := h.auth.Me(c.Request.Context(), id)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}
