// Package handler holds the gin handlers of the marketplace API.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gigmarket/pkg/apperror"
	"gigmarket/pkg/logger"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// SetPrincipal stores the authenticated caller on the request.
func SetPrincipal(c *gin.Context, id uuid.UUID, role string) {
	c.Set(ctxUserID, id)
	c.Set(ctxRole, role)
}

// Principal returns the authenticated caller set by the auth middleware.
func Principal(c *gin.Context) (uuid.UUID, string, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return uuid.Nil, "", false
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return uuid.Nil, "", false
	}
	role, _ := c.Get(ctxRole)
	r, _ := role.(string)
	return id, r, true
}

func principal(c *gin.Context) (uuid.UUID, string) {
	id, role, _ := Principal(c)
	return id, role
}

// RenderError writes {"error", "kind"} with the status class of err's kind.
func RenderError(c *gin.Context, log *zap.Logger, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		logger.WithTrace(c.Request.Context(), log).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apperror.Message(err), "kind": kind})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg, "kind": apperror.KindInvalidArgument})
}

// uuidParam parses a path parameter, writing a 400 when it is malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		badRequest(c, "invalid request body")
		return false
	}
	return true
}
