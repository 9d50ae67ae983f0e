package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gigmarket/internal/handler"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/rbac"
)

// RequirePermission rejects callers whose role lacks permission.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, role, ok := handler.Principal(c)
		if !ok {
			unauthenticated(c, "user not authenticated")
			return
		}

		if err := rbac.CheckPermission(role, permission); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error(), "kind": apperror.KindForbidden})
			return
		}

		c.Next()
	}
}
