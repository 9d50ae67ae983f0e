package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gigmarket/internal/service/reputation"
)

type AccountHandler struct {
	reputation *reputation.Ledger
	logger     *zap.Logger
}

func NewAccountHandler(rep *reputation.Ledger, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{reputation: rep, logger: logger}
}

// Profile handles GET /accounts/:id
func (h *AccountHandler) Profile(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, err := h.reputation.Profile(c.Request.Context(), id)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
