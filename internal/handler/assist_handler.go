package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gigmarket/internal/service/assist"
)

type AssistHandler struct {
	assistant *assist.Assistant
	logger    *zap.Logger
}

func NewAssistHandler(a *assist.Assistant, logger *zap.Logger) *AssistHandler {
	return &AssistHandler{assistant: a, logger: logger}
}

func (h *AssistHandler) respond(c *gin.Context, res *assist.Result, err error) {
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GigIdeas handles POST /assist/gig-ideas
func (h *AssistHandler) GigIdeas(c *gin.Context) {
	var req assist.GigIdeasInput
	if !bind(c, &req) {
		return
	}
	uid, _ := principal(c)
	res, err := h.assistant.GenerateGigIdeas(c.Request.Context(), uid, req)
	h.respond(c, res, err)
}

// Proposal handles POST /assist/proposal
func (h *AssistHandler) Proposal(c *gin.Context) {
	var req assist.ProposalInput
	if !bind(c, &req) {
		return
	}
	uid, _ := principal(c)
	res, err := h.assistant.GenerateProposal(c.Request.Context(), uid, req)
	h.respond(c, res, err)
}

// Content handles POST /assist/content
func (h *AssistHandler) Content(c *gin.Context) {
	var req assist.ContentInput
	if !bind(c, &req) {
		return
	}
	uid, _ := principal(c)
	res, err := h.assistant.GenerateContent(c.Request.Context(), uid, req)
	h.respond(c, res, err)
}

// Requirements handles POST /assist/requirements
func (h *AssistHandler) Requirements(c *gin.Context) {
	var req struct {
		Description string `json:"description"`
	}
	if !bind(c, &req) {
		return
	}
	uid, _ := principal(c)
	res, err := h.assistant.AnalyzeRequirements(c.Request.Context(), uid, req.Description)
	h.respond(c, res, err)
}

// Usage handles GET /assist/usage
func (h *AssistHandler) Usage(c *gin.Context) {
	uid, _ := principal(c)
	u, err := h.assistant.Usage(c.Request.Context(), uid)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
