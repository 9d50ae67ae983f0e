package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/service/engagement"
	"gigmarket/internal/service/reputation"
)

type ProjectHandler struct {
	lifecycle  *engagement.Lifecycle
	reputation *reputation.Ledger
	logger     *zap.Logger
}

func NewProjectHandler(lc *engagement.Lifecycle, rep *reputation.Ledger, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{lifecycle: lc, reputation: rep, logger: logger}
}

func parseUUID(s string) (uuid.UUID, error) { return uuid.Parse(s) }

// ListProjects handles GET /projects?status=
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	uid, _ := principal(c)
	projects, err := h.lifecycle.ListProjects(c.Request.Context(), uid, c.Query("status"))
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// GetProject handles GET /projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	uid, role := principal(c)
	p, err := h.lifecycle.GetProject(c.Request.Context(), projectID, uid, role)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// AddMilestone handles POST /projects/:id/milestones
func (h *ProjectHandler) AddMilestone(c *gin.Context) {
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req engagement.MilestoneInput
	if !bind(c, &req) {
		return
	}
	uid, _ := principal(c)
	m, err := h.lifecycle.AddMilestone(c.Request.Context(), projectID, uid, req)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// UpdateMilestone handles PATCH /projects/:id/milestones/:milestoneId
func (h *ProjectHandler) UpdateMilestone(c *gin.Context) {
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	milestoneID, ok := uuidParam(c, "milestoneId")
	if !ok {
		return
	}
	var patch model.MilestonePatch
	if !bind(c, &patch) {
		return
	}
	uid, role := principal(c)
	p, err := h.lifecycle.UpdateMilestone(c.Request.Context(), projectID, milestoneID, uid, role, patch)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SubmitForReview handles POST /projects/:id/submit
func (h *ProjectHandler) SubmitForReview(c *gin.Context) {
	h.transition(c, func(c *gin.Context, projectID, uid uuid.UUID, reason string) (*model.Project, error) {
		return h.lifecycle.SubmitForReview(c.Request.Context(), projectID, uid)
	})
}

// CompleteProject handles POST /projects/:id/complete
func (h *ProjectHandler) CompleteProject(c *gin.Context) {
	h.transition(c, func(c *gin.Context, projectID, uid uuid.UUID, reason string) (*model.Project, error) {
		return h.lifecycle.CompleteProject(c.Request.Context(), projectID, uid)
	})
}

// CancelProject handles POST /projects/:id/cancel
func (h *ProjectHandler) CancelProject(c *gin.Context) {
	h.transition(c, func(c *gin.Context, projectID, uid uuid.UUID, reason string) (*model.Project, error) {
		return h.lifecycle.CancelProject(c.Request.Context(), projectID, uid, reason)
	})
}

// FlagDispute handles POST /projects/:id/dispute
func (h *ProjectHandler) FlagDispute(c *gin.Context) {
	h.transition(c, func(c *gin.Context, projectID, uid uuid.UUID, reason string) (*model.Project, error) {
		return h.lifecycle.FlagDispute(c.Request.Context(), projectID, uid, reason)
	})
}

type transitionFunc func(c *gin.Context, projectID, uid uuid.UUID, reason string) (*model.Project, error)

func (h *ProjectHandler) transition(c *gin.Context, fn transitionFunc) {
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	// the body is optional
	_ = c.ShouldBindJSON(&req)

	uid, _ := principal(c)
	p, err := fn(c, projectID, uid, req.Reason)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SubmitReview handles POST /projects/:id/reviews
func (h *ProjectHandler) SubmitReview(c *gin.Context) {
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if !bind(c, &req) {
		return
	}
	uid, _ := principal(c)
	p, err := h.reputation.SubmitReview(c.Request.Context(), projectID, uid, req.Rating, req.Comment)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
