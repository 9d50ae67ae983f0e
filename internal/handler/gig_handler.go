package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gigmarket/internal/service/bidding"
	"gigmarket/internal/service/engagement"
	"gigmarket/pkg/rbac"
)

type GigHandler struct {
	lifecycle *engagement.Lifecycle
	book      *bidding.Book
	logger    *zap.Logger
}

func NewGigHandler(lc *engagement.Lifecycle, book *bidding.Book, logger *zap.Logger) *GigHandler {
	return &GigHandler{lifecycle: lc, book: book, logger: logger}
}

// CreateGig handles POST /gigs
func (h *GigHandler) CreateGig(c *gin.Context) {
	var req engagement.GigInput
	if !bind(c, &req) {
		return
	}
	uid, _ := principal(c)
	gig, err := h.lifecycle.CreateGig(c.Request.Context(), uid, req)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gig)
}

// GetGig handles GET /gigs/:id
func (h *GigHandler) GetGig(c *gin.Context) {
	gigID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	gig, err := h.lifecycle.GetGig(c.Request.Context(), gigID)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gig)
}

// PublishGig handles POST /gigs/:id/publish
func (h *GigHandler) PublishGig(c *gin.Context) {
	gigID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	uid, _ := principal(c)
	gig, err := h.lifecycle.PublishGig(c.Request.Context(), gigID, uid)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gig)
}

// CancelGig handles POST /gigs/:id/cancel
func (h *GigHandler) CancelGig(c *gin.Context) {
	gigID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	uid, role := principal(c)
	gig, err := h.lifecycle.CancelGig(c.Request.Context(), gigID, uid, role)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gig)
}

// DeleteGig handles DELETE /gigs/:id
func (h *GigHandler) DeleteGig(c *gin.Context) {
	gigID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	uid, role := principal(c)
	if err := h.lifecycle.DeleteGig(c.Request.Context(), gigID, uid, role); err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PlaceBid handles POST /gigs/:id/bids
func (h *GigHandler) PlaceBid(c *gin.Context) {
	gigID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req bidding.PlaceBidInput
	if !bind(c, &req) {
		return
	}
	uid, _ := principal(c)
	bid, err := h.book.PlaceBid(c.Request.Context(), gigID, uid, req)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, bid)
}

// ListBids handles GET /gigs/:id/bids. Freelancers only see their own bid.
func (h *GigHandler) ListBids(c *gin.Context) {
	gigID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	uid, role := principal(c)
	if role == rbac.RoleFreelancer {
		bid, err := h.book.OwnBid(c.Request.Context(), gigID, uid)
		if err != nil {
			RenderError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"bids": []any{bid}})
		return
	}
	bids, err := h.book.ListBids(c.Request.Context(), gigID, uid, role)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

// WithdrawBid handles POST /bids/:id/withdraw
func (h *GigHandler) WithdrawBid(c *gin.Context) {
	bidID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	uid, _ := principal(c)
	bid, err := h.book.WithdrawBid(c.Request.Context(), bidID, uid)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, bid)
}

// AwardBid handles POST /gigs/:id/award
func (h *GigHandler) AwardBid(c *gin.Context) {
	gigID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		BidID string `json:"bid_id"`
	}
	if !bind(c, &req) {
		return
	}
	bidID, err := parseUUID(req.BidID)
	if err != nil {
		badRequest(c, "invalid bid_id")
		return
	}
	uid, _ := principal(c)
	project, err := h.lifecycle.AwardBid(c.Request.Context(), gigID, bidID, uid)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}
