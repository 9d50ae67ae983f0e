package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gigmarket/internal/service/settlement"
)

type PaymentHandler struct {
	engine *settlement.Engine
	logger *zap.Logger
}

func NewPaymentHandler(engine *settlement.Engine, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{engine: engine, logger: logger}
}

// CreatePaymentIntent handles POST /projects/:id/payments
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if !bind(c, &req) {
		return
	}
	uid, _ := principal(c)
	intent, err := h.engine.CreatePaymentIntent(c.Request.Context(), projectID, uid, req.Amount)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"payment_intent_id": intent.ID,
		"client_secret":     intent.ClientSecret,
		"status":            intent.Status,
	})
}

// ConfirmPayment handles POST /projects/:id/payments/confirm
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		PaymentIntentID string `json:"payment_intent_id"`
	}
	if !bind(c, &req) {
		return
	}
	if req.PaymentIntentID == "" {
		badRequest(c, "payment_intent_id is required")
		return
	}
	uid, role := principal(c)
	p, err := h.engine.ConfirmCapture(c.Request.Context(), projectID, uid, role, req.PaymentIntentID)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Subscribe handles POST /subscription
func (h *PaymentHandler) Subscribe(c *gin.Context) {
	var req struct {
		PriceID string `json:"price_id"`
	}
	if !bind(c, &req) {
		return
	}
	if req.PriceID == "" {
		badRequest(c, "price_id is required")
		return
	}
	uid, _ := principal(c)
	sub, err := h.engine.Subscribe(c.Request.Context(), uid, req.PriceID)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"subscription_id": sub.ID,
		"status":          sub.Status,
		"client_secret":   sub.ClientSecret,
	})
}

// CancelSubscription handles DELETE /subscription
func (h *PaymentHandler) CancelSubscription(c *gin.Context) {
	uid, _ := principal(c)
	acct, err := h.engine.CancelSubscription(c.Request.Context(), uid)
	if err != nil {
		RenderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, acct.Subscription)
}
