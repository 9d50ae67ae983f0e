package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gigmarket/internal/handler"
	"gigmarket/pkg/rbac"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups every handler the router mounts.
type Handlers struct {
	Auth    *handler.AuthHandler
	Account *handler.AccountHandler
	Gig     *handler.GigHandler
	Project *handler.ProjectHandler
	Payment *handler.PaymentHandler
	Assist  *handler.AssistHandler
	Webhook *handler.WebhookHandler
	Admin   *handler.AdminHandler

	// Notification is optional; the stream route is mounted when set.
	Notification *handler.NotificationHandler
}

type RouterConfig struct {
	JWTSecret string
	// AssistLimiter throttles the AI endpoints per account; nil disables it.
	AssistLimiter *RateLimiter
	Ready         Pinger
}

func NewRouter(h Handlers, cfg RouterConfig, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), AccessLogMiddleware(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", func(c *gin.Context) {
		if cfg.Ready == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := cfg.Ready.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/auth/register", h.Auth.Register)
	r.POST("/auth/login", h.Auth.Login)
	r.POST("/webhooks/processor", h.Webhook.ProcessorWebhook)
	r.GET("/gigs/:id", h.Gig.GetGig)
	r.GET("/accounts/:id", h.Account.Profile)

	// Protected
	api := r.Group("/")
	api.Use(AuthMiddleware(cfg.JWTSecret))
	{
		api.GET("/me", h.Auth.Me)
		if h.Notification != nil {
			api.GET("/notifications/stream", h.Notification.Stream)
		}

		api.POST("/gigs", RequirePermission(rbac.PermissionCreateGig), h.Gig.CreateGig)
		api.POST("/gigs/:id/publish", RequirePermission(rbac.PermissionManageGig), h.Gig.PublishGig)
		api.POST("/gigs/:id/cancel", RequirePermission(rbac.PermissionManageGig), h.Gig.CancelGig)
		api.DELETE("/gigs/:id", RequirePermission(rbac.PermissionManageGig), h.Gig.DeleteGig)
		api.POST("/gigs/:id/bids", RequirePermission(rbac.PermissionPlaceBid), h.Gig.PlaceBid)
		api.GET("/gigs/:id/bids", h.Gig.ListBids)
		api.POST("/gigs/:id/award", RequirePermission(rbac.PermissionAwardBid), h.Gig.AwardBid)
		api.POST("/bids/:id/withdraw", RequirePermission(rbac.PermissionPlaceBid), h.Gig.WithdrawBid)

		api.GET("/projects", h.Project.ListProjects)
		api.GET("/projects/:id", h.Project.GetProject)
		api.POST("/projects/:id/milestones", RequirePermission(rbac.PermissionManageProject), h.Project.AddMilestone)
		api.PATCH("/projects/:id/milestones/:milestoneId", h.Project.UpdateMilestone)
		api.POST("/projects/:id/submit", RequirePermission(rbac.PermissionDeliverProject), h.Project.SubmitForReview)
		api.POST("/projects/:id/complete", RequirePermission(rbac.PermissionManageProject), h.Project.CompleteProject)
		api.POST("/projects/:id/cancel", RequirePermission(rbac.PermissionManageProject), h.Project.CancelProject)
		api.POST("/projects/:id/dispute", h.Project.FlagDispute)
		api.POST("/projects/:id/reviews", RequirePermission(rbac.PermissionReview), h.Project.SubmitReview)
		api.POST("/projects/:id/payments", RequirePermission(rbac.PermissionPay), h.Payment.CreatePaymentIntent)
		api.POST("/projects/:id/payments/confirm", h.Payment.ConfirmPayment)

		api.POST("/subscription", RequirePermission(rbac.PermissionSubscribe), h.Payment.Subscribe)
		api.DELETE("/subscription", RequirePermission(rbac.PermissionSubscribe), h.Payment.CancelSubscription)

		assist := api.Group("/assist", RequirePermission(rbac.PermissionUseAssist))
		if cfg.AssistLimiter != nil {
			assist.Use(cfg.AssistLimiter.Middleware())
		}
		assist.GET("/usage", h.Assist.Usage)
		assist.POST("/gig-ideas", h.Assist.GigIdeas)
		assist.POST("/proposal", h.Assist.Proposal)
		assist.POST("/content", h.Assist.Content)
		assist.POST("/requirements", h.Assist.Requirements)

		admin := api.Group("/admin", RequirePermission(rbac.PermissionAdmin))
		admin.POST("/outbox/replay", h.Admin.ReplayOutboxEvent)
		admin.POST("/outbox/replay-failed", h.Admin.ReplayFailedEvents)
		admin.POST("/quota/sweep", h.Admin.SweepQuotas)
	}

	return r
}
