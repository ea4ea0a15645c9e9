package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/gigmarket-backend/config"
	"github.com/ikkim/gigmarket-backend/internal/app/controller"
	"github.com/ikkim/gigmarket-backend/internal/app/model"
	"github.com/ikkim/gigmarket-backend/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	kycController      *controller.KYCController
	adminKYCController *controller.AdminKYCController
	webhookController  *controller.WebhookController
	authMiddleware     *middleware.AuthMiddleware
	gatherer           prometheus.Gatherer
	config             *config.Config
}

// NewRouter collects the handlers. gatherer may be nil to skip /metrics.
func NewRouter(
	kycController *controller.KYCController,
	adminKYCController *controller.AdminKYCController,
	webhookController *controller.WebhookController,
	authMiddleware *middleware.AuthMiddleware,
	gatherer prometheus.Gatherer,
	cfg *config.Config,
) *Router {
	return &Router{
		kycController:      kycController,
		adminKYCController: adminKYCController,
		webhookController:  webhookController,
		authMiddleware:     authMiddleware,
		gatherer:           gatherer,
		config:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "GigMarket KYC API is running",
		})
	})
	if r.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		kyc := v1.Group("/kyc")
		kyc.Use(r.authMiddleware.Authenticate())
		{
			kyc.POST("/sessions", r.kycController.StartSession)
			kyc.GET("/status", r.kycController.GetStatus)
			kyc.POST("/upload-url", r.kycController.CreateUploadURL)
			kyc.POST("/documents", r.kycController.UploadDocument)
			kyc.POST("/sessions/:id/submit", r.kycController.SubmitSession)
			kyc.GET("/history", r.kycController.GetHistory)
			kyc.GET("/ws", r.kycController.StatusSocket)
		}

		admin := v1.Group("/admin/kyc")
		admin.Use(
			r.authMiddleware.Authenticate(),
			r.authMiddleware.RequireRole(model.RoleAdmin),
		)
		{
			admin.GET("/queue", r.adminKYCController.ListQueue)
			admin.GET("/queue/export", r.adminKYCController.ExportQueue)
			admin.POST("/sessions/:id/review", r.adminKYCController.ReviewSession)
		}

		// Authenticated by shared secret and signature, not by user token.
		v1.POST("/webhooks/kyc", r.webhookController.IngestKYC)
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
