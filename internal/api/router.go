package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nomadhq/popup-registration/internal/handlers"
	"github.com/nomadhq/popup-registration/internal/interfaces"
	"github.com/nomadhq/popup-registration/internal/service"
	"github.com/nomadhq/popup-registration/internal/telemetry"
)

func NewRouter(
	applications interfaces.ApplicationRepository,
	payments interfaces.PaymentRepository,
	orchestrator *service.Orchestrator,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "popup-registration"})
	})

	paymentHandler := handlers.NewPaymentHandler(payments, orchestrator)
	r.POST("/payments", paymentHandler.CreatePayment)
	r.GET("/payments/:id", paymentHandler.GetPayment)

	applicationHandler := handlers.NewApplicationHandler(applications)
	r.GET("/applications/:id/status", applicationHandler.GetStatus)

	webhookHandler := handlers.NewWebhookHandler(orchestrator)
	r.POST("/webhooks/simplefi", webhookHandler.HandleSimplefi)

	return r
}
