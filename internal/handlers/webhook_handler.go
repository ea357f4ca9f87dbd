package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nomadhq/popup-registration/internal/apperrors"
	"github.com/nomadhq/popup-registration/internal/models"
	"github.com/nomadhq/popup-registration/internal/service"
	"github.com/nomadhq/popup-registration/internal/telemetry"
)

type WebhookHandler struct {
	orchestrator *service.Orchestrator
}

func NewWebhookHandler(orchestrator *service.Orchestrator) *WebhookHandler {
	return &WebhookHandler{orchestrator: orchestrator}
}

// HandleSimplefi receives gateway callbacks. Deduplicated and same-status
// deliveries get the same generic acknowledgment as processed ones, so the
// gateway can retry freely.
func (h *WebhookHandler) HandleSimplefi(c *gin.Context) {
	var evt models.WebhookEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	err := h.orchestrator.HandleGatewayEvent(c.Request.Context(), &evt)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, apperrors.ErrUnsupportedEventType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		telemetry.Logger.Error("Webhook reconciliation failed",
			zap.String("event_type", evt.EventType),
			zap.String("external_id", evt.Data.PaymentRequest.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
	}
}
