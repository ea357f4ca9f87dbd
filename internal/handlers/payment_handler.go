package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nomadhq/popup-registration/internal/apperrors"
	"github.com/nomadhq/popup-registration/internal/interfaces"
	"github.com/nomadhq/popup-registration/internal/service"
	"github.com/nomadhq/popup-registration/internal/telemetry"
)

type PaymentHandler struct {
	payments     interfaces.PaymentRepository
	orchestrator *service.Orchestrator
}

func NewPaymentHandler(payments interfaces.PaymentRepository, orchestrator *service.Orchestrator) *PaymentHandler {
	return &PaymentHandler{
		payments:     payments,
		orchestrator: orchestrator,
	}
}

func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	payment, err := h.orchestrator.CreatePayment(c.Request.Context(), req)
	if err != nil {
		telemetry.Logger.Warn("Payment creation failed",
			zap.Int64("application_id", req.ApplicationID),
			zap.Error(err),
		)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, payment)
}

func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	payment, err := h.payments.GetByID(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch payment"})
		return
	}

	c.JSON(http.StatusOK, payment)
}

// statusFor maps core error kinds to transport codes. The mapping lives only
// here; the core packages return plain typed errors.
func statusFor(err error) int {
	var invalid *apperrors.InvalidProductsError
	switch {
	case errors.As(err, &invalid),
		errors.Is(err, apperrors.ErrApplicationNotAccepted),
		errors.Is(err, apperrors.ErrEditPassesForPatreon),
		errors.Is(err, apperrors.ErrCouponNotFound),
		errors.Is(err, apperrors.ErrCouponInactive),
		errors.Is(err, apperrors.ErrCouponNotStarted),
		errors.Is(err, apperrors.ErrCouponExpired),
		errors.Is(err, apperrors.ErrCouponExhausted):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrPaymentNotFound), errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrLockTimeout):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
