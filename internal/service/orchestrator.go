package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nomadhq/popup-registration/internal/apperrors"
	"github.com/nomadhq/popup-registration/internal/cache"
	"github.com/nomadhq/popup-registration/internal/gateway"
	"github.com/nomadhq/popup-registration/internal/interfaces"
	"github.com/nomadhq/popup-registration/internal/lock"
	"github.com/nomadhq/popup-registration/internal/models"
	"github.com/nomadhq/popup-registration/internal/notify"
	"github.com/nomadhq/popup-registration/internal/pricing"
	"github.com/nomadhq/popup-registration/internal/telemetry"
)

const (
	couponLockTimeout = 10 * time.Second

	defaultCurrency = "USD"
	defaultRate     = 1.0
)

// Gateway is the slice of the payment processor client the orchestrator
// needs.
type Gateway interface {
	CreatePaymentRequest(ctx context.Context, apiKey string, req gateway.PaymentRequest) (*gateway.PaymentResponse, error)
}

type Orchestrator struct {
	applications interfaces.ApplicationRepository
	payments     interfaces.PaymentRepository
	coupons      interfaces.CouponRepository
	popupCities  interfaces.PopupCityRepository
	engine       *pricing.Engine
	gateway      Gateway
	webhookCache *cache.Cache
	locker       lock.Locker
	notifier     *notify.Notifier
}

func NewOrchestrator(
	applications interfaces.ApplicationRepository,
	payments interfaces.PaymentRepository,
	coupons interfaces.CouponRepository,
	popupCities interfaces.PopupCityRepository,
	engine *pricing.Engine,
	gw Gateway,
	webhookCache *cache.Cache,
	locker lock.Locker,
	notifier *notify.Notifier,
) *Orchestrator {
	return &Orchestrator{
		applications: applications,
		payments:     payments,
		coupons:      coupons,
		popupCities:  popupCities,
		engine:       engine,
		gateway:      gw,
		webhookCache: webhookCache,
		locker:       locker,
		notifier:     notifier,
	}
}

type CreatePaymentRequest struct {
	ApplicationID int64             `json:"application_id" binding:"required"`
	Products      []models.CartItem `json:"products" binding:"required"`
	EditPasses    bool              `json:"edit_passes"`
	CouponCode    string            `json:"coupon_code"`
}

// CreatePayment prices the cart and either settles it immediately (zero or
// negative final amount) or registers a pending payment with the gateway.
func (o *Orchestrator) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*models.Payment, error) {
	app, err := o.applications.GetByID(ctx, req.ApplicationID)
	if err != nil {
		return nil, err
	}

	res, err := o.engine.PriceCart(ctx, app, req.Products, req.EditPasses, req.CouponCode)
	if err != nil {
		telemetry.PricingFailures.WithLabelValues(pricingFailureReason(err)).Inc()
		return nil, err
	}

	// The use counter is shared across instances; the advisory lock closes
	// the validate-then-increment race on capped codes.
	if res.CouponCodeID != nil {
		if err := o.consumeCouponUse(ctx, *res.CouponCodeID); err != nil {
			return nil, err
		}
	}

	payment := &models.Payment{
		ApplicationID:  app.ID,
		Status:         models.PaymentPending,
		Amount:         res.Amount,
		OriginalAmount: res.OriginalAmount,
		Currency:       defaultCurrency,
		Rate:           defaultRate,
		DiscountValue:  res.DiscountValue,
		CouponCodeID:   res.CouponCodeID,
		GroupID:        res.GroupID,
		EditPasses:     req.EditPasses,
		CreditGranted:  res.Credit,
		Products:       res.Items,
	}

	if res.Amount <= 0 {
		return o.autoApprove(ctx, app, payment, res)
	}

	popupCity, err := o.popupCities.GetByID(ctx, app.PopupCityID)
	if err != nil {
		return nil, err
	}
	if popupCity.SimplefiAPIKey == "" {
		return nil, apperrors.ErrMissingGatewayConfig
	}

	gwResp, err := o.gateway.CreatePaymentRequest(ctx, popupCity.SimplefiAPIKey, gateway.PaymentRequest{
		Amount:   res.Amount,
		Currency: defaultCurrency,
		Reference: map[string]string{
			"application_id": strconv.FormatInt(app.ID, 10),
			"popup_city_id":  strconv.FormatInt(app.PopupCityID, 10),
		},
	})
	if err != nil {
		return nil, err
	}

	payment.ExternalID = gwResp.ID
	payment.CheckoutURL = gwResp.CheckoutURL
	if err := o.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	telemetry.PaymentsCreated.WithLabelValues(string(payment.Status)).Inc()
	telemetry.Logger.Info("Payment created",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("application_id", app.ID),
		zap.String("external_id", payment.ExternalID),
		zap.Float64("amount", payment.Amount),
	)
	return payment, nil
}

// autoApprove settles a zero or negative cart directly, with no gateway
// round-trip. A negative cart leaves its overage as application credit.
func (o *Orchestrator) autoApprove(ctx context.Context, app *models.Application, payment *models.Payment, res *pricing.Result) (*models.Payment, error) {
	payment.Status = models.PaymentApproved
	payment.Amount = 0

	if err := o.payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	if err := o.payments.Approve(ctx, payment, defaultCurrency, defaultRate); err != nil {
		return nil, err
	}
	if err := o.applications.UpdateCredit(ctx, app.ID, res.Credit); err != nil {
		return nil, err
	}

	telemetry.PaymentsCreated.WithLabelValues(string(models.PaymentApproved)).Inc()
	telemetry.Logger.Info("Payment auto-approved",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("application_id", app.ID),
		zap.Float64("credit", res.Credit),
	)

	o.notifier.PaymentStatusChanged(ctx, payment)
	o.notifier.Email("payment_approved", app.CitizenID, map[string]string{
		"payment_id": strconv.FormatInt(payment.ID, 10),
	})
	return payment, nil
}

// pricingFailureReason folds a PriceCart error into a bounded metric label.
func pricingFailureReason(err error) string {
	var invalid *apperrors.InvalidProductsError
	switch {
	case errors.Is(err, apperrors.ErrApplicationNotAccepted):
		return "not_accepted"
	case errors.As(err, &invalid):
		return "invalid_products"
	case errors.Is(err, apperrors.ErrEditPassesForPatreon):
		return "edit_passes_patreon"
	case errors.Is(err, apperrors.ErrCouponNotFound),
		errors.Is(err, apperrors.ErrCouponInactive),
		errors.Is(err, apperrors.ErrCouponNotStarted),
		errors.Is(err, apperrors.ErrCouponExpired),
		errors.Is(err, apperrors.ErrCouponExhausted):
		return "coupon"
	default:
		return "other"
	}
}

func (o *Orchestrator) consumeCouponUse(ctx context.Context, couponID int64) error {
	name := fmt.Sprintf("coupon_code:%d", couponID)
	lease, err := o.locker.Acquire(ctx, name, couponLockTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			telemetry.Logger.Warn("Failed to release coupon lock", zap.String("lock", name), zap.Error(err))
		}
	}()

	return o.coupons.IncrementUse(ctx, couponID)
}

// HandleGatewayEvent reconciles an asynchronous gateway notification into
// payment state. Duplicate deliveries are debounced by fingerprint and
// repeated notifications of the current status are successful no-ops.
func (o *Orchestrator) HandleGatewayEvent(ctx context.Context, evt *models.WebhookEvent) error {
	if !o.webhookCache.Add(fingerprint(evt)) {
		telemetry.WebhookEvents.WithLabelValues("duplicate").Inc()
		return nil
	}

	if evt.EventType != "new_payment" && evt.EventType != "new_card_payment" {
		telemetry.WebhookEvents.WithLabelValues("unsupported").Inc()
		return apperrors.ErrUnsupportedEventType
	}

	payment, err := o.payments.GetByExternalID(ctx, evt.Data.PaymentRequest.ID)
	if errors.Is(err, sql.ErrNoRows) {
		telemetry.WebhookEvents.WithLabelValues("not_found").Inc()
		return apperrors.ErrPaymentNotFound
	}
	if err != nil {
		return err
	}

	newStatus := models.PaymentStatus(evt.Data.PaymentRequest.Status)
	if newStatus == payment.Status {
		telemetry.WebhookEvents.WithLabelValues("noop").Inc()
		return nil
	}

	if newStatus == models.PaymentApproved {
		currency, rate := realizedRate(evt)
		if err := o.payments.Approve(ctx, payment, currency, rate); err != nil {
			return err
		}
		payment.Currency = currency
		payment.Rate = rate
	} else {
		if err := o.payments.UpdateStatus(ctx, payment.ID, newStatus); err != nil {
			return err
		}
	}
	payment.Status = newStatus

	telemetry.WebhookEvents.WithLabelValues("processed").Inc()
	telemetry.Logger.Info("Payment reconciled from webhook",
		zap.Int64("payment_id", payment.ID),
		zap.String("external_id", payment.ExternalID),
		zap.String("status", string(newStatus)),
	)

	o.notifier.PaymentStatusChanged(ctx, payment)
	return nil
}

// fingerprint identifies one delivery's content: identical retries collapse
// while a later event carrying a different status does not.
func fingerprint(evt *models.WebhookEvent) string {
	h := sha256.Sum256([]byte(evt.EventType + "|" + evt.Data.PaymentRequest.ID + "|" + evt.Data.PaymentRequest.Status))
	return hex.EncodeToString(h[:])
}

// realizedRate pulls the settlement currency and rate from the event,
// defaulting to USD at parity when the gateway omits them.
func realizedRate(evt *models.WebhookEvent) (string, float64) {
	currency := defaultCurrency
	rate := defaultRate
	if len(evt.Data.PaymentRequest.Transactions) > 0 {
		tx := evt.Data.PaymentRequest.Transactions[0]
		if tx.Coin != "" {
			currency = tx.Coin
		}
		if tx.PriceDetails.Rate > 0 {
			rate = tx.PriceDetails.Rate
		}
	} else if evt.Data.NewPayment != nil && evt.Data.NewPayment.Coin != "" {
		currency = evt.Data.NewPayment.Coin
	}
	return currency, rate
}
