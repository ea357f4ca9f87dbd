// Package apperrors defines the typed failures of the pricing and payment
// core. Handlers map these to HTTP status codes at the boundary; the core
// packages only return them.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrApplicationNotAccepted = errors.New("application is not accepted")
	ErrEditPassesForPatreon   = errors.New("edit passes cannot be used to acquire a patreon pass")

	ErrCouponNotFound   = errors.New("coupon code not found")
	ErrCouponInactive   = errors.New("coupon code is not active")
	ErrCouponNotStarted = errors.New("coupon code is not valid yet")
	ErrCouponExpired    = errors.New("coupon code has expired")
	ErrCouponExhausted  = errors.New("coupon code has reached its maximum uses")

	ErrMissingGatewayConfig = errors.New("popup city has no payment gateway configured")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrUnsupportedEventType = errors.New("unsupported webhook event type")
	ErrLockTimeout          = errors.New("timed out acquiring lock")
)

// InvalidProductsError reports requested product ids that are not part of
// the popup city's active catalog.
type InvalidProductsError struct {
	ProductIDs []int64
}

func (e *InvalidProductsError) Error() string {
	return fmt.Sprintf("invalid products: %v", e.ProductIDs)
}
