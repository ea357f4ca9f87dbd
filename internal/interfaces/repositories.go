package interfaces

import (
	"context"

	"github.com/nomadhq/popup-registration/internal/models"
)

// ApplicationRepository loads applications with their attendees and the
// products those attendees currently hold.
type ApplicationRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Application, error)
	UpdateCredit(ctx context.Context, id int64, credit float64) error
}

type ProductRepository interface {
	FindActive(ctx context.Context, popupCityID int64, ids []int64) ([]models.Product, error)
}

// CouponRepository resolves coupon codes. GetByCode returns the typed
// validation failures (not found, inactive, not started, expired, exhausted)
// from the apperrors package.
type CouponRepository interface {
	GetByCode(ctx context.Context, code string, popupCityID int64) (*models.CouponCode, error)
	IncrementUse(ctx context.Context, id int64) error
}

type GroupRepository interface {
	GetByID(ctx context.Context, id int64) (*models.GroupDiscount, error)
}

type PopupCityRepository interface {
	GetByID(ctx context.Context, id int64) (*models.PopupCity, error)
}

type PaymentRepository interface {
	// Create persists the payment and its product snapshot rows.
	Create(ctx context.Context, p *models.Payment) error
	GetByID(ctx context.Context, id int64) (*models.Payment, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Payment, error)
	// UpdateStatus records a non-approved settlement (e.g. expired) without
	// touching product snapshots.
	UpdateStatus(ctx context.Context, id int64, status models.PaymentStatus) error
	// Approve settles the payment in one transaction: marks it approved with
	// the realized currency/rate and applies its product snapshot to the
	// attendees. A payment that edits passes replaces prior non-patreon
	// holdings and stores the residual credit; a regular payment adds its
	// snapshot and leaves the application's credit balance alone.
	Approve(ctx context.Context, p *models.Payment, currency string, rate float64) error
}
