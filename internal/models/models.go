package models

import "time"

type ApplicationStatus string

const (
	StatusDraft     ApplicationStatus = "draft"
	StatusInReview  ApplicationStatus = "in review"
	StatusAccepted  ApplicationStatus = "accepted"
	StatusWithdrawn ApplicationStatus = "withdrawn"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentExpired  PaymentStatus = "expired"
)

// Product categories. Patreon is exclusive per attendee: once held, no
// further standard/supporter charges apply for that attendee.
const (
	CategoryStandard  = "standard"
	CategorySupporter = "supporter"
	CategoryPatreon   = "patreon"
)

type PopupCity struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	SimplefiAPIKey string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

type Application struct {
	ID                 int64             `json:"id"`
	CitizenID          int64             `json:"citizen_id"`
	PopupCityID        int64             `json:"popup_city_id"`
	RawStatus          ApplicationStatus `json:"-"`
	ScholarshipRequest bool              `json:"scholarship_request"`
	DiscountAssigned   *float64          `json:"discount_assigned,omitempty"`
	Credit             float64           `json:"credit"`
	GroupID            *int64            `json:"group_id,omitempty"`
	Attendees          []Attendee        `json:"attendees"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

type Attendee struct {
	ID            int64             `json:"id"`
	ApplicationID int64             `json:"application_id"`
	Name          string            `json:"name"`
	Category      string            `json:"category"` // main, spouse, kid
	Products      []AttendeeProduct `json:"products"`
}

// AttendeeProduct is a settled holding: a product the attendee purchased in
// an approved payment.
type AttendeeProduct struct {
	AttendeeID int64   `json:"attendee_id"`
	ProductID  int64   `json:"product_id"`
	Quantity   int     `json:"quantity"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Price      float64 `json:"price"`
}

type Product struct {
	ID          int64   `json:"id"`
	PopupCityID int64   `json:"popup_city_id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	IsActive    bool    `json:"is_active"`
}

// CartItem is one requested line of a pricing/checkout attempt.
type CartItem struct {
	ProductID  int64 `json:"product_id" binding:"required"`
	AttendeeID int64 `json:"attendee_id" binding:"required"`
	Quantity   int   `json:"quantity" binding:"required,min=1"`
}

type Payment struct {
	ID             int64         `json:"id"`
	ApplicationID  int64         `json:"application_id"`
	ExternalID     string        `json:"external_id,omitempty"`
	Status         PaymentStatus `json:"status"`
	Amount         float64       `json:"amount"`
	OriginalAmount float64       `json:"original_amount"`
	Currency       string        `json:"currency"`
	Rate           float64       `json:"rate"`
	DiscountValue  float64       `json:"discount_value"`
	CouponCodeID   *int64        `json:"coupon_code_id,omitempty"`
	GroupID        *int64        `json:"group_id,omitempty"`
	EditPasses     bool          `json:"edit_passes"`
	// CreditGranted is the residual credit computed at pricing time; applied
	// to the application when the payment settles.
	CreditGranted float64          `json:"-"`
	CheckoutURL   string           `json:"checkout_url,omitempty"`
	Products      []PaymentProduct `json:"products"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// PaymentProduct snapshots one cart line at checkout time. The snapshot of
// the latest approved payment is the authoritative record of what an
// attendee holds.
type PaymentProduct struct {
	PaymentID  int64   `json:"payment_id"`
	ProductID  int64   `json:"product_id"`
	AttendeeID int64   `json:"attendee_id"`
	Quantity   int     `json:"quantity"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Price      float64 `json:"price"`
}

type CouponCode struct {
	ID            int64      `json:"id"`
	PopupCityID   int64      `json:"popup_city_id"`
	Code          string     `json:"code"`
	DiscountValue float64    `json:"discount_value"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	MaxUses       *int       `json:"max_uses,omitempty"`
	CurrentUses   int        `json:"current_uses"`
	IsActive      bool       `json:"is_active"`
}

type GroupDiscount struct {
	ID                 int64   `json:"id"`
	PopupCityID        int64   `json:"popup_city_id"`
	Name               string  `json:"name"`
	DiscountPercentage float64 `json:"discount_percentage"`
}

// Gateway webhook payload, bit-relevant fields only.
type WebhookEvent struct {
	EventType string      `json:"event_type"`
	Data      WebhookData `json:"data"`
}

type WebhookData struct {
	PaymentRequest WebhookPaymentRequest `json:"payment_request"`
	NewPayment     *WebhookNewPayment    `json:"new_payment,omitempty"`
}

type WebhookPaymentRequest struct {
	ID           string               `json:"id"`
	Status       string               `json:"status"`
	Transactions []WebhookTransaction `json:"transactions"`
}

type WebhookTransaction struct {
	Coin         string              `json:"coin"`
	PriceDetails WebhookPriceDetails `json:"price_details"`
}

type WebhookPriceDetails struct {
	Rate float64 `json:"rate"`
}

type WebhookNewPayment struct {
	Coin string `json:"coin"`
}
