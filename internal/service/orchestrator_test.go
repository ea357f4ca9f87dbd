package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nomadhq/popup-registration/internal/apperrors"
	"github.com/nomadhq/popup-registration/internal/cache"
	"github.com/nomadhq/popup-registration/internal/gateway"
	"github.com/nomadhq/popup-registration/internal/lock"
	"github.com/nomadhq/popup-registration/internal/models"
	"github.com/nomadhq/popup-registration/internal/pricing"
	"github.com/nomadhq/popup-registration/internal/telemetry"
)

type fakeApplications struct {
	app    *models.Application
	credit *float64
}

func (f *fakeApplications) GetByID(_ context.Context, id int64) (*models.Application, error) {
	if f.app == nil || f.app.ID != id {
		return nil, sql.ErrNoRows
	}
	return f.app, nil
}

func (f *fakeApplications) UpdateCredit(_ context.Context, _ int64, credit float64) error {
	f.credit = &credit
	return nil
}

type fakePayments struct {
	nextID       int64
	byExternalID map[string]*models.Payment
	created      []*models.Payment
	approvals    int
	statusCalls  []models.PaymentStatus
}

func newFakePayments() *fakePayments {
	return &fakePayments{byExternalID: make(map[string]*models.Payment)}
}

func (f *fakePayments) Create(_ context.Context, p *models.Payment) error {
	f.nextID++
	p.ID = f.nextID
	f.created = append(f.created, p)
	if p.ExternalID != "" {
		f.byExternalID[p.ExternalID] = p
	}
	return nil
}

func (f *fakePayments) GetByID(_ context.Context, id int64) (*models.Payment, error) {
	for _, p := range f.created {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakePayments) GetByExternalID(_ context.Context, externalID string) (*models.Payment, error) {
	p, ok := f.byExternalID[externalID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (f *fakePayments) UpdateStatus(_ context.Context, id int64, status models.PaymentStatus) error {
	f.statusCalls = append(f.statusCalls, status)
	p, err := f.GetByID(context.Background(), id)
	if err != nil {
		return err
	}
	p.Status = status
	return nil
}

func (f *fakePayments) Approve(_ context.Context, p *models.Payment, currency string, rate float64) error {
	f.approvals++
	p.Status = models.PaymentApproved
	p.Currency = currency
	p.Rate = rate
	return nil
}

type fakeCoupons struct {
	coupon     *models.CouponCode
	increments int
}

func (f *fakeCoupons) GetByCode(_ context.Context, code string, _ int64) (*models.CouponCode, error) {
	if f.coupon == nil || f.coupon.Code != code {
		return nil, apperrors.ErrCouponNotFound
	}
	return f.coupon, nil
}

func (f *fakeCoupons) IncrementUse(_ context.Context, _ int64) error {
	f.increments++
	return nil
}

type fakeGroups struct{}

func (f *fakeGroups) GetByID(_ context.Context, _ int64) (*models.GroupDiscount, error) {
	return nil, errors.New("group not found")
}

type fakePopupCities struct {
	apiKey string
}

func (f *fakePopupCities) GetByID(_ context.Context, id int64) (*models.PopupCity, error) {
	return &models.PopupCity{ID: id, Name: "test city", SimplefiAPIKey: f.apiKey}, nil
}

type fakeProducts struct {
	products []models.Product
}

func (f *fakeProducts) FindActive(_ context.Context, _ int64, ids []int64) ([]models.Product, error) {
	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []models.Product
	for _, p := range f.products {
		if wanted[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeGateway struct {
	calls  int
	apiKey string
	resp   *gateway.PaymentResponse
	err    error
}

func (f *fakeGateway) CreatePaymentRequest(_ context.Context, apiKey string, _ gateway.PaymentRequest) (*gateway.PaymentResponse, error) {
	f.calls++
	f.apiKey = apiKey
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeLease struct {
	released *int
}

func (l *fakeLease) Release(_ context.Context) error {
	*l.released++
	return nil
}

type fakeLocker struct {
	acquired int
	released int
	err      error
}

func (f *fakeLocker) Acquire(_ context.Context, _ string, _ time.Duration) (lock.Lease, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired++
	return &fakeLease{released: &f.released}, nil
}

type fixture struct {
	applications *fakeApplications
	payments     *fakePayments
	coupons      *fakeCoupons
	gateway      *fakeGateway
	locker       *fakeLocker
	orchestrator *Orchestrator
}

func newFixture(app *models.Application, products []models.Product, coupon *models.CouponCode) *fixture {
	f := &fixture{
		applications: &fakeApplications{app: app},
		payments:     newFakePayments(),
		coupons:      &fakeCoupons{coupon: coupon},
		gateway: &fakeGateway{resp: &gateway.PaymentResponse{
			ID:          "pr_123",
			Status:      "pending",
			CheckoutURL: "https://checkout.example/pr_123",
		}},
		locker: &fakeLocker{},
	}
	engine := pricing.NewEngine(&fakeProducts{products: products}, f.coupons, &fakeGroups{})
	f.orchestrator = NewOrchestrator(
		f.applications, f.payments, f.coupons, &fakePopupCities{apiKey: "sk_test"},
		engine, f.gateway, cache.New(cache.WebhookTTL), f.locker, nil,
	)
	return f
}

func testApp(held ...models.AttendeeProduct) *models.Application {
	return &models.Application{
		ID:          1,
		CitizenID:   2,
		PopupCityID: 3,
		RawStatus:   models.StatusAccepted,
		Attendees: []models.Attendee{
			{ID: 10, ApplicationID: 1, Name: "main", Category: "main", Products: held},
		},
	}
}

func standardProduct(id int64, price float64) models.Product {
	return models.Product{ID: id, PopupCityID: 3, Name: "pass", Category: models.CategoryStandard, Price: price, IsActive: true}
}

func TestCreatePaymentPositiveAmountGoesThroughGateway(t *testing.T) {
	f := newFixture(testApp(), []models.Product{standardProduct(1, 100)}, nil)

	p, err := f.orchestrator.CreatePayment(context.Background(), CreatePaymentRequest{
		ApplicationID: 1,
		Products:      []models.CartItem{{ProductID: 1, AttendeeID: 10, Quantity: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if p.Status != models.PaymentPending {
		t.Errorf("Status = %q, want pending", p.Status)
	}
	if p.ExternalID != "pr_123" {
		t.Errorf("ExternalID = %q, want pr_123", p.ExternalID)
	}
	if p.CheckoutURL == "" {
		t.Error("expected a checkout URL")
	}
	if f.gateway.calls != 1 {
		t.Errorf("gateway calls = %d, want 1", f.gateway.calls)
	}
	if f.gateway.apiKey != "sk_test" {
		t.Errorf("gateway apiKey = %q, want the popup city's key", f.gateway.apiKey)
	}
	if f.payments.approvals != 0 {
		t.Errorf("approvals = %d, want 0 for a pending payment", f.payments.approvals)
	}
}

func TestCreatePaymentRequiresGatewayConfig(t *testing.T) {
	f := newFixture(testApp(), []models.Product{standardProduct(1, 100)}, nil)
	f.orchestrator.popupCities = &fakePopupCities{apiKey: ""}

	_, err := f.orchestrator.CreatePayment(context.Background(), CreatePaymentRequest{
		ApplicationID: 1,
		Products:      []models.CartItem{{ProductID: 1, AttendeeID: 10, Quantity: 1}},
	})
	if !errors.Is(err, apperrors.ErrMissingGatewayConfig) {
		t.Fatalf("expected ErrMissingGatewayConfig, got %v", err)
	}
	if f.gateway.calls != 0 {
		t.Errorf("gateway calls = %d, want 0", f.gateway.calls)
	}
}

func TestCreatePaymentAutoApprovesOverpaidEditPasses(t *testing.T) {
	app := testApp(models.AttendeeProduct{
		AttendeeID: 10, ProductID: 2, Quantity: 1, Category: models.CategoryStandard, Price: 120,
	})
	f := newFixture(app, []models.Product{standardProduct(1, 100)}, nil)

	p, err := f.orchestrator.CreatePayment(context.Background(), CreatePaymentRequest{
		ApplicationID: 1,
		Products:      []models.CartItem{{ProductID: 1, AttendeeID: 10, Quantity: 1}},
		EditPasses:    true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if p.Status != models.PaymentApproved {
		t.Errorf("Status = %q, want approved", p.Status)
	}
	if p.Amount != 0 {
		t.Errorf("Amount = %v, want 0", p.Amount)
	}
	if f.applications.credit == nil || *f.applications.credit != 20.0 {
		t.Errorf("application credit = %v, want 20", f.applications.credit)
	}
	if f.gateway.calls != 0 {
		t.Errorf("gateway calls = %d, want 0 for auto-approval", f.gateway.calls)
	}
	if f.payments.approvals != 1 {
		t.Errorf("approvals = %d, want 1", f.payments.approvals)
	}
}

func TestCreatePaymentIncrementsCouponUseUnderLock(t *testing.T) {
	coupon := &models.CouponCode{ID: 9, Code: "HALF", DiscountValue: 50, IsActive: true}
	f := newFixture(testApp(), []models.Product{standardProduct(1, 100)}, coupon)

	p, err := f.orchestrator.CreatePayment(context.Background(), CreatePaymentRequest{
		ApplicationID: 1,
		Products:      []models.CartItem{{ProductID: 1, AttendeeID: 10, Quantity: 1}},
		CouponCode:    "HALF",
	})
	if err != nil {
		t.Fatal(err)
	}

	if p.Amount != 50.0 {
		t.Errorf("Amount = %v, want 50", p.Amount)
	}
	if f.coupons.increments != 1 {
		t.Errorf("coupon increments = %d, want 1", f.coupons.increments)
	}
	if f.locker.acquired != 1 || f.locker.released != 1 {
		t.Errorf("lock acquired/released = %d/%d, want 1/1", f.locker.acquired, f.locker.released)
	}
}

func TestCreatePaymentPropagatesLockTimeout(t *testing.T) {
	coupon := &models.CouponCode{ID: 9, Code: "HALF", DiscountValue: 50, IsActive: true}
	f := newFixture(testApp(), []models.Product{standardProduct(1, 100)}, coupon)
	f.locker.err = apperrors.ErrLockTimeout

	_, err := f.orchestrator.CreatePayment(context.Background(), CreatePaymentRequest{
		ApplicationID: 1,
		Products:      []models.CartItem{{ProductID: 1, AttendeeID: 10, Quantity: 1}},
		CouponCode:    "HALF",
	})
	if !errors.Is(err, apperrors.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if len(f.payments.created) != 0 {
		t.Errorf("payments created = %d, want 0", len(f.payments.created))
	}
}

func TestCreatePaymentCountsPricingFailures(t *testing.T) {
	app := testApp()
	app.RawStatus = models.StatusInReview
	f := newFixture(app, []models.Product{standardProduct(1, 100)}, nil)

	counter := telemetry.PricingFailures.WithLabelValues("not_accepted")
	before := testutil.ToFloat64(counter)

	_, err := f.orchestrator.CreatePayment(context.Background(), CreatePaymentRequest{
		ApplicationID: 1,
		Products:      []models.CartItem{{ProductID: 1, AttendeeID: 10, Quantity: 1}},
	})
	if !errors.Is(err, apperrors.ErrApplicationNotAccepted) {
		t.Fatalf("expected ErrApplicationNotAccepted, got %v", err)
	}

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("pricing_failures_total{reason=\"not_accepted\"} delta = %v, want 1", got)
	}
}

func TestPricingFailureReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{apperrors.ErrApplicationNotAccepted, "not_accepted"},
		{&apperrors.InvalidProductsError{ProductIDs: []int64{42}}, "invalid_products"},
		{apperrors.ErrEditPassesForPatreon, "edit_passes_patreon"},
		{apperrors.ErrCouponExhausted, "coupon"},
		{errors.New("connection refused"), "other"},
	}
	for _, tc := range cases {
		if got := pricingFailureReason(tc.err); got != tc.want {
			t.Errorf("pricingFailureReason(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func approvedEvent(externalID string) *models.WebhookEvent {
	return &models.WebhookEvent{
		EventType: "new_payment",
		Data: models.WebhookData{
			PaymentRequest: models.WebhookPaymentRequest{
				ID:     externalID,
				Status: "approved",
				Transactions: []models.WebhookTransaction{
					{Coin: "DAI", PriceDetails: models.WebhookPriceDetails{Rate: 1.01}},
				},
			},
		},
	}
}

func createPendingPayment(t *testing.T, f *fixture) *models.Payment {
	t.Helper()
	p, err := f.orchestrator.CreatePayment(context.Background(), CreatePaymentRequest{
		ApplicationID: 1,
		Products:      []models.CartItem{{ProductID: 1, AttendeeID: 10, Quantity: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestHandleGatewayEventApproves(t *testing.T) {
	f := newFixture(testApp(), []models.Product{standardProduct(1, 100)}, nil)
	p := createPendingPayment(t, f)

	if err := f.orchestrator.HandleGatewayEvent(context.Background(), approvedEvent(p.ExternalID)); err != nil {
		t.Fatal(err)
	}

	if p.Status != models.PaymentApproved {
		t.Errorf("Status = %q, want approved", p.Status)
	}
	if p.Currency != "DAI" || p.Rate != 1.01 {
		t.Errorf("currency/rate = %q/%v, want DAI/1.01", p.Currency, p.Rate)
	}
	if f.payments.approvals != 1 {
		t.Errorf("approvals = %d, want 1", f.payments.approvals)
	}
}

func TestHandleGatewayEventApprovalLeavesApplicationCreditAlone(t *testing.T) {
	app := testApp()
	app.Credit = 20
	f := newFixture(app, []models.Product{standardProduct(1, 100)}, nil)
	p := createPendingPayment(t, f)

	if err := f.orchestrator.HandleGatewayEvent(context.Background(), approvedEvent(p.ExternalID)); err != nil {
		t.Fatal(err)
	}

	// A regular purchase settles without touching the application's credit
	// balance; only an edit-passes settlement rewrites it.
	if f.applications.credit != nil {
		t.Errorf("application credit rewritten to %v, want untouched", *f.applications.credit)
	}
	if p.EditPasses || p.CreditGranted != 0 {
		t.Errorf("payment edit/credit = %v/%v, want false/0", p.EditPasses, p.CreditGranted)
	}
}

func TestHandleGatewayEventReplayIsNoop(t *testing.T) {
	f := newFixture(testApp(), []models.Product{standardProduct(1, 100)}, nil)
	p := createPendingPayment(t, f)

	for i := 0; i < 3; i++ {
		if err := f.orchestrator.HandleGatewayEvent(context.Background(), approvedEvent(p.ExternalID)); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}

	if f.payments.approvals != 1 {
		t.Errorf("approvals = %d, want exactly 1 across replays", f.payments.approvals)
	}
}

func TestHandleGatewayEventExpired(t *testing.T) {
	f := newFixture(testApp(), []models.Product{standardProduct(1, 100)}, nil)
	p := createPendingPayment(t, f)

	evt := approvedEvent(p.ExternalID)
	evt.Data.PaymentRequest.Status = "expired"
	evt.Data.PaymentRequest.Transactions = nil

	if err := f.orchestrator.HandleGatewayEvent(context.Background(), evt); err != nil {
		t.Fatal(err)
	}

	if p.Status != models.PaymentExpired {
		t.Errorf("Status = %q, want expired", p.Status)
	}
	if f.payments.approvals != 0 {
		t.Errorf("approvals = %d, want 0", f.payments.approvals)
	}
}

func TestHandleGatewayEventUnsupportedType(t *testing.T) {
	f := newFixture(testApp(), []models.Product{standardProduct(1, 100)}, nil)

	evt := approvedEvent("pr_123")
	evt.EventType = "invoice_paid"

	err := f.orchestrator.HandleGatewayEvent(context.Background(), evt)
	if !errors.Is(err, apperrors.ErrUnsupportedEventType) {
		t.Fatalf("expected ErrUnsupportedEventType, got %v", err)
	}
}

func TestHandleGatewayEventUnknownPayment(t *testing.T) {
	f := newFixture(testApp(), []models.Product{standardProduct(1, 100)}, nil)

	err := f.orchestrator.HandleGatewayEvent(context.Background(), approvedEvent("pr_unknown"))
	if !errors.Is(err, apperrors.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}
