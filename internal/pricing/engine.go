// Package pricing computes the price of a cart of products for an
// application: tiered per-attendee accumulation, best-of discount selection
// and edit-passes credit carry-over.
package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/nomadhq/popup-registration/internal/apperrors"
	"github.com/nomadhq/popup-registration/internal/interfaces"
	"github.com/nomadhq/popup-registration/internal/models"
	"github.com/nomadhq/popup-registration/internal/status"
)

type Engine struct {
	products interfaces.ProductRepository
	coupons  interfaces.CouponRepository
	groups   interfaces.GroupRepository
}

func NewEngine(
	products interfaces.ProductRepository,
	coupons interfaces.CouponRepository,
	groups interfaces.GroupRepository,
) *Engine {
	return &Engine{products: products, coupons: coupons, groups: groups}
}

// Result is a priced preview of a cart.
type Result struct {
	// Amount is the final charge, floored at zero.
	Amount         float64
	OriginalAmount float64
	DiscountValue  float64
	CouponCodeID   *int64
	GroupID        *int64
	// Credit is the overage owed back to the application when discounts and
	// carried credit exceed the cart value.
	Credit float64
	// Items is the priced snapshot of the requested cart lines.
	Items []models.PaymentProduct
}

// buckets accumulates one attendee's spend per product tier. Once patreon is
// active for an attendee, no further lines charge for that attendee.
type buckets struct {
	standard  decimal.Decimal
	supporter decimal.Decimal
	patreon   decimal.Decimal
	active    bool
}

// PriceCart prices the requested cart for the application. Line items are
// processed in input order; patreon precedence and discount selection follow
// the checkout rules documented on each step below.
func (e *Engine) PriceCart(
	ctx context.Context,
	app *models.Application,
	items []models.CartItem,
	editPasses bool,
	couponCode string,
) (*Result, error) {
	// Only accepted applications may purchase.
	if status.Resolve(app) != models.StatusAccepted {
		return nil, apperrors.ErrApplicationNotAccepted
	}

	catalog, err := e.resolveProducts(ctx, app.PopupCityID, items)
	if err != nil {
		return nil, err
	}

	holdsPatreon := patreonHolders(app)

	// Edit passes may reshuffle standard/supporter purchases but may not be
	// used to newly acquire a patreon pass.
	if editPasses {
		for _, it := range items {
			if catalog[it.ProductID].Category == models.CategoryPatreon && !holdsPatreon[it.AttendeeID] {
				return nil, apperrors.ErrEditPassesForPatreon
			}
		}
	}

	perAttendee := accumulate(items, catalog, holdsPatreon)

	var standard, supporter, patreon decimal.Decimal
	for _, b := range perAttendee {
		standard = standard.Add(b.standard)
		supporter = supporter.Add(b.supporter)
		patreon = patreon.Add(b.patreon)
	}
	original := standard.Add(supporter).Add(patreon)

	// Credit for dropped items: the discounted value of everything the
	// attendees already hold (patreon holders contribute nothing, their pass
	// already covers them), plus any balance carried on the application.
	credit := decimal.Zero
	if editPasses {
		credit = e.carriedCredit(app, holdsPatreon)
	}

	assigned := 0.0
	if app.DiscountAssigned != nil {
		assigned = *app.DiscountAssigned
	}

	res := &Result{
		OriginalAmount: round2(original).InexactFloat64(),
		DiscountValue:  assigned,
		Items:          chargedItems(items, catalog, perAttendee, holdsPatreon),
	}

	// Candidate final prices: the assigned discount is the baseline; group
	// and coupon discounts only replace it when strictly lower.
	best := candidate(standard, supporter, patreon, credit, assigned)

	if app.GroupID != nil {
		group, err := e.groups.GetByID(ctx, *app.GroupID)
		if err != nil {
			return nil, err
		}
		if c := candidate(standard, supporter, patreon, credit, group.DiscountPercentage); c.LessThan(best) {
			best = c
			res.DiscountValue = group.DiscountPercentage
			res.GroupID = &group.ID
		}
	}

	if couponCode != "" {
		coupon, err := e.coupons.GetByCode(ctx, couponCode, app.PopupCityID)
		if err != nil {
			return nil, err
		}
		if c := candidate(standard, supporter, patreon, credit, coupon.DiscountValue); c.LessThan(best) {
			best = c
			res.DiscountValue = coupon.DiscountValue
			res.CouponCodeID = &coupon.ID
			res.GroupID = nil
		}
	}

	best = round2(best)
	if best.IsNegative() {
		res.Credit = best.Neg().InexactFloat64()
		res.Amount = 0
	} else {
		res.Amount = best.InexactFloat64()
	}
	return res, nil
}

// resolveProducts loads the requested ids from the popup city's active
// catalog and reports the ids that did not resolve.
func (e *Engine) resolveProducts(ctx context.Context, popupCityID int64, items []models.CartItem) (map[int64]models.Product, error) {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}

	found, err := e.products.FindActive(ctx, popupCityID, ids)
	if err != nil {
		return nil, err
	}

	catalog := make(map[int64]models.Product, len(found))
	for _, p := range found {
		catalog[p.ID] = p
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := catalog[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &apperrors.InvalidProductsError{ProductIDs: missing}
	}
	return catalog, nil
}

// accumulate fills per-attendee tier buckets in cart input order. A patreon
// line zeroes the attendee's standard/supporter spend and freezes further
// charges; it charges nothing when the attendee already holds patreon.
func accumulate(items []models.CartItem, catalog map[int64]models.Product, holdsPatreon map[int64]bool) map[int64]*buckets {
	perAttendee := make(map[int64]*buckets)
	for _, it := range items {
		b := perAttendee[it.AttendeeID]
		if b == nil {
			b = &buckets{}
			perAttendee[it.AttendeeID] = b
		}
		if b.active {
			continue
		}

		p := catalog[it.ProductID]
		line := decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(it.Quantity)))
		switch p.Category {
		case models.CategoryPatreon:
			b.active = true
			b.standard = decimal.Zero
			b.supporter = decimal.Zero
			if !holdsPatreon[it.AttendeeID] {
				b.patreon = line
			}
		case models.CategorySupporter:
			b.supporter = b.supporter.Add(line)
		default:
			b.standard = b.standard.Add(line)
		}
	}
	return perAttendee
}

// carriedCredit values the attendees' current non-patreon holdings at the
// assigned discount, one rounded aggregate per attendee, plus the
// application's existing credit balance.
func (e *Engine) carriedCredit(app *models.Application, holdsPatreon map[int64]bool) decimal.Decimal {
	assigned := 0.0
	if app.DiscountAssigned != nil {
		assigned = *app.DiscountAssigned
	}

	credit := decimal.NewFromFloat(app.Credit)
	for _, att := range app.Attendees {
		if holdsPatreon[att.ID] {
			continue
		}
		sum := decimal.Zero
		for _, ap := range att.Products {
			if ap.Category == models.CategoryPatreon {
				continue
			}
			sum = sum.Add(decimal.NewFromFloat(ap.Price).Mul(decimal.NewFromInt(int64(ap.Quantity))))
		}
		credit = credit.Add(discounted(sum, assigned))
	}
	return credit
}

// candidate computes one final-price candidate: the discount applies to the
// standard tier only, supporter and patreon always charge full price.
func candidate(standard, supporter, patreon, credit decimal.Decimal, pct float64) decimal.Decimal {
	return discounted(standard, pct).Add(supporter).Add(patreon).Sub(credit)
}

// discounted applies pct as `v * (1 - pct/100)` and rounds the aggregate to
// two decimals.
func discounted(v decimal.Decimal, pct float64) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100)))
	return round2(v.Mul(factor))
}

func round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

func patreonHolders(app *models.Application) map[int64]bool {
	holders := make(map[int64]bool)
	for _, att := range app.Attendees {
		for _, ap := range att.Products {
			if ap.Category == models.CategoryPatreon && ap.Quantity > 0 {
				holders[att.ID] = true
				break
			}
		}
	}
	return holders
}

// chargedItems builds the payment snapshot from the lines that actually
// purchased something. For an attendee whose cart activated patreon, only the
// first patreon line is recorded, and not when the attendee already holds the
// pass; their standard/supporter lines were superseded and are dropped.
func chargedItems(items []models.CartItem, catalog map[int64]models.Product, perAttendee map[int64]*buckets, holdsPatreon map[int64]bool) []models.PaymentProduct {
	taken := make(map[int64]bool)
	out := make([]models.PaymentProduct, 0, len(items))
	for _, it := range items {
		p := catalog[it.ProductID]
		if perAttendee[it.AttendeeID].active {
			if p.Category != models.CategoryPatreon || holdsPatreon[it.AttendeeID] || taken[it.AttendeeID] {
				continue
			}
			taken[it.AttendeeID] = true
		}
		out = append(out, models.PaymentProduct{
			ProductID:  p.ID,
			AttendeeID: it.AttendeeID,
			Quantity:   it.Quantity,
			Name:       p.Name,
			Category:   p.Category,
			Price:      p.Price,
		})
	}
	return out
}
