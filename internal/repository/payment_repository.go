package repository

import (
	"context"
	"database/sql"

	"github.com/nomadhq/popup-registration/internal/models"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create persists the payment and its product snapshot rows in one
// transaction and fills p.ID.
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO payments (application_id, external_id, status, amount,
			original_amount, currency, rate, discount_value, coupon_code_id,
			group_id, edit_passes, credit_granted, checkout_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`, p.ApplicationID, p.ExternalID, p.Status, p.Amount, p.OriginalAmount,
		p.Currency, p.Rate, p.DiscountValue, p.CouponCodeID, p.GroupID,
		p.EditPasses, p.CreditGranted, p.CheckoutURL,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}

	for i := range p.Products {
		p.Products[i].PaymentID = p.ID
		pp := p.Products[i]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payment_products (payment_id, product_id, attendee_id,
				quantity, name, category, price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, pp.PaymentID, pp.ProductID, pp.AttendeeID, pp.Quantity, pp.Name, pp.Category, pp.Price)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	return r.getBy(ctx, `WHERE id = $1`, id)
}

func (r *PaymentRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	return r.getBy(ctx, `WHERE external_id = $1`, externalID)
}

func (r *PaymentRepository) getBy(ctx context.Context, where string, arg interface{}) (*models.Payment, error) {
	var p models.Payment
	var externalID, checkoutURL sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, application_id, external_id, status, amount, original_amount,
		       currency, rate, discount_value, coupon_code_id, group_id,
		       edit_passes, credit_granted, checkout_url, created_at, updated_at
		FROM payments `+where, arg,
	).Scan(
		&p.ID, &p.ApplicationID, &externalID, &p.Status, &p.Amount,
		&p.OriginalAmount, &p.Currency, &p.Rate, &p.DiscountValue,
		&p.CouponCodeID, &p.GroupID, &p.EditPasses, &p.CreditGranted,
		&checkoutURL, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ExternalID = externalID.String
	p.CheckoutURL = checkoutURL.String

	rows, err := r.db.QueryContext(ctx, `
		SELECT payment_id, product_id, attendee_id, quantity, name, category, price
		FROM payment_products WHERE payment_id = $1
	`, p.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var pp models.PaymentProduct
		if err := rows.Scan(&pp.PaymentID, &pp.ProductID, &pp.AttendeeID, &pp.Quantity, &pp.Name, &pp.Category, &pp.Price); err != nil {
			return nil, err
		}
		p.Products = append(p.Products, pp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, id int64, status models.PaymentStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, id)
	return err
}

// Approve settles the payment atomically: marks it approved with the
// realized currency and rate and applies its product snapshot to the
// attendees. An edit-passes payment replaces the prior non-patreon holdings
// of the application's attendees and stores the residual credit computed at
// pricing time; a regular payment adds its snapshot and leaves the
// application's credit balance alone.
func (r *PaymentRepository) Approve(ctx context.Context, p *models.Payment, currency string, rate float64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE payments SET status = $1, currency = $2, rate = $3, updated_at = NOW()
		WHERE id = $4
	`, models.PaymentApproved, currency, rate, p.ID)
	if err != nil {
		return err
	}

	if p.EditPasses {
		// Patreon passes survive an edit: pricing neither charges nor
		// credits a held pass, so discarding one would be uncompensated.
		_, err = tx.ExecContext(ctx, `
			DELETE FROM attendee_products
			WHERE attendee_id IN (SELECT id FROM attendees WHERE application_id = $1)
			  AND category <> $2
		`, p.ApplicationID, models.CategoryPatreon)
		if err != nil {
			return err
		}
	}

	for _, pp := range p.Products {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO attendee_products (attendee_id, product_id, quantity, name, category, price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, pp.AttendeeID, pp.ProductID, pp.Quantity, pp.Name, pp.Category, pp.Price)
		if err != nil {
			return err
		}
	}

	if p.EditPasses {
		_, err = tx.ExecContext(ctx, `
			UPDATE applications SET credit = $1, updated_at = NOW() WHERE id = $2
		`, p.CreditGranted, p.ApplicationID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}
