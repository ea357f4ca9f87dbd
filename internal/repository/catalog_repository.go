package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/nomadhq/popup-registration/internal/apperrors"
	"github.com/nomadhq/popup-registration/internal/models"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) FindActive(ctx context.Context, popupCityID int64, ids []int64) ([]models.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, popup_city_id, name, category, price, is_active
		FROM products
		WHERE popup_city_id = $1 AND id = ANY($2) AND is_active
	`, popupCityID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.PopupCityID, &p.Name, &p.Category, &p.Price, &p.IsActive); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type CouponRepository struct {
	db *sql.DB
}

func NewCouponRepository(db *sql.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// GetByCode resolves a coupon and validates it: active, inside its window,
// uses remaining. Each failure maps to its own error kind so callers can
// report the exact reason.
func (r *CouponRepository) GetByCode(ctx context.Context, code string, popupCityID int64) (*models.CouponCode, error) {
	var c models.CouponCode
	err := r.db.QueryRowContext(ctx, `
		SELECT id, popup_city_id, code, discount_value, start_date, end_date,
		       max_uses, current_uses, is_active
		FROM coupon_codes
		WHERE popup_city_id = $1 AND code = $2
	`, popupCityID, code).Scan(
		&c.ID, &c.PopupCityID, &c.Code, &c.DiscountValue, &c.StartDate,
		&c.EndDate, &c.MaxUses, &c.CurrentUses, &c.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch {
	case !c.IsActive:
		return nil, apperrors.ErrCouponInactive
	case c.StartDate != nil && now.Before(*c.StartDate):
		return nil, apperrors.ErrCouponNotStarted
	case c.EndDate != nil && now.After(*c.EndDate):
		return nil, apperrors.ErrCouponExpired
	case c.MaxUses != nil && c.CurrentUses >= *c.MaxUses:
		return nil, apperrors.ErrCouponExhausted
	}
	return &c, nil
}

// IncrementUse bumps the use counter, refusing to pass max_uses. The guarded
// UPDATE keeps the row consistent even if a caller skips the advisory lock.
func (r *CouponRepository) IncrementUse(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE coupon_codes SET current_uses = current_uses + 1
		WHERE id = $1 AND (max_uses IS NULL OR current_uses < max_uses)
	`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperrors.ErrCouponExhausted
	}
	return nil
}

type GroupRepository struct {
	db *sql.DB
}

func NewGroupRepository(db *sql.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) GetByID(ctx context.Context, id int64) (*models.GroupDiscount, error) {
	var g models.GroupDiscount
	err := r.db.QueryRowContext(ctx, `
		SELECT id, popup_city_id, name, discount_percentage
		FROM group_discounts WHERE id = $1
	`, id).Scan(&g.ID, &g.PopupCityID, &g.Name, &g.DiscountPercentage)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

type PopupCityRepository struct {
	db *sql.DB
}

func NewPopupCityRepository(db *sql.DB) *PopupCityRepository {
	return &PopupCityRepository{db: db}
}

func (r *PopupCityRepository) GetByID(ctx context.Context, id int64) (*models.PopupCity, error) {
	var pc models.PopupCity
	var apiKey sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, simplefi_api_key, created_at
		FROM popup_cities WHERE id = $1
	`, id).Scan(&pc.ID, &pc.Name, &apiKey, &pc.CreatedAt)
	if err != nil {
		return nil, err
	}
	pc.SimplefiAPIKey = apiKey.String
	return &pc, nil
}
