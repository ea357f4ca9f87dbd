package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/nomadhq/popup-registration/internal/models"
)

type ApplicationRepository struct {
	db *sql.DB
}

func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// GetByID loads the application with its attendees and the products each
// attendee currently holds.
func (r *ApplicationRepository) GetByID(ctx context.Context, id int64) (*models.Application, error) {
	var app models.Application
	err := r.db.QueryRowContext(ctx, `
		SELECT id, citizen_id, popup_city_id, status, scholarship_request,
		       discount_assigned, credit, group_id, created_at, updated_at
		FROM applications WHERE id = $1
	`, id).Scan(
		&app.ID, &app.CitizenID, &app.PopupCityID, &app.RawStatus,
		&app.ScholarshipRequest, &app.DiscountAssigned, &app.Credit,
		&app.GroupID, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, application_id, name, category
		FROM attendees WHERE application_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attendeeIDs := make([]int64, 0)
	byID := make(map[int64]int)
	for rows.Next() {
		var a models.Attendee
		if err := rows.Scan(&a.ID, &a.ApplicationID, &a.Name, &a.Category); err != nil {
			return nil, err
		}
		byID[a.ID] = len(app.Attendees)
		app.Attendees = append(app.Attendees, a)
		attendeeIDs = append(attendeeIDs, a.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(attendeeIDs) > 0 {
		prows, err := r.db.QueryContext(ctx, `
			SELECT attendee_id, product_id, quantity, name, category, price
			FROM attendee_products WHERE attendee_id = ANY($1)
		`, pq.Array(attendeeIDs))
		if err != nil {
			return nil, err
		}
		defer prows.Close()

		for prows.Next() {
			var ap models.AttendeeProduct
			if err := prows.Scan(&ap.AttendeeID, &ap.ProductID, &ap.Quantity, &ap.Name, &ap.Category, &ap.Price); err != nil {
				return nil, err
			}
			if idx, ok := byID[ap.AttendeeID]; ok {
				app.Attendees[idx].Products = append(app.Attendees[idx].Products, ap)
			}
		}
		if err := prows.Err(); err != nil {
			return nil, err
		}
	}

	return &app, nil
}

func (r *ApplicationRepository) UpdateCredit(ctx context.Context, id int64, credit float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE applications SET credit = $1, updated_at = NOW() WHERE id = $2
	`, credit, id)
	return err
}
