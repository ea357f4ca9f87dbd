package repository

import "database/sql"

// InitDB creates the tables the service owns. Idempotent, run at startup.
func InitDB(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS popup_cities (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			simplefi_api_key VARCHAR(255),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS applications (
			id BIGSERIAL PRIMARY KEY,
			citizen_id BIGINT NOT NULL,
			popup_city_id BIGINT NOT NULL REFERENCES popup_cities(id),
			status VARCHAR(50) NOT NULL DEFAULT 'draft',
			scholarship_request BOOLEAN NOT NULL DEFAULT FALSE,
			discount_assigned DOUBLE PRECISION,
			credit DOUBLE PRECISION NOT NULL DEFAULT 0,
			group_id BIGINT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS attendees (
			id BIGSERIAL PRIMARY KEY,
			application_id BIGINT NOT NULL REFERENCES applications(id),
			name VARCHAR(255) NOT NULL,
			category VARCHAR(50) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			popup_city_id BIGINT NOT NULL REFERENCES popup_cities(id),
			name VARCHAR(255) NOT NULL,
			category VARCHAR(50) NOT NULL DEFAULT 'standard',
			price DOUBLE PRECISION NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS attendee_products (
			attendee_id BIGINT NOT NULL REFERENCES attendees(id),
			product_id BIGINT NOT NULL,
			quantity INT NOT NULL,
			name VARCHAR(255) NOT NULL,
			category VARCHAR(50) NOT NULL,
			price DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id BIGSERIAL PRIMARY KEY,
			application_id BIGINT NOT NULL REFERENCES applications(id),
			external_id VARCHAR(255),
			status VARCHAR(50) NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			original_amount DOUBLE PRECISION NOT NULL,
			currency VARCHAR(10) NOT NULL DEFAULT 'USD',
			rate DOUBLE PRECISION NOT NULL DEFAULT 1,
			discount_value DOUBLE PRECISION NOT NULL DEFAULT 0,
			coupon_code_id BIGINT,
			group_id BIGINT,
			edit_passes BOOLEAN NOT NULL DEFAULT FALSE,
			credit_granted DOUBLE PRECISION NOT NULL DEFAULT 0,
			checkout_url TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS payment_products (
			payment_id BIGINT NOT NULL REFERENCES payments(id),
			product_id BIGINT NOT NULL,
			attendee_id BIGINT NOT NULL,
			quantity INT NOT NULL,
			name VARCHAR(255) NOT NULL,
			category VARCHAR(50) NOT NULL,
			price DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS coupon_codes (
			id BIGSERIAL PRIMARY KEY,
			popup_city_id BIGINT NOT NULL REFERENCES popup_cities(id),
			code VARCHAR(100) NOT NULL,
			discount_value DOUBLE PRECISION NOT NULL,
			start_date TIMESTAMP,
			end_date TIMESTAMP,
			max_uses INT,
			current_uses INT NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS group_discounts (
			id BIGSERIAL PRIMARY KEY,
			popup_city_id BIGINT NOT NULL REFERENCES popup_cities(id),
			name VARCHAR(255) NOT NULL,
			discount_percentage DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_external_id ON payments(external_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_application_id ON payments(application_id)`,
		`CREATE INDEX IF NOT EXISTS idx_coupon_codes_code ON coupon_codes(popup_city_id, code)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}
