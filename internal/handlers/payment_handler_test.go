package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/nomadhq/popup-registration/internal/apperrors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.ErrApplicationNotAccepted, http.StatusBadRequest},
		{apperrors.ErrEditPassesForPatreon, http.StatusBadRequest},
		{&apperrors.InvalidProductsError{ProductIDs: []int64{7}}, http.StatusBadRequest},
		{apperrors.ErrCouponNotFound, http.StatusBadRequest},
		{apperrors.ErrCouponInactive, http.StatusBadRequest},
		{apperrors.ErrCouponNotStarted, http.StatusBadRequest},
		{apperrors.ErrCouponExpired, http.StatusBadRequest},
		{apperrors.ErrCouponExhausted, http.StatusBadRequest},
		{apperrors.ErrPaymentNotFound, http.StatusNotFound},
		{sql.ErrNoRows, http.StatusNotFound},
		{apperrors.ErrLockTimeout, http.StatusConflict},
		{errors.New("database exploded"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
