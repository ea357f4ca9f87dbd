package status

import (
	"testing"

	"github.com/nomadhq/popup-registration/internal/models"
)

func TestResolve(t *testing.T) {
	discount := 10.0
	groupID := int64(7)

	tests := []struct {
		name string
		app  models.Application
		want models.ApplicationStatus
	}{
		{
			name: "draft passes through",
			app:  models.Application{RawStatus: models.StatusDraft},
			want: models.StatusDraft,
		},
		{
			name: "in review passes through",
			app:  models.Application{RawStatus: models.StatusInReview, ScholarshipRequest: true},
			want: models.StatusInReview,
		},
		{
			name: "withdrawn passes through",
			app:  models.Application{RawStatus: models.StatusWithdrawn},
			want: models.StatusWithdrawn,
		},
		{
			name: "accepted without scholarship",
			app:  models.Application{RawStatus: models.StatusAccepted},
			want: models.StatusAccepted,
		},
		{
			name: "accepted scholarship without discount downgrades",
			app:  models.Application{RawStatus: models.StatusAccepted, ScholarshipRequest: true},
			want: models.StatusInReview,
		},
		{
			name: "accepted scholarship with discount",
			app: models.Application{
				RawStatus:          models.StatusAccepted,
				ScholarshipRequest: true,
				DiscountAssigned:   &discount,
			},
			want: models.StatusAccepted,
		},
		{
			name: "group member bypasses scholarship gating",
			app: models.Application{
				RawStatus:          models.StatusAccepted,
				ScholarshipRequest: true,
				GroupID:            &groupID,
			},
			want: models.StatusAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(&tt.app); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}
