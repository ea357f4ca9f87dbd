// Package status derives an application's externally visible status from its
// raw stored status and discount/scholarship state.
package status

import "github.com/nomadhq/popup-registration/internal/models"

// Resolve returns the effective status of an application.
//
// Draft, in-review and withdrawn applications pass through unchanged. An
// accepted scholarship application stays in review until a discount has been
// assigned. Group members are a special case: group admission decides
// accepted/withdrawn directly, so scholarship gating does not apply to them.
func Resolve(app *models.Application) models.ApplicationStatus {
	if app.RawStatus != models.StatusAccepted {
		return app.RawStatus
	}
	if app.GroupID != nil {
		return app.RawStatus
	}
	if app.ScholarshipRequest && app.DiscountAssigned == nil {
		return models.StatusInReview
	}
	return models.StatusAccepted
}
