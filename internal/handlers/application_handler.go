package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nomadhq/popup-registration/internal/interfaces"
	"github.com/nomadhq/popup-registration/internal/status"
)

type ApplicationHandler struct {
	applications interfaces.ApplicationRepository
}

func NewApplicationHandler(applications interfaces.ApplicationRepository) *ApplicationHandler {
	return &ApplicationHandler{applications: applications}
}

// GetStatus reports the application's effective status, which can differ
// from the stored one for scholarship applicants awaiting a discount.
func (h *ApplicationHandler) GetStatus(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid application id"})
		return
	}

	app, err := h.applications.GetByID(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "application not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch application"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"application_id": app.ID,
		"status":         status.Resolve(app),
		"credit":         app.Credit,
	})
}

func paramID(c *gin.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}
