package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timeledger-hq/timeledger/internal/models"
	"github.com/timeledger-hq/timeledger/internal/money"
	"gorm.io/gorm"
)

// ProfileHandler serves the authenticated user's own account.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

// Me returns the authenticated user's profile and current hourly rate.
func (h *ProfileHandler) Me(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	email := ""
	if user.Email != nil {
		email = *user.Email
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          user.ID,
		"username":    user.Username,
		"name":        user.Name,
		"email":       email,
		"role":        user.Role,
		"hourly_rate": money.FloatFromCents(user.EmployeeRateCents),
		"created_at":  user.CreatedAt,
	})
}
