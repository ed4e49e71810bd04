package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timeledger-hq/timeledger/internal/access"
	"github.com/timeledger-hq/timeledger/internal/budget"
	"github.com/timeledger-hq/timeledger/internal/models"
	"github.com/timeledger-hq/timeledger/internal/money"
	"gorm.io/gorm"
)

// BudgetFrontHandler lets delegated users edit project budgets. Requires
// the EDIT_BUDGETS permission on the project; admins bypass the gate.
type BudgetFrontHandler struct {
	db *gorm.DB
}

// NewBudgetFrontHandler constructs a BudgetFrontHandler.
func NewBudgetFrontHandler(db *gorm.DB) *BudgetFrontHandler {
	return &BudgetFrontHandler{db: db}
}

// updateBudgetsRequest defines the request body for budget allocation.
// Amounts are currency units.
type updateBudgetsRequest struct {
	Total float64 `json:"total"`
	Q1    float64 `json:"q1"`
	Q2    float64 `json:"q2"`
	Q3    float64 `json:"q3"`
	Q4    float64 `json:"q4"`
}

// Update replaces a project's total and quarterly budgets.
func (h *BudgetFrontHandler) Update(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	projectID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if !isAdmin(c) {
		ok, errCheck := access.HasProjectPermission(c.Request.Context(), h.db, userID, projectID, access.PermissionEditBudgets)
		if errCheck != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "permission check failed"})
			return
		}
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
	}

	var body updateBudgetsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Total < 0 || body.Q1 < 0 || body.Q2 < 0 || body.Q3 < 0 || body.Q4 < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "budgets must not be negative"})
		return
	}

	totalMicros := money.MicrosFromFloat(body.Total)
	q1 := money.MicrosFromFloat(body.Q1)
	q2 := money.MicrosFromFloat(body.Q2)
	q3 := money.MicrosFromFloat(body.Q3)
	q4 := money.MicrosFromFloat(body.Q4)
	if errValidate := budget.Validate(totalMicros, q1, q2, q3, q4); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quarterly budgets exceed total budget"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Project{}).
		Where("id = ?", projectID).
		Updates(map[string]any{
			"total_budget_micros": totalMicros,
			"q1_budget_micros":    q1,
			"q2_budget_micros":    q2,
			"q3_budget_micros":    q3,
			"q4_budget_micros":    q4,
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update budgets failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project_id": projectID,
		"budgets": gin.H{
			"total": money.FloatFromMicros(totalMicros),
			"q1":    money.FloatFromMicros(q1),
			"q2":    money.FloatFromMicros(q2),
			"q3":    money.FloatFromMicros(q3),
			"q4":    money.FloatFromMicros(q4),
		},
	})
}
