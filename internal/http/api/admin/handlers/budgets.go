package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timeledger-hq/timeledger/internal/budget"
	"github.com/timeledger-hq/timeledger/internal/models"
	"github.com/timeledger-hq/timeledger/internal/money"
	"gorm.io/gorm"
)

// BudgetHandler manages project budget allocation and status.
type BudgetHandler struct {
	db *gorm.DB
}

// NewBudgetHandler constructs a BudgetHandler.
func NewBudgetHandler(db *gorm.DB) *BudgetHandler {
	return &BudgetHandler{db: db}
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
func (h *BudgetHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
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
		Where("id = ?", id).
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
		"project_id": id,
		"budgets": gin.H{
			"total": money.FloatFromMicros(totalMicros),
			"q1":    money.FloatFromMicros(q1),
			"q2":    money.FloatFromMicros(q2),
			"q3":    money.FloatFromMicros(q3),
			"q4":    money.FloatFromMicros(q4),
		},
	})
}

// Status returns the per-quarter budget position of a project derived from
// its cached spending totals.
func (h *BudgetHandler) Status(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var project models.Project
	if errFind := h.db.WithContext(c.Request.Context()).First(&project, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project_id": project.ID,
		"quarters":   formatBudgetStatus(budget.Status(&project)),
	})
}

// formatBudgetStatus renders derived quarter statuses for responses. The
// utilization field is null when the quarter has no budget.
func formatBudgetStatus(statuses []budget.QuarterStatus) []gin.H {
	out := make([]gin.H, 0, len(statuses))
	for _, status := range statuses {
		var utilization any
		if status.UtilizationSet {
			utilization = status.Utilization
		}
		out = append(out, gin.H{
			"quarter":     status.Quarter,
			"budget":      money.FloatFromMicros(status.BudgetMicros),
			"spent":       money.FloatFromMicros(status.SpentMicros),
			"utilization": utilization,
			"alert":       status.Alert,
		})
	}
	return out
}
