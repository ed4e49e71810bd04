package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timeledger-hq/timeledger/internal/fiscal"
	"github.com/timeledger-hq/timeledger/internal/money"
	"github.com/timeledger-hq/timeledger/internal/spending"
)

// dateLayout is the wire format for calendar dates.
const dateLayout = "2006-01-02"

// getUserID returns the authenticated user ID from the request context.
func getUserID(c *gin.Context) uint64 {
	value, ok := c.Get("userID")
	if !ok {
		return 0
	}
	id, ok := value.(uint64)
	if !ok {
		return 0
	}
	return id
}

// parseDate parses a wire-format calendar date into a UTC midnight time.
func parseDate(raw string) (time.Time, error) {
	parsed, errParse := time.Parse(dateLayout, raw)
	if errParse != nil {
		return time.Time{}, errParse
	}
	return fiscal.DateOnly(parsed), nil
}

// formatReport renders a spending report with currency-unit amounts.
func formatReport(report *spending.Report) gin.H {
	monthlySpending := make(map[string]float64, len(report.MonthlySpendingMicros))
	for monthKey, micros := range report.MonthlySpendingMicros {
		monthlySpending[monthKey] = money.FloatFromMicros(micros)
	}
	quarterlySpending := make([]float64, 0, 4)
	for _, micros := range report.QuarterlySpendingMicros {
		quarterlySpending = append(quarterlySpending, money.FloatFromMicros(micros))
	}
	return gin.H{
		"employee_id":        report.EmployeeID,
		"project_id":         report.ProjectID,
		"fiscal_year":        report.FiscalYear,
		"monthly_hours":      report.MonthlyHours,
		"monthly_spending":   monthlySpending,
		"quarterly_hours":    report.QuarterlyHours,
		"quarterly_spending": quarterlySpending,
		"total_hours":        report.TotalHours,
		"total_spending":     money.FloatFromMicros(report.TotalSpendingMicros),
	}
}
