// Package budget compares allocated budgets against aggregated spending.
// Everything here is a derived view recomputed on read; nothing is stored.
package budget

import (
	"errors"

	"github.com/timeledger-hq/timeledger/internal/models"
)

// ErrBudgetExceedsTotal rejects quarterly budgets whose sum is above the
// total budget.
var ErrBudgetExceedsTotal = errors.New("budget: sum of quarterly budgets exceeds total budget")

// AlertLevel classifies how close spending is to a budget.
type AlertLevel string

// AlertLevel constants, ordered by severity.
const (
	// AlertNone means spending is below every threshold.
	AlertNone AlertLevel = "none"
	// AlertWarning means utilization reached 75%.
	AlertWarning AlertLevel = "warning"
	// AlertCritical means utilization reached 90%.
	AlertCritical AlertLevel = "critical"
	// AlertOverBudget means utilization reached or passed 100%.
	AlertOverBudget AlertLevel = "over_budget"
)

// Validate checks that the quarterly budgets fit inside the total budget.
// All amounts are micros.
func Validate(totalMicros, q1, q2, q3, q4 int64) error {
	if q1+q2+q3+q4 > totalMicros {
		return ErrBudgetExceedsTotal
	}
	return nil
}

// Utilization returns spending as a percentage of budget. The second
// return is false when the budget is zero, in which case utilization is
// undefined and callers should display N/A instead of a number.
func Utilization(spentMicros, budgetMicros int64) (float64, bool) {
	if budgetMicros == 0 {
		return 0, false
	}
	return float64(spentMicros) / float64(budgetMicros) * 100, true
}

// Alert maps spending against a budget to an alert level. A zero budget
// never alerts; there is nothing to exceed.
func Alert(spentMicros, budgetMicros int64) AlertLevel {
	utilization, ok := Utilization(spentMicros, budgetMicros)
	switch {
	case !ok:
		return AlertNone
	case utilization >= 100:
		return AlertOverBudget
	case utilization >= 90:
		return AlertCritical
	case utilization >= 75:
		return AlertWarning
	default:
		return AlertNone
	}
}

// QuarterStatus is the derived budget position of one fiscal quarter.
type QuarterStatus struct {
	Quarter        int        `json:"quarter"`
	BudgetMicros   int64      `json:"budget_micros"`
	SpentMicros    int64      `json:"spent_micros"`
	Utilization    float64    `json:"utilization"`
	UtilizationSet bool       `json:"utilization_set"`
	Alert          AlertLevel `json:"alert"`
}

// Status derives the per-quarter and total budget position of a project
// from its persisted budget and spent caches.
func Status(project *models.Project) []QuarterStatus {
	quarters := []struct {
		budget int64
		spent  int64
	}{
		{project.Q1BudgetMicros, project.Q1SpentMicros},
		{project.Q2BudgetMicros, project.Q2SpentMicros},
		{project.Q3BudgetMicros, project.Q3SpentMicros},
		{project.Q4BudgetMicros, project.Q4SpentMicros},
		{project.TotalBudgetMicros, project.TotalSpentMicros},
	}
	out := make([]QuarterStatus, 0, len(quarters))
	for i, q := range quarters {
		utilization, ok := Utilization(q.spent, q.budget)
		status := QuarterStatus{
			Quarter:        i + 1, // 5 denotes the fiscal-year total
			BudgetMicros:   q.budget,
			SpentMicros:    q.spent,
			Utilization:    utilization,
			UtilizationSet: ok,
			Alert:          Alert(q.spent, q.budget),
		}
		out = append(out, status)
	}
	out[len(out)-1].Quarter = 0 // total row
	return out
}
