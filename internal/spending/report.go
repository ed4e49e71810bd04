package spending

import (
	"context"
	"errors"
	"fmt"

	"github.com/timeledger-hq/timeledger/internal/fiscal"
	"github.com/timeledger-hq/timeledger/internal/models"
	"github.com/timeledger-hq/timeledger/internal/money"
	"github.com/timeledger-hq/timeledger/internal/rates"

	"gorm.io/gorm"
)

// Report is the per-employee, per-project, per-fiscal-year breakdown
// consumed by reporting and export surfaces. Spending figures are in
// micros; hours are decimal hours.
type Report struct {
	EmployeeID uint64 `json:"employee_id"`
	ProjectID  uint64 `json:"project_id"`
	FiscalYear int    `json:"fiscal_year"`

	MonthlyHours          map[string]float64 `json:"monthly_hours"`
	MonthlySpendingMicros map[string]int64   `json:"monthly_spending_micros"`

	QuarterlyHours          [4]float64 `json:"quarterly_hours"`
	QuarterlySpendingMicros [4]int64   `json:"quarterly_spending_micros"`

	TotalHours          float64 `json:"total_hours"`
	TotalSpendingMicros int64   `json:"total_spending_micros"`
}

// EmployeeReport derives one employee's hours and spending on a project for
// a fiscal year. It is computed on demand with the same quarter classifier
// and rate resolution as the aggregator, so report buckets always line up
// with the cached project totals.
func (a *Aggregator) EmployeeReport(ctx context.Context, employeeID, projectID uint64, fiscalYear int) (*Report, error) {
	start, end := fiscal.YearWindow(fiscalYear)

	var entries []models.TimeEntry
	if errFind := a.db.WithContext(ctx).
		Where("user_id = ? AND project_id = ?", employeeID, projectID).
		Where("entry_date >= ? AND entry_date < ?", start, end).
		Order("entry_date ASC").
		Find(&entries).Error; errFind != nil {
		return nil, fmt.Errorf("spending: load report entries: %w", errFind)
	}

	timeline, errLoad := rates.LoadUserTimeline(ctx, a.db, employeeID)
	if errLoad != nil {
		return nil, errLoad
	}

	report := &Report{
		EmployeeID:            employeeID,
		ProjectID:             projectID,
		FiscalYear:            fiscalYear,
		MonthlyHours:          make(map[string]float64),
		MonthlySpendingMicros: make(map[string]int64),
	}

	monthCentMinutes := make(map[string]int64)
	monthMinutes := make(map[string]int64)
	var quarterCentMinutes [4]int64
	var quarterMinutes [4]int64
	var totalCentMinutes, totalMinutes int64

	for _, entry := range entries {
		rate := timeline.RateOn(entry.EntryDate)
		cost := money.CentMinutes(entry.DurationMinutes, rate)
		monthKey := fiscal.MonthKey(entry.EntryDate)
		quarter := fiscal.Quarter(entry.EntryDate) - 1

		monthCentMinutes[monthKey] += cost
		monthMinutes[monthKey] += entry.DurationMinutes
		quarterCentMinutes[quarter] += cost
		quarterMinutes[quarter] += entry.DurationMinutes
		totalCentMinutes += cost
		totalMinutes += entry.DurationMinutes
	}

	for monthKey, centMinutes := range monthCentMinutes {
		report.MonthlySpendingMicros[monthKey] = money.MicrosFromCentMinutes(centMinutes)
		report.MonthlyHours[monthKey] = float64(monthMinutes[monthKey]) / 60
	}
	for i := 0; i < 4; i++ {
		report.QuarterlySpendingMicros[i] = money.MicrosFromCentMinutes(quarterCentMinutes[i])
		report.QuarterlyHours[i] = float64(quarterMinutes[i]) / 60
	}
	report.TotalSpendingMicros = money.MicrosFromCentMinutes(totalCentMinutes)
	report.TotalHours = float64(totalMinutes) / 60

	return report, nil
}

// ProjectReport derives the per-employee breakdown for every user with
// entries on the project in the fiscal year.
func (a *Aggregator) ProjectReport(ctx context.Context, projectID uint64, fiscalYear int) ([]*Report, error) {
	var project models.Project
	if errFind := a.db.WithContext(ctx).Select("id").First(&project, projectID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("spending: load project %d: %w", projectID, errFind)
	}

	start, end := fiscal.YearWindow(fiscalYear)
	var employeeIDs []uint64
	if errPluck := a.db.WithContext(ctx).
		Model(&models.TimeEntry{}).
		Distinct("user_id").
		Where("project_id = ?", projectID).
		Where("entry_date >= ? AND entry_date < ?", start, end).
		Order("user_id ASC").
		Pluck("user_id", &employeeIDs).Error; errPluck != nil {
		return nil, fmt.Errorf("spending: resolve report employees: %w", errPluck)
	}

	reports := make([]*Report, 0, len(employeeIDs))
	for _, employeeID := range employeeIDs {
		report, errReport := a.EmployeeReport(ctx, employeeID, projectID, fiscalYear)
		if errReport != nil {
			return nil, errReport
		}
		reports = append(reports, report)
	}
	return reports, nil
}
