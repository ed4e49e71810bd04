package models

import "time"

// Project represents a budgeted project users log time against.
//
// The four quarterly spent fields and the spent total are a cache owned by
// the spending aggregator; the source of truth is TimeEntry x RateHistory.
type Project struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name  string `gorm:"type:text;not null;uniqueIndex"` // Project name.
	Color string `gorm:"type:text"`                      // Display color.

	Active bool `gorm:"not null;default:true"` // Whether new time may be logged.

	TotalBudgetMicros int64 `gorm:"not null;default:0"` // Total budget in currency micros.
	Q1BudgetMicros    int64 `gorm:"not null;default:0"` // Q1 (Apr-Jun) budget in micros.
	Q2BudgetMicros    int64 `gorm:"not null;default:0"` // Q2 (Jul-Sep) budget in micros.
	Q3BudgetMicros    int64 `gorm:"not null;default:0"` // Q3 (Oct-Dec) budget in micros.
	Q4BudgetMicros    int64 `gorm:"not null;default:0"` // Q4 (Jan-Mar) budget in micros.

	Q1SpentMicros    int64 `gorm:"not null;default:0"` // Cached Q1 spending in micros.
	Q2SpentMicros    int64 `gorm:"not null;default:0"` // Cached Q2 spending in micros.
	Q3SpentMicros    int64 `gorm:"not null;default:0"` // Cached Q3 spending in micros.
	Q4SpentMicros    int64 `gorm:"not null;default:0"` // Cached Q4 spending in micros.
	TotalSpentMicros int64 `gorm:"not null;default:0"` // Cached total spending in micros.

	TimeEntries []TimeEntry `gorm:"foreignKey:ProjectID"` // Logged time entries.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
