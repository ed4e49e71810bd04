package models

import "time"

// TimeEntry records hours worked by a user against a project on a date.
type TimeEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"` // Owning user record.

	ProjectID uint64  `gorm:"not null;index"`       // Owning project ID.
	Project   Project `gorm:"foreignKey:ProjectID"` // Owning project record.

	EntryDate time.Time `gorm:"not null;index"` // Calendar date used for fiscal classification (UTC midnight).

	StartTime time.Time  `gorm:"not null"` // Work start timestamp.
	EndTime   *time.Time ``               // Work end timestamp, nil while running.

	DurationMinutes int64   `gorm:"not null;default:0"`                    // Worked duration in minutes.
	Hours           float64 `gorm:"type:decimal(10,2);not null;default:0"` // Derived duration in hours, always duration_minutes/60.

	Description string `gorm:"type:text"` // Optional free-form note.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// SyncHours recomputes the redundant hours column from the minute duration.
func (e *TimeEntry) SyncHours() {
	e.Hours = float64(e.DurationMinutes) / 60
}
