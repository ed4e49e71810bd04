package models

import "time"

// UserRole represents the access level of an account.
type UserRole string

// UserRole constants define the supported account roles.
const (
	// RoleAdmin can manage users, rates, budgets, and permissions.
	RoleAdmin UserRole = "ADMIN"
	// RoleEmployee can log time and view reports they are granted.
	RoleEmployee UserRole = "EMPLOYEE"
)

// User represents an account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string  `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Name     string  `gorm:"type:text"`                      // Display name.
	Email    *string `gorm:"type:text;uniqueIndex"`          // Email address, NULL when absent so uniqueness only binds real values.
	Password string  `gorm:"type:text;not null"`             // Hashed password.

	Role UserRole `gorm:"type:text;not null;default:'EMPLOYEE'"` // Account role.

	EmployeeRateCents int64 `gorm:"not null;default:0"` // Cached latest hourly rate in cents.

	Active bool `gorm:"not null;default:true"` // Whether the user can sign in and log time.

	RateHistory []RateHistory `gorm:"foreignKey:UserID"` // Effective-dated rate changes.
	TimeEntries []TimeEntry   `gorm:"foreignKey:UserID"` // Logged time entries.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
