package models

import "time"

// RateHistory records an hourly rate change effective from a given date.
//
// At most one row may exist per (user_id, effective_date); the uniqueness
// guarantees that effective-rate resolution never has to break ties.
type RateHistory struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index;uniqueIndex:idx_rate_histories_user_date"` // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"`                                       // Owning user record.

	RateCents int64 `gorm:"not null;default:0"` // Hourly rate in cents, non-negative.

	EffectiveDate time.Time `gorm:"not null;uniqueIndex:idx_rate_histories_user_date"` // Date the rate takes effect (UTC midnight).

	CreatedBy uint64 `gorm:"not null"` // Admin user ID that recorded the change.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
