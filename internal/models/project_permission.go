package models

import "time"

// ProjectPermission grants a user a capability on a single project.
type ProjectPermission struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index;uniqueIndex:idx_project_permissions_unique"` // Grantee user ID.
	User   User   `gorm:"foreignKey:UserID"`                                         // Grantee user record.

	ProjectID uint64  `gorm:"not null;index;uniqueIndex:idx_project_permissions_unique"` // Target project ID.
	Project   Project `gorm:"foreignKey:ProjectID"`                                      // Target project record.

	Permission string `gorm:"type:text;not null;uniqueIndex:idx_project_permissions_unique"` // Permission key.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
