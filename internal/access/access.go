// Package access is the project permission gate. Write paths of the
// spending and budget surfaces call it before running.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/timeledger-hq/timeledger/internal/models"

	"gorm.io/gorm"
)

// Project permission keys.
const (
	// PermissionViewReports allows reading project reports and budget status.
	PermissionViewReports = "VIEW_REPORTS"
	// PermissionEditBudgets allows budget edits and manual recomputation.
	PermissionEditBudgets = "EDIT_BUDGETS"
	// PermissionFullAccess implies both other permissions.
	PermissionFullAccess = "FULL_ACCESS"
)

// ErrUnknownPermission rejects grants of undefined permission keys.
var ErrUnknownPermission = errors.New("access: unknown permission")

// ErrDuplicateGrant rejects granting a permission a user already holds on
// the project.
var ErrDuplicateGrant = errors.New("access: permission already granted")

// ValidPermission reports whether the key is a defined project permission.
func ValidPermission(permission string) bool {
	switch permission {
	case PermissionViewReports, PermissionEditBudgets, PermissionFullAccess:
		return true
	default:
		return false
	}
}

// HasProjectPermission reports whether the user holds the required
// permission on the project, directly or through FULL_ACCESS.
func HasProjectPermission(ctx context.Context, db *gorm.DB, userID, projectID uint64, required string) (bool, error) {
	if !ValidPermission(required) {
		return false, ErrUnknownPermission
	}
	var count int64
	if errCount := db.WithContext(ctx).
		Model(&models.ProjectPermission{}).
		Where("user_id = ? AND project_id = ?", userID, projectID).
		Where("permission IN ?", []string{required, PermissionFullAccess}).
		Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("access: permission lookup: %w", errCount)
	}
	return count > 0, nil
}

// Grant records a permission for a user on a project.
func Grant(ctx context.Context, db *gorm.DB, userID, projectID uint64, permission string) (*models.ProjectPermission, error) {
	if !ValidPermission(permission) {
		return nil, ErrUnknownPermission
	}

	var existing int64
	if errCount := db.WithContext(ctx).
		Model(&models.ProjectPermission{}).
		Where("user_id = ? AND project_id = ? AND permission = ?", userID, projectID, permission).
		Count(&existing).Error; errCount != nil {
		return nil, fmt.Errorf("access: check existing grant: %w", errCount)
	}
	if existing > 0 {
		return nil, ErrDuplicateGrant
	}

	grant := models.ProjectPermission{UserID: userID, ProjectID: projectID, Permission: permission}
	if errCreate := db.WithContext(ctx).Create(&grant).Error; errCreate != nil {
		return nil, fmt.Errorf("access: create grant: %w", errCreate)
	}
	return &grant, nil
}

// Revoke removes a grant by ID. Returns gorm.ErrRecordNotFound when no
// such grant exists.
func Revoke(ctx context.Context, db *gorm.DB, grantID uint64) error {
	res := db.WithContext(ctx).Delete(&models.ProjectPermission{}, grantID)
	if res.Error != nil {
		return fmt.Errorf("access: revoke grant: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListForProject returns all grants on a project.
func ListForProject(ctx context.Context, db *gorm.DB, projectID uint64) ([]models.ProjectPermission, error) {
	var rows []models.ProjectPermission
	if errFind := db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("user_id ASC, permission ASC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("access: list grants: %w", errFind)
	}
	return rows, nil
}
