package access

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/timeledger-hq/timeledger/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.AutoMigrate(&models.User{}, &models.Project{}, &models.ProjectPermission{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return db
}

func TestHasProjectPermission_DirectAndImplied(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, errGrant := Grant(ctx, db, 1, 10, PermissionViewReports); errGrant != nil {
		t.Fatalf("grant: %v", errGrant)
	}
	if _, errGrant := Grant(ctx, db, 2, 10, PermissionFullAccess); errGrant != nil {
		t.Fatalf("grant: %v", errGrant)
	}

	ok, errCheck := HasProjectPermission(ctx, db, 1, 10, PermissionViewReports)
	if errCheck != nil || !ok {
		t.Fatalf("direct grant should pass: %v %v", ok, errCheck)
	}
	ok, _ = HasProjectPermission(ctx, db, 1, 10, PermissionEditBudgets)
	if ok {
		t.Fatalf("view grant must not imply budget edits")
	}

	// FULL_ACCESS implies both capabilities.
	for _, required := range []string{PermissionViewReports, PermissionEditBudgets, PermissionFullAccess} {
		ok, errCheck = HasProjectPermission(ctx, db, 2, 10, required)
		if errCheck != nil || !ok {
			t.Fatalf("full access should imply %s: %v %v", required, ok, errCheck)
		}
	}

	// Grants are scoped per project.
	ok, _ = HasProjectPermission(ctx, db, 1, 11, PermissionViewReports)
	if ok {
		t.Fatalf("grant leaked to another project")
	}
}

func TestGrant_RejectsDuplicatesAndUnknownKeys(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, errGrant := Grant(ctx, db, 1, 10, PermissionEditBudgets); errGrant != nil {
		t.Fatalf("grant: %v", errGrant)
	}
	if _, errGrant := Grant(ctx, db, 1, 10, PermissionEditBudgets); !errors.Is(errGrant, ErrDuplicateGrant) {
		t.Fatalf("expected ErrDuplicateGrant, got %v", errGrant)
	}
	if _, errGrant := Grant(ctx, db, 1, 10, "OWN_EVERYTHING"); !errors.Is(errGrant, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", errGrant)
	}
}

func TestRevoke(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	grant, errGrant := Grant(ctx, db, 1, 10, PermissionViewReports)
	if errGrant != nil {
		t.Fatalf("grant: %v", errGrant)
	}
	if errRevoke := Revoke(ctx, db, grant.ID); errRevoke != nil {
		t.Fatalf("revoke: %v", errRevoke)
	}
	if errRevoke := Revoke(ctx, db, grant.ID); !errors.Is(errRevoke, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found on double revoke, got %v", errRevoke)
	}
	ok, _ := HasProjectPermission(ctx, db, 1, 10, PermissionViewReports)
	if ok {
		t.Fatalf("revoked grant still effective")
	}
}

func TestListForProject(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, grant := range []struct {
		userID     uint64
		permission string
	}{{2, PermissionViewReports}, {1, PermissionFullAccess}, {1, PermissionViewReports}} {
		if _, errGrant := Grant(ctx, db, grant.userID, 10, grant.permission); errGrant != nil {
			t.Fatalf("grant: %v", errGrant)
		}
	}
	rows, errList := ListForProject(ctx, db, 10)
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 grants, got %d", len(rows))
	}
	if rows[0].UserID != 1 {
		t.Fatalf("grants not ordered by user")
	}
}
