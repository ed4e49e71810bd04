package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/timeledger-hq/timeledger/internal/access"
	"github.com/timeledger-hq/timeledger/internal/db"
	"github.com/timeledger-hq/timeledger/internal/models"
	"github.com/timeledger-hq/timeledger/internal/spending"
	"gorm.io/gorm"
)

func setupReportRouter(t *testing.T, role models.UserRole) (*gorm.DB, *gin.Engine, *models.User, *models.Project) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "reports-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	user := &models.User{Username: "viewer", Password: "x", Role: role, Active: true}
	if errCreate := conn.Create(user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	project := &models.Project{Name: "Website", Active: true}
	if errCreate := conn.Create(project).Error; errCreate != nil {
		t.Fatalf("create project: %v", errCreate)
	}

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set("userID", user.ID)
		c.Set("userRole", string(user.Role))
	})
	handler := NewReportFrontHandler(conn, spending.NewAggregator(conn))
	engine.GET("/projects/:id/report", handler.MyReport)
	engine.GET("/projects/:id/team-report", handler.TeamReport)
	engine.GET("/projects/:id/budget-status", handler.BudgetStatus)
	engine.POST("/projects/:id/recalculate", handler.Recalculate)

	return conn, engine, user, project
}

func get(t *testing.T, engine *gin.Engine, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestTeamReport_DeniedWithoutGrant(t *testing.T) {
	_, engine, _, project := setupReportRouter(t, models.RoleEmployee)

	rec := get(t, engine, "/projects/"+itoa(project.ID)+"/team-report?fiscal_year=2025")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestTeamReport_AllowedWithViewReports(t *testing.T) {
	conn, engine, user, project := setupReportRouter(t, models.RoleEmployee)

	if _, errGrant := access.Grant(context.Background(), conn, user.ID, project.ID, access.PermissionViewReports); errGrant != nil {
		t.Fatalf("grant: %v", errGrant)
	}

	rec := get(t, engine, "/projects/"+itoa(project.ID)+"/team-report?fiscal_year=2025")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTeamReport_AdminBypassesGrantCheck(t *testing.T) {
	_, engine, _, project := setupReportRouter(t, models.RoleAdmin)

	rec := get(t, engine, "/projects/"+itoa(project.ID)+"/team-report?fiscal_year=2025")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRecalculate_RequiresEditBudgets(t *testing.T) {
	conn, engine, user, project := setupReportRouter(t, models.RoleEmployee)

	req := httptest.NewRequest(http.MethodPost, "/projects/"+itoa(project.ID)+"/recalculate", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	// VIEW_REPORTS is not enough for recalculation.
	if _, errGrant := access.Grant(context.Background(), conn, user.ID, project.ID, access.PermissionViewReports); errGrant != nil {
		t.Fatalf("grant: %v", errGrant)
	}
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects/"+itoa(project.ID)+"/recalculate", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with VIEW_REPORTS only, got %d", rec.Code)
	}

	if _, errGrant := access.Grant(context.Background(), conn, user.ID, project.ID, access.PermissionEditBudgets); errGrant != nil {
		t.Fatalf("grant: %v", errGrant)
	}
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects/"+itoa(project.ID)+"/recalculate", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with EDIT_BUDGETS, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMyReport_UnknownProjectNotFound(t *testing.T) {
	_, engine, _, _ := setupReportRouter(t, models.RoleEmployee)

	rec := get(t, engine, "/projects/999/report?fiscal_year=2025")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMyReport_AlwaysAvailable(t *testing.T) {
	_, engine, _, project := setupReportRouter(t, models.RoleEmployee)

	rec := get(t, engine, "/projects/"+itoa(project.ID)+"/report?fiscal_year=2025")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
