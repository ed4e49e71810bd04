package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timeledger-hq/timeledger/internal/db"
	"github.com/timeledger-hq/timeledger/internal/models"
	"github.com/timeledger-hq/timeledger/internal/rates"
	"github.com/timeledger-hq/timeledger/internal/spending"
	"gorm.io/gorm"
)

func setupRateRouter(t *testing.T) (*gorm.DB, *gin.Engine, *models.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "rates-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	admin := &models.User{Username: "boss", Password: "x", Role: models.RoleAdmin, Active: true}
	if errCreate := conn.Create(admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	employee := &models.User{Username: "worker", Password: "x", Role: models.RoleEmployee, Active: true}
	if errCreate := conn.Create(employee).Error; errCreate != nil {
		t.Fatalf("create employee: %v", errCreate)
	}

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set("userID", admin.ID)
		c.Set("userRole", string(admin.Role))
	})
	handler := NewRateHandler(rates.NewTimeline(conn), spending.NewAggregator(conn))
	engine.POST("/users/:id/rates", handler.Create)
	engine.GET("/users/:id/rates", handler.List)
	engine.DELETE("/users/:id/rates/:rate_id", handler.Delete)

	return conn, engine, employee
}

func postJSON(t *testing.T, engine *gin.Engine, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		t.Fatalf("marshal body: %v", errMarshal)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestRateCreate_RejectsDuplicateDate(t *testing.T) {
	_, engine, employee := setupRateRouter(t)
	target := "/users/" + strconv.FormatUint(employee.ID, 10) + "/rates"

	rec := postJSON(t, engine, target, gin.H{"hourly_rate": 40.0, "effective_date": "2025-06-01"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = postJSON(t, engine, target, gin.H{"hourly_rate": 45.0, "effective_date": "2025-06-01"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate date, got %d", rec.Code)
	}
}

func TestRateCreate_UnknownUser(t *testing.T) {
	_, engine, _ := setupRateRouter(t)

	rec := postJSON(t, engine, "/users/9999/rates", gin.H{"hourly_rate": 40.0, "effective_date": "2025-06-01"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRateDelete_PastRateImmutable(t *testing.T) {
	conn, engine, employee := setupRateRouter(t)
	target := "/users/" + strconv.FormatUint(employee.ID, 10) + "/rates"

	rec := postJSON(t, engine, target, gin.H{"hourly_rate": 40.0, "effective_date": "2020-06-01"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var row models.RateHistory
	if errFind := conn.Where("user_id = ?", employee.ID).First(&row).Error; errFind != nil {
		t.Fatalf("find rate row: %v", errFind)
	}

	req := httptest.NewRequest(http.MethodDelete,
		target+"/"+strconv.FormatUint(row.ID, 10), nil)
	rec2 := httptest.NewRecorder()
	engine.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusConflict {
		t.Fatalf("expected 409 for effective rate, got %d", rec2.Code)
	}
}

func TestRateDelete_FutureRateRemoved(t *testing.T) {
	conn, engine, employee := setupRateRouter(t)
	target := "/users/" + strconv.FormatUint(employee.ID, 10) + "/rates"

	future := time.Now().UTC().AddDate(0, 1, 0).Format("2006-01-02")
	rec := postJSON(t, engine, target, gin.H{"hourly_rate": 60.0, "effective_date": future})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var row models.RateHistory
	if errFind := conn.Where("user_id = ?", employee.ID).First(&row).Error; errFind != nil {
		t.Fatalf("find rate row: %v", errFind)
	}

	req := httptest.NewRequest(http.MethodDelete,
		target+"/"+strconv.FormatUint(row.ID, 10), nil)
	rec2 := httptest.NewRecorder()
	engine.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec2.Code, rec2.Body.String())
	}

	var remaining int64
	if errCount := conn.Model(&models.RateHistory{}).Where("user_id = ?", employee.ID).
		Count(&remaining).Error; errCount != nil {
		t.Fatalf("count rows: %v", errCount)
	}
	if remaining != 0 {
		t.Fatalf("expected no remaining rate rows, got %d", remaining)
	}
}

func TestRateCreate_RetroactiveChangeRecomputesSpending(t *testing.T) {
	conn, engine, employee := setupRateRouter(t)

	project := &models.Project{Name: "Website", Active: true}
	if errCreate := conn.Create(project).Error; errCreate != nil {
		t.Fatalf("create project: %v", errCreate)
	}
	entry := models.TimeEntry{
		UserID:          employee.ID,
		ProjectID:       project.ID,
		EntryDate:       time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC),
		StartTime:       time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC),
		DurationMinutes: 120,
	}
	entry.SyncHours()
	if errCreate := conn.Create(&entry).Error; errCreate != nil {
		t.Fatalf("create entry: %v", errCreate)
	}

	target := "/users/" + strconv.FormatUint(employee.ID, 10) + "/rates"
	rec := postJSON(t, engine, target, gin.H{"hourly_rate": 30.0, "effective_date": "2025-04-01"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var reloaded models.Project
	if errFind := conn.First(&reloaded, project.ID).Error; errFind != nil {
		t.Fatalf("reload project: %v", errFind)
	}
	// 2h at $30/h in Q1.
	if reloaded.Q1SpentMicros != 60_000_000 {
		t.Fatalf("expected q1 spent=60000000, got %d", reloaded.Q1SpentMicros)
	}
	if reloaded.TotalSpentMicros != 60_000_000 {
		t.Fatalf("expected total spent=60000000, got %d", reloaded.TotalSpentMicros)
	}
}
