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
	"github.com/timeledger-hq/timeledger/internal/spending"
	"gorm.io/gorm"
)

func setupEntryRouter(t *testing.T) (*gorm.DB, *gin.Engine, *models.User, *models.Project) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "entries-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	user := &models.User{
		Username:          "worker",
		Password:          "x",
		Role:              models.RoleEmployee,
		EmployeeRateCents: 5000,
		Active:            true,
	}
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
	handler := NewTimeEntryHandler(conn, spending.NewAggregator(conn))
	engine.POST("/entries", handler.Create)
	engine.GET("/entries", handler.List)
	engine.PUT("/entries/:id", handler.Update)
	engine.DELETE("/entries/:id", handler.Delete)

	return conn, engine, user, project
}

func doJSON(t *testing.T, engine *gin.Engine, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func projectSpentMicros(t *testing.T, conn *gorm.DB, projectID uint64) int64 {
	t.Helper()
	var project models.Project
	if errFind := conn.First(&project, projectID).Error; errFind != nil {
		t.Fatalf("reload project: %v", errFind)
	}
	return project.TotalSpentMicros
}

func TestTimeEntryCreate_RecomputesSpending(t *testing.T) {
	conn, engine, _, project := setupEntryRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/entries", gin.H{
		"project_id":       project.ID,
		"entry_date":       "2025-05-12",
		"duration_minutes": 120,
		"description":      "homepage work",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// 2h at $50/h.
	if got := projectSpentMicros(t, conn, project.ID); got != 100_000_000 {
		t.Fatalf("expected spent=100000000 micros, got %d", got)
	}

	var entry models.TimeEntry
	if errFind := conn.First(&entry).Error; errFind != nil {
		t.Fatalf("find entry: %v", errFind)
	}
	if entry.Hours != 2 {
		t.Fatalf("expected hours=2, got %v", entry.Hours)
	}
}

func TestTimeEntryCreate_DerivesDurationFromStartEnd(t *testing.T) {
	conn, engine, _, project := setupEntryRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/entries", gin.H{
		"project_id": project.ID,
		"entry_date": "2025-05-12",
		"start_time": "2025-05-12T09:00:00Z",
		"end_time":   "2025-05-12T10:30:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var entry models.TimeEntry
	if errFind := conn.First(&entry).Error; errFind != nil {
		t.Fatalf("find entry: %v", errFind)
	}
	if entry.DurationMinutes != 90 {
		t.Fatalf("expected 90 minutes, got %d", entry.DurationMinutes)
	}
	if entry.Hours != 1.5 {
		t.Fatalf("expected hours=1.5, got %v", entry.Hours)
	}
}

func TestTimeEntryCreate_RejectsMissingDuration(t *testing.T) {
	_, engine, _, project := setupEntryRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/entries", gin.H{
		"project_id": project.ID,
		"entry_date": "2025-05-12",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTimeEntryCreate_RejectsInactiveProject(t *testing.T) {
	conn, engine, _, project := setupEntryRouter(t)

	if errUpdate := conn.Model(&models.Project{}).Where("id = ?", project.ID).
		Update("active", false).Error; errUpdate != nil {
		t.Fatalf("deactivate project: %v", errUpdate)
	}

	rec := doJSON(t, engine, http.MethodPost, "/entries", gin.H{
		"project_id":       project.ID,
		"entry_date":       "2025-05-12",
		"duration_minutes": 60,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTimeEntryUpdate_MoveRecomputesBothProjects(t *testing.T) {
	conn, engine, user, project := setupEntryRouter(t)

	other := &models.Project{Name: "Mobile", Active: true}
	if errCreate := conn.Create(other).Error; errCreate != nil {
		t.Fatalf("create project: %v", errCreate)
	}

	rec := doJSON(t, engine, http.MethodPost, "/entries", gin.H{
		"project_id":       project.ID,
		"entry_date":       "2025-05-12",
		"duration_minutes": 60,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var entry models.TimeEntry
	if errFind := conn.Where("user_id = ?", user.ID).First(&entry).Error; errFind != nil {
		t.Fatalf("find entry: %v", errFind)
	}

	rec = doJSON(t, engine, http.MethodPut, "/entries/"+itoa(entry.ID), gin.H{
		"project_id": other.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if got := projectSpentMicros(t, conn, project.ID); got != 0 {
		t.Fatalf("expected source project spent=0, got %d", got)
	}
	// 1h at $50/h.
	if got := projectSpentMicros(t, conn, other.ID); got != 50_000_000 {
		t.Fatalf("expected target project spent=50000000, got %d", got)
	}
}

func TestTimeEntryDelete_ZeroesSpending(t *testing.T) {
	conn, engine, user, project := setupEntryRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/entries", gin.H{
		"project_id":       project.ID,
		"entry_date":       "2025-05-12",
		"duration_minutes": 60,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var entry models.TimeEntry
	if errFind := conn.Where("user_id = ?", user.ID).First(&entry).Error; errFind != nil {
		t.Fatalf("find entry: %v", errFind)
	}

	rec = doJSON(t, engine, http.MethodDelete, "/entries/"+itoa(entry.ID), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := projectSpentMicros(t, conn, project.ID); got != 0 {
		t.Fatalf("expected spent=0 after delete, got %d", got)
	}
}

func TestTimeEntryList_OnlyOwnEntries(t *testing.T) {
	conn, engine, _, project := setupEntryRouter(t)

	other := &models.User{Username: "other", Password: "x", Role: models.RoleEmployee, Active: true}
	if errCreate := conn.Create(other).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	foreign := models.TimeEntry{
		UserID:          other.ID,
		ProjectID:       project.ID,
		EntryDate:       time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC),
		StartTime:       time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
	}
	foreign.SyncHours()
	if errCreate := conn.Create(&foreign).Error; errCreate != nil {
		t.Fatalf("create foreign entry: %v", errCreate)
	}

	rec := doJSON(t, engine, http.MethodGet, "/entries", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out struct {
		Entries []map[string]any `json:"entries"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if len(out.Entries) != 0 {
		t.Fatalf("expected no entries for caller, got %d", len(out.Entries))
	}

	// Updating someone else's entry must 404.
	rec = doJSON(t, engine, http.MethodPut, "/entries/"+itoa(foreign.ID), gin.H{"duration_minutes": 30})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestTimeEntryList_RejectsMalformedProjectFilter(t *testing.T) {
	_, engine, _, _ := setupEntryRouter(t)

	rec := doJSON(t, engine, http.MethodGet, "/entries?project_id=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTimeEntryUpdate_DurationOnlyKeepsTimestamps(t *testing.T) {
	conn, engine, user, project := setupEntryRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/entries", gin.H{
		"project_id": project.ID,
		"entry_date": "2025-05-12",
		"start_time": "2025-05-12T09:00:00Z",
		"end_time":   "2025-05-12T10:30:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var entry models.TimeEntry
	if errFind := conn.Where("user_id = ?", user.ID).First(&entry).Error; errFind != nil {
		t.Fatalf("find entry: %v", errFind)
	}

	rec = doJSON(t, engine, http.MethodPut, "/entries/"+itoa(entry.ID), gin.H{"duration_minutes": 45})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var updated models.TimeEntry
	if errFind := conn.First(&updated, entry.ID).Error; errFind != nil {
		t.Fatalf("reload entry: %v", errFind)
	}
	if updated.DurationMinutes != 45 {
		t.Fatalf("expected 45 minutes, got %d", updated.DurationMinutes)
	}
	if !updated.StartTime.Equal(entry.StartTime) {
		t.Fatalf("start time changed from %v to %v", entry.StartTime, updated.StartTime)
	}
	if updated.EndTime == nil || !updated.EndTime.Equal(*entry.EndTime) {
		t.Fatalf("end time changed from %v to %v", entry.EndTime, updated.EndTime)
	}
}

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}
