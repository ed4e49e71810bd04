package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	dbutil "github.com/timeledger-hq/timeledger/internal/db"
	"github.com/timeledger-hq/timeledger/internal/models"
	"github.com/timeledger-hq/timeledger/internal/money"
	"github.com/timeledger-hq/timeledger/internal/spending"
	"gorm.io/gorm"
)

// ProjectHandler manages project endpoints.
type ProjectHandler struct {
	db         *gorm.DB
	aggregator *spending.Aggregator
}

// NewProjectHandler constructs a ProjectHandler.
func NewProjectHandler(db *gorm.DB, aggregator *spending.Aggregator) *ProjectHandler {
	return &ProjectHandler{db: db, aggregator: aggregator}
}

// createProjectRequest defines the request body for project creation.
type createProjectRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Create creates a new project.
func (h *ProjectHandler) Create(c *gin.Context) {
	var body createProjectRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	var existing int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.Project{}).
		Where("name = ?", name).Count(&existing).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "project name already exists"})
		return
	}

	now := time.Now().UTC()
	project := models.Project{
		Name:      name,
		Color:     strings.TrimSpace(body.Color),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&project).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create project failed"})
		return
	}
	c.JSON(http.StatusCreated, formatProject(&project))
}

// List returns projects with optional filters.
func (h *ProjectHandler) List(c *gin.Context) {
	var (
		nameQ   = strings.TrimSpace(c.Query("name"))
		activeQ = strings.TrimSpace(c.Query("active"))
	)

	q := h.db.WithContext(c.Request.Context()).Model(&models.Project{})
	if nameQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+nameQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}
	if activeQ != "" {
		if active, errParse := strconv.ParseBool(activeQ); errParse == nil {
			q = q.Where("active = ?", active)
		}
	}

	var rows []models.Project
	if errFind := q.Order("name ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list projects failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatProject(&row))
	}
	c.JSON(http.StatusOK, gin.H{"projects": out})
}

// Get returns a project by ID.
func (h *ProjectHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var project models.Project
	if errFind := h.db.WithContext(c.Request.Context()).First(&project, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatProject(&project))
}

// updateProjectRequest defines the request body for project updates.
type updateProjectRequest struct {
	Name   *string `json:"name"`
	Color  *string `json:"color"`
	Active *bool   `json:"active"`
}

// Update modifies a project. Budgets have their own endpoint.
func (h *ProjectHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateProjectRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name != "" {
			updates["name"] = name
		}
	}
	if body.Color != nil {
		updates["color"] = strings.TrimSpace(*body.Color)
	}
	if body.Active != nil {
		updates["active"] = *body.Active
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Project{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a project together with its time entries and permission
// grants.
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx := c.Request.Context()

	var project models.Project
	if errFind := h.db.WithContext(ctx).First(&project, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errDel := tx.Where("project_id = ?", id).Delete(&models.TimeEntry{}).Error; errDel != nil {
			return errDel
		}
		if errDel := tx.Where("project_id = ?", id).Delete(&models.ProjectPermission{}).Error; errDel != nil {
			return errDel
		}
		return tx.Delete(&models.Project{}, id).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}

	c.Status(http.StatusNoContent)
}

// formatProject renders a project with currency-unit budget and spending
// figures.
func formatProject(project *models.Project) gin.H {
	return gin.H{
		"id":     project.ID,
		"name":   project.Name,
		"color":  project.Color,
		"active": project.Active,
		"budgets": gin.H{
			"total": money.FloatFromMicros(project.TotalBudgetMicros),
			"q1":    money.FloatFromMicros(project.Q1BudgetMicros),
			"q2":    money.FloatFromMicros(project.Q2BudgetMicros),
			"q3":    money.FloatFromMicros(project.Q3BudgetMicros),
			"q4":    money.FloatFromMicros(project.Q4BudgetMicros),
		},
		"spent": gin.H{
			"total": money.FloatFromMicros(project.TotalSpentMicros),
			"q1":    money.FloatFromMicros(project.Q1SpentMicros),
			"q2":    money.FloatFromMicros(project.Q2SpentMicros),
			"q3":    money.FloatFromMicros(project.Q3SpentMicros),
			"q4":    money.FloatFromMicros(project.Q4SpentMicros),
		},
		"created_at": project.CreatedAt,
		"updated_at": project.UpdatedAt,
	}
}
