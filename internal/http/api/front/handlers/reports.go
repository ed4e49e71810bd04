package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timeledger-hq/timeledger/internal/access"
	"github.com/timeledger-hq/timeledger/internal/budget"
	"github.com/timeledger-hq/timeledger/internal/models"
	"github.com/timeledger-hq/timeledger/internal/money"
	internalsettings "github.com/timeledger-hq/timeledger/internal/settings"
	"github.com/timeledger-hq/timeledger/internal/spending"
	"gorm.io/gorm"
)

// ReportFrontHandler serves reports to employees. The caller's own report
// is always available; team-level views require a project permission grant
// or the ADMIN role.
type ReportFrontHandler struct {
	db         *gorm.DB
	aggregator *spending.Aggregator
}

// NewReportFrontHandler constructs a ReportFrontHandler.
func NewReportFrontHandler(db *gorm.DB, aggregator *spending.Aggregator) *ReportFrontHandler {
	return &ReportFrontHandler{db: db, aggregator: aggregator}
}

// MyReport returns the caller's own hours and spending on a project for a
// fiscal year.
func (h *ReportFrontHandler) MyReport(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	projectID, fiscalYear, ok := h.reportParams(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var project models.Project
	if errFind := h.db.WithContext(ctx).Select("id").First(&project, projectID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	report, errReport := h.aggregator.EmployeeReport(ctx, userID, projectID, fiscalYear)
	if errReport != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "build report failed"})
		return
	}
	c.JSON(http.StatusOK, formatReport(report))
}

// TeamReport returns the per-employee breakdown for a project. Requires the
// VIEW_REPORTS permission on the project.
func (h *ReportFrontHandler) TeamReport(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	projectID, fiscalYear, ok := h.reportParams(c)
	if !ok {
		return
	}
	if !h.allowed(c, userID, projectID, access.PermissionViewReports) {
		return
	}

	reports, errReport := h.aggregator.ProjectReport(c.Request.Context(), projectID, fiscalYear)
	if errReport != nil {
		if errors.Is(errReport, spending.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "build report failed"})
		return
	}
	out := make([]gin.H, 0, len(reports))
	for _, report := range reports {
		out = append(out, formatReport(report))
	}
	c.JSON(http.StatusOK, gin.H{
		"project_id":  projectID,
		"fiscal_year": fiscalYear,
		"employees":   out,
	})
}

// BudgetStatus returns the budget position of a project. Requires the
// VIEW_REPORTS permission on the project.
func (h *ReportFrontHandler) BudgetStatus(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	projectID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if !h.allowed(c, userID, projectID, access.PermissionViewReports) {
		return
	}

	var project models.Project
	if errFind := h.db.WithContext(c.Request.Context()).First(&project, projectID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	statuses := budget.Status(&project)
	out := make([]gin.H, 0, len(statuses))
	for _, status := range statuses {
		var utilization any
		if status.UtilizationSet {
			utilization = status.Utilization
		}
		out = append(out, gin.H{
			"quarter":     status.Quarter,
			"budget":      money.FloatFromMicros(status.BudgetMicros),
			"spent":       money.FloatFromMicros(status.SpentMicros),
			"utilization": utilization,
			"alert":       status.Alert,
		})
	}
	c.JSON(http.StatusOK, gin.H{"project_id": project.ID, "quarters": out})
}

// Recalculate re-derives a project's spending totals. Requires the
// EDIT_BUDGETS permission on the project.
func (h *ReportFrontHandler) Recalculate(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	projectID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if !h.allowed(c, userID, projectID, access.PermissionEditBudgets) {
		return
	}

	totals, errRecompute := h.aggregator.RecomputeProject(c.Request.Context(), projectID, nil)
	if errRecompute != nil {
		if errors.Is(errRecompute, spending.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recalculate failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project_id": projectID,
		"spent": gin.H{
			"q1":    money.FloatFromMicros(totals.Q1Micros),
			"q2":    money.FloatFromMicros(totals.Q2Micros),
			"q3":    money.FloatFromMicros(totals.Q3Micros),
			"q4":    money.FloatFromMicros(totals.Q4Micros),
			"total": money.FloatFromMicros(totals.TotalMicros),
		},
	})
}

// allowed checks the permission gate for a project, admins bypass it.
// Writes the error response itself when the gate denies.
func (h *ReportFrontHandler) allowed(c *gin.Context, userID, projectID uint64, required string) bool {
	if isAdmin(c) {
		return true
	}
	ok, errCheck := access.HasProjectPermission(c.Request.Context(), h.db, userID, projectID, required)
	if errCheck != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "permission check failed"})
		return false
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return false
	}
	return true
}

// reportParams parses the project ID path param and fiscal_year query,
// applying the configured default year. Writes error responses itself.
func (h *ReportFrontHandler) reportParams(c *gin.Context) (uint64, int, bool) {
	projectID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, 0, false
	}
	yearQ := strings.TrimSpace(c.Query("fiscal_year"))
	if yearQ == "" {
		return projectID, internalsettings.DefaultFiscalYear(c.Request.Context(), h.db, time.Now()), true
	}
	year, errYear := strconv.Atoi(yearQ)
	if errYear != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fiscal_year"})
		return 0, 0, false
	}
	return projectID, year, true
}
