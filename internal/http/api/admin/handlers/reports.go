package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timeledger-hq/timeledger/internal/money"
	"github.com/timeledger-hq/timeledger/internal/rates"
	internalsettings "github.com/timeledger-hq/timeledger/internal/settings"
	"github.com/timeledger-hq/timeledger/internal/spending"
	"gorm.io/gorm"
)

// ReportHandler serves spending reports and manual recomputation.
type ReportHandler struct {
	db         *gorm.DB
	aggregator *spending.Aggregator
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(db *gorm.DB, aggregator *spending.Aggregator) *ReportHandler {
	return &ReportHandler{db: db, aggregator: aggregator}
}

// ProjectReport returns the fiscal-year spending breakdown for a project.
// An employee_id query narrows the report to one employee; fiscal_year
// defaults to the configured default fiscal year.
func (h *ReportHandler) ProjectReport(c *gin.Context) {
	projectID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	fiscalYear, ok := h.fiscalYearParam(c)
	if !ok {
		return
	}

	if employeeQ := strings.TrimSpace(c.Query("employee_id")); employeeQ != "" {
		employeeID, errEmployee := strconv.ParseUint(employeeQ, 10, 64)
		if errEmployee != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid employee_id"})
			return
		}
		report, errReport := h.aggregator.EmployeeReport(c.Request.Context(), employeeID, projectID, fiscalYear)
		if errReport != nil {
			if errors.Is(errReport, rates.ErrUserNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "build report failed"})
			return
		}
		c.JSON(http.StatusOK, formatReport(report))
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

// Recalculate re-derives a project's spending totals on demand. A
// fiscal_year query bounds the rescan to that year's entries.
func (h *ReportHandler) Recalculate(c *gin.Context) {
	projectID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var fiscalYear *int
	if yearQ := strings.TrimSpace(c.Query("fiscal_year")); yearQ != "" {
		year, errYear := strconv.Atoi(yearQ)
		if errYear != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fiscal_year"})
			return
		}
		fiscalYear = &year
	}

	totals, errRecompute := h.aggregator.RecomputeProject(c.Request.Context(), projectID, fiscalYear)
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

// fiscalYearParam resolves the fiscal_year query with the configured
// default. Writes the error response itself when the value is malformed.
func (h *ReportHandler) fiscalYearParam(c *gin.Context) (int, bool) {
	yearQ := strings.TrimSpace(c.Query("fiscal_year"))
	if yearQ == "" {
		return internalsettings.DefaultFiscalYear(c.Request.Context(), h.db, time.Now()), true
	}
	year, errYear := strconv.Atoi(yearQ)
	if errYear != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fiscal_year"})
		return 0, false
	}
	return year, true
}
