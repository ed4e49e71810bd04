package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timeledger-hq/timeledger/internal/models"
	"github.com/timeledger-hq/timeledger/internal/money"
	"github.com/timeledger-hq/timeledger/internal/rates"
	"github.com/timeledger-hq/timeledger/internal/spending"
	"gorm.io/gorm"
)

// RateHandler manages effective-dated hourly rate changes.
type RateHandler struct {
	timeline   *rates.Timeline
	aggregator *spending.Aggregator
}

// NewRateHandler constructs a RateHandler.
func NewRateHandler(timeline *rates.Timeline, aggregator *spending.Aggregator) *RateHandler {
	return &RateHandler{timeline: timeline, aggregator: aggregator}
}

// createRateRequest defines the request body for recording a rate change.
type createRateRequest struct {
	HourlyRate    float64 `json:"hourly_rate"`
	EffectiveDate string  `json:"effective_date"`
}

// Create records a rate change for a user and recomputes spending on every
// project the user has logged time against.
func (h *RateHandler) Create(c *gin.Context) {
	userID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body createRateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.HourlyRate < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hourly_rate must not be negative"})
		return
	}
	effectiveDate, errDate := parseDate(strings.TrimSpace(body.EffectiveDate))
	if errDate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid effective_date"})
		return
	}

	row, errSet := h.timeline.SetRate(c.Request.Context(), userID,
		money.CentsFromFloat(body.HourlyRate), effectiveDate, getUserID(c))
	if errSet != nil {
		switch {
		case errors.Is(errSet, rates.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(errSet, rates.ErrDuplicateEffectiveDate):
			c.JSON(http.StatusConflict, gin.H{"error": "a rate change already exists for this date"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "record rate change failed"})
		}
		return
	}

	h.aggregator.OnRateChanged(c.Request.Context(), userID)
	c.JSON(http.StatusCreated, formatRate(row))
}

// List returns a user's rate history, most recent first.
func (h *RateHandler) List(c *gin.Context) {
	userID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	rows, errList := h.timeline.ListForUser(c.Request.Context(), userID)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list rate history failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatRate(&row))
	}
	c.JSON(http.StatusOK, gin.H{"rates": out})
}

// Effective resolves the rate that applied to a user on a date. The date
// query parameter defaults to today.
func (h *RateHandler) Effective(c *gin.Context) {
	userID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	onDate := time.Now().UTC()
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		parsed, errDate := parseDate(raw)
		if errDate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
			return
		}
		onDate = parsed
	}

	rateCents, errResolve := h.timeline.EffectiveRate(c.Request.Context(), userID, onDate)
	if errResolve != nil {
		if errors.Is(errResolve, rates.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve rate failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":     userID,
		"date":        onDate.Format(dateLayout),
		"hourly_rate": money.FloatFromCents(rateCents),
	})
}

// Delete removes a scheduled rate change that has not taken effect yet and
// recomputes the user's projects.
func (h *RateHandler) Delete(c *gin.Context) {
	rateID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("rate_id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate id"})
		return
	}

	userID, errDelete := h.timeline.DeleteFutureRate(c.Request.Context(), rateID, time.Now().UTC())
	if errDelete != nil {
		switch {
		case errors.Is(errDelete, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errDelete, rates.ErrRateAlreadyEffective):
			c.JSON(http.StatusConflict, gin.H{"error": "rate change is already effective"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete rate change failed"})
		}
		return
	}

	h.aggregator.OnRateDeleted(c.Request.Context(), userID)
	c.Status(http.StatusNoContent)
}

// formatRate renders a rate history row for responses.
func formatRate(row *models.RateHistory) gin.H {
	return gin.H{
		"id":             row.ID,
		"user_id":        row.UserID,
		"hourly_rate":    money.FloatFromCents(row.RateCents),
		"effective_date": row.EffectiveDate.Format(dateLayout),
		"created_by":     row.CreatedBy,
		"created_at":     row.CreatedAt,
	}
}
