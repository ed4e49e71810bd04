package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timeledger-hq/timeledger/internal/models"
	"github.com/timeledger-hq/timeledger/internal/spending"
	"gorm.io/gorm"
)

// TimeEntryHandler manages the authenticated user's own time entries. Every
// mutation recomputes spending on the affected project(s) after commit.
type TimeEntryHandler struct {
	db         *gorm.DB
	aggregator *spending.Aggregator
}

// NewTimeEntryHandler constructs a TimeEntryHandler.
func NewTimeEntryHandler(db *gorm.DB, aggregator *spending.Aggregator) *TimeEntryHandler {
	return &TimeEntryHandler{db: db, aggregator: aggregator}
}

// createEntryRequest defines the request body for logging time. Duration
// comes either as explicit minutes or as a start/end timestamp pair.
type createEntryRequest struct {
	ProjectID       uint64 `json:"project_id"`
	EntryDate       string `json:"entry_date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int64  `json:"duration_minutes"`
	Description     string `json:"description"`
}

// Create logs a time entry against an active project.
func (h *TimeEntryHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body createEntryRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.ProjectID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project_id is required"})
		return
	}
	entryDate, errDate := parseDate(strings.TrimSpace(body.EntryDate))
	if errDate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry_date"})
		return
	}

	startTime, endTime, minutes, errDuration := resolveDuration(entryDate, body.StartTime, body.EndTime, body.DurationMinutes)
	if errDuration != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errDuration.Error()})
		return
	}

	ctx := c.Request.Context()

	var project models.Project
	if errFind := h.db.WithContext(ctx).First(&project, body.ProjectID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !project.Active {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project is inactive"})
		return
	}

	now := time.Now().UTC()
	entry := models.TimeEntry{
		UserID:          userID,
		ProjectID:       body.ProjectID,
		EntryDate:       entryDate,
		StartTime:       startTime,
		EndTime:         endTime,
		DurationMinutes: minutes,
		Description:     strings.TrimSpace(body.Description),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	entry.SyncHours()

	if errCreate := h.db.WithContext(ctx).Create(&entry).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create entry failed"})
		return
	}

	h.aggregator.OnTimeEntryCreated(ctx, &entry)
	c.JSON(http.StatusCreated, formatEntry(&entry))
}

// List returns the authenticated user's entries with optional filters.
func (h *TimeEntryHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	q := h.db.WithContext(c.Request.Context()).Model(&models.TimeEntry{}).Where("user_id = ?", userID)
	if projectQ := strings.TrimSpace(c.Query("project_id")); projectQ != "" {
		projectID, errParse := strconv.ParseUint(projectQ, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
			return
		}
		q = q.Where("project_id = ?", projectID)
	}
	if fromQ := strings.TrimSpace(c.Query("from")); fromQ != "" {
		from, errParse := parseDate(fromQ)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
			return
		}
		q = q.Where("entry_date >= ?", from)
	}
	if toQ := strings.TrimSpace(c.Query("to")); toQ != "" {
		to, errParse := parseDate(toQ)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
			return
		}
		q = q.Where("entry_date <= ?", to)
	}

	var rows []models.TimeEntry
	if errFind := q.Order("entry_date DESC, id DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list entries failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatEntry(&row))
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

// updateEntryRequest defines the request body for entry updates.
type updateEntryRequest struct {
	ProjectID       *uint64 `json:"project_id"`
	EntryDate       *string `json:"entry_date"`
	StartTime       *string `json:"start_time"`
	EndTime         *string `json:"end_time"`
	DurationMinutes *int64  `json:"duration_minutes"`
	Description     *string `json:"description"`
}

// Update modifies one of the user's own entries and recomputes the affected
// project(s), including the source project when the entry moves.
func (h *TimeEntryHandler) Update(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateEntryRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ctx := c.Request.Context()

	var entry models.TimeEntry
	if errFind := h.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&entry).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	oldEntry := entry

	if body.ProjectID != nil && *body.ProjectID != entry.ProjectID {
		var project models.Project
		if errFind := h.db.WithContext(ctx).First(&project, *body.ProjectID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if !project.Active {
			c.JSON(http.StatusBadRequest, gin.H{"error": "project is inactive"})
			return
		}
		entry.ProjectID = *body.ProjectID
	}
	if body.EntryDate != nil {
		entryDate, errDate := parseDate(strings.TrimSpace(*body.EntryDate))
		if errDate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry_date"})
			return
		}
		entry.EntryDate = entryDate
	}
	// Stored start/end only change when the request names them; a
	// duration-only update leaves the timestamps alone.
	if body.StartTime != nil {
		parsed, errParse := time.Parse(time.RFC3339, strings.TrimSpace(*body.StartTime))
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidTimestamp.Error()})
			return
		}
		entry.StartTime = parsed.UTC()
	}
	if body.EndTime != nil {
		raw := strings.TrimSpace(*body.EndTime)
		if raw == "" {
			entry.EndTime = nil
		} else {
			parsed, errParse := time.Parse(time.RFC3339, raw)
			if errParse != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidTimestamp.Error()})
				return
			}
			utc := parsed.UTC()
			entry.EndTime = &utc
		}
	}
	switch {
	case body.DurationMinutes != nil:
		if *body.DurationMinutes <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration_minutes must be positive"})
			return
		}
		entry.DurationMinutes = *body.DurationMinutes
	case body.StartTime != nil || body.EndTime != nil:
		if entry.EndTime != nil {
			if !entry.EndTime.After(entry.StartTime) {
				c.JSON(http.StatusBadRequest, gin.H{"error": errEndBeforeStart.Error()})
				return
			}
			derived := int64(entry.EndTime.Sub(entry.StartTime) / time.Minute)
			if derived <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": errEndBeforeStart.Error()})
				return
			}
			entry.DurationMinutes = derived
		}
	}
	if body.Description != nil {
		entry.Description = strings.TrimSpace(*body.Description)
	}
	entry.SyncHours()
	entry.UpdatedAt = time.Now().UTC()

	if errSave := h.db.WithContext(ctx).Save(&entry).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update entry failed"})
		return
	}

	h.aggregator.OnTimeEntryUpdated(ctx, &oldEntry, &entry)
	c.JSON(http.StatusOK, formatEntry(&entry))
}

// Delete removes one of the user's own entries and recomputes its project.
func (h *TimeEntryHandler) Delete(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx := c.Request.Context()

	var entry models.TimeEntry
	if errFind := h.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&entry).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if errDelete := h.db.WithContext(ctx).Delete(&models.TimeEntry{}, id).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete entry failed"})
		return
	}

	h.aggregator.OnTimeEntryDeleted(ctx, &entry)
	c.Status(http.StatusNoContent)
}

var errMissingDuration = errors.New("duration_minutes or a start_time/end_time pair is required")
var errInvalidTimestamp = errors.New("start_time and end_time must be RFC 3339 timestamps")
var errEndBeforeStart = errors.New("end_time must be after start_time")

// resolveDuration derives the stored start, end, and minute duration from
// the request. Explicit minutes win; otherwise the duration comes from the
// start/end pair. With minutes only, the start defaults to the entry date.
func resolveDuration(entryDate time.Time, startRaw, endRaw string, minutes int64) (time.Time, *time.Time, int64, error) {
	startRaw = strings.TrimSpace(startRaw)
	endRaw = strings.TrimSpace(endRaw)

	startTime := entryDate
	var endTime *time.Time

	if startRaw != "" {
		parsed, errParse := time.Parse(time.RFC3339, startRaw)
		if errParse != nil {
			return time.Time{}, nil, 0, errInvalidTimestamp
		}
		startTime = parsed.UTC()
	}
	if endRaw != "" {
		parsed, errParse := time.Parse(time.RFC3339, endRaw)
		if errParse != nil {
			return time.Time{}, nil, 0, errInvalidTimestamp
		}
		utc := parsed.UTC()
		endTime = &utc
	}

	if minutes > 0 {
		return startTime, endTime, minutes, nil
	}
	if minutes < 0 {
		return time.Time{}, nil, 0, errMissingDuration
	}
	if startRaw == "" || endTime == nil {
		return time.Time{}, nil, 0, errMissingDuration
	}
	if !endTime.After(startTime) {
		return time.Time{}, nil, 0, errEndBeforeStart
	}
	derived := int64(endTime.Sub(startTime) / time.Minute)
	if derived <= 0 {
		return time.Time{}, nil, 0, errEndBeforeStart
	}
	return startTime, endTime, derived, nil
}

// formatEntry renders a time entry for responses.
func formatEntry(entry *models.TimeEntry) gin.H {
	out := gin.H{
		"id":               entry.ID,
		"user_id":          entry.UserID,
		"project_id":       entry.ProjectID,
		"entry_date":       entry.EntryDate.Format(dateLayout),
		"start_time":       entry.StartTime,
		"duration_minutes": entry.DurationMinutes,
		"hours":            entry.Hours,
		"description":      entry.Description,
		"created_at":       entry.CreatedAt,
		"updated_at":       entry.UpdatedAt,
	}
	if entry.EndTime != nil {
		out["end_time"] = entry.EndTime
	}
	return out
}
