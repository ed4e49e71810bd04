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
	"github.com/timeledger-hq/timeledger/internal/rates"
	"github.com/timeledger-hq/timeledger/internal/security"
	"github.com/timeledger-hq/timeledger/internal/spending"
	"gorm.io/gorm"
)

// UserHandler manages user account endpoints.
type UserHandler struct {
	db         *gorm.DB
	timeline   *rates.Timeline
	aggregator *spending.Aggregator
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB, timeline *rates.Timeline, aggregator *spending.Aggregator) *UserHandler {
	return &UserHandler{db: db, timeline: timeline, aggregator: aggregator}
}

// createUserRequest defines the request body for user creation.
type createUserRequest struct {
	Username          string  `json:"username"`
	Name              string  `json:"name"`
	Email             string  `json:"email"`
	Password          string  `json:"password"`
	Role              string  `json:"role"`
	HourlyRate        float64 `json:"hourly_rate"`
	RateEffectiveDate string  `json:"rate_effective_date"`
}

// Create creates a new user account. A positive hourly rate also records
// the account's first rate history row.
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username"})
		return
	}
	password := strings.TrimSpace(body.Password)
	if password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing password"})
		return
	}
	role := models.UserRole(strings.TrimSpace(strings.ToUpper(body.Role)))
	if role == "" {
		role = models.RoleEmployee
	}
	if role != models.RoleAdmin && role != models.RoleEmployee {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}
	if body.HourlyRate < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hourly_rate must not be negative"})
		return
	}

	// Validate everything before the insert so a rejection leaves no row.
	now := time.Now().UTC()
	effectiveDate := now
	if raw := strings.TrimSpace(body.RateEffectiveDate); raw != "" {
		parsed, errParse := parseDate(raw)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate_effective_date"})
			return
		}
		effectiveDate = parsed
	}

	var existing int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("username = ?", username).Count(&existing).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	var email *string
	if trimmed := strings.TrimSpace(body.Email); trimmed != "" {
		email = &trimmed
	}

	user := models.User{
		Username:          username,
		Name:              strings.TrimSpace(body.Name),
		Email:             email,
		Password:          hash,
		Role:              role,
		EmployeeRateCents: money.CentsFromFloat(body.HourlyRate),
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	if body.HourlyRate > 0 {
		if _, errRate := h.timeline.SetRate(c.Request.Context(), user.ID,
			money.CentsFromFloat(body.HourlyRate), effectiveDate, getUserID(c)); errRate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "record initial rate failed"})
			return
		}
	}

	c.JSON(http.StatusCreated, h.formatUser(&user))
}

// List returns users with optional filters.
func (h *UserHandler) List(c *gin.Context) {
	var (
		usernameQ = strings.TrimSpace(c.Query("username"))
		roleQ     = strings.TrimSpace(strings.ToUpper(c.Query("role")))
		activeQ   = strings.TrimSpace(c.Query("active"))
		searchQ   = strings.TrimSpace(c.Query("search"))
	)

	q := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if usernameQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+usernameQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "username"), pattern)
	}
	if roleQ != "" {
		q = q.Where("role = ?", roleQ)
	}
	if activeQ != "" {
		if active, errParse := strconv.ParseBool(activeQ); errParse == nil {
			q = q.Where("active = ?", active)
		}
	}
	if searchQ != "" {
		ciPattern := dbutil.NormalizeLikePattern(h.db, "%"+searchQ+"%")
		q = q.Where(
			dbutil.CaseInsensitiveLikeExpr(h.db, "username")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(h.db, "name")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(h.db, "email"),
			ciPattern,
			ciPattern,
			ciPattern,
		)
	}

	var rows []models.User
	if errFind := q.Order("username ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatUser(&row))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// Get returns a user by ID.
func (h *UserHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatUser(&user))
}

// updateUserRequest defines the request body for user updates. Rate changes
// go through the rate history endpoints, never through here.
type updateUserRequest struct {
	Username *string `json:"username"`
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
}

// Update modifies a user account's profile fields.
func (h *UserHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Username != nil {
		username := strings.TrimSpace(*body.Username)
		if username != "" {
			updates["username"] = username
		}
	}
	if body.Name != nil {
		updates["name"] = strings.TrimSpace(*body.Name)
	}
	if body.Email != nil {
		if trimmed := strings.TrimSpace(*body.Email); trimmed != "" {
			updates["email"] = trimmed
		} else {
			updates["email"] = nil
		}
	}
	if body.Role != nil {
		role := models.UserRole(strings.TrimSpace(strings.ToUpper(*body.Role)))
		if role != models.RoleAdmin && role != models.RoleEmployee {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		updates["role"] = role
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Where("id = ?", id).Updates(updates)
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

// Delete removes a user together with their time entries, rate history, and
// permission grants, then recomputes every project the entries touched.
func (h *UserHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx := c.Request.Context()

	var user models.User
	if errFind := h.db.WithContext(ctx).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var projectIDs []uint64
	if errPluck := h.db.WithContext(ctx).Model(&models.TimeEntry{}).
		Distinct("project_id").Where("user_id = ?", id).
		Pluck("project_id", &projectIDs).Error; errPluck != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errDel := tx.Where("user_id = ?", id).Delete(&models.TimeEntry{}).Error; errDel != nil {
			return errDel
		}
		if errDel := tx.Where("user_id = ?", id).Delete(&models.RateHistory{}).Error; errDel != nil {
			return errDel
		}
		if errDel := tx.Where("user_id = ?", id).Delete(&models.ProjectPermission{}).Error; errDel != nil {
			return errDel
		}
		return tx.Delete(&models.User{}, id).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}

	h.aggregator.RecomputeProjects(ctx, projectIDs)
	c.Status(http.StatusNoContent)
}

// Disable deactivates a user account.
func (h *UserHandler) Disable(c *gin.Context) {
	h.setActive(c, false)
}

// Enable reactivates a user account.
func (h *UserHandler) Enable(c *gin.Context) {
	h.setActive(c, true)
}

func (h *UserHandler) setActive(c *gin.Context, active bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": active, "updated_at": time.Now().UTC()})
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

// changePasswordRequest defines the request body for password changes.
type changePasswordRequest struct {
	Password string `json:"password"`
}

// ChangePassword updates a user's password.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	password := strings.TrimSpace(body.Password)
	if password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing password"})
		return
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"password": hash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "change password failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// formatUser renders a user for responses.
func (h *UserHandler) formatUser(user *models.User) gin.H {
	email := ""
	if user.Email != nil {
		email = *user.Email
	}
	return gin.H{
		"id":          user.ID,
		"username":    user.Username,
		"name":        user.Name,
		"email":       email,
		"role":        user.Role,
		"hourly_rate": money.FloatFromCents(user.EmployeeRateCents),
		"active":      user.Active,
		"created_at":  user.CreatedAt,
		"updated_at":  user.UpdatedAt,
	}
}
