package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timeledger-hq/timeledger/internal/models"
	internalsettings "github.com/timeledger-hq/timeledger/internal/settings"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SettingHandler manages admin CRUD for settings values.
type SettingHandler struct {
	db *gorm.DB
}

// NewSettingHandler constructs a settings handler.
func NewSettingHandler(db *gorm.DB) *SettingHandler {
	return &SettingHandler{db: db}
}

// List returns all settings sorted by key.
func (h *SettingHandler) List(c *gin.Context) {
	var rows []models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).Order("key ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list settings failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatSetting(&row))
	}
	c.JSON(http.StatusOK, gin.H{"settings": out})
}

// Get returns a setting by key.
func (h *SettingHandler) Get(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}
	var setting models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).Where("key = ?", key).First(&setting).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatSetting(&setting))
}

// updateSettingRequest captures the payload for updating a setting.
type updateSettingRequest struct {
	Value json.RawMessage `json:"value"`
}

// Update upserts a setting value.
func (h *SettingHandler) Update(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}
	var body updateSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body.Value) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}
	if errValidate := validateSettingValue(key, body.Value); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	ctx := c.Request.Context()
	now := time.Now().UTC()

	var setting models.Setting
	errFind := h.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	switch {
	case errFind == nil:
		res := h.db.WithContext(ctx).Model(&models.Setting{}).
			Where("key = ?", key).
			Updates(map[string]any{"value": datatypes.JSON(body.Value), "updated_at": now})
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update setting failed"})
			return
		}
		setting.Value = datatypes.JSON(body.Value)
		setting.UpdatedAt = now
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		setting = models.Setting{Key: key, Value: datatypes.JSON(body.Value), CreatedAt: now, UpdatedAt: now}
		if errCreate := h.db.WithContext(ctx).Create(&setting).Error; errCreate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create setting failed"})
			return
		}
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, formatSetting(&setting))
}

var errPositiveIntegerValue = errors.New("value must be a positive integer")

// validateSettingValue applies per-key payload validation.
func validateSettingValue(key string, value json.RawMessage) error {
	if key != internalsettings.DefaultFiscalYearKey {
		return nil
	}
	var year int
	if errUnmarshal := json.Unmarshal(value, &year); errUnmarshal != nil || year <= 0 {
		return errPositiveIntegerValue
	}
	return nil
}

// formatSetting renders a setting row for responses.
func formatSetting(setting *models.Setting) gin.H {
	var value any
	if len(setting.Value) > 0 {
		_ = json.Unmarshal(setting.Value, &value)
	}
	return gin.H{
		"key":        setting.Key,
		"value":      value,
		"updated_at": setting.UpdatedAt,
	}
}
