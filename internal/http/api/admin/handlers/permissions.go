package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timeledger-hq/timeledger/internal/access"
	"github.com/timeledger-hq/timeledger/internal/models"
	"gorm.io/gorm"
)

// PermissionHandler manages per-project permission grants.
type PermissionHandler struct {
	db *gorm.DB
}

// NewPermissionHandler constructs a PermissionHandler.
func NewPermissionHandler(db *gorm.DB) *PermissionHandler {
	return &PermissionHandler{db: db}
}

// grantRequest defines the request body for granting a permission.
type grantRequest struct {
	UserID     uint64 `json:"user_id"`
	Permission string `json:"permission"`
}

// Grant gives a user a permission on a project.
func (h *PermissionHandler) Grant(c *gin.Context) {
	projectID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body grantRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	permission := strings.TrimSpace(strings.ToUpper(body.Permission))
	if !access.ValidPermission(permission) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown permission"})
		return
	}

	ctx := c.Request.Context()

	var project models.Project
	if errFind := h.db.WithContext(ctx).Select("id").First(&project, projectID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var user models.User
	if errFind := h.db.WithContext(ctx).Select("id").First(&user, body.UserID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	grant, errGrant := access.Grant(ctx, h.db, body.UserID, projectID, permission)
	if errGrant != nil {
		if errors.Is(errGrant, access.ErrDuplicateGrant) {
			c.JSON(http.StatusConflict, gin.H{"error": "permission already granted"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "grant failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         grant.ID,
		"user_id":    grant.UserID,
		"project_id": grant.ProjectID,
		"permission": grant.Permission,
		"created_at": grant.CreatedAt,
	})
}

// List returns every grant on a project.
func (h *PermissionHandler) List(c *gin.Context) {
	projectID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	rows, errList := access.ListForProject(c.Request.Context(), h.db, projectID)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list grants failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":         row.ID,
			"user_id":    row.UserID,
			"project_id": row.ProjectID,
			"permission": row.Permission,
			"created_at": row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"permissions": out})
}

// Revoke removes a grant by ID.
func (h *PermissionHandler) Revoke(c *gin.Context) {
	grantID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("grant_id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid grant id"})
		return
	}
	if errRevoke := access.Revoke(c.Request.Context(), h.db, grantID); errRevoke != nil {
		if errors.Is(errRevoke, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
