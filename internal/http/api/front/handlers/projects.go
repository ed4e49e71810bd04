package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timeledger-hq/timeledger/internal/models"
	"gorm.io/gorm"
)

// ProjectFrontHandler serves the project list employees log time against.
type ProjectFrontHandler struct {
	db *gorm.DB
}

// NewProjectFrontHandler constructs a ProjectFrontHandler.
func NewProjectFrontHandler(db *gorm.DB) *ProjectFrontHandler {
	return &ProjectFrontHandler{db: db}
}

// List returns active projects. Budget and spending figures stay on the
// admin and report surfaces.
func (h *ProjectFrontHandler) List(c *gin.Context) {
	var rows []models.Project
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("active = ?", true).
		Order("name ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list projects failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":    row.ID,
			"name":  row.Name,
			"color": row.Color,
		})
	}
	c.JSON(http.StatusOK, gin.H{"projects": out})
}
