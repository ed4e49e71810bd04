package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timeledger-hq/timeledger/internal/config"
	handlers "github.com/timeledger-hq/timeledger/internal/http/api/front/handlers"
	"github.com/timeledger-hq/timeledger/internal/models"
	"github.com/timeledger-hq/timeledger/internal/security"
	"github.com/timeledger-hq/timeledger/internal/spending"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers the employee-facing routes, middleware, and
// handlers.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig) {
	if r == nil || db == nil {
		return
	}

	aggregator := spending.NewAggregator(db)

	group := r.Group("/v0")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	group.POST("/login", authHandler.Login)

	authed := group.Group("")
	authed.Use(userAuthMiddleware(db, jwtCfg))

	profileHandler := handlers.NewProfileHandler(db)
	authed.GET("/me", profileHandler.Me)

	projectHandler := handlers.NewProjectFrontHandler(db)
	authed.GET("/projects", projectHandler.List)

	entryHandler := handlers.NewTimeEntryHandler(db, aggregator)
	authed.POST("/entries", entryHandler.Create)
	authed.GET("/entries", entryHandler.List)
	authed.PUT("/entries/:id", entryHandler.Update)
	authed.DELETE("/entries/:id", entryHandler.Delete)

	budgetHandler := handlers.NewBudgetFrontHandler(db)
	authed.PUT("/projects/:id/budgets", budgetHandler.Update)

	reportHandler := handlers.NewReportFrontHandler(db, aggregator)
	authed.GET("/projects/:id/report", reportHandler.MyReport)
	authed.GET("/projects/:id/team-report", reportHandler.TeamReport)
	authed.GET("/projects/:id/budget-status", reportHandler.BudgetStatus)
	authed.POST("/projects/:id/recalculate", reportHandler.Recalculate)
}

// userAuthMiddleware validates JWTs and loads the account context for any
// active user.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			return
		}

		c.Set("userID", user.ID)
		c.Set("userRole", string(user.Role))
		c.Next()
	}
}
