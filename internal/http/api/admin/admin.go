package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timeledger-hq/timeledger/internal/config"
	handlers "github.com/timeledger-hq/timeledger/internal/http/api/admin/handlers"
	"github.com/timeledger-hq/timeledger/internal/models"
	"github.com/timeledger-hq/timeledger/internal/rates"
	"github.com/timeledger-hq/timeledger/internal/security"
	"github.com/timeledger-hq/timeledger/internal/spending"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig) {
	if r == nil || db == nil {
		return
	}

	timeline := rates.NewTimeline(db)
	aggregator := spending.NewAggregator(db)

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	adminGroup.POST("/login", authHandler.Login)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	userHandler := handlers.NewUserHandler(db, timeline, aggregator)
	authed.POST("/users", userHandler.Create)
	authed.GET("/users", userHandler.List)
	authed.GET("/users/:id", userHandler.Get)
	authed.PUT("/users/:id", userHandler.Update)
	authed.DELETE("/users/:id", userHandler.Delete)
	authed.POST("/users/:id/disable", userHandler.Disable)
	authed.POST("/users/:id/enable", userHandler.Enable)
	authed.PUT("/users/:id/password", userHandler.ChangePassword)

	rateHandler := handlers.NewRateHandler(timeline, aggregator)
	authed.POST("/users/:id/rates", rateHandler.Create)
	authed.GET("/users/:id/rates", rateHandler.List)
	authed.GET("/users/:id/rates/effective", rateHandler.Effective)
	authed.DELETE("/users/:id/rates/:rate_id", rateHandler.Delete)

	projectHandler := handlers.NewProjectHandler(db, aggregator)
	authed.POST("/projects", projectHandler.Create)
	authed.GET("/projects", projectHandler.List)
	authed.GET("/projects/:id", projectHandler.Get)
	authed.PUT("/projects/:id", projectHandler.Update)
	authed.DELETE("/projects/:id", projectHandler.Delete)

	budgetHandler := handlers.NewBudgetHandler(db)
	authed.PUT("/projects/:id/budgets", budgetHandler.Update)
	authed.GET("/projects/:id/budget-status", budgetHandler.Status)

	reportHandler := handlers.NewReportHandler(db, aggregator)
	authed.GET("/projects/:id/report", reportHandler.ProjectReport)
	authed.POST("/projects/:id/recalculate", reportHandler.Recalculate)

	permissionHandler := handlers.NewPermissionHandler(db)
	authed.POST("/projects/:id/permissions", permissionHandler.Grant)
	authed.GET("/projects/:id/permissions", permissionHandler.List)
	authed.DELETE("/projects/:id/permissions/:grant_id", permissionHandler.Revoke)

	settingHandler := handlers.NewSettingHandler(db)
	authed.GET("/settings", settingHandler.List)
	authed.GET("/settings/:key", settingHandler.Get)
	authed.PUT("/settings/:key", settingHandler.Update)
}

// adminAuthMiddleware validates JWTs, loads the account, and requires the
// ADMIN role.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
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
		if user.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}

		c.Set("userID", user.ID)
		c.Set("userRole", string(user.Role))
		c.Next()
	}
}
