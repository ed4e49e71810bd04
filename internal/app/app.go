// Package app wires configuration, the database, and the HTTP surfaces
// into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/timeledger-hq/timeledger/internal/config"
	"github.com/timeledger-hq/timeledger/internal/db"
	adminapi "github.com/timeledger-hq/timeledger/internal/http/api/admin"
	"github.com/timeledger-hq/timeledger/internal/http/api/front"
	"github.com/timeledger-hq/timeledger/internal/models"
	"github.com/timeledger-hq/timeledger/internal/security"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the API server with database-backed components and blocks
// until the context is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	if jwtConfig.Secret == "" {
		return security.ErrMissingSecret
	}

	adminConfig, _ := config.LoadAdminConfig(configPath)
	if errBootstrap := EnsureAdmin(ctx, conn, adminConfig); errBootstrap != nil {
		return errBootstrap
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	adminapi.RegisterAdminRoutes(engine, conn, jwtConfig)
	front.RegisterFrontRoutes(engine, conn, jwtConfig)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("server listening")
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return <-errCh
	case errServe := <-errCh:
		return errServe
	}
}

// EnsureAdmin creates the bootstrap admin account when configured and no
// account with that username exists yet. Without credentials, or when the
// account already exists, it does nothing.
func EnsureAdmin(ctx context.Context, conn *gorm.DB, adminCfg config.AdminConfig) error {
	if adminCfg.Username == "" || adminCfg.Password == "" {
		return nil
	}

	var existing int64
	if errCount := conn.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", adminCfg.Username).
		Count(&existing).Error; errCount != nil {
		return fmt.Errorf("app: check bootstrap admin: %w", errCount)
	}
	if existing > 0 {
		return nil
	}

	hash, errHash := security.HashPassword(adminCfg.Password)
	if errHash != nil {
		return errHash
	}

	now := time.Now().UTC()
	admin := models.User{
		Username:  adminCfg.Username,
		Name:      adminCfg.Username,
		Password:  hash,
		Role:      models.RoleAdmin,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := conn.WithContext(ctx).Create(&admin).Error; errCreate != nil {
		return fmt.Errorf("app: create bootstrap admin: %w", errCreate)
	}
	log.WithField("username", admin.Username).Info("bootstrap admin created")
	return nil
}
