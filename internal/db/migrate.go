package db

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/timeledger-hq/timeledger/internal/models"
	internalsettings "github.com/timeledger-hq/timeledger/internal/settings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Migrate runs database migrations and seeds default settings.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.RateHistory{},
		&models.Project{},
		&models.TimeEntry{},
		&models.ProjectPermission{},
		&models.Setting{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errSeed := ensureSetting(conn, internalsettings.SiteNameKey, internalsettings.DefaultSiteName); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureSetting(conn, internalsettings.CurrencyCodeKey, internalsettings.DefaultCurrencyCode); errSeed != nil {
		return errSeed
	}
	return nil
}

// ensureSetting inserts a default setting row when the key is absent.
func ensureSetting(conn *gorm.DB, key string, value any) error {
	var existing models.Setting
	errFind := conn.Where("key = ?", key).First(&existing).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: lookup setting %s: %w", key, errFind)
	}

	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal setting %s: %w", key, errMarshal)
	}
	row := models.Setting{Key: key, Value: datatypes.JSON(payload)}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		return fmt.Errorf("db: seed setting %s: %w", key, errCreate)
	}
	return nil
}
