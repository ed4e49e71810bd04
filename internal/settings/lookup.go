package settings

import (
	"context"
	"encoding/json"
	"time"

	"github.com/timeledger-hq/timeledger/internal/fiscal"
	"github.com/timeledger-hq/timeledger/internal/models"

	"gorm.io/gorm"
)

// DefaultFiscalYear resolves the fiscal year reports fall back to when a
// request names none: the DEFAULT_FISCAL_YEAR setting when present and
// numeric, otherwise the fiscal year containing now.
func DefaultFiscalYear(ctx context.Context, conn *gorm.DB, now time.Time) int {
	var row models.Setting
	errFind := conn.WithContext(ctx).Where("key = ?", DefaultFiscalYearKey).First(&row).Error
	if errFind == nil {
		var year int
		if errUnmarshal := json.Unmarshal(row.Value, &year); errUnmarshal == nil && year > 0 {
			return year
		}
	}
	return fiscal.Year(now.UTC())
}
