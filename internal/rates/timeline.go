// Package rates resolves historically-effective hourly rates.
package rates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/timeledger-hq/timeledger/internal/fiscal"
	"github.com/timeledger-hq/timeledger/internal/models"

	"gorm.io/gorm"
)

// ErrDuplicateEffectiveDate rejects a second rate change on the same date
// for the same user. The (user, effective date) uniqueness is load-bearing:
// it is what makes effective-rate resolution tie-free.
var ErrDuplicateEffectiveDate = errors.New("rates: a rate change already exists for this effective date")

// ErrRateAlreadyEffective rejects deletion of a rate change whose effective
// date is today or in the past.
var ErrRateAlreadyEffective = errors.New("rates: rate change is already effective and cannot be deleted")

// ErrUserNotFound indicates the referenced user does not exist.
var ErrUserNotFound = errors.New("rates: user not found")

// Change is one point of a user's rate history.
type Change struct {
	EffectiveDate time.Time // Date the rate takes effect.
	RateCents     int64     // Hourly rate in cents.
}

// UserTimeline answers "what rate applied on date D" for one user without
// touching the database. The baseline rate applies to any date before the
// first recorded change.
type UserTimeline struct {
	baselineCents int64
	changes       []Change // ascending by effective date
}

// NewUserTimeline builds a timeline from a baseline rate and changes in any
// order.
func NewUserTimeline(baselineCents int64, changes []Change) *UserTimeline {
	sorted := make([]Change, len(changes))
	copy(sorted, changes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EffectiveDate.Before(sorted[j].EffectiveDate)
	})
	return &UserTimeline{baselineCents: baselineCents, changes: sorted}
}

// RateOn returns the rate in cents effective on the given date: the latest
// change not after the date, or the baseline when none exists.
func (t *UserTimeline) RateOn(date time.Time) int64 {
	date = fiscal.DateOnly(date)
	rate := t.baselineCents
	for _, change := range t.changes {
		if change.EffectiveDate.After(date) {
			break
		}
		rate = change.RateCents
	}
	return rate
}

// Timeline is the database-backed rate history service.
type Timeline struct {
	db *gorm.DB
}

// NewTimeline constructs a Timeline.
func NewTimeline(db *gorm.DB) *Timeline { return &Timeline{db: db} }

// LoadUserTimeline reads a user's full rate history through the given
// connection, which may be a transaction so aggregation reads stay
// consistent with the aggregate write.
func LoadUserTimeline(ctx context.Context, conn *gorm.DB, userID uint64) (*UserTimeline, error) {
	var user models.User
	if errFind := conn.WithContext(ctx).Select("id", "employee_rate_cents").First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("rates: load user %d: %w", userID, errFind)
	}

	var rows []models.RateHistory
	if errFind := conn.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("effective_date ASC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("rates: load history for user %d: %w", userID, errFind)
	}

	changes := make([]Change, 0, len(rows))
	for _, row := range rows {
		changes = append(changes, Change{
			EffectiveDate: fiscal.DateOnly(row.EffectiveDate),
			RateCents:     row.RateCents,
		})
	}
	return NewUserTimeline(user.EmployeeRateCents, changes), nil
}

// EffectiveRate resolves the rate in cents that applied to a user on a date.
func (t *Timeline) EffectiveRate(ctx context.Context, userID uint64, onDate time.Time) (int64, error) {
	timeline, errLoad := LoadUserTimeline(ctx, t.db, userID)
	if errLoad != nil {
		return 0, errLoad
	}
	return timeline.RateOn(onDate), nil
}

// SetRate records a rate change effective from the given date and refreshes
// the user's cached current rate. The caller is responsible for triggering
// spending recomputation across the user's projects afterwards.
func (t *Timeline) SetRate(ctx context.Context, userID uint64, rateCents int64, effectiveDate time.Time, actorID uint64) (*models.RateHistory, error) {
	if rateCents < 0 {
		return nil, fmt.Errorf("rates: negative rate %d", rateCents)
	}
	effectiveDate = fiscal.DateOnly(effectiveDate)

	var row models.RateHistory
	errTx := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errFind := tx.First(&user, userID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("rates: load user %d: %w", userID, errFind)
		}

		var existing int64
		if errCount := tx.Model(&models.RateHistory{}).
			Where("user_id = ? AND effective_date = ?", userID, effectiveDate).
			Count(&existing).Error; errCount != nil {
			return fmt.Errorf("rates: check duplicate: %w", errCount)
		}
		if existing > 0 {
			return ErrDuplicateEffectiveDate
		}

		row = models.RateHistory{
			UserID:        userID,
			RateCents:     rateCents,
			EffectiveDate: effectiveDate,
			CreatedBy:     actorID,
			CreatedAt:     time.Now().UTC(),
		}
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("rates: create history row: %w", errCreate)
		}
		return refreshCachedRate(ctx, tx, userID)
	})
	if errTx != nil {
		return nil, errTx
	}
	return &row, nil
}

// DeleteFutureRate removes a scheduled rate change that has not yet taken
// effect and returns the owning user ID so the caller can fan out
// recomputation. Past or currently-effective changes are immutable.
func (t *Timeline) DeleteFutureRate(ctx context.Context, historyID uint64, now time.Time) (uint64, error) {
	today := fiscal.DateOnly(now)

	var userID uint64
	errTx := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.RateHistory
		if errFind := tx.First(&row, historyID).Error; errFind != nil {
			return errFind
		}
		if !fiscal.DateOnly(row.EffectiveDate).After(today) {
			return ErrRateAlreadyEffective
		}
		if errDelete := tx.Delete(&models.RateHistory{}, historyID).Error; errDelete != nil {
			return fmt.Errorf("rates: delete history row: %w", errDelete)
		}
		userID = row.UserID
		return refreshCachedRate(ctx, tx, userID)
	})
	if errTx != nil {
		return 0, errTx
	}
	return userID, nil
}

// ListForUser returns a user's rate history, most recent first.
func (t *Timeline) ListForUser(ctx context.Context, userID uint64) ([]models.RateHistory, error) {
	var rows []models.RateHistory
	if errFind := t.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("effective_date DESC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("rates: list history: %w", errFind)
	}
	return rows, nil
}

// refreshCachedRate recomputes the user's cached current rate from the
// history row effective today. When no row has taken effect yet the stored
// value is left alone: it doubles as the baseline for dates predating all
// history.
func refreshCachedRate(ctx context.Context, tx *gorm.DB, userID uint64) error {
	today := fiscal.DateOnly(time.Now().UTC())

	var row models.RateHistory
	errFind := tx.WithContext(ctx).
		Where("user_id = ? AND effective_date <= ?", userID, today).
		Order("effective_date DESC").
		First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("rates: resolve current rate: %w", errFind)
	}

	if errUpdate := tx.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"employee_rate_cents": row.RateCents, "updated_at": time.Now().UTC()}).Error; errUpdate != nil {
		return fmt.Errorf("rates: refresh cached rate: %w", errUpdate)
	}
	return nil
}
