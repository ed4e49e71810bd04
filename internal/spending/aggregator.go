// Package spending derives project spending from time entries and
// historical rates.
//
// A recompute is always a full rescan: every entry's cost is re-derived
// from the rate in effect on the entry's date, so retroactive rate changes,
// deletions, and reordering of rate history converge to the same totals.
package spending

import (
	"context"
	"errors"
	"fmt"

	dbutil "github.com/timeledger-hq/timeledger/internal/db"
	"github.com/timeledger-hq/timeledger/internal/fiscal"
	"github.com/timeledger-hq/timeledger/internal/models"
	"github.com/timeledger-hq/timeledger/internal/money"
	"github.com/timeledger-hq/timeledger/internal/rates"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrProjectNotFound indicates the referenced project does not exist.
var ErrProjectNotFound = errors.New("spending: project not found")

// Totals holds one project's recomputed quarterly spending in micros.
type Totals struct {
	Q1Micros    int64 `json:"q1_micros"`
	Q2Micros    int64 `json:"q2_micros"`
	Q3Micros    int64 `json:"q3_micros"`
	Q4Micros    int64 `json:"q4_micros"`
	TotalMicros int64 `json:"total_micros"`
}

// Aggregator recomputes and persists project spending totals. It is the
// only writer of the cached quarterly spent columns on projects.
type Aggregator struct {
	db *gorm.DB
}

// NewAggregator constructs an Aggregator.
func NewAggregator(db *gorm.DB) *Aggregator { return &Aggregator{db: db} }

// RecomputeProject re-derives a project's quarterly spending from scratch
// and persists it. The whole operation is one transaction with a row lock
// on the project, so the entry read, the rate resolution, and the aggregate
// write form a single atomic unit and concurrent recomputes of the same
// project serialize. A non-nil fiscalYear bounds the scan to that year's
// April-March window; otherwise all entries are folded into the four
// quarter buckets.
func (a *Aggregator) RecomputeProject(ctx context.Context, projectID uint64, fiscalYear *int) (Totals, error) {
	if a == nil || a.db == nil {
		return Totals{}, errors.New("spending: aggregator not initialized")
	}

	var totals Totals
	errTx := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projectQuery := tx
		if !dbutil.IsSQLite(tx) {
			// SQLite has no FOR UPDATE; its single-writer model serializes
			// recomputes anyway.
			projectQuery = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var project models.Project
		if errFind := projectQuery.First(&project, projectID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return fmt.Errorf("spending: load project %d: %w", projectID, errFind)
		}

		entryQuery := tx.Where("project_id = ?", projectID)
		if fiscalYear != nil {
			start, end := fiscal.YearWindow(*fiscalYear)
			entryQuery = entryQuery.Where("entry_date >= ? AND entry_date < ?", start, end)
		}
		var entries []models.TimeEntry
		if errFind := entryQuery.Find(&entries).Error; errFind != nil {
			return fmt.Errorf("spending: load entries for project %d: %w", projectID, errFind)
		}

		buckets, errSum := sumQuarterBuckets(ctx, tx, entries)
		if errSum != nil {
			return errSum
		}

		totals = Totals{
			Q1Micros: money.MicrosFromCentMinutes(buckets[0]),
			Q2Micros: money.MicrosFromCentMinutes(buckets[1]),
			Q3Micros: money.MicrosFromCentMinutes(buckets[2]),
			Q4Micros: money.MicrosFromCentMinutes(buckets[3]),
		}
		totals.TotalMicros = totals.Q1Micros + totals.Q2Micros + totals.Q3Micros + totals.Q4Micros

		if errUpdate := tx.Model(&models.Project{}).
			Where("id = ?", projectID).
			Updates(map[string]any{
				"q1_spent_micros":    totals.Q1Micros,
				"q2_spent_micros":    totals.Q2Micros,
				"q3_spent_micros":    totals.Q3Micros,
				"q4_spent_micros":    totals.Q4Micros,
				"total_spent_micros": totals.TotalMicros,
			}).Error; errUpdate != nil {
			return fmt.Errorf("spending: persist totals for project %d: %w", projectID, errUpdate)
		}
		return nil
	})
	if errTx != nil {
		return Totals{}, errTx
	}
	return totals, nil
}

// sumQuarterBuckets accumulates entry costs into the four fiscal-quarter
// buckets as exact cent-minutes, loading each user's rate timeline once
// through the surrounding transaction.
func sumQuarterBuckets(ctx context.Context, tx *gorm.DB, entries []models.TimeEntry) ([4]int64, error) {
	var buckets [4]int64
	timelines := make(map[uint64]*rates.UserTimeline)
	for _, entry := range entries {
		timeline, ok := timelines[entry.UserID]
		if !ok {
			loaded, errLoad := rates.LoadUserTimeline(ctx, tx, entry.UserID)
			if errLoad != nil {
				return buckets, fmt.Errorf("spending: rate timeline for user %d: %w", entry.UserID, errLoad)
			}
			timeline = loaded
			timelines[entry.UserID] = timeline
		}
		rate := timeline.RateOn(entry.EntryDate)
		buckets[fiscal.Quarter(entry.EntryDate)-1] += money.CentMinutes(entry.DurationMinutes, rate)
	}
	return buckets, nil
}

// RecomputeUserProjects recomputes every project the user has logged time
// against. A failure on one project is logged and the remaining projects
// still run; the triggering mutation is never rolled back, so totals may
// lag the true rate until the next successful recompute or a manual
// recalculate. Returns the number of projects recomputed.
func (a *Aggregator) RecomputeUserProjects(ctx context.Context, userID uint64) int {
	var projectIDs []uint64
	if errPluck := a.db.WithContext(ctx).
		Model(&models.TimeEntry{}).
		Distinct("project_id").
		Where("user_id = ?", userID).
		Pluck("project_id", &projectIDs).Error; errPluck != nil {
		log.WithError(errPluck).WithField("user_id", userID).
			Warn("spending: failed to resolve affected projects, totals stay stale")
		return 0
	}

	recomputed := 0
	for _, projectID := range projectIDs {
		if _, errRecompute := a.RecomputeProject(ctx, projectID, nil); errRecompute != nil {
			log.WithError(errRecompute).
				WithFields(log.Fields{"user_id": userID, "project_id": projectID}).
				Warn("spending: recompute failed, totals stay stale until next recompute")
			continue
		}
		recomputed++
	}
	return recomputed
}

// RecomputeProjects recomputes each listed project, logging and skipping
// failures. Used when a mutation touches a known project set, such as
// deleting a user together with their entries.
func (a *Aggregator) RecomputeProjects(ctx context.Context, projectIDs []uint64) int {
	recomputed := 0
	for _, projectID := range projectIDs {
		if _, errRecompute := a.RecomputeProject(ctx, projectID, nil); errRecompute != nil {
			log.WithError(errRecompute).WithField("project_id", projectID).
				Warn("spending: recompute failed, totals stay stale until next recompute")
			continue
		}
		recomputed++
	}
	return recomputed
}

// recomputeProjectLogged runs a project recompute as the secondary effect
// of an already-committed mutation: failures are logged, never propagated.
func (a *Aggregator) recomputeProjectLogged(ctx context.Context, projectID uint64) {
	if _, errRecompute := a.RecomputeProject(ctx, projectID, nil); errRecompute != nil {
		log.WithError(errRecompute).WithField("project_id", projectID).
			Warn("spending: recompute failed, totals stay stale until next recompute")
	}
}

// OnTimeEntryCreated recomputes the project an entry was added to.
func (a *Aggregator) OnTimeEntryCreated(ctx context.Context, entry *models.TimeEntry) {
	if entry == nil {
		return
	}
	a.recomputeProjectLogged(ctx, entry.ProjectID)
}

// OnTimeEntryUpdated recomputes the affected project(s), covering moves
// between projects.
func (a *Aggregator) OnTimeEntryUpdated(ctx context.Context, oldEntry, newEntry *models.TimeEntry) {
	if newEntry == nil {
		return
	}
	a.recomputeProjectLogged(ctx, newEntry.ProjectID)
	if oldEntry != nil && oldEntry.ProjectID != newEntry.ProjectID {
		a.recomputeProjectLogged(ctx, oldEntry.ProjectID)
	}
}

// OnTimeEntryDeleted recomputes the project an entry was removed from.
func (a *Aggregator) OnTimeEntryDeleted(ctx context.Context, entry *models.TimeEntry) {
	if entry == nil {
		return
	}
	a.recomputeProjectLogged(ctx, entry.ProjectID)
}

// OnRateChanged fans recomputation out across every project the user has
// logged time against; changing one rate can shift costs on all of them.
func (a *Aggregator) OnRateChanged(ctx context.Context, userID uint64) {
	a.RecomputeUserProjects(ctx, userID)
}

// OnRateDeleted fans out exactly like a rate change: removing a future
// boundary re-extends the prior rate's validity window.
func (a *Aggregator) OnRateDeleted(ctx context.Context, userID uint64) {
	a.RecomputeUserProjects(ctx, userID)
}
