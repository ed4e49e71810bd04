package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/timeledger-hq/timeledger/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.AutoMigrate(&models.User{}, &models.RateHistory{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, baselineCents int64) uint64 {
	t.Helper()
	user := models.User{
		Username:          "worker",
		Password:          "x",
		Role:              models.RoleEmployee,
		EmployeeRateCents: baselineCents,
		Active:            true,
	}
	if errCreate := db.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return user.ID
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestUserTimeline_IntervalResolution(t *testing.T) {
	d1, d2, d3 := day(2024, time.June, 1), day(2024, time.September, 1), day(2025, time.January, 15)
	timeline := NewUserTimeline(1000, []Change{
		{EffectiveDate: d3, RateCents: 3000},
		{EffectiveDate: d1, RateCents: 1500},
		{EffectiveDate: d2, RateCents: 2000},
	})

	cases := []struct {
		date time.Time
		want int64
	}{
		{day(2024, time.May, 31), 1000}, // before all history: baseline
		{d1, 1500},
		{day(2024, time.August, 31), 1500},
		{d2, 2000},
		{d3.AddDate(0, 0, -1), 2000},
		{d3, 3000},
		{day(2030, time.December, 31), 3000},
	}
	for _, tc := range cases {
		if got := timeline.RateOn(tc.date); got != tc.want {
			t.Fatalf("RateOn(%s) = %d, want %d", tc.date.Format("2006-01-02"), got, tc.want)
		}
	}
}

func TestSetRate_RejectsDuplicateEffectiveDate(t *testing.T) {
	db := openTestDB(t)
	userID := createTestUser(t, db, 1000)
	timeline := NewTimeline(db)
	ctx := context.Background()

	effective := day(2025, time.March, 1)
	if _, errSet := timeline.SetRate(ctx, userID, 2000, effective, 1); errSet != nil {
		t.Fatalf("first set: %v", errSet)
	}
	_, errSet := timeline.SetRate(ctx, userID, 2500, effective, 1)
	if !errors.Is(errSet, ErrDuplicateEffectiveDate) {
		t.Fatalf("expected ErrDuplicateEffectiveDate, got %v", errSet)
	}
}

func TestSetRate_RefreshesCachedRate(t *testing.T) {
	db := openTestDB(t)
	userID := createTestUser(t, db, 1000)
	timeline := NewTimeline(db)
	ctx := context.Background()

	past := day(2020, time.January, 1)
	if _, errSet := timeline.SetRate(ctx, userID, 2750, past, 1); errSet != nil {
		t.Fatalf("set past rate: %v", errSet)
	}
	var user models.User
	if errFind := db.First(&user, userID).Error; errFind != nil {
		t.Fatalf("load user: %v", errFind)
	}
	if user.EmployeeRateCents != 2750 {
		t.Fatalf("cached rate = %d, want 2750", user.EmployeeRateCents)
	}

	// A future-dated change must not replace the cached current rate.
	future := time.Now().UTC().AddDate(1, 0, 0)
	if _, errSet := timeline.SetRate(ctx, userID, 9999, future, 1); errSet != nil {
		t.Fatalf("set future rate: %v", errSet)
	}
	if errFind := db.First(&user, userID).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if user.EmployeeRateCents != 2750 {
		t.Fatalf("cached rate after future change = %d, want 2750", user.EmployeeRateCents)
	}
}

func TestSetRate_UnknownUser(t *testing.T) {
	db := openTestDB(t)
	timeline := NewTimeline(db)
	_, errSet := timeline.SetRate(context.Background(), 42, 2000, day(2025, time.March, 1), 1)
	if !errors.Is(errSet, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", errSet)
	}
}

func TestDeleteFutureRate_GuardsPastChanges(t *testing.T) {
	db := openTestDB(t)
	userID := createTestUser(t, db, 1000)
	timeline := NewTimeline(db)
	ctx := context.Background()
	now := time.Now().UTC()

	past, errSet := timeline.SetRate(ctx, userID, 2000, now.AddDate(0, -1, 0), 1)
	if errSet != nil {
		t.Fatalf("set past rate: %v", errSet)
	}
	if _, errDelete := timeline.DeleteFutureRate(ctx, past.ID, now); !errors.Is(errDelete, ErrRateAlreadyEffective) {
		t.Fatalf("expected ErrRateAlreadyEffective, got %v", errDelete)
	}

	// A change effective today is already effective too.
	todayRow, errSet := timeline.SetRate(ctx, userID, 2100, now, 1)
	if errSet != nil {
		t.Fatalf("set today rate: %v", errSet)
	}
	if _, errDelete := timeline.DeleteFutureRate(ctx, todayRow.ID, now); !errors.Is(errDelete, ErrRateAlreadyEffective) {
		t.Fatalf("expected ErrRateAlreadyEffective for today, got %v", errDelete)
	}

	future, errSet := timeline.SetRate(ctx, userID, 3000, now.AddDate(0, 2, 0), 1)
	if errSet != nil {
		t.Fatalf("set future rate: %v", errSet)
	}
	gotUserID, errDelete := timeline.DeleteFutureRate(ctx, future.ID, now)
	if errDelete != nil {
		t.Fatalf("delete future rate: %v", errDelete)
	}
	if gotUserID != userID {
		t.Fatalf("returned user ID = %d, want %d", gotUserID, userID)
	}

	var count int64
	if errCount := db.Model(&models.RateHistory{}).Where("id = ?", future.ID).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("future row should be gone")
	}
}

func TestEffectiveRate_BaselineWhenNoHistory(t *testing.T) {
	db := openTestDB(t)
	userID := createTestUser(t, db, 1234)
	timeline := NewTimeline(db)

	rate, errRate := timeline.EffectiveRate(context.Background(), userID, day(2019, time.July, 1))
	if errRate != nil {
		t.Fatalf("effective rate: %v", errRate)
	}
	if rate != 1234 {
		t.Fatalf("rate = %d, want baseline 1234", rate)
	}
}

func TestListForUser_MostRecentFirst(t *testing.T) {
	db := openTestDB(t)
	userID := createTestUser(t, db, 1000)
	timeline := NewTimeline(db)
	ctx := context.Background()

	for _, d := range []time.Time{day(2024, time.May, 1), day(2025, time.February, 1), day(2024, time.November, 1)} {
		if _, errSet := timeline.SetRate(ctx, userID, 2000, d, 1); errSet != nil {
			t.Fatalf("set rate: %v", errSet)
		}
	}
	rows, errList := timeline.ListForUser(ctx, userID)
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].EffectiveDate.After(rows[i-1].EffectiveDate) {
			t.Fatalf("rows not ordered most recent first")
		}
	}
}
