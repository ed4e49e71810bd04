package fiscal

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestQuarter_Boundaries(t *testing.T) {
	cases := []struct {
		date time.Time
		want int
	}{
		{date(2025, time.April, 1), 1},
		{date(2025, time.June, 30), 1},
		{date(2025, time.July, 1), 2},
		{date(2025, time.September, 30), 2},
		{date(2025, time.October, 1), 3},
		{date(2025, time.December, 31), 3},
		{date(2026, time.January, 1), 4},
		{date(2026, time.March, 31), 4},
	}
	for _, tc := range cases {
		if got := Quarter(tc.date); got != tc.want {
			t.Fatalf("Quarter(%s) = %d, want %d", tc.date.Format("2006-01-02"), got, tc.want)
		}
	}
}

func TestYear_JanuaryBelongsToPriorStart(t *testing.T) {
	if got := Year(date(2026, time.February, 15)); got != 2025 {
		t.Fatalf("Year(Feb 2026) = %d, want 2025", got)
	}
	if got := Year(date(2025, time.April, 1)); got != 2025 {
		t.Fatalf("Year(Apr 2025) = %d, want 2025", got)
	}
	if got := Year(date(2025, time.March, 31)); got != 2024 {
		t.Fatalf("Year(Mar 2025) = %d, want 2024", got)
	}
}

func TestYearWindow_CoversFullFiscalYear(t *testing.T) {
	start, end := YearWindow(2025)
	if !start.Equal(date(2025, time.April, 1)) {
		t.Fatalf("unexpected window start: %s", start)
	}
	if !end.Equal(date(2026, time.April, 1)) {
		t.Fatalf("unexpected window end: %s", end)
	}
	last := date(2026, time.March, 31)
	if !(last.Before(end) && !last.Before(start)) {
		t.Fatalf("March 31 should fall inside the window")
	}
	if Year(last) != 2025 {
		t.Fatalf("window and Year disagree for %s", last)
	}
}

func TestMonthKey(t *testing.T) {
	if got := MonthKey(date(2026, time.January, 5)); got != "2026-01" {
		t.Fatalf("MonthKey = %q, want 2026-01", got)
	}
	if got := MonthKey(date(2025, time.November, 30)); got != "2025-11" {
		t.Fatalf("MonthKey = %q, want 2025-11", got)
	}
}

func TestDateOnly_StripsTimeOfDay(t *testing.T) {
	ts := time.Date(2025, time.July, 9, 18, 45, 12, 0, time.UTC)
	if got := DateOnly(ts); !got.Equal(date(2025, time.July, 9)) {
		t.Fatalf("DateOnly = %s", got)
	}
}
