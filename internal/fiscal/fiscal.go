// Package fiscal is the single implementation of fiscal-calendar math.
//
// The fiscal year runs April through March: Q1 is Apr-Jun, Q2 is Jul-Sep,
// Q3 is Oct-Dec, and Q4 is Jan-Mar of the following calendar year. Every
// consumer that buckets dates (the spending aggregator, reports, budget
// status) must go through this package so bucket boundaries are identical
// everywhere.
package fiscal

import (
	"fmt"
	"time"
)

// Quarter returns the fiscal quarter (1-4) a date falls in.
func Quarter(date time.Time) int {
	switch m := date.Month(); {
	case m >= time.April && m <= time.June:
		return 1
	case m >= time.July && m <= time.September:
		return 2
	case m >= time.October && m <= time.December:
		return 3
	default:
		return 4
	}
}

// Year returns the fiscal year a date belongs to, identified by the
// calendar year of its April start. January-March dates belong to the
// fiscal year that started the previous April.
func Year(date time.Time) int {
	if date.Month() < time.April {
		return date.Year() - 1
	}
	return date.Year()
}

// MonthKey returns the stable YYYY-MM bucket key for month-level reports.
func MonthKey(date time.Time) string {
	return fmt.Sprintf("%04d-%02d", date.Year(), int(date.Month()))
}

// YearWindow returns the half-open UTC window [Apr 1 fy, Apr 1 fy+1) that
// bounds all entries of the given fiscal year.
func YearWindow(fiscalYear int) (start, end time.Time) {
	start = time.Date(fiscalYear, time.April, 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(fiscalYear+1, time.April, 1, 0, 0, 0, 0, time.UTC)
	return start, end
}

// DateOnly truncates a timestamp to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
