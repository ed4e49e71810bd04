// Package money implements fixed-point currency math.
//
// Rates are carried in cents and persisted amounts in micros (millionths of
// a currency unit). Cost accumulation works in exact integer cent-minutes
// (minutes x rate cents); conversion to micros happens once per aggregate
// with round-half-up, never per intermediate multiplication, so thousands
// of entries sum without binary floating-point drift.
package money

import (
	"fmt"
	"math"
)

// MicrosPerUnit is the number of micros in one currency unit.
const MicrosPerUnit = 1_000_000

// MicrosPerCent is the number of micros in one cent.
const MicrosPerCent = 10_000

// CentMinutes returns the exact cost of a duration at an hourly rate, in
// cent-minutes (1/60th of a cent per unit).
func CentMinutes(minutes, rateCents int64) int64 {
	return minutes * rateCents
}

// MicrosFromCentMinutes converts an accumulated cent-minute total to micros,
// rounding half up. This is the single rounding step of an aggregation.
func MicrosFromCentMinutes(centMinutes int64) int64 {
	if centMinutes < 0 {
		return -MicrosFromCentMinutes(-centMinutes)
	}
	// cent-minutes * 10000 / 60, reduced to * 500 / 3.
	return (centMinutes*1000 + 3) / 6
}

// MicrosFromCents converts a cent amount to micros.
func MicrosFromCents(cents int64) int64 {
	return cents * MicrosPerCent
}

// MicrosFromFloat converts a currency-unit amount received at an API
// boundary to micros, rounding half up.
func MicrosFromFloat(amount float64) int64 {
	return int64(math.Round(amount * MicrosPerUnit))
}

// CentsFromFloat converts a currency-unit amount received at an API
// boundary to cents, rounding half up.
func CentsFromFloat(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FloatFromMicros converts micros back to currency units for responses.
func FloatFromMicros(micros int64) float64 {
	return float64(micros) / MicrosPerUnit
}

// FloatFromCents converts cents back to currency units for responses.
func FloatFromCents(cents int64) float64 {
	return float64(cents) / 100
}

// FormatMicros renders a micro amount as a two-decimal string, rounding
// half up at display time.
func FormatMicros(micros int64) string {
	negative := micros < 0
	if negative {
		micros = -micros
	}
	cents := (micros + MicrosPerCent/2) / MicrosPerCent
	sign := ""
	if negative && cents > 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
