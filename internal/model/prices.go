package model

import (
	"math"
	"time"
)

// SlotsPerDay is the conventional number of half-hour slots in one day.
const SlotsPerDay = 48

// Tax is the consumption-tax multiplier applied to settled prices.
const Tax = 1.1

// PriceSlot is one half-hour interval of the input price series.
// Prices are currency/kWh. A price may be NaN when the source had no value;
// the validator backfills non-critical columns, so a validated series only
// carries NaN where the market genuinely published nothing.
type PriceSlot struct {
	Date time.Time // calendar date, normalized to midnight
	Slot int       // 1..48, half-hour ordinal within Date

	JEPXForecast  float64
	JEPXActual    float64
	EPRX1Forecast float64
	EPRX1Actual   float64
	EPRX3Forecast float64
	EPRX3Actual   float64
	Imbalance     float64
}

// HasPrice reports whether v is a usable market price. Zero and NaN both mean
// "no valid price signal": capacity cannot be pledged against them.
func HasPrice(v float64) bool {
	return !math.IsNaN(v) && v != 0
}

// PriceOrZero maps an absent (NaN) price to 0 for arithmetic.
func PriceOrZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
