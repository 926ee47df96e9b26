// Package input normalizes a raw tabular price series into the clean,
// sorted slot sequence the optimizer consumes. The policy is deliberately
// lenient: prefer degraded optimization over hard failure, so non-critical
// columns are backfilled and bad rows are dropped rather than fatal.
package input

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"bess-dispatch/internal/model"
)

// Canonical column names of the input price series.
const (
	ColDate          = "date"
	ColSlot          = "slot"
	ColJEPXForecast  = "JEPX_prediction"
	ColJEPXActual    = "JEPX_actual"
	ColEPRX1Forecast = "EPRX1_prediction"
	ColEPRX1Actual   = "EPRX1_actual"
	ColEPRX3Forecast = "EPRX3_prediction"
	ColEPRX3Actual   = "EPRX3_actual"
	ColImbalance     = "imbalance"
)

// RequiredColumns is the full required set. Absent non-critical columns are
// backfilled; absent critical columns ("date", "slot", "JEPX_prediction")
// fail validation.
func RequiredColumns() []string {
	return []string{
		ColDate, ColSlot,
		ColJEPXForecast, ColJEPXActual,
		ColEPRX1Forecast, ColEPRX1Actual,
		ColEPRX3Forecast, ColEPRX3Actual,
		ColImbalance,
	}
}

func criticalColumns() []string {
	return []string{ColDate, ColSlot, ColJEPXForecast}
}

// Report carries the counts a caller needs to explain what validation did.
// The core does not log; surface these however the host application wants.
type Report struct {
	TotalRows         int
	ValidRows         int
	DroppedInvalid    int // unparseable or missing value in a required column
	DroppedOutOfRange int // slot outside 1..48
	DroppedDuplicate  int // repeated (date, slot) pair
	BackfilledColumns []string
	MissingColumns    []string // critical columns absent (validation failed)
}

// Validate normalizes raw rows into an ordered sequence of PriceSlots.
// required defaults to RequiredColumns() when nil.
//
// Failure modes (DataError): empty input, a critical column entirely absent,
// or zero rows surviving the drops.
func Validate(rows []map[string]string, required []string) ([]model.PriceSlot, Report, error) {
	rep := Report{TotalRows: len(rows)}
	if len(rows) == 0 {
		return nil, rep, model.NewDataError("price series is empty")
	}
	if required == nil {
		required = RequiredColumns()
	}

	present := presentColumns(rows, required)

	for _, col := range criticalColumns() {
		if contains(required, col) && !present[col] {
			rep.MissingColumns = append(rep.MissingColumns, col)
		}
	}
	if len(rep.MissingColumns) > 0 {
		return nil, rep, model.NewDataError("critical columns missing: %s",
			strings.Join(rep.MissingColumns, ", "))
	}
	for _, col := range required {
		if !present[col] && !contains(criticalColumns(), col) {
			rep.BackfilledColumns = append(rep.BackfilledColumns, col)
		}
	}

	slots := make([]model.PriceSlot, 0, len(rows))
	for _, row := range rows {
		s, ok := parseRow(row, required, present)
		if !ok {
			rep.DroppedInvalid++
			continue
		}
		if s.Slot < 1 || s.Slot > model.SlotsPerDay {
			rep.DroppedOutOfRange++
			continue
		}
		slots = append(slots, s)
	}

	if len(slots) == 0 {
		return nil, rep, model.NewDataError(
			"no valid rows remain (%d total, %d invalid, %d out of range)",
			rep.TotalRows, rep.DroppedInvalid, rep.DroppedOutOfRange)
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if !slots[i].Date.Equal(slots[j].Date) {
			return slots[i].Date.Before(slots[j].Date)
		}
		return slots[i].Slot < slots[j].Slot
	})

	// Unique (date, slot): keep the first occurrence.
	deduped := slots[:0]
	for i, s := range slots {
		if i > 0 && s.Date.Equal(slots[i-1].Date) && s.Slot == slots[i-1].Slot {
			rep.DroppedDuplicate++
			continue
		}
		deduped = append(deduped, s)
	}
	rep.ValidRows = len(deduped)
	return deduped, rep, nil
}

// parseRow converts one raw row, applying backfill for absent columns.
// Returns ok=false when a present required column is empty or unparseable.
func parseRow(row map[string]string, required []string, present map[string]bool) (model.PriceSlot, bool) {
	var s model.PriceSlot

	date, err := ParseDate(row[ColDate])
	if err != nil {
		return s, false
	}
	s.Date = date

	slot, err := parseSlot(row[ColSlot])
	if err != nil {
		return s, false
	}
	s.Slot = slot

	get := func(col string) (float64, bool) {
		if !present[col] {
			return math.NaN(), true // backfilled below
		}
		v, err := parsePrice(row[col])
		if err != nil {
			if contains(required, col) {
				return 0, false
			}
			return math.NaN(), true
		}
		return v, true
	}

	var ok bool
	if s.JEPXForecast, ok = get(ColJEPXForecast); !ok {
		return s, false
	}
	if s.JEPXActual, ok = get(ColJEPXActual); !ok {
		return s, false
	}
	if s.EPRX1Forecast, ok = get(ColEPRX1Forecast); !ok {
		return s, false
	}
	if s.EPRX1Actual, ok = get(ColEPRX1Actual); !ok {
		return s, false
	}
	if s.EPRX3Forecast, ok = get(ColEPRX3Forecast); !ok {
		return s, false
	}
	if s.EPRX3Actual, ok = get(ColEPRX3Actual); !ok {
		return s, false
	}
	if s.Imbalance, ok = get(ColImbalance); !ok {
		return s, false
	}

	// Backfill defaults: forecast mirrors actual, imbalance mirrors the
	// JEPX price. Degraded inputs optimize suboptimally but do not fail.
	if math.IsNaN(s.JEPXActual) {
		s.JEPXActual = s.JEPXForecast
	}
	if math.IsNaN(s.EPRX1Forecast) {
		s.EPRX1Forecast = 0
	}
	if math.IsNaN(s.EPRX1Actual) {
		s.EPRX1Actual = s.EPRX1Forecast
	}
	if math.IsNaN(s.EPRX3Forecast) {
		s.EPRX3Forecast = 0
	}
	if math.IsNaN(s.EPRX3Actual) {
		s.EPRX3Actual = s.EPRX3Forecast
	}
	if math.IsNaN(s.Imbalance) {
		s.Imbalance = s.JEPXActual
	}
	return s, true
}

func parseSlot(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	// Spreadsheets export integers as "12.0"; coerce through float.
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return int(math.Round(f)), nil
}

func parsePrice(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "nan") || strings.EqualFold(raw, "null") {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseFloat(raw, 64)
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-1-2",
	"2006/1/2",
}

// ParseDate parses a calendar date tolerantly across the formats seen in the
// wild, truncating any time component to midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func presentColumns(rows []map[string]string, cols []string) map[string]bool {
	present := make(map[string]bool, len(cols))
	for _, row := range rows {
		for _, col := range cols {
			if !present[col] && strings.TrimSpace(row[col]) != "" {
				present[col] = true
			}
		}
	}
	return present
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
