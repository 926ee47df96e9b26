package input

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"bess-dispatch/internal/model"
)

func row(date string, slot int, jepx float64) map[string]string {
	return map[string]string{
		ColDate:         date,
		ColSlot:         fmt.Sprintf("%d", slot),
		ColJEPXForecast: fmt.Sprintf("%g", jepx),
	}
}

func TestValidateEmpty(t *testing.T) {
	_, _, err := Validate(nil, nil)
	var dataErr *model.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("Validate(nil) error = %v, want DataError", err)
	}
}

func TestValidateMissingCritical(t *testing.T) {
	rows := []map[string]string{
		{ColJEPXForecast: "10"},
		{ColJEPXForecast: "12"},
	}
	_, rep, err := Validate(rows, nil)
	var dataErr *model.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("error = %v, want DataError", err)
	}
	if len(rep.MissingColumns) == 0 {
		t.Error("report should name the missing critical columns")
	}
}

func TestValidateBackfill(t *testing.T) {
	rows := []map[string]string{
		row("2024-04-01", 1, 10),
		row("2024-04-01", 2, 20),
	}
	slots, rep, err := Validate(rows, nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(slots))
	}
	s := slots[0]
	if s.JEPXActual != s.JEPXForecast {
		t.Errorf("JEPXActual = %v, want forecast %v", s.JEPXActual, s.JEPXForecast)
	}
	if s.EPRX1Forecast != 0 || s.EPRX1Actual != 0 || s.EPRX3Forecast != 0 || s.EPRX3Actual != 0 {
		t.Errorf("EPRX columns not backfilled to 0: %+v", s)
	}
	if s.Imbalance != s.JEPXActual {
		t.Errorf("Imbalance = %v, want JEPXActual %v", s.Imbalance, s.JEPXActual)
	}
	if len(rep.BackfilledColumns) == 0 {
		t.Error("report should list backfilled columns")
	}
}

func TestValidateDropsBadRows(t *testing.T) {
	rows := []map[string]string{
		row("2024-04-01", 1, 10),
		row("not-a-date", 2, 10),
		row("2024-04-01", 99, 10), // slot out of range
		{ColDate: "2024-04-01", ColSlot: "3", ColJEPXForecast: "abc"},
		row("2024-04-01", 1, 11), // duplicate (date, slot)
	}
	slots, rep, err := Validate(rows, nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("got %d slots, want 1", len(slots))
	}
	if rep.DroppedInvalid != 2 {
		t.Errorf("DroppedInvalid = %d, want 2", rep.DroppedInvalid)
	}
	if rep.DroppedOutOfRange != 1 {
		t.Errorf("DroppedOutOfRange = %d, want 1", rep.DroppedOutOfRange)
	}
	if rep.DroppedDuplicate != 1 {
		t.Errorf("DroppedDuplicate = %d, want 1", rep.DroppedDuplicate)
	}
	// Duplicate keeps the first occurrence.
	if slots[0].JEPXForecast != 10 {
		t.Errorf("kept duplicate value %v, want first occurrence 10", slots[0].JEPXForecast)
	}
}

func TestValidateAllRowsBad(t *testing.T) {
	rows := []map[string]string{
		row("bogus", 1, 10),
		row("also bogus", 2, 10),
	}
	_, _, err := Validate(rows, nil)
	var dataErr *model.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("error = %v, want DataError", err)
	}
}

func TestValidateSortsByDateSlot(t *testing.T) {
	rows := []map[string]string{
		row("2024/04/02", 1, 1),
		row("2024-04-01", 2, 2),
		row("2024-04-01", 1, 3),
	}
	slots, _, err := Validate(rows, nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := []struct {
		day  int
		slot int
	}{{1, 1}, {1, 2}, {2, 1}}
	for i, w := range want {
		if slots[i].Date.Day() != w.day || slots[i].Slot != w.slot {
			t.Errorf("slots[%d] = %s slot %d, want day %d slot %d",
				i, slots[i].Date.Format("2006-01-02"), slots[i].Slot, w.day, w.slot)
		}
	}
}

func TestParseDateFormats(t *testing.T) {
	want := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{
		"2024-04-01",
		"2024/04/01",
		"2024-04-01 09:30:00",
		"2024/04/01 09:30",
		"2024-04-01T09:30:00",
		"2024-4-1",
	} {
		got, err := ParseDate(raw)
		if err != nil {
			t.Errorf("ParseDate(%q): %v", raw, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, want %v", raw, got, want)
		}
	}
	if _, err := ParseDate("04-01-2024"); err == nil {
		t.Error("ParseDate accepted ambiguous US-style date")
	}
}
