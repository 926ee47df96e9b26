package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bess-dispatch/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun() (RunRecord, []model.SlotDecision) {
	rec := RunRecord{
		ID:          NewRunID(),
		CreatedAt:   time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
		Area:        "Tokyo",
		Voltage:     "HV",
		PowerKW:     1000,
		CapacityKWh: 4000,
		Windows:     1,
		FinalSoC:    0,
		CyclesUsed:  0.125,
		TotalPnL:    2750,
		NetProfit:   2000,
	}
	date := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	decisions := []model.SlotDecision{
		{Date: date, Slot: 1, Action: model.ActionCharge, ChargeKWh: 500, SoCKWh: 500, JEPXActual: 10, JEPXPnL: -5500, TotalPnL: -5500},
		{Date: date, Slot: 2, Action: model.ActionDischarge, DischargeKWh: 500, SoCKWh: 0, JEPXActual: 15, JEPXPnL: 8250, TotalPnL: 8250},
	}
	return rec, decisions
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)
	rec, decisions := sampleRun()

	if err := s.SaveRun(rec, decisions); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetRun(rec.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got != rec {
		t.Errorf("GetRun = %+v, want %+v", got, rec)
	}

	sched, err := s.GetSchedule(rec.ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if len(sched) != 2 {
		t.Fatalf("schedule rows = %d, want 2", len(sched))
	}
	if sched[0].Action != model.ActionCharge || sched[0].ChargeKWh != 500 {
		t.Errorf("decision 0 = %+v", sched[0])
	}
	if sched[1].Slot != 2 || sched[1].JEPXPnL != 8250 {
		t.Errorf("decision 1 = %+v", sched[1])
	}
	if !sched[0].Date.Equal(decisions[0].Date) {
		t.Errorf("date = %v, want %v", sched[0].Date, decisions[0].Date)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)

	older, _ := sampleRun()
	older.CreatedAt = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	newer, _ := sampleRun()
	newer.CreatedAt = time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)

	if err := s.SaveRun(older, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRun(newer, nil); err != nil {
		t.Fatal(err)
	}

	runs, err := s.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != newer.ID || runs[1].ID != older.ID {
		t.Errorf("runs = %+v, want newest first", runs)
	}
}

func TestGetUnknownRun(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetRun("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetSchedule("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSchedule error = %v, want ErrNotFound", err)
	}
}

func TestNewRunIDUnique(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b || len(a) != 16 {
		t.Errorf("ids = %q, %q", a, b)
	}
}
