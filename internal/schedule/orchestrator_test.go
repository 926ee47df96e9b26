package schedule

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"bess-dispatch/internal/model"
	"bess-dispatch/internal/tariff"
)

// priceSeries builds slots whose JEPX forecast and actual both follow prices;
// the other markets stay absent.
func priceSeries(prices []float64) []model.PriceSlot {
	nan := math.NaN()
	date := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.PriceSlot, len(prices))
	for i, p := range prices {
		out[i] = model.PriceSlot{
			Date:          date.AddDate(0, 0, i/model.SlotsPerDay),
			Slot:          i%model.SlotsPerDay + 1,
			JEPXForecast:  p,
			JEPXActual:    p,
			EPRX1Forecast: nan,
			EPRX1Actual:   nan,
			EPRX3Forecast: nan,
			EPRX3Actual:   nan,
			Imbalance:     nan,
		}
	}
	return out
}

func testOrchestrator() *Orchestrator {
	return &Orchestrator{
		Battery: model.BatteryParams{PowerKW: 1000, CapacityKWh: 4000},
		Tariff:  tariff.Profile{Area: "Tokyo", Voltage: tariff.VoltageHV},
		Options: model.MarketOptions{EPRX3ActivationRate: 100, V1PriceRatio: 100},
	}
}

func TestRunCarriesSoCAcrossWindows(t *testing.T) {
	o := testOrchestrator()
	o.ForecastPeriod = 2

	sched, err := o.Run(context.Background(), priceSeries([]float64{10, 20, 10, 20}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sched.Decisions) != 4 {
		t.Fatalf("decisions = %d, want 4", len(sched.Decisions))
	}
	want := []model.Action{model.ActionCharge, model.ActionDischarge, model.ActionCharge, model.ActionDischarge}
	for i, d := range sched.Decisions {
		if d.Action != want[i] {
			t.Errorf("slot %d action = %v, want %v", i, d.Action, want[i])
		}
	}
	// The second window's charge is only possible if the first window's
	// closing SoC of zero was carried forward.
	if math.Abs(sched.FinalSoC) > 1e-6 {
		t.Errorf("final SoC = %v, want 0", sched.FinalSoC)
	}
	if math.Abs(sched.CyclesUsed-0.25) > 1e-6 {
		t.Errorf("cycles used = %v, want 0.25", sched.CyclesUsed)
	}
}

func TestRunYearlyCycleCap(t *testing.T) {
	o := testOrchestrator()
	o.Battery.CapacityKWh = 1000
	o.Battery.YearlyCycleLimit = 0.5
	o.ForecastPeriod = 2

	// Three identical arbitrage windows, each worth half a cycle. The first
	// lands exactly on the limit and is kept; the second exceeds it and ends
	// the run; the third is never solved.
	sched, err := o.Run(context.Background(), priceSeries([]float64{1, 100, 1, 100, 1, 100}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !sched.StoppedAtCycleCap {
		t.Error("StoppedAtCycleCap = false, want true")
	}
	if len(sched.Decisions) != 4 {
		t.Errorf("decisions = %d, want 4 (two windows)", len(sched.Decisions))
	}
	if math.Abs(sched.CyclesUsed-1.0) > 1e-6 {
		t.Errorf("cycles used = %v, want 1.0", sched.CyclesUsed)
	}
}

func TestRunPolicySkip(t *testing.T) {
	o := testOrchestrator()
	o.ForecastPeriod = 2
	o.Policy = PolicySkip
	o.InitialSoC = 5000 // above capacity: every window is infeasible

	sched, err := o.Run(context.Background(), priceSeries([]float64{10, 20, 10, 20}))
	if err != nil {
		t.Fatalf("Run with skip policy: %v", err)
	}
	if len(sched.Decisions) != 0 {
		t.Errorf("decisions = %d, want 0", len(sched.Decisions))
	}
	if len(sched.SkippedWindows) != 2 || sched.SkippedWindows[0] != 0 || sched.SkippedWindows[1] != 1 {
		t.Errorf("skipped windows = %v, want [0 1]", sched.SkippedWindows)
	}
}

func TestRunPolicyAbort(t *testing.T) {
	o := testOrchestrator()
	o.ForecastPeriod = 2
	o.InitialSoC = 5000

	_, err := o.Run(context.Background(), priceSeries([]float64{10, 20, 10, 20}))
	var se *model.SolverError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want SolverError", err)
	}
	if se.Window != 0 {
		t.Errorf("failing window = %d, want 0", se.Window)
	}
}

func TestRunCancelled(t *testing.T) {
	o := testOrchestrator()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sched, err := o.Run(ctx, priceSeries([]float64{10, 20}))
	var ce *model.CancellationError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want CancellationError", err)
	}
	if ce.Window != 0 {
		t.Errorf("cancelled window = %d, want 0", ce.Window)
	}
	if sched == nil || len(sched.Decisions) != 0 {
		t.Errorf("partial schedule = %+v, want empty non-nil", sched)
	}
}

func TestRunEmptySeries(t *testing.T) {
	_, err := testOrchestrator().Run(context.Background(), nil)
	var de *model.DataError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want DataError", err)
	}
}

func TestRunValidatesParameters(t *testing.T) {
	o := testOrchestrator()
	o.Battery.PowerKW = 0
	_, err := o.Run(context.Background(), priceSeries([]float64{10}))
	var ce *model.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConfigurationError", err)
	}
}

func TestRunProgress(t *testing.T) {
	o := testOrchestrator()
	o.ForecastPeriod = 2
	var dones []int
	var totals []int
	o.Progress = func(done, total int, msg string) {
		dones = append(dones, done)
		totals = append(totals, total)
		if msg == "" {
			t.Error("empty progress message")
		}
	}

	if _, err := o.Run(context.Background(), priceSeries([]float64{10, 20, 10, 20})); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(dones) != 2 || dones[0] != 1 || dones[1] != 2 {
		t.Errorf("progress done values = %v, want [1 2]", dones)
	}
	for _, total := range totals {
		if total != 2 {
			t.Errorf("progress total = %d, want 2", total)
		}
	}
}
