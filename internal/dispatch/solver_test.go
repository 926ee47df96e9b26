package dispatch

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"bess-dispatch/internal/model"
	"bess-dispatch/internal/tariff"
)

var nan = math.NaN()

func testBattery() model.BatteryParams {
	return model.BatteryParams{
		PowerKW:            1000,
		CapacityKWh:        4000,
		EPRX1BlockSize:     3,
		EPRX1BlockCooldown: 2,
	}
}

func testTariff() tariff.Profile {
	return tariff.Profile{Area: "Tokyo", Voltage: tariff.VoltageHV}
}

func noEPRXOptions() model.MarketOptions {
	return model.MarketOptions{EnableEPRX1: false, EPRX3ActivationRate: 100, V1PriceRatio: 100}
}

// slot builds a window slot with every price absent except those set by the
// caller afterwards.
func slot(i int) model.PriceSlot {
	return model.PriceSlot{
		Date:          time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Slot:          i + 1,
		JEPXForecast:  nan,
		JEPXActual:    nan,
		EPRX1Forecast: nan,
		EPRX1Actual:   nan,
		EPRX3Forecast: nan,
		EPRX3Actual:   nan,
		Imbalance:     nan,
	}
}

func actions(r *Result) []model.Action {
	out := make([]model.Action, len(r.Plan))
	for i, p := range r.Plan {
		out[i] = p.Action
	}
	return out
}

func TestSolveWindowRoundTrip(t *testing.T) {
	// Cheap slot then expensive slot, no losses: charge then discharge.
	s := &Solver{Battery: testBattery(), Tariff: testTariff(), Options: noEPRXOptions()}
	w := []model.PriceSlot{slot(0), slot(1)}
	w[0].JEPXForecast = 10
	w[1].JEPXForecast = 20

	res, err := s.SolveWindow(context.Background(), w, 0, 0)
	if err != nil {
		t.Fatalf("SolveWindow: %v", err)
	}
	got := actions(res)
	if got[0] != model.ActionCharge || got[1] != model.ActionDischarge {
		t.Fatalf("actions = %v, want [charge discharge]", got)
	}
	if math.Abs(res.Plan[0].ChargeFrac-1) > 1e-6 {
		t.Errorf("charge fraction = %v, want 1", res.Plan[0].ChargeFrac)
	}
	if math.Abs(res.ClosingSoC) > 1e-6 {
		t.Errorf("closing SoC = %v, want 0", res.ClosingSoC)
	}
}

func TestSolveWindowIdleWhenUnprofitable(t *testing.T) {
	// Flat prices with losses on both legs and an empty battery: any round
	// trip loses money, so the optimum is to do nothing.
	batt := testBattery()
	batt.LossRate = 0.1
	prof := testTariff()
	prof.WheelingLossRate = 0.05
	s := &Solver{Battery: batt, Tariff: prof, Options: noEPRXOptions()}

	w := make([]model.PriceSlot, 4)
	for i := range w {
		w[i] = slot(i)
		w[i].JEPXForecast = 10
	}
	res, err := s.SolveWindow(context.Background(), w, 0, 0)
	if err != nil {
		t.Fatalf("SolveWindow: %v", err)
	}
	for i, a := range actions(res) {
		if a != model.ActionIdle {
			t.Errorf("slot %d action = %v, want idle", i, a)
		}
	}
	if math.Abs(res.ClosingSoC) > 1e-6 {
		t.Errorf("closing SoC = %v, want 0", res.ClosingSoC)
	}
}

func TestSolveWindowAllIdleWithoutPrices(t *testing.T) {
	// No forecast price in any market: every trading option is gated off, so
	// the window is idle throughout and SoC holds at its opening value.
	s := &Solver{Battery: testBattery(), Tariff: testTariff(), Options: model.DefaultMarketOptions()}
	w := make([]model.PriceSlot, 4)
	for i := range w {
		w[i] = slot(i)
	}
	res, err := s.SolveWindow(context.Background(), w, 1500, 0)
	if err != nil {
		t.Fatalf("SolveWindow: %v", err)
	}
	for i, a := range actions(res) {
		if a != model.ActionIdle {
			t.Errorf("slot %d action = %v, want idle", i, a)
		}
	}
	if math.Abs(res.ClosingSoC-1500) > 1e-6 {
		t.Errorf("closing SoC = %v, want 1500", res.ClosingSoC)
	}
}

func TestSolveWindowEPRX1Blocks(t *testing.T) {
	// Block size 2, cooldown 1, six slots, EPRX1 priced everywhere and no
	// other market: two full blocks fit, at slots {0,1} and {3,4}.
	batt := testBattery()
	batt.EPRX1BlockSize = 2
	batt.EPRX1BlockCooldown = 1
	opts := model.DefaultMarketOptions()
	s := &Solver{Battery: batt, Tariff: testTariff(), Options: opts}

	w := make([]model.PriceSlot, 6)
	for i := range w {
		w[i] = slot(i)
		w[i].EPRX1Forecast = 50
	}
	res, err := s.SolveWindow(context.Background(), w, 2000, 0)
	if err != nil {
		t.Fatalf("SolveWindow: %v", err)
	}

	got := actions(res)
	count := 0
	for _, a := range got {
		if a == model.ActionEPRX1 {
			count++
		}
	}
	if count != 4 {
		t.Fatalf("EPRX1 slots = %d (%v), want 4", count, got)
	}

	// Runs must be exactly block-sized with a gap between them.
	run := 0
	for i := 0; i <= len(got); i++ {
		if i < len(got) && got[i] == model.ActionEPRX1 {
			run++
			continue
		}
		if run != 0 && run != batt.EPRX1BlockSize {
			t.Errorf("EPRX1 run of length %d at slot %d, want %d", run, i-run, batt.EPRX1BlockSize)
		}
		run = 0
	}
}

func TestSolveWindowEPRX1PriceGate(t *testing.T) {
	// A missing EPRX1 price inside a would-be block forbids any block that
	// covers it. With the price gap at slot 1 only one block fits.
	batt := testBattery()
	batt.EPRX1BlockSize = 2
	batt.EPRX1BlockCooldown = 1
	s := &Solver{Battery: batt, Tariff: testTariff(), Options: model.DefaultMarketOptions()}

	w := make([]model.PriceSlot, 6)
	for i := range w {
		w[i] = slot(i)
		w[i].EPRX1Forecast = 50
	}
	w[1].EPRX1Forecast = nan

	res, err := s.SolveWindow(context.Background(), w, 2000, 0)
	if err != nil {
		t.Fatalf("SolveWindow: %v", err)
	}
	got := actions(res)
	if got[1] == model.ActionEPRX1 {
		t.Errorf("slot 1 held EPRX1 despite missing price: %v", got)
	}
	count := 0
	for _, a := range got {
		if a == model.ActionEPRX1 {
			count++
		}
	}
	if count != 2 {
		t.Errorf("EPRX1 slots = %d (%v), want 2", count, got)
	}
}

func TestSolveWindowEPRX1SoCBand(t *testing.T) {
	// Opening SoC far below the 40% band edge: no block can be held even
	// though the price is attractive, and with no JEPX price there is no way
	// to charge up either.
	batt := testBattery()
	batt.EPRX1BlockSize = 2
	batt.EPRX1BlockCooldown = 1
	s := &Solver{Battery: batt, Tariff: testTariff(), Options: model.DefaultMarketOptions()}

	w := make([]model.PriceSlot, 4)
	for i := range w {
		w[i] = slot(i)
		w[i].EPRX1Forecast = 50
	}
	res, err := s.SolveWindow(context.Background(), w, 0, 0)
	if err != nil {
		t.Fatalf("SolveWindow: %v", err)
	}
	for i, a := range actions(res) {
		if a == model.ActionEPRX1 {
			t.Errorf("slot %d held EPRX1 with SoC outside the band", i)
		}
	}
}

func TestSolveWindowEPRX3Gating(t *testing.T) {
	// EPRX3 priced only at slot 1: the award lands there, beating the spot
	// sale it displaces, and the dispatched energy draws down SoC by one
	// half-power step on top of the slot-0 discharge.
	s := &Solver{Battery: testBattery(), Tariff: testTariff(), Options: noEPRXOptions()}
	w := []model.PriceSlot{slot(0), slot(1)}
	w[0].JEPXForecast = 10
	w[1].JEPXForecast = 10
	w[1].EPRX3Forecast = 30
	w[1].Imbalance = 15

	res, err := s.SolveWindow(context.Background(), w, 4000, 0)
	if err != nil {
		t.Fatalf("SolveWindow: %v", err)
	}
	got := actions(res)
	if got[0] != model.ActionDischarge || got[1] != model.ActionEPRX3 {
		t.Fatalf("actions = %v, want [discharge eprx3]", got)
	}
	want := 4000 - 2*testBattery().HalfPowerKWh()
	if math.Abs(res.ClosingSoC-want) > 1e-6 {
		t.Errorf("closing SoC = %v, want %v", res.ClosingSoC, want)
	}
}

func TestSolveWindowDailyCycleCap(t *testing.T) {
	// Two cheap then two expensive slots. Without the cap the battery would
	// buy both cheap slots; a half-cycle cap allows only one slot of charge.
	batt := testBattery()
	batt.CapacityKWh = 1000
	batt.DailyCycleLimit = 0.5
	s := &Solver{Battery: batt, Tariff: testTariff(), Options: noEPRXOptions()}

	w := make([]model.PriceSlot, 4)
	for i := range w {
		w[i] = slot(i)
	}
	w[0].JEPXForecast = 1
	w[1].JEPXForecast = 1
	w[2].JEPXForecast = 100
	w[3].JEPXForecast = 100

	res, err := s.SolveWindow(context.Background(), w, 0, 0)
	if err != nil {
		t.Fatalf("SolveWindow: %v", err)
	}
	charged := 0.0
	for _, p := range res.Plan {
		if p.Action == model.ActionCharge {
			charged += p.ChargeFrac * batt.HalfPowerKWh()
		}
	}
	if charged > batt.DailyCycleLimit*batt.CapacityKWh+1e-6 {
		t.Errorf("charged %v kWh, cap is %v", charged, batt.DailyCycleLimit*batt.CapacityKWh)
	}
	if charged < 500-1e-6 {
		t.Errorf("charged %v kWh, expected the cap to be fully used", charged)
	}
}

func TestSolveWindowFullMarketDay(t *testing.T) {
	// A realistic day: 48 slots with every market priced, losses, a cycle
	// cap and the EPRX1 machinery all active. The solve must finish inside
	// the default node budget and a short deadline, and the plan must
	// respect every operating constraint when replayed slot by slot.
	batt := model.BatteryParams{
		PowerKW:            1000,
		CapacityKWh:        4000,
		LossRate:           0.05,
		DailyCycleLimit:    1,
		EPRX1BlockSize:     3,
		EPRX1BlockCooldown: 2,
		MaxDailyEPRX1Slots: 6,
	}
	prof := testTariff()
	prof.WheelingLossRate = 0.03
	s := &Solver{Battery: batt, Tariff: prof, Options: model.DefaultMarketOptions()}

	w := make([]model.PriceSlot, 48)
	for i := range w {
		w[i] = slot(i)
		switch {
		case i < 12:
			w[i].JEPXForecast = float64(8 + i%3)
		case i < 32:
			w[i].JEPXForecast = float64(14 + i%5)
		default:
			w[i].JEPXForecast = float64(24 + i%4)
		}
		w[i].EPRX1Forecast = float64(20 + (i*7)%11)
		w[i].EPRX3Forecast = float64(10 + (i*5)%9)
		w[i].Imbalance = float64(12 + i%6)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := s.SolveWindow(ctx, w, 2000, 0)
	if err != nil {
		t.Fatalf("SolveWindow: %v", err)
	}
	if len(res.Plan) != 48 {
		t.Fatalf("plan length = %d, want 48", len(res.Plan))
	}

	hp := batt.HalfPowerKWh()
	soc := 2000.0
	charged := 0.0
	eprx1 := 0
	for i, p := range res.Plan {
		if p.Action == model.ActionEPRX1 {
			eprx1++
			if soc < 0.4*batt.CapacityKWh-1e-6 || soc > 0.6*batt.CapacityKWh+1e-6 {
				t.Errorf("slot %d holds EPRX1 at SoC %v, outside the 40-60%% band", i, soc)
			}
		}
		switch p.Action {
		case model.ActionCharge:
			soc += p.ChargeFrac * hp
			charged += p.ChargeFrac * hp
		case model.ActionDischarge:
			soc -= p.DischargeFrac * hp
		case model.ActionEPRX3:
			soc -= hp
		}
		if soc < -1e-6 || soc > batt.CapacityKWh+1e-6 {
			t.Fatalf("SoC %v out of range after slot %d", soc, i)
		}
	}
	if math.Abs(soc-res.ClosingSoC) > 1e-6 {
		t.Errorf("replayed closing SoC = %v, solver reported %v", soc, res.ClosingSoC)
	}
	if charged > batt.DailyCycleLimit*batt.CapacityKWh+1e-6 {
		t.Errorf("charged %v kWh, daily cap is %v", charged, batt.DailyCycleLimit*batt.CapacityKWh)
	}
	if eprx1 > batt.MaxDailyEPRX1Slots {
		t.Errorf("EPRX1 slots = %d, cap is %d", eprx1, batt.MaxDailyEPRX1Slots)
	}

	// Committed blocks come whole, separated by at least the cooldown.
	got := actions(res)
	run, lastEnd := 0, -batt.EPRX1BlockCooldown - 1
	for i := 0; i <= len(got); i++ {
		if i < len(got) && got[i] == model.ActionEPRX1 {
			if run == 0 && i-lastEnd <= batt.EPRX1BlockCooldown {
				t.Errorf("EPRX1 block at slot %d starts inside the cooldown after slot %d", i, lastEnd)
			}
			run++
			continue
		}
		if run != 0 {
			if run != batt.EPRX1BlockSize {
				t.Errorf("EPRX1 run of length %d ending at slot %d, want %d", run, i-1, batt.EPRX1BlockSize)
			}
			lastEnd = i - 1
		}
		run = 0
	}
}

func TestSolveWindowInfeasible(t *testing.T) {
	// Opening SoC above capacity cannot satisfy the SoC bounds.
	s := &Solver{Battery: testBattery(), Tariff: testTariff(), Options: noEPRXOptions()}
	w := []model.PriceSlot{slot(0)}

	_, err := s.SolveWindow(context.Background(), w, 5000, 3)
	var se *model.SolverError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want SolverError", err)
	}
	if se.Window != 3 || se.Status != "Infeasible" {
		t.Errorf("SolverError = %+v, want window 3 Infeasible", se)
	}
}

func TestSolveWindowEmpty(t *testing.T) {
	s := &Solver{Battery: testBattery(), Tariff: testTariff(), Options: noEPRXOptions()}
	_, err := s.SolveWindow(context.Background(), nil, 0, 0)
	var de *model.DataError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want DataError", err)
	}
}
