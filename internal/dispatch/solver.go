// Package dispatch builds and solves the per-window MILP that decides, for
// every half-hour slot, which single action the battery takes: charge,
// discharge, hold an EPRX1 regulation block, dispatch EPRX3, or idle.
package dispatch

import (
	"context"
	"fmt"

	"bess-dispatch/internal/milp"
	"bess-dispatch/internal/model"
	"bess-dispatch/internal/tariff"
)

// fracEps guards the read-back of continuous variables: values below it are
// numerical noise, not a real charge/discharge.
const fracEps = 1e-6

// noVar marks a variable that was never created because its slot cannot
// trade that market.
const noVar milp.VarID = -1

// SlotPlan is the solver's decision for one slot, before settlement.
// ChargeFrac/DischargeFrac are fractions of the rated half-hour energy and
// are meaningful only when Action matches.
type SlotPlan struct {
	Slot          model.PriceSlot
	Action        model.Action
	ChargeFrac    float64
	DischargeFrac float64
}

// Result is one solved window.
type Result struct {
	Plan []SlotPlan
	// ClosingSoC is the solver's end-of-window level. The realized
	// trajectory may differ when stochastic EPRX3 settlement is in play;
	// the orchestrator carries the realized value forward, not this one.
	ClosingSoC float64
}

// Solver holds the read-only inputs shared by every window of a run.
type Solver struct {
	Battery model.BatteryParams
	Tariff  tariff.Profile
	Options model.MarketOptions

	// NodeLimit overrides the backend's branch-and-bound budget when > 0.
	NodeLimit int
}

// SolveWindow optimizes one window of consecutive slots starting from
// openingSoC. windowIdx is echoed into any SolverError. A non-optimal
// backend status is an error, never a silent fallback.
func (s *Solver) SolveWindow(ctx context.Context, window []model.PriceSlot, openingSoC float64, windowIdx int) (*Result, error) {
	n := len(window)
	if n == 0 {
		return nil, model.NewDataError("window %d is empty", windowIdx)
	}
	if openingSoC < 0 || openingSoC > s.Battery.CapacityKWh {
		return nil, &model.SolverError{Window: windowIdx, Status: milp.StatusInfeasible.String()}
	}

	p := milp.NewProblem(fmt.Sprintf("battery_dispatch_window%d", windowIdx))
	if s.NodeLimit > 0 {
		p.NodeLimit = s.NodeLimit
	}

	halfPower := s.Battery.HalfPowerKWh()
	m := s.model(p, window)

	s.addSlotBudgets(p, m, n)
	s.addSoCBounds(p, m, halfPower, openingSoC)
	s.addDailyCycleCap(p, m, halfPower)
	s.addEPRX1Blocks(p, m, halfPower, openingSoC)
	p.Maximize(s.objective(m, window, halfPower))

	sol, err := p.Solve(ctx)
	if err != nil {
		return nil, err
	}
	if sol.Status != milp.StatusOptimal {
		return nil, &model.SolverError{Window: windowIdx, Status: sol.Status.String()}
	}
	return s.extract(m, window, sol, openingSoC, halfPower), nil
}

// vars bundles the per-window decision variables. Only EPRX1 block starts
// and EPRX3 awards are integer decisions: block membership is the sum of the
// covering starts, idle is the slack of the slot budget, and charge and
// discharge are plain flows. Keeping the binaries down to the structural
// choices is what lets branch and bound close a full-market day quickly.
type vars struct {
	charge     []milp.VarID // [0,1] fraction of half-power; noVar without a JEPX forecast
	discharge  []milp.VarID
	eprx3      []milp.VarID // binary; noVar without an EPRX3 forecast
	blockStart []milp.VarID // binary; noVar where no fully priced block fits
}

func (s *Solver) model(p *milp.Problem, window []model.PriceSlot) *vars {
	n := len(window)
	m := &vars{
		charge:     make([]milp.VarID, n),
		discharge:  make([]milp.VarID, n),
		eprx3:      make([]milp.VarID, n),
		blockStart: make([]milp.VarID, n),
	}
	for i := range window {
		m.charge[i], m.discharge[i] = noVar, noVar
		m.eprx3[i], m.blockStart[i] = noVar, noVar
		if model.HasPrice(window[i].JEPXForecast) {
			m.charge[i] = p.AddVar(fmt.Sprintf("charge_%d", i), 0, 1)
			m.discharge[i] = p.AddVar(fmt.Sprintf("discharge_%d", i), 0, 1)
		}
		if model.HasPrice(window[i].EPRX3Forecast) {
			m.eprx3[i] = p.AddBinary(fmt.Sprintf("is_eprx3_%d", i))
		}
	}
	if s.Options.EnableEPRX1 {
		for i := 0; i+s.Battery.EPRX1BlockSize <= n; i++ {
			if s.blockPriced(window, i) {
				m.blockStart[i] = p.AddBinary(fmt.Sprintf("block_start_%d", i))
			}
		}
	}
	return m
}

// blockPriced reports whether every slot of a block starting at i carries a
// valid EPRX1 forecast. Capacity cannot be pledged across an unpriced slot.
func (s *Solver) blockPriced(window []model.PriceSlot, i int) bool {
	for k := i; k < i+s.Battery.EPRX1BlockSize; k++ {
		if !model.HasPrice(window[k].EPRX1Forecast) {
			return false
		}
	}
	return true
}

// coverTerms adds coef times every block start whose block covers slot i to
// e and reports how many starts it added.
func (s *Solver) coverTerms(e *milp.Expr, m *vars, i int, coef float64) int {
	count := 0
	for x := max(0, i-s.Battery.EPRX1BlockSize+1); x <= i; x++ {
		if m.blockStart[x] != noVar {
			e.Add(coef, m.blockStart[x])
			count++
		}
	}
	return count
}

// netFill returns coef times the net energy the slots [0, upto) add to the
// battery: charge minus discharge minus EPRX3 dispatch, which always moves
// the fixed half-power amount.
func netFill(m *vars, upto int, coef, halfPower float64) *milp.Expr {
	e := milp.Sum()
	for i := 0; i < upto; i++ {
		if m.charge[i] != noVar {
			e.Add(coef*halfPower, m.charge[i]).Add(-coef*halfPower, m.discharge[i])
		}
		if m.eprx3[i] != noVar {
			e.Add(-coef*halfPower, m.eprx3[i])
		}
	}
	return e
}

// addSlotBudgets: the actions of one slot share its rate budget, so at most
// one can run at full size; idle is the leftover slack. Losses make a
// simultaneous charge and discharge strictly unprofitable, so integer
// solutions never mix actions, and a zero-price overlap nets out at
// extraction.
func (s *Solver) addSlotBudgets(p *milp.Problem, m *vars, n int) {
	for i := 0; i < n; i++ {
		e := milp.Sum()
		terms := 0
		if m.charge[i] != noVar {
			e.Add(1, m.charge[i]).Add(1, m.discharge[i])
			terms += 2
		}
		if m.eprx3[i] != noVar {
			e.Add(1, m.eprx3[i])
			terms++
		}
		terms += s.coverTerms(e, m, i, 1)
		if terms > 1 {
			p.AddConstraint(e, milp.LE, 1)
		}
	}
}

// addSoCBounds keeps the running state of charge within [0, capacity]. SoC
// is not a variable: the level after slot i is the opening SoC plus the
// running net fill, which keeps every row an inequality with a nonnegative
// right side, so the all-idle basis is feasible and the simplex skips its
// first phase.
func (s *Solver) addSoCBounds(p *milp.Problem, m *vars, halfPower, openingSoC float64) {
	n := len(m.charge)
	for t := 1; t <= n; t++ {
		// A slot with no flow variables leaves the level where the
		// previous row already pinned it.
		if m.charge[t-1] == noVar && m.eprx3[t-1] == noVar {
			continue
		}
		fill := netFill(m, t, 1, halfPower)
		p.AddConstraint(fill, milp.LE, s.Battery.CapacityKWh-openingSoC)
		p.AddConstraint(fill, milp.GE, -openingSoC)
	}
}

func (s *Solver) addDailyCycleCap(p *milp.Problem, m *vars, halfPower float64) {
	if s.Battery.DailyCycleLimit <= 0 {
		return
	}
	e := milp.Sum()
	terms := 0
	for i := range m.charge {
		if m.charge[i] != noVar {
			e.Add(halfPower, m.charge[i])
			terms++
		}
	}
	if terms > 0 {
		p.AddConstraint(e, milp.LE, s.Battery.DailyCycleLimit*s.Battery.CapacityKWh)
	}
}

// addEPRX1Blocks wires the regulation-block machinery around the start
// variables: cooldown cliques, the 40-60% SoC band, and the daily slot cap.
func (s *Solver) addEPRX1Blocks(p *milp.Problem, m *vars, halfPower, openingSoC float64) {
	n := len(m.blockStart)
	M := s.Battery.EPRX1BlockSize
	C := s.Battery.EPRX1BlockCooldown
	capacity := s.Battery.CapacityKWh

	// Cooldown: at most one start in any span of block size plus cooldown.
	// One clique anchored at each candidate start covers every conflicting
	// pair and is tighter than the pairwise form.
	for i := 0; i < n; i++ {
		if m.blockStart[i] == noVar {
			continue
		}
		e := milp.Sum()
		count := 0
		for j := i; j < min(n, i+M+C); j++ {
			if m.blockStart[j] != noVar {
				e.Add(1, m.blockStart[j])
				count++
			}
		}
		if count > 1 {
			p.AddConstraint(e, milp.LE, 1)
		}
	}

	// SoC band: a committed slot needs regulation headroom both ways, so
	// its level stays within 40-60% of capacity. The band is scaled by
	// block membership, exact at integer points; a fractional start buys
	// only a fractional band, which keeps the relaxation honest.
	for i := 0; i < n; i++ {
		low := netFill(m, i, -1, halfPower)
		if s.coverTerms(low, m, i, 0.4*capacity) == 0 {
			continue
		}
		high := netFill(m, i, 1, halfPower)
		s.coverTerms(high, m, i, 0.4*capacity)
		p.AddConstraint(low, milp.LE, openingSoC)
		p.AddConstraint(high, milp.LE, capacity-openingSoC)
	}

	if s.Battery.MaxDailyEPRX1Slots > 0 {
		e := milp.Sum()
		count := 0
		for i := 0; i < n; i++ {
			if m.blockStart[i] != noVar {
				// Every start pledges a full block of slots.
				e.Add(float64(M), m.blockStart[i])
				count++
			}
		}
		if count > 0 {
			p.AddConstraint(e, milp.LE, float64(s.Battery.MaxDailyEPRX1Slots))
		}
	}
}

// objective builds the forecast-price profit to maximize. The tax multiplier
// applies only to the EPRX3 term here; settlement applies it everywhere.
// That asymmetry is carried intentionally from the reference behavior.
func (s *Solver) objective(m *vars, window []model.PriceSlot, halfPower float64) *milp.Expr {
	batt := s.Battery
	wheelLoss := s.Tariff.WheelingLossRate
	activation := s.Options.EPRX3ActivationRate / 100
	v1Ratio := s.Options.V1PriceRatio / 100

	e := milp.Sum()
	for i, slot := range window {
		if m.charge[i] != noVar {
			// Procurement is grossed up by wheeling loss; sales are net
			// of battery loss.
			jpred := model.PriceOrZero(slot.JEPXForecast)
			e.Add(-jpred*halfPower/(1-wheelLoss), m.charge[i])
			e.Add(jpred*halfPower*(1-batt.LossRate), m.discharge[i])
		}
		if m.eprx3[i] != noVar {
			// EPRX3: the kW component is certain; the kWh component is
			// expected value under the activation rate, priced at the V1
			// (scaled imbalance) price.
			e3pred := model.PriceOrZero(slot.EPRX3Forecast)
			imb := model.PriceOrZero(slot.Imbalance)
			kwRevenue := model.Tax * batt.PowerKW * e3pred
			kwhRevenue := model.Tax * halfPower * (1 - batt.LossRate) * imb * v1Ratio * activation
			e.Add(kwRevenue+kwhRevenue, m.eprx3[i])
		}
		if m.blockStart[i] != noVar {
			// Capacity payment on full rated power for every covered slot.
			total := 0.0
			for k := i; k < i+batt.EPRX1BlockSize; k++ {
				total += model.PriceOrZero(window[k].EPRX1Forecast)
			}
			e.Add(total*batt.PowerKW, m.blockStart[i])
		}
	}
	return e
}

// extract reads the solved variables back into an action per slot. EPRX
// awards come straight from their binaries; JEPX flows are netted first, so
// a degenerate zero-price overlap of charge and discharge collapses to its
// net direction, and anything below fracEps is numerical noise, not a flow.
func (s *Solver) extract(m *vars, window []model.PriceSlot, sol *milp.Solution, openingSoC, halfPower float64) *Result {
	n := len(window)
	res := &Result{Plan: make([]SlotPlan, n)}

	inBlock := make([]bool, n)
	for i := range window {
		if m.blockStart[i] != noVar && sol.Value(m.blockStart[i]) > 0.5 {
			for k := i; k < i+s.Battery.EPRX1BlockSize; k++ {
				inBlock[k] = true
			}
		}
	}

	soc := openingSoC
	for i := 0; i < n; i++ {
		action := model.ActionIdle
		var chargeFrac, dischargeFrac float64
		switch {
		case inBlock[i]:
			action = model.ActionEPRX1
		case m.eprx3[i] != noVar && sol.Value(m.eprx3[i]) > 0.5:
			action = model.ActionEPRX3
			soc -= halfPower
		case m.charge[i] != noVar:
			net := sol.Value(m.charge[i]) - sol.Value(m.discharge[i])
			switch {
			case net > fracEps:
				action, chargeFrac = model.ActionCharge, net
				soc += net * halfPower
			case net < -fracEps:
				action, dischargeFrac = model.ActionDischarge, -net
				soc += net * halfPower
			}
		}
		res.Plan[i] = SlotPlan{
			Slot:          window[i],
			Action:        action,
			ChargeFrac:    chargeFrac,
			DischargeFrac: dischargeFrac,
		}
	}
	res.ClosingSoC = soc
	return res
}
