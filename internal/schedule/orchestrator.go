// Package schedule runs the multi-day optimization: it slices the validated
// price series into windows, solves each window in chronological order with
// the ending state of charge carried forward, settles each plan at actual
// prices, and enforces the yearly cycle cap across windows.
package schedule

import (
	"context"
	"fmt"

	"bess-dispatch/internal/dispatch"
	"bess-dispatch/internal/model"
	"bess-dispatch/internal/settle"
	"bess-dispatch/internal/tariff"
)

// Policy decides what a non-optimal window does to the run.
type Policy int

const (
	// PolicyAbort stops the run at the failing window and returns the
	// SolverError together with the decisions produced so far.
	PolicyAbort Policy = iota
	// PolicySkip records the window as skipped and continues with the
	// state of charge unchanged.
	PolicySkip
)

// ParsePolicy maps the configuration strings "abort" and "skip".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "abort":
		return PolicyAbort, nil
	case "skip":
		return PolicySkip, nil
	}
	return 0, model.NewConfigurationError("unknown solver policy %q", s)
}

// Observer receives window-granularity progress. msg is a display string;
// done/total drive a percent indicator. Never called concurrently.
type Observer func(done, total int, msg string)

// Orchestrator holds the run parameters. Fields are read-only during Run;
// concurrent runs must each own their Orchestrator.
type Orchestrator struct {
	Battery model.BatteryParams
	Tariff  tariff.Profile
	Options model.MarketOptions

	// ForecastPeriod is the window length in slots. 0 means SlotsPerDay.
	ForecastPeriod int

	// InitialSoC is the opening state of charge of the first window, kWh.
	InitialSoC float64

	Policy Policy

	// Rand seeds the settlement's EPRX3 activation draw. Nil uses the
	// shared math/rand source.
	Rand func() float64

	// NodeLimit overrides the MILP backend's node budget when > 0.
	NodeLimit int

	Progress Observer
}

// Schedule is the full-horizon result. On abort or cancellation the decisions
// of completed windows are still present alongside the returned error.
type Schedule struct {
	Decisions []model.SlotDecision

	Windows        int
	SkippedWindows []int

	FinalSoC   float64
	CyclesUsed float64

	// StoppedAtCycleCap is set when the yearly cycle limit ended the run
	// before the price series did.
	StoppedAtCycleCap bool
}

// Run executes the optimization over the whole series. Windows are strictly
// sequential: each opening SoC is the previous window's realized closing SoC.
// Cancellation is observed at window boundaries only and reported as a
// CancellationError with the partial schedule.
func (o *Orchestrator) Run(ctx context.Context, slots []model.PriceSlot) (*Schedule, error) {
	if err := o.Battery.Validate(); err != nil {
		return nil, err
	}
	if err := o.Options.Validate(); err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, model.NewDataError("no slots to optimize")
	}
	period := o.ForecastPeriod
	if period == 0 {
		period = model.SlotsPerDay
	}
	if period < 0 {
		return nil, model.NewConfigurationError("forecast period must be > 0")
	}

	solver := &dispatch.Solver{
		Battery:   o.Battery,
		Tariff:    o.Tariff,
		Options:   o.Options,
		NodeLimit: o.NodeLimit,
	}
	calc := &settle.Calculator{
		Battery: o.Battery,
		Tariff:  o.Tariff,
		Options: o.Options,
		Rand:    o.Rand,
	}

	total := (len(slots) + period - 1) / period
	sched := &Schedule{Windows: total, FinalSoC: o.InitialSoC}
	soc := o.InitialSoC

	for w := 0; w < total; w++ {
		select {
		case <-ctx.Done():
			return sched, &model.CancellationError{Window: w}
		default:
		}

		lo := w * period
		hi := min(lo+period, len(slots))
		window := slots[lo:hi]

		res, err := solver.SolveWindow(ctx, window, soc, w)
		if err != nil {
			if ctx.Err() != nil {
				return sched, &model.CancellationError{Window: w}
			}
			if o.Policy == PolicySkip {
				sched.SkippedWindows = append(sched.SkippedWindows, w)
				o.report(w+1, total, fmt.Sprintf("window %d/%d skipped: %v", w+1, total, err))
				continue
			}
			return sched, err
		}

		decisions, closing := calc.Settle(res.Plan, soc)
		soc = closing
		sched.Decisions = append(sched.Decisions, decisions...)
		sched.FinalSoC = soc

		charged := 0.0
		for _, d := range decisions {
			charged += d.ChargeKWh
		}
		sched.CyclesUsed += charged / o.Battery.CapacityKWh

		o.report(w+1, total, fmt.Sprintf("window %d/%d done, SoC %.0f kWh", w+1, total, soc))

		if o.Battery.YearlyCycleLimit > 0 && sched.CyclesUsed > o.Battery.YearlyCycleLimit {
			sched.StoppedAtCycleCap = true
			o.report(total, total, fmt.Sprintf("yearly cycle limit reached after window %d/%d", w+1, total))
			break
		}
	}
	return sched, nil
}

func (o *Orchestrator) report(done, total int, msg string) {
	if o.Progress != nil {
		o.Progress(done, total, msg)
	}
}
