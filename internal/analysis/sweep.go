// Package analysis ranks battery configurations by running the full
// optimization for each candidate against the same price series.
package analysis

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"bess-dispatch/internal/model"
	"bess-dispatch/internal/schedule"
	"bess-dispatch/internal/summary"
	"bess-dispatch/internal/tariff"
)

// Candidate is one battery configuration to evaluate.
type Candidate struct {
	Name    string
	Battery model.BatteryParams
}

// RunOptions are the run parameters shared by every candidate.
type RunOptions struct {
	Market         model.MarketOptions
	ForecastPeriod int
	InitialSoC     float64
	Policy         schedule.Policy
}

// Ranked is one evaluated candidate. A candidate whose run failed keeps its
// place in the output with Err set and sorts last.
type Ranked struct {
	Candidate
	Summary    summary.Summary
	CyclesUsed float64
	Err        error
}

// Sweep evaluates every candidate concurrently and returns them sorted by
// net profit, best first. Candidates are independent runs, so they
// parallelize freely even though windows within one run stay sequential.
// A failing candidate does not abort the sweep; cancellation does.
func Sweep(ctx context.Context, slots []model.PriceSlot, candidates []Candidate, prof tariff.Profile, opts RunOptions) ([]Ranked, error) {
	out := make([]Ranked, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			out[i] = evaluate(ctx, slots, cand, prof, opts)
			var ce *model.CancellationError
			if errors.As(out[i].Err, &ce) {
				return out[i].Err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return netProfit(out[i]) > netProfit(out[j])
	})
	return out, nil
}

func evaluate(ctx context.Context, slots []model.PriceSlot, cand Candidate, prof tariff.Profile, opts RunOptions) Ranked {
	o := &schedule.Orchestrator{
		Battery:        cand.Battery,
		Tariff:         prof,
		Options:        opts.Market,
		ForecastPeriod: opts.ForecastPeriod,
		InitialSoC:     opts.InitialSoC,
		Policy:         opts.Policy,
	}
	sched, err := o.Run(ctx, slots)
	if err != nil {
		return Ranked{Candidate: cand, Err: err}
	}
	return Ranked{
		Candidate:  cand,
		Summary:    summary.Summarize(sched.Decisions, cand.Battery, prof),
		CyclesUsed: sched.CyclesUsed,
	}
}

func netProfit(r Ranked) float64 {
	if r.Err != nil {
		return math.Inf(-1)
	}
	return r.Summary.NetProfit
}
