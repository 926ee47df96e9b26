package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"

	"bess-dispatch/internal/analysis"
	"bess-dispatch/internal/config"
	"bess-dispatch/internal/data"
	"bess-dispatch/internal/input"
	"bess-dispatch/internal/model"
	"bess-dispatch/internal/schedule"
	"bess-dispatch/internal/summary"
	"bess-dispatch/internal/tariff"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "optimize":
		cmdOptimize(os.Args[2:])
	case "sweep":
		cmdSweep(os.Args[2:])
	case "tariffs":
		cmdTariffs(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli optimize --data prices.csv --config config.yaml --out results/schedule.csv")
	fmt.Println("  cli sweep --data prices.csv --config config.yaml")
	fmt.Println("  cli tariffs [--area Tokyo] [--voltage HV]")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - optimize writes one CSV row per half-hour slot with the chosen action")
	fmt.Println("  - sweep ranks scaled variants of the configured battery by net profit")
}

func cmdOptimize(args []string) {
	fs := flag.NewFlagSet("optimize", flag.ExitOnError)
	dataPath := fs.String("data", "prices.csv", "Path to the half-hourly price CSV")
	cfgPath := fs.String("config", "", "Path to YAML config (optional)")
	outPath := fs.String("out", "", "Output schedule CSV path (optional)")
	seed := fs.Int64("seed", 0, "Seed for the EPRX3 activation draw (0=random)")
	_ = fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	slots, rep, err := loadSlots(*dataPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(rep.BackfilledColumns) > 0 {
		fmt.Printf("backfilled columns: %v\n", rep.BackfilledColumns)
	}
	if dropped := rep.DroppedInvalid + rep.DroppedOutOfRange + rep.DroppedDuplicate; dropped > 0 {
		fmt.Printf("dropped %d of %d rows\n", dropped, rep.TotalRows)
	}

	prof, err := cfg.Profile()
	if err != nil {
		log.Fatalf("%v", err)
	}
	policy, err := cfg.Policy()
	if err != nil {
		log.Fatalf("%v", err)
	}

	orch := &schedule.Orchestrator{
		Battery:        cfg.BatteryParams(),
		Tariff:         prof,
		Options:        cfg.MarketOptions(),
		ForecastPeriod: cfg.ForecastPeriod,
		InitialSoC:     cfg.InitialSoC(),
		Policy:         policy,
		Progress: func(done, total int, msg string) {
			fmt.Printf("[%d/%d] %s\n", done, total, msg)
		},
	}
	if *seed != 0 {
		orch.Rand = rand.New(rand.NewSource(*seed)).Float64
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sched, err := orch.Run(ctx, slots)
	if err != nil {
		log.Fatalf("%v", err)
	}

	batt := cfg.BatteryParams()
	printSummary(summary.Summarize(sched.Decisions, batt, prof))
	monthly := summary.SummarizeByMonth(sched.Decisions, batt, prof)
	if len(monthly) > 1 {
		fmt.Println("")
		fmt.Printf("%-8s %14s %14s %14s\n", "month", "total_pnl", "fees", "net")
		for _, m := range monthly {
			fees := m.WheelingBaseFee + m.WheelingUsageFee + m.RenewableSurcharge
			fmt.Printf("%-8s %14.0f %14.0f %14.0f\n", m.Month, m.TotalPnL, fees, m.NetProfit)
		}
	}
	if len(sched.SkippedWindows) > 0 {
		fmt.Printf("skipped windows: %v\n", sched.SkippedWindows)
	}
	if sched.StoppedAtCycleCap {
		fmt.Printf("stopped at yearly cycle cap (%.2f cycles used)\n", sched.CyclesUsed)
	}

	if *outPath != "" {
		if dir := filepath.Dir(*outPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.Fatalf("%v", err)
			}
		}
		if err := data.WriteScheduleCSV(*outPath, sched.Decisions); err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Printf("Wrote %d rows to %s\n", len(sched.Decisions), *outPath)
	}
}

func cmdSweep(args []string) {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	dataPath := fs.String("data", "prices.csv", "Path to the half-hourly price CSV")
	cfgPath := fs.String("config", "", "Path to YAML config (optional)")
	_ = fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	slots, _, err := loadSlots(*dataPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	prof, err := cfg.Profile()
	if err != nil {
		log.Fatalf("%v", err)
	}
	policy, err := cfg.Policy()
	if err != nil {
		log.Fatalf("%v", err)
	}

	// Scale power and capacity together around the configured battery so
	// the C-rate stays fixed across candidates.
	base := cfg.BatteryParams()
	scales := []float64{0.5, 0.75, 1, 1.5, 2}
	candidates := make([]analysis.Candidate, len(scales))
	for i, sc := range scales {
		b := base
		b.PowerKW = base.PowerKW * sc
		b.CapacityKWh = base.CapacityKWh * sc
		candidates[i] = analysis.Candidate{
			Name:    fmt.Sprintf("%.0fkW/%.0fkWh", b.PowerKW, b.CapacityKWh),
			Battery: b,
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ranked, err := analysis.Sweep(ctx, slots, candidates, prof, analysis.RunOptions{
		Market:         cfg.MarketOptions(),
		ForecastPeriod: cfg.ForecastPeriod,
		InitialSoC:     cfg.InitialSoC(),
		Policy:         policy,
	})
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Printf("%-4s %-18s %12s %12s %8s %14s\n", "rank", "battery", "total_pnl", "net", "cycles", "error")
	for i, r := range ranked {
		if r.Err != nil {
			fmt.Printf("%-4d %-18s %12s %12s %8s %14v\n", i+1, r.Name, "-", "-", "-", r.Err)
			continue
		}
		fmt.Printf("%-4d %-18s %12.0f %12.0f %8.2f %14s\n",
			i+1, r.Name, r.Summary.TotalPnL, r.Summary.NetProfit, r.CyclesUsed, "")
	}
}

func cmdTariffs(args []string) {
	fs := flag.NewFlagSet("tariffs", flag.ExitOnError)
	area := fs.String("area", "", "Filter by area")
	voltage := fs.String("voltage", "", "Filter by voltage class")
	_ = fs.Parse(args)

	fmt.Printf("%-10s %-6s %10s %12s %12s %12s\n",
		"area", "class", "loss", "base_yen/kW", "usage_yen", "surcharge")
	for _, a := range tariff.Areas() {
		if *area != "" && a != *area {
			continue
		}
		for _, v := range tariff.Voltages() {
			if *voltage != "" && v != *voltage {
				continue
			}
			p, err := tariff.Lookup(a, v)
			if err != nil {
				continue
			}
			fmt.Printf("%-10s %-6s %10.4f %12.2f %12.2f %12.2f\n",
				a, v, p.WheelingLossRate, p.WheelingBaseCharge, p.WheelingUsageFee, p.SurchargeRate)
		}
	}
}

func loadConfig(path string) *config.Config {
	if path == "" {
		c := config.Default()
		return &c
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("%v", err)
	}
	return cfg
}

func loadSlots(path string) ([]model.PriceSlot, input.Report, error) {
	rows, err := data.ReadPriceCSV(path)
	if err != nil {
		return nil, input.Report{}, err
	}
	return input.Validate(rows, nil)
}

func printSummary(s summary.Summary) {
	fmt.Printf("Total PnL=%.0f yen  Net=%.0f yen\n", s.TotalPnL, s.NetProfit)
	fmt.Printf("  JEPX=%.0f  EPRX1=%.0f  EPRX3=%.0f\n", s.JEPXPnL, s.EPRX1PnL, s.EPRX3PnL)
	fmt.Printf("  fees: base=%.0f usage=%.0f surcharge=%.0f\n",
		s.WheelingBaseFee, s.WheelingUsageFee, s.RenewableSurcharge)
	fmt.Printf("  energy: charged=%.0f kWh discharged=%.0f kWh eprx3=%.0f kWh loss=%.0f kWh\n",
		s.ChargedKWh, s.DischargedKWh, s.EPRX3KWh, s.BatteryLossKWh)
	fmt.Printf("  actions:")
	for _, a := range model.Actions() {
		fmt.Printf(" %s=%d", a, s.ActionCounts[a])
	}
	fmt.Println("")
}
