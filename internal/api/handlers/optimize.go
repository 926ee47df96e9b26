package handlers

import (
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bess-dispatch/internal/api/models"
	"bess-dispatch/internal/config"
	"bess-dispatch/internal/input"
	"bess-dispatch/internal/schedule"
	"bess-dispatch/internal/store"
	"bess-dispatch/internal/summary"
)

// OptimizeHandler runs full optimizations. Store may be nil; persistence is
// best-effort and never fails an otherwise successful run.
type OptimizeHandler struct {
	Base  config.Config
	Store *store.Store
}

func NewOptimizeHandler(base config.Config, st *store.Store) *OptimizeHandler {
	return &OptimizeHandler{Base: base, Store: st}
}

// Optimize handles POST /api/v1/optimize.
func (h *OptimizeHandler) Optimize(c *gin.Context) {
	var req models.OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "INVALID_REQUEST", err)
		return
	}

	slots, rep, err := input.Validate(models.RawRows(req.Rows), nil)
	if err != nil {
		writeError(c, err)
		return
	}
	cfg, err := applyRunConfig(h.Base, req.Config)
	if err != nil {
		writeError(c, err)
		return
	}

	prof, err := cfg.Profile()
	if err != nil {
		writeError(c, err)
		return
	}
	policy, err := cfg.Policy()
	if err != nil {
		writeError(c, err)
		return
	}

	orch := &schedule.Orchestrator{
		Battery:        cfg.BatteryParams(),
		Tariff:         prof,
		Options:        cfg.MarketOptions(),
		ForecastPeriod: cfg.ForecastPeriod,
		InitialSoC:     cfg.InitialSoC(),
		Policy:         policy,
	}
	if req.Config.Seed != nil {
		orch.Rand = rand.New(rand.NewSource(*req.Config.Seed)).Float64
	}

	sched, err := orch.Run(c.Request.Context(), slots)
	if err != nil {
		writeError(c, err)
		return
	}

	batt := cfg.BatteryParams()
	total := summary.Summarize(sched.Decisions, batt, prof)
	monthly := summary.SummarizeByMonth(sched.Decisions, batt, prof)

	resp := models.OptimizeResponse{
		Status:            "completed",
		Validation:        models.NewValidationReport(rep),
		Windows:           sched.Windows,
		SkippedWindows:    sched.SkippedWindows,
		StoppedAtCycleCap: sched.StoppedAtCycleCap,
		FinalSoCKWh:       sched.FinalSoC,
		CyclesUsed:        sched.CyclesUsed,
		Summary:           models.NewSummaryPayload(total),
		Monthly:           models.NewMonthlyPayloads(monthly),
	}
	if req.IncludeSchedule {
		resp.Schedule = models.NewScheduleRows(sched.Decisions)
	}

	if h.Store != nil {
		rec := store.RunRecord{
			ID:             store.NewRunID(),
			CreatedAt:      time.Now().UTC(),
			Area:           cfg.Area,
			Voltage:        cfg.Voltage,
			PowerKW:        batt.PowerKW,
			CapacityKWh:    batt.CapacityKWh,
			Windows:        sched.Windows,
			SkippedWindows: len(sched.SkippedWindows),
			FinalSoC:       sched.FinalSoC,
			CyclesUsed:     sched.CyclesUsed,
			TotalPnL:       total.TotalPnL,
			NetProfit:      total.NetProfit,
		}
		if err := h.Store.SaveRun(rec, sched.Decisions); err != nil {
			log.Printf("optimize: persist run failed: %v", err)
		} else {
			resp.RunID = rec.ID
		}
	}

	c.JSON(http.StatusOK, resp)
}
