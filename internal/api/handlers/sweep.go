package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bess-dispatch/internal/analysis"
	"bess-dispatch/internal/api/models"
	"bess-dispatch/internal/config"
	"bess-dispatch/internal/input"
)

// SweepHandler ranks battery configurations against one price series.
type SweepHandler struct {
	Base config.Config
}

func NewSweepHandler(base config.Config) *SweepHandler {
	return &SweepHandler{Base: base}
}

// Sweep handles POST /api/v1/sweep.
func (h *SweepHandler) Sweep(c *gin.Context) {
	var req models.SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "INVALID_REQUEST", err)
		return
	}

	slots, _, err := input.Validate(models.RawRows(req.Rows), nil)
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

	// Each candidate overlays the merged base battery; validation happens
	// inside the run so one bad candidate ranks last instead of failing
	// the sweep.
	candidates := make([]analysis.Candidate, len(req.Candidates))
	for i, rc := range req.Candidates {
		battCfg := cfg.Battery
		applyBattery(&battCfg, rc.Battery)
		candCfg := *cfg
		candCfg.Battery = battCfg
		candidates[i] = analysis.Candidate{Name: rc.Name, Battery: candCfg.BatteryParams()}
	}

	ranked, err := analysis.Sweep(c.Request.Context(), slots, candidates, prof, analysis.RunOptions{
		Market:         cfg.MarketOptions(),
		ForecastPeriod: cfg.ForecastPeriod,
		InitialSoC:     cfg.InitialSoC(),
		Policy:         policy,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := models.SweepResponse{Rankings: make([]models.SweepRanking, len(ranked))}
	for i, r := range ranked {
		entry := models.SweepRanking{
			Rank:        i + 1,
			Name:        r.Name,
			PowerKW:     r.Battery.PowerKW,
			CapacityKWh: r.Battery.CapacityKWh,
			CyclesUsed:  r.CyclesUsed,
		}
		if r.Err != nil {
			entry.Error = r.Err.Error()
		} else {
			p := models.NewSummaryPayload(r.Summary)
			entry.Summary = &p
		}
		resp.Rankings[i] = entry
	}
	c.JSON(http.StatusOK, resp)
}
