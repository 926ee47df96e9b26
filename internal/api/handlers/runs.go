package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bess-dispatch/internal/api/models"
	"bess-dispatch/internal/store"
)

// RunsHandler serves persisted optimization runs.
type RunsHandler struct {
	Store *store.Store
}

func NewRunsHandler(st *store.Store) *RunsHandler {
	return &RunsHandler{Store: st}
}

// List handles GET /api/v1/runs.
func (h *RunsHandler) List(c *gin.Context) {
	recs, err := h.Store.ListRuns()
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]models.RunInfo, len(recs))
	for i, r := range recs {
		out[i] = runInfo(r)
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

// Get handles GET /api/v1/runs/:id.
func (h *RunsHandler) Get(c *gin.Context) {
	rec, err := h.Store.GetRun(c.Param("id"))
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, runInfo(rec))
}

// Schedule handles GET /api/v1/runs/:id/schedule.
func (h *RunsHandler) Schedule(c *gin.Context) {
	decisions, err := h.Store.GetSchedule(c.Param("id"))
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule": models.NewScheduleRows(decisions)})
}

func (h *RunsHandler) writeStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{Code: "NOT_FOUND", Message: err.Error()},
		})
		return
	}
	writeError(c, err)
}

func runInfo(r store.RunRecord) models.RunInfo {
	return models.RunInfo{
		ID:          r.ID,
		CreatedAt:   r.CreatedAt,
		Area:        r.Area,
		Voltage:     r.Voltage,
		PowerKW:     r.PowerKW,
		CapacityKWh: r.CapacityKWh,
		Windows:     r.Windows,
		Skipped:     r.SkippedWindows,
		FinalSoCKWh: r.FinalSoC,
		CyclesUsed:  r.CyclesUsed,
		TotalPnL:    r.TotalPnL,
		NetProfit:   r.NetProfit,
	}
}
