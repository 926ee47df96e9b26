package models

import (
	"time"

	"bess-dispatch/internal/input"
	"bess-dispatch/internal/model"
	"bess-dispatch/internal/summary"
)

// OptimizeResponse is the result of POST /api/v1/optimize.
type OptimizeResponse struct {
	RunID  string `json:"run_id,omitempty"`
	Status string `json:"status"`

	Validation ValidationReport `json:"validation"`

	Windows           int   `json:"windows"`
	SkippedWindows    []int `json:"skipped_windows,omitempty"`
	StoppedAtCycleCap bool  `json:"stopped_at_cycle_cap,omitempty"`

	FinalSoCKWh float64 `json:"final_soc_kwh"`
	CyclesUsed  float64 `json:"cycles_used"`

	Summary  SummaryPayload   `json:"summary"`
	Monthly  []MonthlyPayload `json:"monthly"`
	Schedule []ScheduleRow    `json:"schedule,omitempty"`
}

// ValidationReport echoes what the input validator did to the series.
type ValidationReport struct {
	TotalRows         int      `json:"total_rows"`
	ValidRows         int      `json:"valid_rows"`
	DroppedInvalid    int      `json:"dropped_invalid,omitempty"`
	DroppedOutOfRange int      `json:"dropped_out_of_range,omitempty"`
	DroppedDuplicate  int      `json:"dropped_duplicate,omitempty"`
	BackfilledColumns []string `json:"backfilled_columns,omitempty"`
}

// SummaryPayload is one rollup, full-horizon or monthly.
type SummaryPayload struct {
	JEPXPnL  float64 `json:"jepx_pnl"`
	EPRX1PnL float64 `json:"eprx1_pnl"`
	EPRX3PnL float64 `json:"eprx3_pnl"`
	TotalPnL float64 `json:"total_pnl"`

	ChargedKWh     float64 `json:"charged_kwh"`
	DischargedKWh  float64 `json:"discharged_kwh"`
	EPRX3KWh       float64 `json:"eprx3_kwh"`
	BatteryLossKWh float64 `json:"battery_loss_kwh"`

	WheelingBaseFee    float64 `json:"wheeling_base_fee"`
	WheelingUsageFee   float64 `json:"wheeling_usage_fee"`
	RenewableSurcharge float64 `json:"renewable_surcharge"`
	NetProfit          float64 `json:"net_profit"`

	ActionCounts map[string]int `json:"action_counts"`

	AvgChargePrice    *float64 `json:"avg_charge_price,omitempty"`
	AvgDischargePrice *float64 `json:"avg_discharge_price,omitempty"`
	AvgEPRX1Price     *float64 `json:"avg_eprx1_price,omitempty"`
	AvgEPRX3Price     *float64 `json:"avg_eprx3_price,omitempty"`
}

// MonthlyPayload is the per-month rollup.
type MonthlyPayload struct {
	Month string `json:"month"`
	SummaryPayload
}

// ScheduleRow is one settled slot decision.
type ScheduleRow struct {
	Date           string  `json:"date"`
	Slot           int     `json:"slot"`
	Action         string  `json:"action"`
	ChargeKWh      float64 `json:"charge_kwh"`
	DischargeKWh   float64 `json:"discharge_kwh"`
	EPRX3KWh       float64 `json:"eprx3_kwh"`
	LossKWh        float64 `json:"loss_kwh"`
	SoCKWh         float64 `json:"soc_kwh"`
	EPRX3Activated bool    `json:"eprx3_activated,omitempty"`
	JEPXActual     float64 `json:"jepx_actual"`
	EPRX1Actual    float64 `json:"eprx1_actual"`
	EPRX3Actual    float64 `json:"eprx3_actual"`
	Imbalance      float64 `json:"imbalance"`
	JEPXPnL        float64 `json:"jepx_pnl"`
	EPRX1PnL       float64 `json:"eprx1_pnl"`
	EPRX3PnL       float64 `json:"eprx3_pnl"`
	TotalPnL       float64 `json:"total_pnl"`
}

// TariffEntry is one (area, voltage) wheeling profile.
type TariffEntry struct {
	Area               string  `json:"area"`
	Voltage            string  `json:"voltage"`
	WheelingLossRate   float64 `json:"wheeling_loss_rate"`
	WheelingBaseCharge float64 `json:"wheeling_base_charge"`
	WheelingUsageFee   float64 `json:"wheeling_usage_fee"`
	SurchargeRate      float64 `json:"surcharge_rate"`
}

// RunInfo is one stored run's metadata.
type RunInfo struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Area        string    `json:"area"`
	Voltage     string    `json:"voltage"`
	PowerKW     float64   `json:"power_kw"`
	CapacityKWh float64   `json:"capacity_kwh"`
	Windows     int       `json:"windows"`
	Skipped     int       `json:"skipped"`
	FinalSoCKWh float64   `json:"final_soc_kwh"`
	CyclesUsed  float64   `json:"cycles_used"`
	TotalPnL    float64   `json:"total_pnl"`
	NetProfit   float64   `json:"net_profit"`
}

// SweepResponse ranks the evaluated candidates, best first.
type SweepResponse struct {
	Rankings []SweepRanking `json:"rankings"`
}

type SweepRanking struct {
	Rank        int             `json:"rank"`
	Name        string          `json:"name"`
	PowerKW     float64         `json:"power_kw"`
	CapacityKWh float64         `json:"capacity_kwh"`
	CyclesUsed  float64         `json:"cycles_used"`
	Summary     *SummaryPayload `json:"summary,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Converters

func NewValidationReport(rep input.Report) ValidationReport {
	return ValidationReport{
		TotalRows:         rep.TotalRows,
		ValidRows:         rep.ValidRows,
		DroppedInvalid:    rep.DroppedInvalid,
		DroppedOutOfRange: rep.DroppedOutOfRange,
		DroppedDuplicate:  rep.DroppedDuplicate,
		BackfilledColumns: rep.BackfilledColumns,
	}
}

func NewSummaryPayload(s summary.Summary) SummaryPayload {
	counts := make(map[string]int, len(s.ActionCounts))
	for a, n := range s.ActionCounts {
		counts[string(a)] = n
	}
	return SummaryPayload{
		JEPXPnL:            s.JEPXPnL,
		EPRX1PnL:           s.EPRX1PnL,
		EPRX3PnL:           s.EPRX3PnL,
		TotalPnL:           s.TotalPnL,
		ChargedKWh:         s.ChargedKWh,
		DischargedKWh:      s.DischargedKWh,
		EPRX3KWh:           s.EPRX3KWh,
		BatteryLossKWh:     s.BatteryLossKWh,
		WheelingBaseFee:    s.WheelingBaseFee,
		WheelingUsageFee:   s.WheelingUsageFee,
		RenewableSurcharge: s.RenewableSurcharge,
		NetProfit:          s.NetProfit,
		ActionCounts:       counts,
		AvgChargePrice:     s.AvgChargePrice,
		AvgDischargePrice:  s.AvgDischargePrice,
		AvgEPRX1Price:      s.AvgEPRX1Price,
		AvgEPRX3Price:      s.AvgEPRX3Price,
	}
}

func NewMonthlyPayloads(months []summary.MonthSummary) []MonthlyPayload {
	out := make([]MonthlyPayload, len(months))
	for i, m := range months {
		out[i] = MonthlyPayload{Month: m.Month, SummaryPayload: NewSummaryPayload(m.Summary)}
	}
	return out
}

func NewScheduleRows(decisions []model.SlotDecision) []ScheduleRow {
	out := make([]ScheduleRow, len(decisions))
	for i, d := range decisions {
		out[i] = ScheduleRow{
			Date:           d.Date.Format("2006-01-02"),
			Slot:           d.Slot,
			Action:         string(d.Action),
			ChargeKWh:      d.ChargeKWh,
			DischargeKWh:   d.DischargeKWh,
			EPRX3KWh:       d.EPRX3KWh,
			LossKWh:        d.LossKWh,
			SoCKWh:         d.SoCKWh,
			EPRX3Activated: d.EPRX3Activated,
			JEPXActual:     d.JEPXActual,
			EPRX1Actual:    d.EPRX1Actual,
			EPRX3Actual:    d.EPRX3Actual,
			Imbalance:      d.Imbalance,
			JEPXPnL:        d.JEPXPnL,
			EPRX1PnL:       d.EPRX1PnL,
			EPRX3PnL:       d.EPRX3PnL,
			TotalPnL:       d.TotalPnL,
		}
	}
	return out
}
