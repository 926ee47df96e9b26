package models

import "strconv"

// PriceRow is one half-hour row of the posted price series. Prices are
// pointers so an absent market price survives JSON as null instead of zero.
type PriceRow struct {
	Date            string   `json:"date" binding:"required"`
	Slot            int      `json:"slot" binding:"required"`
	JEPXPrediction  *float64 `json:"JEPX_prediction"`
	JEPXActual      *float64 `json:"JEPX_actual"`
	EPRX1Prediction *float64 `json:"EPRX1_prediction"`
	EPRX1Actual     *float64 `json:"EPRX1_actual"`
	EPRX3Prediction *float64 `json:"EPRX3_prediction"`
	EPRX3Actual     *float64 `json:"EPRX3_actual"`
	Imbalance       *float64 `json:"imbalance"`
}

// ToRaw converts the row to the header-keyed form the validator consumes,
// matching what a CSV upload of the same series would produce.
func (r PriceRow) ToRaw() map[string]string {
	out := map[string]string{
		"date": r.Date,
		"slot": strconv.Itoa(r.Slot),
	}
	put := func(col string, v *float64) {
		if v != nil {
			out[col] = strconv.FormatFloat(*v, 'f', -1, 64)
		}
	}
	put("JEPX_prediction", r.JEPXPrediction)
	put("JEPX_actual", r.JEPXActual)
	put("EPRX1_prediction", r.EPRX1Prediction)
	put("EPRX1_actual", r.EPRX1Actual)
	put("EPRX3_prediction", r.EPRX3Prediction)
	put("EPRX3_actual", r.EPRX3Actual)
	put("imbalance", r.Imbalance)
	return out
}

// RawRows converts a whole request series.
func RawRows(rows []PriceRow) []map[string]string {
	out := make([]map[string]string, len(rows))
	for i, r := range rows {
		out[i] = r.ToRaw()
	}
	return out
}

// RunConfig overlays the server's default configuration. Zero-valued fields
// keep the default; pointer fields distinguish "absent" from a real zero.
type RunConfig struct {
	Battery BatteryConfig `json:"battery"`
	Market  MarketConfig  `json:"market"`

	Area    string `json:"area"`
	Voltage string `json:"voltage"`

	ForecastPeriod int      `json:"forecast_period"`
	InitialSoCKWh  *float64 `json:"initial_soc_kwh"`
	SolverPolicy   string   `json:"solver_policy"`

	// Seed makes the EPRX3 activation draw reproducible.
	Seed *int64 `json:"seed"`
}

type BatteryConfig struct {
	PowerKW            float64  `json:"power_kw"`
	CapacityKWh        float64  `json:"capacity_kwh"`
	LossRate           *float64 `json:"loss_rate"`
	DailyCycleLimit    *float64 `json:"daily_cycle_limit"`
	YearlyCycleLimit   *float64 `json:"yearly_cycle_limit"`
	EPRX1BlockSize     int      `json:"eprx1_block_size"`
	EPRX1BlockCooldown *int     `json:"eprx1_block_cooldown"`
	MaxDailyEPRX1Slots *int     `json:"max_daily_eprx1_slots"`
}

type MarketConfig struct {
	EnableEPRX1         *bool    `json:"enable_eprx1"`
	EPRX3ActivationRate *float64 `json:"eprx3_activation_rate"`
	V1PriceRatio        *float64 `json:"v1_price_ratio"`
}

// OptimizeRequest is the body of POST /api/v1/optimize.
type OptimizeRequest struct {
	Rows            []PriceRow `json:"rows" binding:"required"`
	Config          RunConfig  `json:"config"`
	IncludeSchedule bool       `json:"include_schedule"`
}

// SweepRequest is the body of POST /api/v1/sweep. Candidates overlay the
// base battery configuration one at a time.
type SweepRequest struct {
	Rows       []PriceRow       `json:"rows" binding:"required"`
	Config     RunConfig        `json:"config"`
	Candidates []SweepCandidate `json:"candidates" binding:"required"`
}

type SweepCandidate struct {
	Name    string        `json:"name" binding:"required"`
	Battery BatteryConfig `json:"battery"`
}
