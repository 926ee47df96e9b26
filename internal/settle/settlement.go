// Package settle prices a solved dispatch plan at actual market prices and
// tracks the realized state of charge. The plan was optimized against
// forecasts; settlement is where forecast error, the consumption tax, and the
// stochastic EPRX3 activation show up.
package settle

import (
	"math"
	"math/rand"

	"bess-dispatch/internal/dispatch"
	"bess-dispatch/internal/model"
	"bess-dispatch/internal/tariff"
)

// Calculator settles plans for one run. Rand drives the EPRX3 activation
// draw and exists so tests and reproducible runs can inject their own source;
// nil falls back to the shared math/rand source.
type Calculator struct {
	Battery model.BatteryParams
	Tariff  tariff.Profile
	Options model.MarketOptions
	Rand    func() float64
}

// Settle converts one window's plan into settled decisions, starting from the
// realized openingSoC, and returns the realized closing SoC.
//
// The realized trajectory can drift from the solver's: a non-activated EPRX3
// slot keeps its energy, so later flows are clamped to physical bounds rather
// than trusted blindly.
func (c *Calculator) Settle(plan []dispatch.SlotPlan, openingSoC float64) ([]model.SlotDecision, float64) {
	halfPower := c.Battery.HalfPowerKWh()
	soc := openingSoC

	out := make([]model.SlotDecision, 0, len(plan))
	for _, p := range plan {
		d := model.SlotDecision{
			Date:        p.Slot.Date,
			Slot:        p.Slot.Slot,
			Action:      p.Action,
			JEPXActual:  model.PriceOrZero(p.Slot.JEPXActual),
			EPRX1Actual: model.PriceOrZero(p.Slot.EPRX1Actual),
			EPRX3Actual: model.PriceOrZero(p.Slot.EPRX3Actual),
			Imbalance:   model.PriceOrZero(p.Slot.Imbalance),
		}

		switch p.Action {
		case model.ActionCharge:
			stored := math.Min(p.ChargeFrac*halfPower, c.Battery.CapacityKWh-soc)
			if stored < 0 {
				stored = 0
			}
			// Wheeling loss is paid for on the grid side of the meter;
			// it is not a battery loss, so the slot records none.
			procured := stored / (1 - c.Tariff.WheelingLossRate)
			d.ChargeKWh = stored
			d.JEPXPnL = -math.Round(d.JEPXActual * model.Tax * procured)
			soc += stored

		case model.ActionDischarge:
			gross := math.Min(p.DischargeFrac*halfPower, soc)
			effective := gross * (1 - c.Battery.LossRate)
			d.DischargeKWh = effective
			d.LossKWh = gross - effective
			d.JEPXPnL = math.Round(d.JEPXActual * model.Tax * effective)
			soc -= gross

		case model.ActionEPRX1:
			// Capacity payment on rated power; no energy moves.
			d.EPRX1PnL = math.Round(d.EPRX1Actual * model.Tax * c.Battery.PowerKW)

		case model.ActionEPRX3:
			kw := c.Battery.PowerKW * d.EPRX3Actual
			kwh := 0.0
			if c.activated() {
				d.EPRX3Activated = true
				gross := math.Min(halfPower, soc)
				effective := gross * (1 - c.Battery.LossRate)
				d.EPRX3KWh = effective
				d.LossKWh = gross - effective
				kwh = effective * d.Imbalance * (c.Options.V1PriceRatio / 100)
				soc -= gross
			}
			d.EPRX3PnL = math.Round(model.Tax * (kw + kwh))
		}

		d.SoCKWh = soc
		d.TotalPnL = d.JEPXPnL + d.EPRX1PnL + d.EPRX3PnL
		out = append(out, d)
	}
	return out, soc
}

func (c *Calculator) activated() bool {
	draw := c.Rand
	if draw == nil {
		draw = rand.Float64
	}
	return draw()*100 <= c.Options.EPRX3ActivationRate
}
