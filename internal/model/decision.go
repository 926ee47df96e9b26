package model

import "time"

// SlotDecision is the settled outcome for one slot: the action the optimizer
// chose, the realized energy flows, the state of charge after the slot, and
// the per-market profit and loss at actual (settled) prices.
//
// Exactly one of ChargeKWh, DischargeKWh, EPRX3KWh is nonzero, matching
// Action. Energy fields are post-loss effective kWh except ChargeKWh, which
// is the energy stored. PnL fields are whole currency units.
type SlotDecision struct {
	Date time.Time
	Slot int

	Action Action

	ChargeKWh    float64
	DischargeKWh float64
	EPRX3KWh     float64
	LossKWh      float64
	SoCKWh       float64 // state of charge at end of slot

	// EPRX3Activated records the settlement draw for an eprx3 slot. A
	// non-activated slot earns only the kW component and moves no energy.
	EPRX3Activated bool

	// Actual prices echoed through for display and averaging.
	JEPXActual  float64
	EPRX1Actual float64
	EPRX3Actual float64
	Imbalance   float64

	JEPXPnL  float64
	EPRX1PnL float64
	EPRX3PnL float64
	TotalPnL float64
}

// Month returns the decision's calendar month as "YYYY-MM".
func (d SlotDecision) Month() string {
	return d.Date.Format("2006-01")
}
