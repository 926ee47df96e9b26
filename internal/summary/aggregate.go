// Package summary rolls a settled schedule up into totals and monthly
// reports: per-market PnL, energy flows, wheeling fees, the renewable-energy
// surcharge, and net profit after fees.
package summary

import (
	"sort"

	"bess-dispatch/internal/model"
	"bess-dispatch/internal/tariff"
)

// Summary is one rollup, either full-horizon or one month.
//
// Fee conventions: the wheeling base fee is billed per month on contracted
// power, so the full-horizon figure is the monthly charge times the number of
// months touched by the schedule. Usage fee and surcharge are billed on
// battery-internal loss, i.e. the discharge and EPRX3 conversion loss;
// wheeling loss on procurement is already priced into the charge PnL.
type Summary struct {
	JEPXPnL  float64
	EPRX1PnL float64
	EPRX3PnL float64
	TotalPnL float64

	ChargedKWh     float64
	DischargedKWh  float64
	EPRX3KWh       float64
	BatteryLossKWh float64

	WheelingBaseFee    float64
	WheelingUsageFee   float64
	RenewableSurcharge float64
	NetProfit          float64

	ActionCounts map[model.Action]int

	// Average realized prices, nil when the action never occurred.
	// Charge and discharge are yen per kWh of settled energy; EPRX1 and
	// EPRX3 are the mean settled market price over their slots.
	AvgChargePrice    *float64
	AvgDischargePrice *float64
	AvgEPRX1Price     *float64
	AvgEPRX3Price     *float64
}

// MonthSummary is the per-month rollup, keyed "YYYY-MM".
type MonthSummary struct {
	Month string
	Summary
}

// Summarize aggregates the whole schedule.
func Summarize(decisions []model.SlotDecision, batt model.BatteryParams, prof tariff.Profile) Summary {
	s := accumulate(decisions)
	months := map[string]bool{}
	for _, d := range decisions {
		months[d.Month()] = true
	}
	applyFees(&s, batt, prof, len(months))
	return s
}

// SummarizeByMonth aggregates per calendar month, sorted ascending. The base
// fee lands once in every month, so the monthly NetProfit values sum to the
// full-horizon figure.
func SummarizeByMonth(decisions []model.SlotDecision, batt model.BatteryParams, prof tariff.Profile) []MonthSummary {
	byMonth := map[string][]model.SlotDecision{}
	for _, d := range decisions {
		m := d.Month()
		byMonth[m] = append(byMonth[m], d)
	}

	out := make([]MonthSummary, 0, len(byMonth))
	for m, decs := range byMonth {
		s := accumulate(decs)
		applyFees(&s, batt, prof, 1)
		out = append(out, MonthSummary{Month: m, Summary: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

func accumulate(decisions []model.SlotDecision) Summary {
	s := Summary{ActionCounts: map[model.Action]int{}}

	var chargePnL, dischargePnL, eprx1PriceSum, eprx3PriceSum float64
	for _, d := range decisions {
		s.JEPXPnL += d.JEPXPnL
		s.EPRX1PnL += d.EPRX1PnL
		s.EPRX3PnL += d.EPRX3PnL
		s.TotalPnL += d.TotalPnL
		s.ActionCounts[d.Action]++

		switch d.Action {
		case model.ActionCharge:
			s.ChargedKWh += d.ChargeKWh
			chargePnL += d.JEPXPnL
		case model.ActionDischarge:
			s.DischargedKWh += d.DischargeKWh
			s.BatteryLossKWh += d.LossKWh
			dischargePnL += d.JEPXPnL
		case model.ActionEPRX1:
			eprx1PriceSum += d.EPRX1Actual
		case model.ActionEPRX3:
			s.EPRX3KWh += d.EPRX3KWh
			s.BatteryLossKWh += d.LossKWh
			eprx3PriceSum += d.EPRX3Actual
		}
	}

	if s.ChargedKWh > 0 {
		// Charge PnL is negative spend; the average is reported as a
		// positive cost in yen per kWh.
		s.AvgChargePrice = ptr(-chargePnL / s.ChargedKWh)
	}
	if s.DischargedKWh > 0 {
		s.AvgDischargePrice = ptr(dischargePnL / s.DischargedKWh)
	}
	if n := s.ActionCounts[model.ActionEPRX1]; n > 0 {
		s.AvgEPRX1Price = ptr(eprx1PriceSum / float64(n))
	}
	if n := s.ActionCounts[model.ActionEPRX3]; n > 0 {
		s.AvgEPRX3Price = ptr(eprx3PriceSum / float64(n))
	}
	return s
}

func applyFees(s *Summary, batt model.BatteryParams, prof tariff.Profile, months int) {
	s.WheelingBaseFee = prof.WheelingBaseCharge * batt.PowerKW * float64(months)
	s.WheelingUsageFee = prof.WheelingUsageFee * s.BatteryLossKWh
	s.RenewableSurcharge = prof.SurchargeRate * s.BatteryLossKWh
	s.NetProfit = s.TotalPnL - s.WheelingBaseFee - s.WheelingUsageFee - s.RenewableSurcharge
}

func ptr(v float64) *float64 { return &v }
