// Package tariff carries the static wheeling-fee reference data for the nine
// Japanese service areas, per voltage class, plus the renewable-energy
// surcharge rate. Values are published constants, not derived.
package tariff

import (
	"sort"

	"bess-dispatch/internal/model"
)

// Voltage class codes.
const (
	VoltageSHV = "SHV" // 特別高圧
	VoltageHV  = "HV"  // 高圧
	VoltageLV  = "LV"  // 低圧
)

// RenewableSurchargeRate is the flat renewable-energy surcharge, yen/kWh.
const RenewableSurchargeRate = 3.49

// Profile is the regional economics for one (area, voltage class) pair.
// Immutable reference data; pass it by value into whatever needs it.
type Profile struct {
	Area    string
	Voltage string

	// WheelingLossRate is the grid loss fraction applied to procurement
	// while charging.
	WheelingLossRate float64

	// WheelingBaseCharge is yen per kW of contracted power, billed monthly.
	WheelingBaseCharge float64

	// WheelingUsageFee is yen per kWh of net loss, billed monthly.
	WheelingUsageFee float64

	// SurchargeRate is the renewable-energy surcharge, yen/kWh of loss.
	SurchargeRate float64
}

type rates struct {
	loss, base, usage float64
}

var wheelingTable = map[string]map[string]rates{
	"Hokkaido": {
		VoltageSHV: {0.02, 503.80, 0.92},
		VoltageHV:  {0.047, 792.00, 2.17},
		VoltageLV:  {0.079, 618.20, 4.22},
	},
	"Tohoku": {
		VoltageSHV: {0.019, 630.30, 8.57},
		VoltageHV:  {0.052, 706.20, 2.08},
		VoltageLV:  {0.085, 456.50, 2.08},
	},
	"Tokyo": {
		VoltageSHV: {0.013, 423.39, 1.33},
		VoltageHV:  {0.037, 653.87, 2.37},
		VoltageLV:  {0.069, 461.14, 5.20},
	},
	"Chubu": {
		VoltageSHV: {0.025, 357.50, 0.88},
		VoltageHV:  {0.038, 467.50, 2.21},
		VoltageLV:  {0.071, 412.50, 6.07},
	},
	"Hokuriku": {
		VoltageSHV: {0.013, 572.00, 0.85},
		VoltageHV:  {0.034, 748.00, 1.76},
		VoltageLV:  {0.078, 396.00, 4.69},
	},
	"Kansai": {
		VoltageSHV: {0.029, 440.00, 0.84},
		VoltageHV:  {0.078, 663.30, 2.29},
		VoltageLV:  {0.078, 378.40, 4.69},
	},
	"Chugoku": {
		VoltageSHV: {0.025, 383.90, 0.70},
		VoltageHV:  {0.044, 658.90, 2.43},
		VoltageLV:  {0.077, 466.40, 6.07},
	},
	"Shikoku": {
		VoltageSHV: {0.013, 510.40, 0.77},
		VoltageHV:  {0.041, 712.80, 2.01},
		VoltageLV:  {0.081, 454.30, 5.97},
	},
	"Kyushu": {
		VoltageSHV: {0.013, 482.05, 1.27},
		VoltageHV:  {0.032, 553.28, 2.61},
		VoltageLV:  {0.086, 379.26, 5.58},
	},
}

// Lookup returns the tariff profile for the given area name and voltage
// class code. Unknown pairs fail with a ConfigurationError.
func Lookup(area, voltage string) (Profile, error) {
	byVoltage, ok := wheelingTable[area]
	if !ok {
		return Profile{}, model.NewConfigurationError("unknown area %q", area)
	}
	r, ok := byVoltage[voltage]
	if !ok {
		return Profile{}, model.NewConfigurationError("unknown voltage class %q for area %q", voltage, area)
	}
	return Profile{
		Area:               area,
		Voltage:            voltage,
		WheelingLossRate:   r.loss,
		WheelingBaseCharge: r.base,
		WheelingUsageFee:   r.usage,
		SurchargeRate:      RenewableSurchargeRate,
	}, nil
}

// Areas returns all known area names, sorted.
func Areas() []string {
	out := make([]string, 0, len(wheelingTable))
	for a := range wheelingTable {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Voltages returns the voltage class codes in display order.
func Voltages() []string {
	return []string{VoltageSHV, VoltageHV, VoltageLV}
}
