package model

// BatteryParams defines the physical and operational parameters of the
// battery for one optimization run.
// Units:
// - PowerKW: rated charge/discharge power, kW
// - CapacityKWh: usable energy capacity, kWh
// - LossRate: round-trip loss fraction 0..1, applied on discharge
// - cycle limits are cycles (full capacity equivalents); 0 = unlimited
// - EPRX1 block parameters are in slots
type BatteryParams struct {
	PowerKW     float64
	CapacityKWh float64
	LossRate    float64

	DailyCycleLimit  float64
	YearlyCycleLimit float64

	EPRX1BlockSize     int
	EPRX1BlockCooldown int
	MaxDailyEPRX1Slots int // 0 = unlimited
}

// HalfPowerKWh is the energy moved by running at rated power for one slot.
func (p BatteryParams) HalfPowerKWh() float64 {
	return p.PowerKW * 0.5
}

func (p BatteryParams) Validate() error {
	if p.PowerKW <= 0 {
		return NewConfigurationError("PowerKW must be > 0")
	}
	if p.CapacityKWh <= 0 {
		return NewConfigurationError("CapacityKWh must be > 0")
	}
	if p.LossRate < 0 || p.LossRate >= 1 {
		return NewConfigurationError("LossRate must be in [0, 1)")
	}
	if p.DailyCycleLimit < 0 || p.YearlyCycleLimit < 0 {
		return NewConfigurationError("cycle limits must be >= 0")
	}
	if p.EPRX1BlockSize < 0 || p.EPRX1BlockCooldown < 0 || p.MaxDailyEPRX1Slots < 0 {
		return NewConfigurationError("EPRX1 block parameters must be >= 0")
	}
	return nil
}

// MarketOptions selects the optimizer variant. The historical implementations
// differed only in these switches, so they are flags rather than code paths.
type MarketOptions struct {
	// EnableEPRX1 includes the EPRX1 block variables and constraints.
	EnableEPRX1 bool

	// EPRX3ActivationRate is the percent chance (0..100) that an awarded
	// EPRX3 slot is actually activated. It weights the kWh term of the
	// objective and drives the stochastic settlement draw. 100 = always.
	EPRX3ActivationRate float64

	// V1PriceRatio scales the imbalance price used for the EPRX3 kWh
	// component, in percent (0..200). 100 = use the imbalance price as-is.
	V1PriceRatio float64
}

func DefaultMarketOptions() MarketOptions {
	return MarketOptions{
		EnableEPRX1:         true,
		EPRX3ActivationRate: 100,
		V1PriceRatio:        100,
	}
}

func (o MarketOptions) Validate() error {
	if o.EPRX3ActivationRate < 0 || o.EPRX3ActivationRate > 100 {
		return NewConfigurationError("EPRX3ActivationRate must be in [0, 100]")
	}
	if o.V1PriceRatio < 0 || o.V1PriceRatio > 200 {
		return NewConfigurationError("V1PriceRatio must be in [0, 200]")
	}
	return nil
}
