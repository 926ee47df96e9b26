package handlers

import (
	"bess-dispatch/internal/api/models"
	"bess-dispatch/internal/config"
)

// applyRunConfig overlays the request's run configuration onto the server's
// base config. Zero-valued fields keep the base value; pointer fields carry
// explicit zeros through. The result is validated.
func applyRunConfig(base config.Config, rc models.RunConfig) (*config.Config, error) {
	c := base
	applyBattery(&c.Battery, rc.Battery)

	if rc.Market.EnableEPRX1 != nil {
		c.Market.EnableEPRX1 = *rc.Market.EnableEPRX1
	}
	if rc.Market.EPRX3ActivationRate != nil {
		c.Market.EPRX3ActivationRate = *rc.Market.EPRX3ActivationRate
	}
	if rc.Market.V1PriceRatio != nil {
		c.Market.V1PriceRatio = *rc.Market.V1PriceRatio
	}

	if rc.Area != "" {
		c.Area = rc.Area
	}
	if rc.Voltage != "" {
		c.Voltage = rc.Voltage
	}
	if rc.ForecastPeriod != 0 {
		c.ForecastPeriod = rc.ForecastPeriod
	}
	if rc.InitialSoCKWh != nil {
		c.InitialSoCKWh = *rc.InitialSoCKWh
	}
	if rc.SolverPolicy != "" {
		c.SolverPolicy = rc.SolverPolicy
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func applyBattery(b *config.BatteryConfig, rb models.BatteryConfig) {
	if rb.PowerKW != 0 {
		b.PowerKW = rb.PowerKW
	}
	if rb.CapacityKWh != 0 {
		b.CapacityKWh = rb.CapacityKWh
	}
	if rb.LossRate != nil {
		b.LossRate = *rb.LossRate
	}
	if rb.DailyCycleLimit != nil {
		b.DailyCycleLimit = *rb.DailyCycleLimit
	}
	if rb.YearlyCycleLimit != nil {
		b.YearlyCycleLimit = *rb.YearlyCycleLimit
	}
	if rb.EPRX1BlockSize != 0 {
		b.EPRX1BlockSize = rb.EPRX1BlockSize
	}
	if rb.EPRX1BlockCooldown != nil {
		b.EPRX1BlockCooldown = *rb.EPRX1BlockCooldown
	}
	if rb.MaxDailyEPRX1Slots != nil {
		b.MaxDailyEPRX1Slots = *rb.MaxDailyEPRX1Slots
	}
}
