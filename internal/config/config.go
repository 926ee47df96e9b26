// Package config is the on-disk YAML configuration: battery parameters,
// market options, region, run options, and server options.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"bess-dispatch/internal/model"
	"bess-dispatch/internal/schedule"
	"bess-dispatch/internal/tariff"
)

// Config is the YAML shape. Load starts from Default and overlays the file,
// so omitted fields keep their defaults while explicit zeros are respected.
type Config struct {
	Battery BatteryConfig `yaml:"battery"`
	Market  MarketConfig  `yaml:"market"`

	Area    string `yaml:"area"`
	Voltage string `yaml:"voltage"`

	// ForecastPeriod is the optimization window length in slots.
	ForecastPeriod int `yaml:"forecast_period"`

	// InitialSoCKWh is the opening state of charge. Negative means
	// "half of capacity", the usual neutral starting point.
	InitialSoCKWh float64 `yaml:"initial_soc_kwh"`

	// SolverPolicy is "abort" or "skip" for non-optimal windows.
	SolverPolicy string `yaml:"solver_policy"`

	Server ServerConfig `yaml:"server"`
}

type BatteryConfig struct {
	PowerKW            float64 `yaml:"power_kw"`
	CapacityKWh        float64 `yaml:"capacity_kwh"`
	LossRate           float64 `yaml:"loss_rate"`
	DailyCycleLimit    float64 `yaml:"daily_cycle_limit"`
	YearlyCycleLimit   float64 `yaml:"yearly_cycle_limit"`
	EPRX1BlockSize     int     `yaml:"eprx1_block_size"`
	EPRX1BlockCooldown int     `yaml:"eprx1_block_cooldown"`
	MaxDailyEPRX1Slots int     `yaml:"max_daily_eprx1_slots"`
}

type MarketConfig struct {
	EnableEPRX1         bool    `yaml:"enable_eprx1"`
	EPRX3ActivationRate float64 `yaml:"eprx3_activation_rate"`
	V1PriceRatio        float64 `yaml:"v1_price_ratio"`
}

type ServerConfig struct {
	Port   string `yaml:"port"`
	DBPath string `yaml:"db_path"`
}

// Default is the standard 1 MW / 4 MWh Tokyo HV setup.
func Default() Config {
	return Config{
		Battery: BatteryConfig{
			PowerKW:            1000,
			CapacityKWh:        4000,
			LossRate:           0.05,
			DailyCycleLimit:    1,
			YearlyCycleLimit:   365,
			EPRX1BlockSize:     3,
			EPRX1BlockCooldown: 2,
			MaxDailyEPRX1Slots: 6,
		},
		Market: MarketConfig{
			EnableEPRX1:         true,
			EPRX3ActivationRate: 100,
			V1PriceRatio:        100,
		},
		Area:           "Tokyo",
		Voltage:        tariff.VoltageHV,
		ForecastPeriod: model.SlotsPerDay,
		InitialSoCKWh:  -1,
		SolverPolicy:   "abort",
		Server: ServerConfig{
			Port:   "8080",
			DBPath: "dispatch.db",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if err := c.BatteryParams().Validate(); err != nil {
		return err
	}
	if err := c.MarketOptions().Validate(); err != nil {
		return err
	}
	if _, err := tariff.Lookup(c.Area, c.Voltage); err != nil {
		return err
	}
	if _, err := schedule.ParsePolicy(c.SolverPolicy); err != nil {
		return err
	}
	if c.ForecastPeriod <= 0 {
		return model.NewConfigurationError("forecast_period must be > 0")
	}
	if c.InitialSoCKWh > c.Battery.CapacityKWh {
		return model.NewConfigurationError(
			"initial_soc_kwh %.0f exceeds capacity %.0f", c.InitialSoCKWh, c.Battery.CapacityKWh)
	}
	return nil
}

func (c *Config) BatteryParams() model.BatteryParams {
	return model.BatteryParams{
		PowerKW:            c.Battery.PowerKW,
		CapacityKWh:        c.Battery.CapacityKWh,
		LossRate:           c.Battery.LossRate,
		DailyCycleLimit:    c.Battery.DailyCycleLimit,
		YearlyCycleLimit:   c.Battery.YearlyCycleLimit,
		EPRX1BlockSize:     c.Battery.EPRX1BlockSize,
		EPRX1BlockCooldown: c.Battery.EPRX1BlockCooldown,
		MaxDailyEPRX1Slots: c.Battery.MaxDailyEPRX1Slots,
	}
}

func (c *Config) MarketOptions() model.MarketOptions {
	return model.MarketOptions{
		EnableEPRX1:         c.Market.EnableEPRX1,
		EPRX3ActivationRate: c.Market.EPRX3ActivationRate,
		V1PriceRatio:        c.Market.V1PriceRatio,
	}
}

// Profile resolves the configured region. Call after Validate.
func (c *Config) Profile() (tariff.Profile, error) {
	return tariff.Lookup(c.Area, c.Voltage)
}

// Policy resolves the configured solver policy. Call after Validate.
func (c *Config) Policy() (schedule.Policy, error) {
	return schedule.ParsePolicy(c.SolverPolicy)
}

// InitialSoC resolves the opening state of charge; the negative default
// means half of capacity.
func (c *Config) InitialSoC() float64 {
	if c.InitialSoCKWh < 0 {
		return c.Battery.CapacityKWh / 2
	}
	return c.InitialSoCKWh
}
