// Package config loads the pipeline's runtime tuning from a YAML file.
// Missing file or missing keys fall back to defaults, so a bare binary runs
// with sensible lagoon economics.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration for one pipeline invocation.
type Config struct {
	Fees         FeeConfig          `yaml:"fees"`
	Carry        CarryConfig        `yaml:"carry"`
	Storage      StorageConfig      `yaml:"storage"`
	Liquidation  LiquidationConfig  `yaml:"liquidation"`
	Fishing      FishingConfig      `yaml:"fishing"`
	Construction ConstructionConfig `yaml:"construction"`
	Vessels      VesselConfig       `yaml:"vessels"`
	Docks        DockConfig         `yaml:"docks"`
	Recipes      []Recipe           `yaml:"recipes"`
}

// FeeConfig tunes the gondola toll.
type FeeConfig struct {
	GondolaBase       float64 `yaml:"gondola_base"`
	GondolaPerKm      float64 `yaml:"gondola_per_km"`
	FallbackRecipient string  `yaml:"fallback_recipient"`
}

// CarryConfig sets how much a citizen may carry when their record does not
// say otherwise.
type CarryConfig struct {
	DefaultCapacity int64 `yaml:"default_capacity"`
}

// StorageConfig maps building types to storage capacity. A building row
// with an explicit capacity wins over the catalog.
type StorageConfig struct {
	DefaultCapacity int64            `yaml:"default_capacity"`
	Capacities      map[string]int64 `yaml:"capacities"`
}

// LiquidationConfig prices the holdings of a departing citizen.
type LiquidationConfig struct {
	PricePerUnit float64 `yaml:"price_per_unit"`
	Counterpart  string  `yaml:"counterpart"`
}

// FishingConfig names the catch resource and the haul per trip.
type FishingConfig struct {
	Resource string `yaml:"resource"`
	Amount   int64  `yaml:"amount"`
}

// ConstructionConfig sets material consumption: one unit of any accepted
// material per MinutesPerUnit of work.
type ConstructionConfig struct {
	MinutesPerUnit int64    `yaml:"minutes_per_unit"`
	Materials      []string `yaml:"materials"`
}

// VesselConfig lists building types promoted by the arrival scanner.
type VesselConfig struct {
	Types []string `yaml:"types"`
}

// DockConfig lists building types whose operator collects gondola fees
// when no transporter is named on the activity.
type DockConfig struct {
	Types []string `yaml:"types"`
}

// Recipe is one production transformation, keyed by workshop building type.
type Recipe struct {
	Building string           `yaml:"building"`
	Inputs   map[string]int64 `yaml:"inputs"`
	Outputs  map[string]int64 `yaml:"outputs"`
}

// Load reads a config file. An empty path yields pure defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Fees: FeeConfig{
			GondolaBase:       10,
			GondolaPerKm:      5,
			FallbackRecipient: "ConsiglioDeiDieci",
		},
		Carry:   CarryConfig{DefaultCapacity: 10},
		Storage: StorageConfig{DefaultCapacity: 100},
		Liquidation: LiquidationConfig{
			PricePerUnit: 5,
			Counterpart:  "ConsiglioDeiDieci",
		},
		Fishing: FishingConfig{Resource: "fish", Amount: 1},
		Construction: ConstructionConfig{
			MinutesPerUnit: 4,
			Materials:      []string{"timber", "stone", "bricks"},
		},
		Vessels: VesselConfig{Types: []string{"merchant_galley"}},
		Docks:   DockConfig{Types: []string{"public_dock", "private_dock"}},
	}
}

func (c *Config) normalize() {
	d := defaults()
	if c.Fees.FallbackRecipient == "" {
		c.Fees.FallbackRecipient = d.Fees.FallbackRecipient
	}
	if c.Carry.DefaultCapacity == 0 {
		c.Carry.DefaultCapacity = d.Carry.DefaultCapacity
	}
	if c.Storage.DefaultCapacity == 0 {
		c.Storage.DefaultCapacity = d.Storage.DefaultCapacity
	}
	if c.Liquidation.Counterpart == "" {
		c.Liquidation.Counterpart = d.Liquidation.Counterpart
	}
	if c.Fishing.Resource == "" {
		c.Fishing.Resource = d.Fishing.Resource
	}
	if c.Fishing.Amount == 0 {
		c.Fishing.Amount = d.Fishing.Amount
	}
	if c.Construction.MinutesPerUnit == 0 {
		c.Construction.MinutesPerUnit = d.Construction.MinutesPerUnit
	}
	if len(c.Construction.Materials) == 0 {
		c.Construction.Materials = d.Construction.Materials
	}
	if len(c.Vessels.Types) == 0 {
		c.Vessels.Types = d.Vessels.Types
	}
	if len(c.Docks.Types) == 0 {
		c.Docks.Types = d.Docks.Types
	}
}

// Validate rejects configs that would make the pipeline misbehave quietly.
func (c *Config) Validate() error {
	if c.Fees.GondolaBase < 0 || c.Fees.GondolaPerKm < 0 {
		return fmt.Errorf("negative gondola fee rates")
	}
	if c.Carry.DefaultCapacity <= 0 {
		return fmt.Errorf("carry default_capacity must be positive")
	}
	if c.Storage.DefaultCapacity <= 0 {
		return fmt.Errorf("storage default_capacity must be positive")
	}
	if c.Construction.MinutesPerUnit <= 0 {
		return fmt.Errorf("construction minutes_per_unit must be positive")
	}
	seen := make(map[string]bool, len(c.Recipes))
	for _, r := range c.Recipes {
		if r.Building == "" {
			return fmt.Errorf("recipe with empty building type")
		}
		if seen[r.Building] {
			return fmt.Errorf("duplicate recipe for building type %q", r.Building)
		}
		seen[r.Building] = true
		if len(r.Outputs) == 0 {
			return fmt.Errorf("recipe for %q has no outputs", r.Building)
		}
	}
	return nil
}

// StorageCapacityFor resolves the capacity for a building type, preferring
// an explicit per-record capacity.
func (c *Config) StorageCapacityFor(buildingType string, recordCapacity int64) int64 {
	if recordCapacity > 0 {
		return recordCapacity
	}
	if cap, ok := c.Storage.Capacities[buildingType]; ok {
		return cap
	}
	return c.Storage.DefaultCapacity
}

// CarryCapacityFor resolves a citizen's carry capacity.
func (c *Config) CarryCapacityFor(recordCapacity int64) int64 {
	if recordCapacity > 0 {
		return recordCapacity
	}
	return c.Carry.DefaultCapacity
}

// RecipeFor returns the production recipe for a workshop type.
func (c *Config) RecipeFor(buildingType string) (Recipe, bool) {
	for _, r := range c.Recipes {
		if r.Building == buildingType {
			return r, true
		}
	}
	return Recipe{}, false
}

// IsVesselType reports whether the building type is scanned for arrivals.
func (c *Config) IsVesselType(t string) bool {
	for _, v := range c.Vessels.Types {
		if v == t {
			return true
		}
	}
	return false
}

// IsDockType reports whether the building type collects gondola fees.
func (c *Config) IsDockType(t string) bool {
	for _, v := range c.Docks.Types {
		if v == t {
			return true
		}
	}
	return false
}
