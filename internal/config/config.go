package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"rinna/internal/domain"
)

// Config models rinna.yml. Every value the scheduling and assignment
// algorithms treat as a tunable constant lives here, so editions with
// different type tables or weights stay configuration, not code.
type Config struct {
	Weights struct {
		Priority int `yaml:"priority"`
		Type     int `yaml:"type"`
		Age      int `yaml:"age"`
		Urgent   int `yaml:"urgent"`
	} `yaml:"weights"`

	// TypeWeights orders item types within a priority band; lower values
	// schedule earlier. Types absent from the map fall back to
	// DefaultTypeWeight.
	TypeWeights       map[domain.WorkItemType]int `yaml:"type_weights"`
	DefaultTypeWeight int                         `yaml:"default_type_weight"`

	Load struct {
		Base                int                         `yaml:"base"`
		TypeAdjustments     map[domain.WorkItemType]int `yaml:"type_adjustments"`
		PriorityAdjustments map[domain.Priority]int     `yaml:"priority_adjustments"`
	} `yaml:"load"`

	Capacity struct {
		PerMember       int                         `yaml:"per_member"`
		UnitMultipliers map[domain.UnitType]float64 `yaml:"unit_multipliers"`
		ExpertiseBonus  int                         `yaml:"expertise_bonus"`
		ParadigmBonus   int                         `yaml:"paradigm_bonus"`
		MemberCapacity  int                         `yaml:"member_capacity"`
	} `yaml:"capacity"`

	Overload struct {
		// RiskThreshold is the fraction of member capacity above which a
		// member is flagged at risk.
		RiskThreshold float64 `yaml:"risk_threshold"`
	} `yaml:"overload"`

	Recommendations struct {
		Limit int `yaml:"limit"`
		// FilterNonPositive drops recommendations whose balance
		// improvement is zero or negative before truncation. Off by
		// default to match historical behavior.
		FilterNonPositive bool `yaml:"filter_non_positive"`
	} `yaml:"recommendations"`
}

// Default returns the stock configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Weights.Priority = 10
	cfg.Weights.Type = 5
	cfg.Weights.Age = 2
	cfg.Weights.Urgent = 20
	cfg.TypeWeights = map[domain.WorkItemType]int{
		domain.TypeBug:     0,
		domain.TypeFeature: 1,
		domain.TypeChore:   2,
		domain.TypeGoal:    3,
	}
	cfg.DefaultTypeWeight = 4
	cfg.Load.Base = 5
	cfg.Load.TypeAdjustments = map[domain.WorkItemType]int{
		domain.TypeBug:     5,
		domain.TypeFeature: 10,
		domain.TypeEpic:    20,
		domain.TypeTask:    3,
		domain.TypeGoal:    15,
		domain.TypeChore:   2,
	}
	cfg.Load.PriorityAdjustments = map[domain.Priority]int{
		domain.PriorityCritical: 12,
		domain.PriorityHigh:     10,
		domain.PriorityMedium:   5,
		domain.PriorityLow:      1,
	}
	cfg.Capacity.PerMember = 50
	cfg.Capacity.UnitMultipliers = map[domain.UnitType]float64{
		domain.UnitTeam:         1.0,
		domain.UnitSquad:        1.2,
		domain.UnitDepartment:   0.8,
		domain.UnitBusinessUnit: 0.7,
	}
	cfg.Capacity.ExpertiseBonus = 10
	cfg.Capacity.ParadigmBonus = 5
	cfg.Capacity.MemberCapacity = 25
	cfg.Overload.RiskThreshold = 0.9
	cfg.Recommendations.Limit = 10
	return cfg
}

// TypeWeight looks up the scheduling weight for a type.
func (c *Config) TypeWeight(t domain.WorkItemType) int {
	if w, ok := c.TypeWeights[t]; ok {
		return w
	}
	return c.DefaultTypeWeight
}

// UnitMultiplier looks up the capacity multiplier for a unit type,
// defaulting to 1.0 for unknown types.
func (c *Config) UnitMultiplier(t domain.UnitType) float64 {
	if m, ok := c.Capacity.UnitMultipliers[t]; ok {
		return m
	}
	return 1.0
}

// Validate ensures the config can drive the engines.
func (c *Config) Validate() error {
	if c.Load.Base < 0 {
		return fmt.Errorf("config.load.base must not be negative")
	}
	if c.Capacity.PerMember <= 0 {
		return fmt.Errorf("config.capacity.per_member must be positive")
	}
	if c.Capacity.MemberCapacity <= 0 {
		return fmt.Errorf("config.capacity.member_capacity must be positive")
	}
	for t, m := range c.Capacity.UnitMultipliers {
		if m <= 0 {
			return fmt.Errorf("config.capacity.unit_multipliers[%s] must be positive", t)
		}
	}
	if c.Overload.RiskThreshold <= 0 || c.Overload.RiskThreshold > 1 {
		return fmt.Errorf("config.overload.risk_threshold must be in (0, 1]")
	}
	if c.Recommendations.Limit <= 0 {
		return fmt.Errorf("config.recommendations.limit must be positive")
	}
	return nil
}

// FromYAML parses and validates config bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToYAML renders the config.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Load reads config from a file, falling back to defaults when the file
// does not exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}
