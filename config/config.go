// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Seed       int64            `yaml:"seed"`
	World      WorldConfig      `yaml:"world"`
	Population PopulationConfig `yaml:"population"`
	Traits     TraitsConfig     `yaml:"traits"`
	Energy     EnergyConfig     `yaml:"energy"`
	Feeding    FeedingConfig    `yaml:"feeding"`
	Predation  PredationConfig  `yaml:"predation"`
	Timing     TimingConfig     `yaml:"timing"`
	Output     OutputConfig     `yaml:"output"`
	Host       HostConfig       `yaml:"host"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds world dimensions and the food budget per generation.
type WorldConfig struct {
	Width     float64 `yaml:"width"`
	Height    float64 `yaml:"height"`
	FoodCount int     `yaml:"food_count"`
}

// PopulationConfig holds population management parameters.
// Zero initial traits mean "pick per creature".
type PopulationConfig struct {
	Initial        int     `yaml:"initial"`
	MaxGenerations int     `yaml:"max_generations"`
	InitialSpeed   float64 `yaml:"initial_speed"`
	InitialEnergy  float64 `yaml:"initial_energy"`
	InitialSize    float64 `yaml:"initial_size"`
	InitialSense   float64 `yaml:"initial_sense"`
	SpawnOnEdge    bool    `yaml:"spawn_on_edge"`
}

// TraitsConfig holds the ranges offspring traits are drawn from.
type TraitsConfig struct {
	SpeedMin     float64 `yaml:"speed_min"`
	SpeedMax     float64 `yaml:"speed_max"`
	SizeMin      float64 `yaml:"size_min"`
	SizeMax      float64 `yaml:"size_max"`
	SenseMin     float64 `yaml:"sense_min"`
	SenseMax     float64 `yaml:"sense_max"`
	EnergyBudget float64 `yaml:"energy_budget"` // speed + energy is held near this value
	MinEnergy    float64 `yaml:"min_energy"`    // floor for the default energy
}

// EnergyConfig holds energy economics parameters.
type EnergyConfig struct {
	EnergyScale     float64 `yaml:"energy_scale"`      // drain = energy_scale * size^3 * speed^2 + ...
	SenseScale      float64 `yaml:"sense_scale"`       // ... + sense_scale * sense
	FoodEnergyScale float64 `yaml:"food_energy_scale"` // gain per food = scale * size^3
	PreyFoodScale   float64 `yaml:"prey_food_scale"`   // gain per kill = scale * prey.size^3
	SeekMultiplier  float64 `yaml:"seek_multiplier"`   // drain multiplier while steering to a target
}

// FeedingConfig holds food arbitration parameters.
type FeedingConfig struct {
	DetectionRadius float64 `yaml:"detection_radius"`
}

// PredationConfig holds predation rules.
type PredationConfig struct {
	Enabled         bool    `yaml:"enabled"`
	AttackSizeRatio float64 `yaml:"attack_size_ratio"` // predator.size >= ratio * prey.size
	AttackRadius    float64 `yaml:"attack_radius"`
	SenseRadiusMult float64 `yaml:"sense_radius_mult"`
}

// TimingConfig holds periods and grace windows, all in seconds.
type TimingConfig struct {
	ReportPeriod     float64 `yaml:"report_period"`
	ReportJitter     float64 `yaml:"report_jitter"` // fraction, period is drawn from [p*(1-j), p*(1+j)]
	PollInterval     float64 `yaml:"poll_interval"`
	LastEatGrace     float64 `yaml:"last_eat_grace"`
	FinishGrace      float64 `yaml:"finish_grace"`
	StaleWindow      float64 `yaml:"stale_window"`
	RemovalRetention float64 `yaml:"removal_retention"`
}

// OutputConfig holds audit output locations.
type OutputConfig struct {
	Dir           string `yaml:"dir"`
	SummaryFile   string `yaml:"summary_file"`
	DetailsFile   string `yaml:"details_file"`
	PredationFile string `yaml:"predation_file"`
	Snapshots     bool   `yaml:"snapshots"` // per-generation JSON under <dir>/snapshots
}

// HostConfig holds the observer endpoint settings.
type HostConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	TUI     bool   `yaml:"tui"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	ReportPeriod     time.Duration
	PollInterval     time.Duration
	LastEatGrace     time.Duration
	FinishGrace      time.Duration
	StaleWindow      time.Duration
	RemovalRetention time.Duration
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.ComputeDerived()

	return cfg, nil
}

// Default returns the embedded defaults. It panics if they fail to parse,
// which only happens when defaults.yaml itself is broken.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Validate reports every out-of-range field at once.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, v float64) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %v", name, v))
		}
	}
	ordered := func(name string, lo, hi float64) {
		if lo > hi {
			errs = append(errs, fmt.Errorf("%s range is inverted: %v > %v", name, lo, hi))
		}
	}

	positive("world.width", c.World.Width)
	positive("world.height", c.World.Height)
	if c.World.FoodCount < 0 {
		errs = append(errs, fmt.Errorf("world.food_count must be >= 0, got %d", c.World.FoodCount))
	}
	if c.Population.Initial <= 0 {
		errs = append(errs, fmt.Errorf("population.initial must be > 0, got %d", c.Population.Initial))
	}
	if c.Population.MaxGenerations <= 0 {
		errs = append(errs, fmt.Errorf("population.max_generations must be > 0, got %d", c.Population.MaxGenerations))
	}
	positive("traits.speed_min", c.Traits.SpeedMin)
	positive("traits.size_min", c.Traits.SizeMin)
	ordered("traits.speed", c.Traits.SpeedMin, c.Traits.SpeedMax)
	ordered("traits.size", c.Traits.SizeMin, c.Traits.SizeMax)
	ordered("traits.sense", c.Traits.SenseMin, c.Traits.SenseMax)
	positive("traits.min_energy", c.Traits.MinEnergy)
	positive("feeding.detection_radius", c.Feeding.DetectionRadius)
	positive("timing.report_period", c.Timing.ReportPeriod)
	positive("timing.poll_interval", c.Timing.PollInterval)
	if c.Timing.ReportJitter < 0 || c.Timing.ReportJitter >= 1 {
		errs = append(errs, fmt.Errorf("timing.report_jitter must be in [0,1), got %v", c.Timing.ReportJitter))
	}
	if c.Timing.LastEatGrace < 0 || c.Timing.FinishGrace < 0 {
		errs = append(errs, errors.New("timing grace windows must be >= 0"))
	}
	if c.Predation.Enabled {
		positive("predation.attack_radius", c.Predation.AttackRadius)
		positive("predation.attack_size_ratio", c.Predation.AttackSizeRatio)
	}

	return errors.Join(errs...)
}

// ComputeDerived calculates values derived from loaded config.
// Call it again after changing timing fields programmatically.
func (c *Config) ComputeDerived() {
	c.Derived.ReportPeriod = seconds(c.Timing.ReportPeriod)
	c.Derived.PollInterval = seconds(c.Timing.PollInterval)
	c.Derived.LastEatGrace = seconds(c.Timing.LastEatGrace)
	c.Derived.FinishGrace = seconds(c.Timing.FinishGrace)
	c.Derived.StaleWindow = seconds(c.Timing.StaleWindow)
	c.Derived.RemovalRetention = seconds(c.Timing.RemovalRetention)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
