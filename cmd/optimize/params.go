// Package main provides CMA-ES optimization for natsel energy parameters.
package main

import (
	"github.com/pthm-cable/natsel/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name string  // Human-readable name
	Path string  // Config path for logging
	Min  float64 // Lower bound
	Max  float64 // Upper bound

	get func(*config.Config) float64
	set func(*config.Config, float64)
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Energy
			{Name: "energy_scale", Path: "energy.energy_scale", Min: 0.005, Max: 0.06,
				get: func(c *config.Config) float64 { return c.Energy.EnergyScale },
				set: func(c *config.Config, v float64) { c.Energy.EnergyScale = v }},
			{Name: "sense_scale", Path: "energy.sense_scale", Min: 0.005, Max: 0.06,
				get: func(c *config.Config) float64 { return c.Energy.SenseScale },
				set: func(c *config.Config, v float64) { c.Energy.SenseScale = v }},
			{Name: "food_energy_scale", Path: "energy.food_energy_scale", Min: 0.2, Max: 2.0,
				get: func(c *config.Config) float64 { return c.Energy.FoodEnergyScale },
				set: func(c *config.Config, v float64) { c.Energy.FoodEnergyScale = v }},
			{Name: "prey_food_scale", Path: "energy.prey_food_scale", Min: 0.2, Max: 2.0,
				get: func(c *config.Config) float64 { return c.Energy.PreyFoodScale },
				set: func(c *config.Config, v float64) { c.Energy.PreyFoodScale = v }},
			// Arbitration
			{Name: "detection_radius", Path: "feeding.detection_radius", Min: 0.5, Max: 3.0,
				get: func(c *config.Config) float64 { return c.Feeding.DetectionRadius },
				set: func(c *config.Config, v float64) { c.Feeding.DetectionRadius = v }},
			{Name: "attack_size_ratio", Path: "predation.attack_size_ratio", Min: 1.05, Max: 2.0,
				get: func(c *config.Config) float64 { return c.Predation.AttackSizeRatio },
				set: func(c *config.Config, v float64) { c.Predation.AttackSizeRatio = v }},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes clamped parameter values into cfg.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	for i, v := range pv.Clamp(values) {
		pv.Specs[i].set(cfg, v)
	}
}

// ExtractFromConfig reads the current parameter values from cfg, clamped
// to the search bounds.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.get(cfg)
	}
	return pv.Clamp(v)
}
