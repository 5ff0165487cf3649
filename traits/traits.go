// Package traits defines creature characteristics and how they are drawn.
package traits

import (
	"math/rand"

	"github.com/pthm-cable/natsel/config"
)

// Set holds the heritable traits of a creature.
type Set struct {
	Speed float64 `json:"speed"`
	Size  float64 `json:"size"`
	Sense float64 `json:"sense"`
}

// Volume is size cubed; energy gained from and lost to a body scales with it.
func (s Set) Volume() float64 {
	return s.Size * s.Size * s.Size
}

// Uniform draws from [lo, hi). A degenerate range returns lo.
func Uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

// RandomSpeed draws a speed from the configured range.
func RandomSpeed(rng *rand.Rand, cfg config.TraitsConfig) float64 {
	return Uniform(rng, cfg.SpeedMin, cfg.SpeedMax)
}

// RandomSize draws a size from the configured range.
func RandomSize(rng *rand.Rand, cfg config.TraitsConfig) float64 {
	return Uniform(rng, cfg.SizeMin, cfg.SizeMax)
}

// RandomSense draws a sense from the configured range.
func RandomSense(rng *rand.Rand, cfg config.TraitsConfig) float64 {
	return Uniform(rng, cfg.SenseMin, cfg.SenseMax)
}

// Random draws every trait independently, in speed, size, sense order.
func Random(rng *rand.Rand, cfg config.TraitsConfig) Set {
	speed := RandomSpeed(rng, cfg)
	size := RandomSize(rng, cfg)
	sense := RandomSense(rng, cfg)
	return Set{Speed: speed, Size: size, Sense: sense}
}

// DefaultEnergy returns the starting energy for a speed so that
// speed + energy stays close to the energy budget: fast creatures start
// with less energy. Non-positive speeds are treated as the floor speed.
func DefaultEnergy(speed float64, cfg config.TraitsConfig) float64 {
	s := speed
	if s <= 0 {
		s = cfg.SpeedMin
	}
	energy := cfg.EnergyBudget - s
	if energy < cfg.MinEnergy {
		energy = cfg.MinEnergy
	}
	return energy
}

// SpawnOnEdge picks a point uniformly along the perimeter of a w x h world.
func SpawnOnEdge(rng *rand.Rand, w, h float64) (x, y float64) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}

	perimeter := 2 * (w + h)
	t := rng.Float64() * perimeter

	switch {
	case t < w: // bottom
		return t, 0
	case t < w+h: // right
		return w, t - w
	case t < 2*w+h: // top, walking back
		return 2*w + h - t, h
	default: // left, walking down
		return 0, perimeter - t
	}
}

// SpawnInside picks a point uniformly inside a w x h world.
func SpawnInside(rng *rand.Rand, w, h float64) (x, y float64) {
	return rng.Float64() * w, rng.Float64() * h
}
