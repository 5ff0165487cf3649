// Package creature runs the per-creature processes: a fixed-tick loop that
// moves the body, burns energy and reports to the coordinator.
package creature

import (
	"math"
	"math/rand"
	"time"

	"github.com/pthm-cable/natsel/config"
	"github.com/pthm-cable/natsel/traits"
)

// homeSnap is how close a satisfied creature has to get to snap home.
const homeSnap = 0.1

// Params holds the physics and timing parameters shared by all creatures.
type Params struct {
	Width, Height   float64
	EnergyScale     float64
	SenseScale      float64
	SeekMultiplier  float64
	FoodEnergyScale float64
	ReportPeriod    time.Duration
	ReportJitter    float64
}

// ParamsFromConfig extracts creature parameters from the configuration.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		Width:           cfg.World.Width,
		Height:          cfg.World.Height,
		EnergyScale:     cfg.Energy.EnergyScale,
		SenseScale:      cfg.Energy.SenseScale,
		SeekMultiplier:  cfg.Energy.SeekMultiplier,
		FoodEnergyScale: cfg.Energy.FoodEnergyScale,
		ReportPeriod:    cfg.Derived.ReportPeriod,
		ReportJitter:    cfg.Timing.ReportJitter,
	}
}

// Period draws this creature's report period from [p*(1-j), p*(1+j)].
func (p Params) Period(rng *rand.Rand) time.Duration {
	if p.ReportJitter <= 0 {
		return p.ReportPeriod
	}
	f := traits.Uniform(rng, 1-p.ReportJitter, 1+p.ReportJitter)
	d := time.Duration(float64(p.ReportPeriod) * f)
	if d <= 0 {
		return p.ReportPeriod
	}
	return d
}

// Body is the creature's own view of itself. The coordinator keeps the
// authoritative copy; this one only drives movement.
type Body struct {
	traits.Set
	X, Y         float64
	HomeX, HomeY float64
	Heading      float64
	Energy       float64
	FoodsEaten   int
	Kills        int

	TargetX, TargetY float64
	HasTarget        bool
}

// Drain is the energy burned per tick while wandering.
func (b *Body) Drain(p Params) float64 {
	return p.EnergyScale*b.Volume()*b.Speed*b.Speed + p.SenseScale*b.Sense
}

// Satisfied reports whether the creature has eaten and is heading home.
func (b *Body) Satisfied() bool {
	return b.FoodsEaten >= 1
}

// Home reports whether a satisfied creature is back at its home position.
func (b *Body) Home() bool {
	return b.Satisfied() && b.X == b.HomeX && b.Y == b.HomeY
}

// Step advances the body by one tick and returns the energy burned.
//
// A satisfied creature walks back home at its speed and burns nothing. A
// hungry one steers at its target when it has one (burning more), and
// otherwise wanders with a jittered heading. Hitting a wall turns it back
// towards the centre of the world.
func (b *Body) Step(rng *rand.Rand, p Params) float64 {
	drain := 0.0

	switch {
	case b.Satisfied():
		dx, dy := b.HomeX-b.X, b.HomeY-b.Y
		dist := math.Hypot(dx, dy)
		if dist > homeSnap {
			step := math.Min(b.Speed, dist)
			b.X += dx / dist * step
			b.Y += dy / dist * step
		} else {
			b.X, b.Y = b.HomeX, b.HomeY
		}

	case b.HasTarget:
		dx, dy := b.TargetX-b.X, b.TargetY-b.Y
		dist := math.Hypot(dx, dy)
		if dist > 0 {
			b.Heading = math.Atan2(dy, dx)
			step := math.Min(b.Speed*traits.Uniform(rng, 1.0, 1.4), dist)
			b.X += math.Cos(b.Heading) * step
			b.Y += math.Sin(b.Heading) * step
		}
		drain = b.Drain(p) * p.SeekMultiplier

	default:
		b.Heading = math.Mod(b.Heading+traits.Uniform(rng, -1, 1)+2*math.Pi, 2*math.Pi)
		step := b.Speed * traits.Uniform(rng, 1.0, 1.4)
		b.X += math.Cos(b.Heading) * step
		b.Y += math.Sin(b.Heading) * step
		drain = b.Drain(p)
	}

	if b.clamp(p.Width, p.Height) {
		toCentre := math.Atan2(p.Height/2-b.Y, p.Width/2-b.X)
		b.Heading = toCentre + traits.Uniform(rng, -math.Pi/4, math.Pi/4)
	}

	b.Energy -= drain
	return drain
}

// clamp keeps the body inside the world and reports whether it hit a wall.
func (b *Body) clamp(w, h float64) bool {
	x := math.Max(0, math.Min(w, b.X))
	y := math.Max(0, math.Min(h, b.Y))
	hit := x != b.X || y != b.Y
	b.X, b.Y = x, y
	return hit
}

// Eat credits a confirmed meal or kill. A missing gain falls back to the
// food formula.
func (b *Body) Eat(gain *float64, prey string, p Params) {
	b.FoodsEaten++
	if gain != nil {
		b.Energy += *gain
	} else {
		b.Energy += p.FoodEnergyScale * b.Volume()
	}
	if prey != "" {
		b.Kills++
	}
}

// Exhausted reports whether the creature has run out of energy.
func (b *Body) Exhausted() bool {
	return b.Energy <= 0
}
