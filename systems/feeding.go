package systems

import (
	"time"

	"github.com/pthm-cable/natsel/config"
)

// Meal is a food item consumed by a creature.
type Meal struct {
	Food  FoodItem
	Gain  float64 // food_energy_scale * size^3
	Eater CreatureRecord
}

// Target is the food a creature is steered towards.
type Target struct {
	X, Y  float64
	Found bool
}

// FeedingSystem arbitrates food consumption. Foods are matched first-fit in
// insertion order, not nearest-first.
type FeedingSystem struct {
	detectionRadius float64
	foodEnergyScale float64
}

// NewFeedingSystem creates a new feeding system.
func NewFeedingSystem(feeding config.FeedingConfig, energy config.EnergyConfig) *FeedingSystem {
	return &FeedingSystem{
		detectionRadius: feeding.DetectionRadius,
		foodEnergyScale: energy.FoodEnergyScale,
	}
}

// Feed lets creature id eat the first food within the detection radius of
// its last known position. The food is removed from the world, so the same
// item can never be eaten twice. Dead, finished, unknown or unplaced
// creatures never eat.
func (s *FeedingSystem) Feed(w *World, id string, now time.Time) (Meal, bool) {
	e, ok := w.lookupActive(id)
	if !ok {
		return Meal{}, false
	}
	pos := w.posMap.Get(e)
	if !pos.Known {
		return Meal{}, false
	}

	r2 := s.detectionRadius * s.detectionRadius
	for i, food := range w.foods {
		if distanceSq(pos.X, pos.Y, food.X, food.Y) > r2 {
			continue
		}

		w.RemoveFood(i)
		gain := s.foodEnergyScale * cube(w.traitMap.Get(e).Size)
		vit := w.vitalMap.Get(e)
		vit.FoodsEaten++
		vit.Energy += gain
		w.lastFoodConsumedAt = now

		return Meal{Food: food, Gain: gain, Eater: w.record(e)}, true
	}
	return Meal{}, false
}

// NearestFood returns the closest remaining food to (x, y). Ties go to the
// first item encountered.
func NearestFood(foods []FoodItem, x, y float64) Target {
	best := -1
	bestDist := 0.0
	for i, food := range foods {
		d := distanceSq(x, y, food.X, food.Y)
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 {
		return Target{}
	}
	return Target{X: foods[best].X, Y: foods[best].Y, Found: true}
}

// Target returns the nearest remaining food for a creature position.
func (s *FeedingSystem) Target(w *World, x, y float64) Target {
	return NearestFood(w.foods, x, y)
}
