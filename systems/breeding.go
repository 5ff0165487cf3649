package systems

import (
	"math/rand"

	"github.com/pthm-cable/natsel/config"
	"github.com/pthm-cable/natsel/traits"
)

// Fate is what selection decides for one creature.
type Fate int

const (
	FateDeath     Fate = iota // killed, or never ate
	FateSurvive               // ate once: carried over
	FateReproduce             // ate twice or more: carried over plus one offspring
)

func (f Fate) String() string {
	switch f {
	case FateDeath:
		return "death"
	case FateSurvive:
		return "survive"
	case FateReproduce:
		return "reproduce"
	default:
		return "unknown"
	}
}

// FateOf applies the threshold rule to a final record. Dead records never
// survive, whatever they ate before dying.
func FateOf(r CreatureRecord) Fate {
	switch {
	case !r.Alive || r.FoodsEaten <= 0:
		return FateDeath
	case r.FoodsEaten == 1:
		return FateSurvive
	default:
		return FateReproduce
	}
}

// Selection is the outcome of one generation.
type Selection struct {
	Specs       []PopulationSpec
	Fates       map[string]Fate
	Deaths      int
	Survivors   int
	Reproducers int
}

// Select builds the next population from a generation's final records.
// Survivors keep their traits with energy reset to the default for their
// speed; each reproducer's offspring directly follows it with freshly drawn
// traits. The result depends only on the records' order and rng.
func Select(records []CreatureRecord, rng *rand.Rand, cfg config.TraitsConfig) Selection {
	sel := Selection{
		Specs: make([]PopulationSpec, 0, len(records)),
		Fates: make(map[string]Fate, len(records)),
	}

	for _, r := range records {
		fate := FateOf(r)
		sel.Fates[r.ID] = fate

		if fate == FateDeath {
			sel.Deaths++
			continue
		}

		sel.Survivors++
		sel.Specs = append(sel.Specs, PopulationSpec{
			Speed:  r.Speed,
			Energy: traits.DefaultEnergy(r.Speed, cfg),
			Size:   r.Size,
			Sense:  r.Sense,
		})

		if fate == FateReproduce {
			sel.Reproducers++
			child := traits.Random(rng, cfg)
			sel.Specs = append(sel.Specs, PopulationSpec{
				Speed:  child.Speed,
				Energy: traits.DefaultEnergy(child.Speed, cfg),
				Size:   child.Size,
				Sense:  child.Sense,
			})
		}
	}
	return sel
}

// InitialPopulation builds the first generation. Zero initial size or sense
// draws the trait per creature; zero initial energy uses the default energy
// for the initial speed.
func InitialPopulation(rng *rand.Rand, pop config.PopulationConfig, cfg config.TraitsConfig) []PopulationSpec {
	specs := make([]PopulationSpec, 0, pop.Initial)
	for i := 0; i < pop.Initial; i++ {
		spec := PopulationSpec{
			Speed:  pop.InitialSpeed,
			Energy: pop.InitialEnergy,
			Size:   pop.InitialSize,
			Sense:  pop.InitialSense,
		}
		if spec.Speed <= 0 {
			spec.Speed = traits.RandomSpeed(rng, cfg)
		}
		if spec.Size <= 0 {
			spec.Size = traits.RandomSize(rng, cfg)
		}
		if spec.Sense <= 0 {
			spec.Sense = traits.RandomSense(rng, cfg)
		}
		if spec.Energy <= 0 {
			spec.Energy = traits.DefaultEnergy(spec.Speed, cfg)
		}
		specs = append(specs, spec)
	}
	return specs
}

// RandomFoods scatters n food items uniformly over a w x h world.
func RandomFoods(rng *rand.Rand, n int, w, h float64) []FoodItem {
	foods := make([]FoodItem, n)
	for i := range foods {
		foods[i] = FoodItem{X: rng.Float64() * w, Y: rng.Float64() * h}
	}
	return foods
}
