package systems

import (
	"github.com/pthm-cable/natsel/config"
)

// Kill is one committed predation. Predator and Prey are the records right
// after the kill was applied.
type Kill struct {
	Predator     CreatureRecord
	Prey         CreatureRecord
	PreyX, PreyY float64
	Gain         float64
	Distance     float64
}

// PredationSystem lets larger creatures eat smaller ones in reach.
type PredationSystem struct {
	enabled         bool
	attackSizeRatio float64
	attackRadius    float64
	senseRadiusMult float64
	preyFoodScale   float64
}

// NewPredationSystem creates a new predation system.
func NewPredationSystem(pred config.PredationConfig, energy config.EnergyConfig) *PredationSystem {
	return &PredationSystem{
		enabled:         pred.Enabled,
		attackSizeRatio: pred.AttackSizeRatio,
		attackRadius:    pred.AttackRadius,
		senseRadiusMult: pred.SenseRadiusMult,
		preyFoodScale:   energy.PreyFoodScale,
	}
}

// EffectiveRadius is the attack radius widened by the predator's sense.
func (s *PredationSystem) EffectiveRadius(sense float64) float64 {
	return s.attackRadius * (1 + sense*s.senseRadiusMult)
}

// Hunt evaluates the creature id as a predator against every other alive,
// placed record in spawn order and applies each kill immediately. A killed
// prey is dead before the next candidate is looked at, so no prey is ever
// killed twice.
func (s *PredationSystem) Hunt(w *World, id string) []Kill {
	if !s.enabled {
		return nil
	}
	pe, ok := w.lookupActive(id)
	if !ok {
		return nil
	}
	ppos := w.posMap.Get(pe)
	if !ppos.Known {
		return nil
	}
	ptraits := w.traitMap.Get(pe)
	radius := s.EffectiveRadius(ptraits.Sense)

	var kills []Kill
	for _, e := range w.order {
		if e == pe {
			continue
		}
		vit := w.vitalMap.Get(e)
		pos := w.posMap.Get(e)
		if !vit.Alive || !pos.Known {
			continue
		}
		prey := w.traitMap.Get(e)
		if ptraits.Size < s.attackSizeRatio*prey.Size {
			continue
		}
		dist := distance(ppos.X, ppos.Y, pos.X, pos.Y)
		if dist > radius {
			continue
		}

		preyID := w.identMap.Get(e).ID
		preyX, preyY := pos.X, pos.Y
		dead, ok := w.MarkDead(preyID)
		if !ok {
			continue
		}

		gain := s.preyFoodScale * cube(prey.Size)
		pvit := w.vitalMap.Get(pe)
		pvit.FoodsEaten++
		pvit.Kills++
		pvit.Energy += gain

		kills = append(kills, Kill{
			Predator: w.record(pe),
			Prey:     dead,
			PreyX:    preyX,
			PreyY:    preyY,
			Gain:     gain,
			Distance: dist,
		})
	}
	return kills
}
