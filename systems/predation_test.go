package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/natsel/config"
)

func testPredation() *PredationSystem {
	return NewPredationSystem(
		config.PredationConfig{Enabled: true, AttackSizeRatio: 1.2, AttackRadius: 1.0, SenseRadiusMult: 0.5},
		config.EnergyConfig{PreyFoodScale: 0.9},
	)
}

func TestEffectiveRadius(t *testing.T) {
	ps := testPredation()
	if got := ps.EffectiveRadius(0); got != 1.0 {
		t.Errorf("EffectiveRadius(0) = %v", got)
	}
	if got := ps.EffectiveRadius(2); got != 2.0 {
		t.Errorf("EffectiveRadius(2) = %v", got)
	}
}

func TestHunt_KillsSmallerPreyInReach(t *testing.T) {
	specs := []PopulationSpec{
		{Speed: 1, Energy: 1, Size: 1.5}, // predator
		{Speed: 1, Energy: 1, Size: 1.0}, // prey in reach
		{Speed: 1, Energy: 1, Size: 1.4}, // too big
		{Speed: 1, Energy: 1, Size: 0.5}, // out of reach
		{Speed: 1, Energy: 1, Size: 0.5}, // unplaced
	}
	w := spawn(t, specs, nil,
		FoodItem{0, 0}, FoodItem{0.5, 0}, FoodItem{0, 0.5}, FoodItem{5, 5})

	kills := testPredation().Hunt(w, "creature1_0")
	if len(kills) != 1 {
		t.Fatalf("expected 1 kill, got %d", len(kills))
	}

	k := kills[0]
	if k.Prey.ID != "creature1_1" || k.Prey.Alive {
		t.Errorf("unexpected prey %+v", k.Prey)
	}
	if math.Abs(k.Gain-0.9) > 1e-9 || math.Abs(k.Distance-0.5) > 1e-9 {
		t.Errorf("gain=%v distance=%v", k.Gain, k.Distance)
	}
	if k.PreyX != 0.5 || k.PreyY != 0 {
		t.Errorf("prey position not captured: (%v, %v)", k.PreyX, k.PreyY)
	}
	if k.Predator.Kills != 1 || k.Predator.FoodsEaten != 1 || math.Abs(k.Predator.Energy-1.9) > 1e-9 {
		t.Errorf("predator not credited: %+v", k.Predator)
	}
	if w.IsActive("creature1_1") {
		t.Error("prey should leave the active set")
	}
}

func TestHunt_AtMostOneKillPerPrey(t *testing.T) {
	specs := []PopulationSpec{
		{Speed: 1, Energy: 1, Size: 1.5},
		{Speed: 1, Energy: 1, Size: 1.5},
		{Speed: 1, Energy: 1, Size: 0.5},
	}
	w := spawn(t, specs, nil, FoodItem{0, 0}, FoodItem{0.2, 0}, FoodItem{0.1, 0})
	ps := testPredation()

	events := 0
	for i := 0; i < 3; i++ {
		events += len(ps.Hunt(w, "creature1_0"))
		events += len(ps.Hunt(w, "creature1_1"))
	}
	if events != 1 {
		t.Errorf("prey killed %d times, want 1", events)
	}
}

func TestHunt_DeadPredatorDoesNothing(t *testing.T) {
	specs := []PopulationSpec{
		{Speed: 1, Energy: 1, Size: 2},
		{Speed: 1, Energy: 1, Size: 0.5},
	}
	w := spawn(t, specs, nil, FoodItem{0, 0}, FoodItem{0.1, 0})
	w.MarkDead("creature1_0")

	if kills := testPredation().Hunt(w, "creature1_0"); len(kills) != 0 {
		t.Errorf("dead predator killed %d", len(kills))
	}
}

func TestHunt_Disabled(t *testing.T) {
	ps := NewPredationSystem(config.PredationConfig{Enabled: false, AttackSizeRatio: 1, AttackRadius: 10}, config.EnergyConfig{})
	specs := []PopulationSpec{{Speed: 1, Size: 2}, {Speed: 1, Size: 0.5}}
	w := spawn(t, specs, nil, FoodItem{0, 0}, FoodItem{0.1, 0})

	if kills := ps.Hunt(w, "creature1_0"); kills != nil {
		t.Errorf("disabled predation killed %d", len(kills))
	}
}

func TestKilledCreatureLateStatusIsNotSelected(t *testing.T) {
	specs := []PopulationSpec{
		{Speed: 1, Energy: 1, Size: 2},
		{Speed: 1, Energy: 1, Size: 0.5},
	}
	w := spawn(t, specs, []FoodItem{{9, 9}}, FoodItem{0, 0}, FoodItem{0.1, 0})
	testPredation().Hunt(w, "creature1_0")

	// late duplicate status claiming five meals
	w.ApplyStatus("creature1_1", 9, 9, 3, specs[1].Traits())
	testFeeding().Feed(w, "creature1_1", t0)

	sel := Select(w.Snapshot().Records, nil, config.TraitsConfig{EnergyBudget: 3, SpeedMin: 0.3})
	if sel.Fates["creature1_1"] != FateDeath {
		t.Errorf("killed creature fate = %v", sel.Fates["creature1_1"])
	}
	if w.FoodCount() != 1 {
		t.Error("dead creature must not eat")
	}
}
