package systems

import (
	"testing"
	"time"

	"github.com/pthm-cable/natsel/traits"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// spawn builds a world with one creature per spec and places creature i at
// positions[i] when given.
func spawn(t *testing.T, specs []PopulationSpec, foods []FoodItem, positions ...FoodItem) *World {
	t.Helper()
	w := NewWorld()
	w.SpawnGeneration(1, specs, foods, t0)
	for i, p := range positions {
		id := CreatureID(1, i)
		if _, _, ok := w.ApplyStatus(id, p.X, p.Y, specs[i].Energy, specs[i].Traits()); !ok {
			t.Fatalf("ApplyStatus(%s) rejected", id)
		}
	}
	return w
}

func unitSpecs(n int) []PopulationSpec {
	specs := make([]PopulationSpec, n)
	for i := range specs {
		specs[i] = PopulationSpec{Speed: 1, Energy: 2, Size: 1, Sense: 0}
	}
	return specs
}

// ---------- spawn and status ----------

func TestSpawnGeneration_RegistersActiveRecords(t *testing.T) {
	w := NewWorld()
	recs := w.SpawnGeneration(3, unitSpecs(2), []FoodItem{{1, 1}}, t0)

	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ID != "creature3_0" || recs[1].ID != "creature3_1" {
		t.Errorf("unexpected ids %q %q", recs[0].ID, recs[1].ID)
	}
	for _, r := range recs {
		if !r.Alive || !r.Active || r.HasPosition {
			t.Errorf("fresh record should be alive, active and unplaced: %+v", r)
		}
	}
	if w.Generation() != 3 || w.ActiveCount() != 2 || w.FoodCount() != 1 {
		t.Errorf("unexpected world state: gen=%d active=%d food=%d", w.Generation(), w.ActiveCount(), w.FoodCount())
	}
	if !w.LastFoodConsumedAt().Equal(t0) {
		t.Errorf("last food time should start at spawn time")
	}
}

func TestSpawnGeneration_DiscardsPreviousGeneration(t *testing.T) {
	w := NewWorld()
	w.SpawnGeneration(1, unitSpecs(3), nil, t0)
	w.SpawnGeneration(2, unitSpecs(1), nil, t0)

	if _, ok := w.Record("creature1_0"); ok {
		t.Error("records from the previous generation should be gone")
	}
	if snap := w.Snapshot(); len(snap.Records) != 1 {
		t.Errorf("expected 1 record, got %d", len(snap.Records))
	}
}

func TestApplyStatus_IgnoresReportedTraits(t *testing.T) {
	w := spawn(t, unitSpecs(1), nil)

	rec, mismatch, ok := w.ApplyStatus("creature1_0", 4, 5, 1.5, traits.Set{Speed: 9, Size: 9, Sense: 9})
	if !ok {
		t.Fatal("status for an active creature should apply")
	}
	if !mismatch {
		t.Error("expected a trait mismatch to be reported")
	}
	if rec.Speed != 1 || rec.Size != 1 {
		t.Errorf("traits must stay as spawned, got %+v", rec)
	}
	if rec.X != 4 || rec.Y != 5 || rec.Energy != 1.5 || !rec.HasPosition {
		t.Errorf("position and energy should be applied, got %+v", rec)
	}
}

func TestApplyStatus_UnknownOrDeadIsNoOp(t *testing.T) {
	w := spawn(t, unitSpecs(2), nil, FoodItem{1, 1}, FoodItem{2, 2})

	if _, _, ok := w.ApplyStatus("creature9_9", 0, 0, 1, traits.Set{}); ok {
		t.Error("unknown id should be rejected")
	}

	w.MarkDead("creature1_0")
	if _, _, ok := w.ApplyStatus("creature1_0", 7, 7, 3, traits.Set{}); ok {
		t.Error("dead creature should be rejected")
	}
	rec, _ := w.Record("creature1_0")
	if rec.X != 1 || rec.Energy != 0 {
		t.Errorf("dead record must not change, got %+v", rec)
	}
}

// ---------- removal ----------

func TestRemoveFood_KeepsOrder(t *testing.T) {
	w := spawn(t, nil, []FoodItem{{1, 0}, {2, 0}, {3, 0}})

	food, ok := w.RemoveFood(1)
	if !ok || food.X != 2 {
		t.Fatalf("RemoveFood(1) = %+v, %v", food, ok)
	}
	foods := w.Foods()
	if len(foods) != 2 || foods[0].X != 1 || foods[1].X != 3 {
		t.Errorf("unexpected remaining foods %+v", foods)
	}
	if _, ok := w.RemoveFood(5); ok {
		t.Error("out of range removal should fail")
	}
}

func TestMarkDead_AtMostOnce(t *testing.T) {
	w := spawn(t, unitSpecs(1), nil, FoodItem{1, 1})

	rec, ok := w.MarkDead("creature1_0")
	if !ok {
		t.Fatal("first MarkDead should succeed")
	}
	if rec.Alive || rec.Active || rec.FoodsEaten != 0 || rec.Energy != 0 {
		t.Errorf("dead record should be zeroed and inactive: %+v", rec)
	}
	if _, ok := w.MarkDead("creature1_0"); ok {
		t.Error("second MarkDead should fail")
	}
	if w.ActiveCount() != 0 {
		t.Errorf("expected no active creatures, got %d", w.ActiveCount())
	}
}

func TestFinish_LeavesActiveSetOnce(t *testing.T) {
	w := spawn(t, unitSpecs(2), nil)

	rec, ok := w.Finish("creature1_1", 0.25)
	if !ok || rec.Energy != 0.25 || rec.Active || !rec.Alive {
		t.Fatalf("Finish = %+v, %v", rec, ok)
	}
	if _, ok := w.Finish("creature1_1", 1); ok {
		t.Error("second Finish should be a no-op")
	}
	if ids := w.ActiveIDs(); len(ids) != 1 || ids[0] != "creature1_0" {
		t.Errorf("unexpected active ids %v", ids)
	}

	ids := w.DeactivateAll()
	if len(ids) != 1 || w.ActiveCount() != 0 {
		t.Errorf("DeactivateAll returned %v, active=%d", ids, w.ActiveCount())
	}
}

// ---------- end condition ----------

func TestShouldEnd(t *testing.T) {
	grace := 2 * time.Second

	tests := []struct {
		name    string
		foods   []FoodItem
		active  int
		elapsed time.Duration
		want    EndReason
	}{
		{"active and food left", []FoodItem{{1, 1}}, 2, time.Hour, EndNone},
		{"no food within grace", nil, 2, grace, EndNone},
		{"no food past grace", nil, 2, grace + time.Millisecond, EndFoodGone},
		{"no active creatures", []FoodItem{{1, 1}}, 0, 0, EndNoneActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := spawn(t, unitSpecs(2), tt.foods)
			for i := tt.active; i < 2; i++ {
				w.Finish(CreatureID(1, i), 0)
			}
			if got := w.ShouldEnd(t0.Add(tt.elapsed), grace); got != tt.want {
				t.Errorf("ShouldEnd = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------- snapshot ----------

func TestSnapshot_IsDetachedCopy(t *testing.T) {
	w := spawn(t, unitSpecs(3), []FoodItem{{1, 1}}, FoodItem{0, 0})

	snap := w.Snapshot()
	for i, r := range snap.Records {
		if r.Seq != i {
			t.Fatalf("records not in spawn order: %+v", snap.Records)
		}
	}

	snap.Records[0].Alive = false
	snap.Foods[0].X = 99
	if rec, _ := w.Record("creature1_0"); !rec.Alive {
		t.Error("mutating a snapshot record must not affect the world")
	}
	if w.Foods()[0].X != 1 {
		t.Error("mutating snapshot foods must not affect the world")
	}
}
