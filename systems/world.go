// Package systems holds the coordinator-side world state and the arbitration,
// predation and selection rules that operate on it.
package systems

import (
	"fmt"
	"slices"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/natsel/components"
	"github.com/pthm-cable/natsel/traits"
)

// FoodItem is a food position. Items are never mutated, only removed.
type FoodItem struct {
	X, Y float64
}

// PopulationSpec describes one creature to spawn.
type PopulationSpec struct {
	Speed  float64
	Energy float64
	Size   float64
	Sense  float64
}

// Traits returns the heritable part of the spec.
func (s PopulationSpec) Traits() traits.Set {
	return traits.Set{Speed: s.Speed, Size: s.Size, Sense: s.Sense}
}

// CreatureRecord is a copy of the coordinator's view of one creature.
type CreatureRecord struct {
	ID          string
	Seq         int
	Speed       float64
	Size        float64
	Sense       float64
	Energy      float64
	FoodsEaten  int
	Kills       int
	X, Y        float64
	HasPosition bool
	Alive       bool
	Active      bool
}

// Traits returns the record's heritable traits.
func (r CreatureRecord) Traits() traits.Set {
	return traits.Set{Speed: r.Speed, Size: r.Size, Sense: r.Sense}
}

// Snapshot is a detached copy of a generation's state.
type Snapshot struct {
	Generation         int
	Records            []CreatureRecord // spawn order
	Foods              []FoodItem
	ActiveIDs          []string // spawn order
	LastFoodConsumedAt time.Time
}

// EndReason explains why a generation should end.
type EndReason string

const (
	EndNone       EndReason = ""
	EndNoneActive EndReason = "no_active_creatures"
	EndFoodGone   EndReason = "food_exhausted"
)

// CreatureID forms the id of the n-th creature of a generation.
func CreatureID(generation, n int) string {
	return fmt.Sprintf("creature%d_%d", generation, n)
}

// World is the single source of truth for the current generation.
// Creature records live in an ECS world that is rebuilt on every spawn.
// It is not safe for concurrent use; the coordinator serializes access.
type World struct {
	generation int

	ecs      *ecs.World
	mapper   *ecs.Map4[components.Identity, components.Position, components.Traits, components.Vitals]
	filter   *ecs.Filter4[components.Identity, components.Position, components.Traits, components.Vitals]
	identMap *ecs.Map[components.Identity]
	posMap   *ecs.Map[components.Position]
	traitMap *ecs.Map[components.Traits]
	vitalMap *ecs.Map[components.Vitals]

	byID   map[string]ecs.Entity
	order  []ecs.Entity
	active map[string]struct{}

	foods              []FoodItem
	lastFoodConsumedAt time.Time
}

// NewWorld creates an empty world at generation 0.
func NewWorld() *World {
	w := &World{}
	w.reset()
	return w
}

func (w *World) reset() {
	world := ecs.NewWorld()
	w.ecs = world
	w.mapper = ecs.NewMap4[components.Identity, components.Position, components.Traits, components.Vitals](world)
	w.filter = ecs.NewFilter4[components.Identity, components.Position, components.Traits, components.Vitals](world)
	w.identMap = ecs.NewMap[components.Identity](world)
	w.posMap = ecs.NewMap[components.Position](world)
	w.traitMap = ecs.NewMap[components.Traits](world)
	w.vitalMap = ecs.NewMap[components.Vitals](world)
	w.byID = make(map[string]ecs.Entity)
	w.order = w.order[:0]
	w.active = make(map[string]struct{})
	w.foods = nil
}

// SpawnGeneration discards the previous generation and registers one record
// per spec, all alive and active. Foods are copied in order.
func (w *World) SpawnGeneration(index int, specs []PopulationSpec, foods []FoodItem, now time.Time) []CreatureRecord {
	w.reset()
	w.generation = index
	w.foods = slices.Clone(foods)
	w.lastFoodConsumedAt = now

	records := make([]CreatureRecord, 0, len(specs))
	for i, spec := range specs {
		ident := components.Identity{ID: CreatureID(index, i), Seq: i}
		pos := components.Position{}
		tr := spec.Traits()
		vit := components.Vitals{Energy: spec.Energy, Alive: true}

		e := w.mapper.NewEntity(&ident, &pos, &tr, &vit)
		w.byID[ident.ID] = e
		w.order = append(w.order, e)
		w.active[ident.ID] = struct{}{}

		records = append(records, w.record(e))
	}
	return records
}

// Generation returns the current generation index.
func (w *World) Generation() int {
	return w.generation
}

// ApplyStatus stores the reported position and energy of an alive, active
// creature. Traits are fixed at spawn and reported ones are not applied; the
// second result reports whether they differed. Unknown, dead or finished
// creatures are left untouched and ok is false.
func (w *World) ApplyStatus(id string, x, y, energy float64, reported traits.Set) (rec CreatureRecord, mismatch bool, ok bool) {
	e, ok := w.lookupActive(id)
	if !ok {
		return CreatureRecord{}, false, false
	}

	pos := w.posMap.Get(e)
	pos.X, pos.Y, pos.Known = x, y, true
	w.vitalMap.Get(e).Energy = energy

	return w.record(e), *w.traitMap.Get(e) != reported, true
}

// RemoveFood removes the food at index, keeping the order of the rest.
func (w *World) RemoveFood(index int) (FoodItem, bool) {
	if index < 0 || index >= len(w.foods) {
		return FoodItem{}, false
	}
	food := w.foods[index]
	w.foods = slices.Delete(w.foods, index, index+1)
	return food, true
}

// MarkDead is the only alive -> dead transition. It zeroes the creature's
// credit and removes it from the active set. It returns false if the
// creature is unknown or already dead, so it succeeds at most once per id.
func (w *World) MarkDead(id string) (CreatureRecord, bool) {
	e, ok := w.byID[id]
	if !ok {
		return CreatureRecord{}, false
	}
	vit := w.vitalMap.Get(e)
	if !vit.Alive {
		return CreatureRecord{}, false
	}

	vit.Alive = false
	vit.FoodsEaten = 0
	vit.Energy = 0
	delete(w.active, id)

	return w.record(e), true
}

// Finish records a creature's final energy and removes it from the active
// set. It returns false for unknown, dead or already finished creatures.
func (w *World) Finish(id string, energy float64) (CreatureRecord, bool) {
	e, ok := w.lookupActive(id)
	if !ok {
		return CreatureRecord{}, false
	}
	w.vitalMap.Get(e).Energy = energy
	delete(w.active, id)
	return w.record(e), true
}

// DeactivateAll removes every remaining creature from the active set and
// returns their ids in spawn order. Their last known state is kept.
func (w *World) DeactivateAll() []string {
	ids := w.ActiveIDs()
	for _, id := range ids {
		delete(w.active, id)
	}
	return ids
}

// Record returns a copy of one creature's record.
func (w *World) Record(id string) (CreatureRecord, bool) {
	e, ok := w.byID[id]
	if !ok {
		return CreatureRecord{}, false
	}
	return w.record(e), true
}

// Foods returns a copy of the remaining foods in insertion order.
func (w *World) Foods() []FoodItem {
	return slices.Clone(w.foods)
}

// FoodCount returns the number of remaining foods.
func (w *World) FoodCount() int {
	return len(w.foods)
}

// ActiveCount returns the number of creatures still active.
func (w *World) ActiveCount() int {
	return len(w.active)
}

// IsActive reports whether a creature is still in the active set.
func (w *World) IsActive(id string) bool {
	_, ok := w.active[id]
	return ok
}

// ActiveIDs returns active creature ids in spawn order.
func (w *World) ActiveIDs() []string {
	ids := make([]string, 0, len(w.active))
	for _, e := range w.order {
		id := w.identMap.Get(e).ID
		if _, ok := w.active[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// LastFoodConsumedAt returns when food was last eaten (or the spawn time).
func (w *World) LastFoodConsumedAt() time.Time {
	return w.lastFoodConsumedAt
}

// ShouldEnd evaluates the generation-end condition: no active creatures, or
// no food left and nothing eaten for longer than grace.
func (w *World) ShouldEnd(now time.Time, grace time.Duration) EndReason {
	if len(w.active) == 0 {
		return EndNoneActive
	}
	if len(w.foods) == 0 && now.Sub(w.lastFoodConsumedAt) > grace {
		return EndFoodGone
	}
	return EndNone
}

// Snapshot returns a detached copy of the whole generation.
func (w *World) Snapshot() Snapshot {
	records := make([]CreatureRecord, 0, len(w.order))
	query := w.filter.Query()
	for query.Next() {
		ident, pos, tr, vit := query.Get()
		records = append(records, w.makeRecord(ident, pos, tr, vit))
	}
	slices.SortFunc(records, func(a, b CreatureRecord) int { return a.Seq - b.Seq })

	return Snapshot{
		Generation:         w.generation,
		Records:            records,
		Foods:              w.Foods(),
		ActiveIDs:          w.ActiveIDs(),
		LastFoodConsumedAt: w.lastFoodConsumedAt,
	}
}

func (w *World) lookupActive(id string) (ecs.Entity, bool) {
	e, ok := w.byID[id]
	if !ok {
		return e, false
	}
	if _, active := w.active[id]; !active {
		return e, false
	}
	if !w.vitalMap.Get(e).Alive {
		return e, false
	}
	return e, true
}

func (w *World) record(e ecs.Entity) CreatureRecord {
	return w.makeRecord(w.identMap.Get(e), w.posMap.Get(e), w.traitMap.Get(e), w.vitalMap.Get(e))
}

func (w *World) makeRecord(ident *components.Identity, pos *components.Position, tr *components.Traits, vit *components.Vitals) CreatureRecord {
	_, active := w.active[ident.ID]
	return CreatureRecord{
		ID:          ident.ID,
		Seq:         ident.Seq,
		Speed:       tr.Speed,
		Size:        tr.Size,
		Sense:       tr.Sense,
		Energy:      vit.Energy,
		FoodsEaten:  vit.FoodsEaten,
		Kills:       vit.Kills,
		X:           pos.X,
		Y:           pos.Y,
		HasPosition: pos.Known,
		Alive:       vit.Alive,
		Active:      active,
	}
}
