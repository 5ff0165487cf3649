package game

import (
	"context"
	"time"

	"github.com/pthm-cable/natsel/creature"
	"github.com/pthm-cable/natsel/protocol"
	"github.com/pthm-cable/natsel/systems"
	"github.com/pthm-cable/natsel/telemetry"
	"github.com/pthm-cable/natsel/traits"
)

// Phase is a state of the generation lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSpawning
	PhaseRunning
	PhaseEnding
	PhaseFinalized
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSpawning:
		return "spawning"
	case PhaseRunning:
		return "running"
	case PhaseEnding:
		return "ending"
	case PhaseFinalized:
		return "finalized"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

var validTransitions = map[Phase][]Phase{
	PhaseIdle:      {PhaseSpawning, PhaseTerminated},
	PhaseSpawning:  {PhaseRunning, PhaseTerminated},
	PhaseRunning:   {PhaseEnding, PhaseTerminated},
	PhaseEnding:    {PhaseFinalized, PhaseTerminated},
	PhaseFinalized: {PhaseSpawning, PhaseTerminated},
}

// Lifecycle tracks the current phase. Only listed transitions are taken, so
// a repeated trigger for a phase already left is a no-op.
type Lifecycle struct {
	phase Phase
	since time.Time
}

// Phase returns the current phase.
func (l *Lifecycle) Phase() Phase {
	return l.phase
}

// Since returns when the current phase was entered.
func (l *Lifecycle) Since() time.Time {
	return l.since
}

// CanTransition reports whether from -> to is a valid transition.
func (l *Lifecycle) CanTransition(from, to Phase) bool {
	for _, p := range validTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Transition moves to the given phase if allowed and reports whether it did.
func (l *Lifecycle) Transition(to Phase, now time.Time) bool {
	if !l.CanTransition(l.phase, to) {
		return false
	}
	l.phase = to
	l.since = now
	return true
}

// spawnGeneration places food, registers the population and launches one
// process per creature.
func (c *Coordinator) spawnGeneration(ctx context.Context, index int, specs []systems.PopulationSpec) {
	now := c.now()
	if !c.lc.Transition(PhaseSpawning, now) {
		return
	}

	cfg := c.cfg
	foods := systems.RandomFoods(c.rng, cfg.World.FoodCount, cfg.World.Width, cfg.World.Height)
	records := c.world.SpawnGeneration(index, specs, foods, now)
	c.collector.Begin(index, now)
	c.nextSpecs = nil

	points := make([]protocol.Point, len(foods))
	for i, f := range foods {
		points[i] = protocol.Point{X: f.X, Y: f.Y}
	}
	c.publish(protocol.GenerationStart{Generation: index, Foods: points})

	for i, rec := range records {
		x, y := c.homePosition()
		spec := creature.Spec{
			ID:         rec.ID,
			Generation: index,
			Traits:     rec.Traits(),
			Energy:     specs[i].Energy,
			HomeX:      x,
			HomeY:      y,
		}
		proc, err := c.spawner.Spawn(ctx, spec, c.inbox)
		if err != nil {
			c.logger.Error("spawn_failed", "creature", rec.ID, "error", err)
			c.world.Finish(rec.ID, rec.Energy)
			continue
		}
		c.procs[rec.ID] = proc
	}

	c.lc.Transition(PhaseRunning, c.now())
	c.logger.Info("generation_started",
		"generation", index,
		"population", len(records),
		"foods", len(foods),
		"active", c.world.ActiveCount(),
	)
}

func (c *Coordinator) homePosition() (float64, float64) {
	w, h := c.cfg.World.Width, c.cfg.World.Height
	if c.cfg.Population.SpawnOnEdge {
		return traits.SpawnOnEdge(c.rng, w, h)
	}
	return traits.SpawnInside(c.rng, w, h)
}

// poll evaluates the end condition. It runs on its own interval so the end
// of a generation is detected even when no creature is reporting.
func (c *Coordinator) poll() {
	if c.lc.Phase() != PhaseRunning {
		return
	}
	if reason := c.world.ShouldEnd(c.now(), c.cfg.Derived.LastEatGrace); reason != systems.EndNone {
		c.beginEnding(reason)
	}
}

// beginEnding enters ENDING once: every active creature is told the
// generation is over and the finish grace timer is armed.
func (c *Coordinator) beginEnding(reason systems.EndReason) bool {
	if !c.lc.Transition(PhaseEnding, c.now()) {
		return false
	}

	c.endReason = reason
	active := c.world.ActiveIDs()
	c.logger.Info("generation_ending",
		"generation", c.world.Generation(),
		"reason", string(reason),
		"active", len(active),
		"foods_left", c.world.FoodCount(),
	)

	for _, id := range active {
		c.deliver(id, protocol.GenerationEnd{})
	}
	if len(active) > 0 {
		c.endTimer = time.NewTimer(c.cfg.Derived.FinishGrace)
	}
	return true
}

// finalize closes the generation once: stragglers are stopped with their
// last known state, the audit rows are written and the next population is
// selected.
func (c *Coordinator) finalize() bool {
	now := c.now()
	if !c.lc.Transition(PhaseFinalized, now) {
		return false
	}
	c.stopEndTimer()

	forced := c.world.DeactivateAll()
	c.collector.RecordForcedStop(len(forced))
	for _, id := range forced {
		c.publish(protocol.CreatureRemoved{ID: id, Reason: protocol.ReasonGenerationEnd})
	}
	c.stopAll()

	gen := c.world.Generation()
	snap := c.world.Snapshot()
	sel := systems.Select(snap.Records, c.rng, c.cfg.Traits)
	summary := telemetry.Summarize(gen, snap.Records, sel)
	details := telemetry.Details(gen, snap.Records, sel)

	if err := c.sink.WriteGeneration(summary, details); err != nil {
		c.logger.Error("report_write_failed", "generation", gen, "error", err)
	}
	if err := c.sink.WriteSnapshot(telemetry.NewSnapshot(c.cfg.Seed, snap, sel, c.endReason, now)); err != nil {
		c.logger.Error("snapshot_write_failed", "generation", gen, "error", err)
	}

	c.summaries = append(c.summaries, summary)
	c.nextSpecs = sel.Specs

	c.logger.Info("generation_finalized", "summary", summary)
	c.logger.Info("generation_activity", "activity", c.collector.Flush(now), "perf", c.perf.Stats())
	return true
}

// advance moves the lifecycle forward after an event: an ENDING generation
// with nobody left is finalized right away, and a FINALIZED one either
// spawns the next generation or terminates.
func (c *Coordinator) advance(ctx context.Context) {
	if c.lc.Phase() == PhaseEnding && c.world.ActiveCount() == 0 {
		c.finalize()
	}
	if c.lc.Phase() != PhaseFinalized {
		return
	}

	gen := c.world.Generation()
	switch {
	case len(c.nextSpecs) == 0:
		c.logger.Info("simulation_finished", "reason", "extinct", "generation", gen)
		c.lc.Transition(PhaseTerminated, c.now())
	case gen >= c.cfg.Population.MaxGenerations:
		c.logger.Info("simulation_finished", "reason", "max_generations", "generation", gen)
		c.lc.Transition(PhaseTerminated, c.now())
	default:
		c.spawnGeneration(ctx, gen+1, c.nextSpecs)
	}
}

func (c *Coordinator) stopEndTimer() {
	if c.endTimer != nil {
		c.endTimer.Stop()
		c.endTimer = nil
	}
}

// endingC is the finish grace timer channel, nil when no timer is armed.
func (c *Coordinator) endingC() <-chan time.Time {
	if c.endTimer == nil {
		return nil
	}
	return c.endTimer.C
}
