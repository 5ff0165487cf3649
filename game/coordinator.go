// Package game runs the generation coordinator: a single goroutine that owns
// the world, arbitrates food and predation, and drives the generation
// lifecycle.
package game

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/pthm-cable/natsel/config"
	"github.com/pthm-cable/natsel/creature"
	"github.com/pthm-cable/natsel/protocol"
	"github.com/pthm-cable/natsel/systems"
	"github.com/pthm-cable/natsel/telemetry"
	"github.com/pthm-cable/natsel/traits"
)

const defaultInboxSize = 256

// KilledByHost is the killed_by value for creatures removed by the host.
const KilledByHost = "host"

// Process is a running creature the coordinator can direct.
type Process interface {
	ID() string
	// Deliver must not block; false means the directive was dropped.
	Deliver(payload []byte) bool
	// Stop must tolerate being called on an exited process.
	Stop()
}

// Spawner launches creature processes reporting to inbox.
type Spawner interface {
	Spawn(ctx context.Context, spec creature.Spec, inbox chan<- protocol.Inbound) (Process, error)
}

// SpawnerFunc adapts a function to Spawner.
type SpawnerFunc func(ctx context.Context, spec creature.Spec, inbox chan<- protocol.Inbound) (Process, error)

// Spawn calls f.
func (f SpawnerFunc) Spawn(ctx context.Context, spec creature.Spec, inbox chan<- protocol.Inbound) (Process, error) {
	return f(ctx, spec, inbox)
}

// Sink receives the audit trail.
type Sink interface {
	WriteGeneration(summary telemetry.GenerationSummary, details []telemetry.CreatureDetail) error
	WritePredation(ev telemetry.PredationEvent) error
	WriteSnapshot(s *telemetry.Snapshot) error
}

// Publisher receives host events after each committed change. Publish must
// not block.
type Publisher interface {
	Publish(msg protocol.Message)
}

type nopSink struct{}

func (nopSink) WriteGeneration(telemetry.GenerationSummary, []telemetry.CreatureDetail) error {
	return nil
}
func (nopSink) WritePredation(telemetry.PredationEvent) error { return nil }
func (nopSink) WriteSnapshot(*telemetry.Snapshot) error       { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(protocol.Message) {}

// Option customizes coordinator construction.
type Option func(*Coordinator)

// WithSink sets the audit sink.
func WithSink(s Sink) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithPublisher sets the host event publisher.
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock allows tests to control time.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithInboxSize overrides the inbox buffer.
func WithInboxSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.inbox = make(chan protocol.Inbound, n)
		}
	}
}

// Coordinator owns the current generation. Every mutation happens on the
// goroutine running Run, one event at a time, which is what makes food and
// prey consumption happen at most once.
type Coordinator struct {
	cfg       *config.Config
	world     *systems.World
	feeding   *systems.FeedingSystem
	predation *systems.PredationSystem
	rng       *rand.Rand

	spawner   Spawner
	sink      Sink
	publisher Publisher
	collector *telemetry.Collector
	perf      *telemetry.PerfCollector
	logger    *slog.Logger
	clock     func() time.Time

	inbox chan protocol.Inbound
	procs map[string]Process

	lc        Lifecycle
	endTimer  *time.Timer
	endReason systems.EndReason
	nextSpecs []systems.PopulationSpec
	summaries []telemetry.GenerationSummary
}

// NewCoordinator creates a coordinator. The random source is seeded from
// cfg.Seed, so food placement, spawn positions and offspring traits repeat
// for the same seed.
func NewCoordinator(cfg *config.Config, spawner Spawner, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		world:     systems.NewWorld(),
		feeding:   systems.NewFeedingSystem(cfg.Feeding, cfg.Energy),
		predation: systems.NewPredationSystem(cfg.Predation, cfg.Energy),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		spawner:   spawner,
		sink:      nopSink{},
		publisher: nopPublisher{},
		collector: telemetry.NewCollector(),
		perf:      telemetry.NewPerfCollector(0),
		logger:    slog.Default(),
		clock:     time.Now,
		inbox:     make(chan protocol.Inbound, defaultInboxSize),
		procs:     make(map[string]Process),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Inbox is where creature processes and the host send their messages.
func (c *Coordinator) Inbox() chan<- protocol.Inbound {
	return c.inbox
}

// Phase returns the lifecycle phase. Only meaningful from the Run goroutine
// or after Run has returned.
func (c *Coordinator) Phase() Phase {
	return c.lc.Phase()
}

// Summaries returns the summaries of every finalized generation. Call it
// after Run has returned.
func (c *Coordinator) Summaries() []telemetry.GenerationSummary {
	out := make([]telemetry.GenerationSummary, len(c.summaries))
	copy(out, c.summaries)
	return out
}

// Run spawns the first generation and processes events until the
// simulation terminates or ctx is cancelled, in which case ctx.Err() is
// returned. All creature processes are stopped before it returns.
func (c *Coordinator) Run(ctx context.Context) error {
	defer c.shutdown()

	c.start(ctx)

	ticker := time.NewTicker(c.cfg.Derived.PollInterval)
	defer ticker.Stop()

	for c.lc.Phase() != PhaseTerminated {
		select {
		case <-ctx.Done():
			c.lc.Transition(PhaseTerminated, c.now())
			c.logger.Info("simulation_cancelled", "generation", c.world.Generation())
			return ctx.Err()
		case in := <-c.inbox:
			c.handle(in)
		case <-ticker.C:
			c.poll()
		case <-c.endingC():
			c.endTimer = nil
			c.finalize()
		}
		c.advance(ctx)
	}
	return nil
}

func (c *Coordinator) start(ctx context.Context) {
	specs := systems.InitialPopulation(c.rng, c.cfg.Population, c.cfg.Traits)
	c.spawnGeneration(ctx, 1, specs)
}

func (c *Coordinator) shutdown() {
	c.stopEndTimer()
	c.stopAll()
}

func (c *Coordinator) now() time.Time {
	return c.clock()
}

// handle processes one inbound message to completion.
func (c *Coordinator) handle(in protocol.Inbound) {
	c.perf.StartEvent()
	defer c.perf.EndEvent()

	c.perf.StartStage(telemetry.StageDecode)
	msg, err := protocol.Decode(in.Payload)
	if err != nil {
		c.collector.RecordMalformed()
		c.logger.Warn("malformed_message", "from", in.From, "error", err)
		return
	}

	switch m := msg.(type) {
	case protocol.Status:
		c.handleStatus(m)
	case protocol.Finished:
		c.handleFinished(m)
	case protocol.Kill:
		c.handleKill(m)
	default:
		c.logger.Warn("unexpected_message", "from", in.From, "type", string(msg.MessageType()))
	}
}

// handleStatus applies a report, then arbitrates food and predation for
// the reporting creature. Reported counters are never trusted.
func (c *Coordinator) handleStatus(m protocol.Status) {
	phase := c.lc.Phase()
	if phase != PhaseRunning && phase != PhaseEnding {
		c.collector.RecordIgnored()
		return
	}

	c.perf.StartStage(telemetry.StageApply)
	reported := traits.Set{Speed: m.Speed, Size: m.Size, Sense: m.Sense}
	rec, mismatch, ok := c.world.ApplyStatus(m.ID, m.X, m.Y, m.Energy, reported)
	if !ok {
		c.collector.RecordIgnored()
		return
	}
	c.collector.RecordStatus(mismatch)
	if mismatch {
		c.logger.Debug("trait_mismatch", "creature", m.ID, "reported", reported, "recorded", rec.Traits())
	}

	if phase == PhaseRunning {
		rec = c.arbitrate(rec)
	}
	c.perf.StartStage(telemetry.StagePublish)
	c.publish(statusEvent(c.world.Generation(), rec))
}

// arbitrate runs food then predation for a freshly applied record and
// returns the record as it stands afterwards.
func (c *Coordinator) arbitrate(rec systems.CreatureRecord) systems.CreatureRecord {
	now := c.now()

	c.perf.StartStage(telemetry.StageFeeding)
	if meal, ok := c.feeding.Feed(c.world, rec.ID, now); ok {
		rec = meal.Eater
		c.collector.RecordMeal()
		c.deliver(rec.ID, protocol.EatConfirm{ID: rec.ID, EnergyGain: protocol.Gain(meal.Gain)})
		c.publish(protocol.FoodConsumed{X: meal.Food.X, Y: meal.Food.Y})
		c.logger.Debug("food_consumed",
			"creature", rec.ID,
			"foods_eaten", rec.FoodsEaten,
			"foods_left", c.world.FoodCount(),
		)
	}

	c.perf.StartStage(telemetry.StageTargeting)
	if target := c.feeding.Target(c.world, rec.X, rec.Y); target.Found {
		c.deliver(rec.ID, protocol.Target{X: target.X, Y: target.Y})
	} else {
		c.deliver(rec.ID, protocol.NoTarget{})
	}

	c.perf.StartStage(telemetry.StagePredation)
	for _, k := range c.predation.Hunt(c.world, rec.ID) {
		rec = k.Predator
		c.collector.RecordKill()
		c.retire(k.Prey.ID)
		c.deliver(rec.ID, protocol.EatConfirm{ID: rec.ID, EnergyGain: protocol.Gain(k.Gain), Prey: k.Prey.ID})

		ev := telemetry.NewPredationEvent(c.world.Generation(), now, k)
		if err := c.sink.WritePredation(ev); err != nil {
			c.logger.Error("predation_write_failed", "error", err)
		}
		c.publish(protocol.CreatureRemoved{ID: k.Prey.ID, Reason: protocol.ReasonKilled, KilledBy: rec.ID})
		c.logger.Info("predation", "event", ev)
	}
	return rec
}

// handleFinished records a creature's final report.
func (c *Coordinator) handleFinished(m protocol.Finished) {
	rec, ok := c.world.Finish(m.ID, m.Energy)
	if !ok {
		c.collector.RecordIgnored()
		return
	}
	c.collector.RecordFinished()
	c.retire(m.ID)
	c.publish(statusEvent(c.world.Generation(), rec))
	c.publish(protocol.CreatureRemoved{ID: m.ID, Reason: protocol.ReasonFinished})
	c.logger.Debug("creature_finished", "creature", m.ID, "energy", m.Energy, "foods_eaten", rec.FoodsEaten)
}

// handleKill removes a creature on request of the host.
func (c *Coordinator) handleKill(m protocol.Kill) {
	phase := c.lc.Phase()
	if phase != PhaseRunning && phase != PhaseEnding {
		return
	}
	if _, ok := c.world.MarkDead(m.TargetID); !ok {
		c.collector.RecordIgnored()
		return
	}
	c.collector.RecordHostKill()
	c.retire(m.TargetID)
	c.publish(protocol.CreatureRemoved{ID: m.TargetID, Reason: protocol.ReasonKilled, KilledBy: KilledByHost})
	c.logger.Info("creature_killed_by_host", "creature", m.TargetID)
}

// deliver sends a directive to a creature, best effort.
func (c *Coordinator) deliver(id string, msg protocol.Message) {
	proc, ok := c.procs[id]
	if !ok {
		c.collector.RecordUndelivered()
		return
	}
	payload, err := protocol.Encode(msg)
	if err != nil {
		c.logger.Error("encode_failed", "type", string(msg.MessageType()), "error", err)
		return
	}
	if !proc.Deliver(payload) {
		c.collector.RecordUndelivered()
		c.logger.Debug("directive_dropped", "creature", id, "type", string(msg.MessageType()))
	}
}

// retire stops a creature's process and forgets it.
func (c *Coordinator) retire(id string) {
	if proc, ok := c.procs[id]; ok {
		proc.Stop()
		delete(c.procs, id)
	}
}

func (c *Coordinator) stopAll() {
	for id, proc := range c.procs {
		proc.Stop()
		delete(c.procs, id)
	}
}

func (c *Coordinator) publish(msg protocol.Message) {
	c.publisher.Publish(msg)
}

func statusEvent(generation int, r systems.CreatureRecord) protocol.CreatureStatus {
	return protocol.CreatureStatus{
		Generation: generation,
		ID:         r.ID,
		X:          r.X,
		Y:          r.Y,
		Energy:     r.Energy,
		Speed:      r.Speed,
		Size:       r.Size,
		Sense:      r.Sense,
		FoodsEaten: r.FoodsEaten,
		Kills:      r.Kills,
		Alive:      r.Alive,
	}
}
