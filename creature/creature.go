package creature

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/pthm-cable/natsel/protocol"
	"github.com/pthm-cable/natsel/traits"
)

// inboxSize bounds the directives queued for a creature. Directives beyond
// it are dropped; the next status report brings fresh ones.
const inboxSize = 16

// Spec describes a creature to launch.
type Spec struct {
	ID         string
	Generation int
	Traits     traits.Set
	Energy     float64
	HomeX      float64
	HomeY      float64
}

// Creature is one running creature process. It shares no memory with the
// coordinator; everything crosses as encoded payloads.
type Creature struct {
	spec   Spec
	params Params
	body   Body
	rng    *rand.Rand
	logger *slog.Logger

	out   chan<- protocol.Inbound
	inbox chan []byte

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newCreature(spec Spec, params Params, rng *rand.Rand, out chan<- protocol.Inbound, logger *slog.Logger) *Creature {
	return &Creature{
		spec:   spec,
		params: params,
		body: Body{
			Set:     spec.Traits,
			X:       spec.HomeX,
			Y:       spec.HomeY,
			HomeX:   spec.HomeX,
			HomeY:   spec.HomeY,
			Heading: rng.Float64() * 2 * math.Pi,
			Energy:  spec.Energy,
		},
		rng:    rng,
		logger: logger.With("creature", spec.ID),
		out:    out,
		inbox:  make(chan []byte, inboxSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// ID returns the creature id.
func (c *Creature) ID() string {
	return c.spec.ID
}

// Deliver queues a directive without blocking. It returns false when the
// creature has stopped or its inbox is full.
func (c *Creature) Deliver(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.inbox <- payload:
		return true
	default:
		return false
	}
}

// Stop asks the creature to exit. Safe to call any number of times, before
// or after the creature has exited on its own.
func (c *Creature) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// Done is closed once the creature's loop has returned.
func (c *Creature) Done() <-chan struct{} {
	return c.done
}

// run is the creature's loop: on every tick it moves and reports; between
// ticks it applies directives. It finishes when it runs out of energy, when
// it is back home after eating, or on generation_end. It also exits on Stop
// or on context cancellation.
func (c *Creature) run(ctx context.Context, period time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	c.logger.Debug("creature_started",
		"speed", c.body.Speed,
		"size", c.body.Size,
		"sense", c.body.Sense,
		"energy", c.body.Energy,
		"period", period,
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return

		case payload := <-c.inbox:
			if c.apply(payload) {
				c.finish(ctx)
				return
			}

		case <-ticker.C:
			c.body.Step(c.rng, c.params)
			if !c.send(ctx, c.status()) {
				return
			}
			if c.body.Exhausted() || c.body.Home() {
				c.finish(ctx)
				return
			}
		}
	}
}

// apply handles one directive and reports whether the creature must finish.
func (c *Creature) apply(payload []byte) bool {
	msg, err := protocol.Decode(payload)
	if err != nil {
		c.logger.Warn("creature_bad_directive", "error", err)
		return false
	}

	switch m := msg.(type) {
	case protocol.EatConfirm:
		if m.ID != c.spec.ID {
			return false
		}
		c.body.Eat(m.EnergyGain, m.Prey, c.params)
	case protocol.Target:
		c.body.TargetX, c.body.TargetY, c.body.HasTarget = m.X, m.Y, true
	case protocol.NoTarget:
		c.body.HasTarget = false
	case protocol.GenerationEnd:
		return true
	}
	return false
}

func (c *Creature) status() protocol.Status {
	return protocol.Status{
		ID:         c.spec.ID,
		X:          c.body.X,
		Y:          c.body.Y,
		Energy:     c.body.Energy,
		Speed:      c.body.Speed,
		Size:       c.body.Size,
		Sense:      c.body.Sense,
		FoodsEaten: c.body.FoodsEaten,
		Kills:      c.body.Kills,
	}
}

func (c *Creature) finish(ctx context.Context) {
	c.send(ctx, protocol.Finished{
		ID:         c.spec.ID,
		FoodsEaten: c.body.FoodsEaten,
		Energy:     c.body.Energy,
		Size:       c.body.Size,
		Sense:      c.body.Sense,
	})
	c.logger.Debug("creature_finished",
		"energy", c.body.Energy,
		"foods_eaten", c.body.FoodsEaten,
		"kills", c.body.Kills,
	)
}

// send blocks until the coordinator accepts the message, the creature is
// stopped or the context ends. It reports whether the message was sent.
func (c *Creature) send(ctx context.Context, msg protocol.Message) bool {
	payload, err := protocol.Encode(msg)
	if err != nil {
		c.logger.Error("creature_encode_failed", "type", msg.MessageType(), "error", err)
		return false
	}

	select {
	case c.out <- protocol.Inbound{From: c.spec.ID, Payload: payload}:
		return true
	case <-c.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}
