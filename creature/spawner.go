package creature

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/pthm-cable/natsel/protocol"
)

// ErrClosed is returned when spawning after Close.
var ErrClosed = errors.New("creature: spawner closed")

// Spawner launches creature goroutines and waits for them on Close. Each
// creature gets its own random source seeded from the spawner's, so a fixed
// seed gives the same per-creature streams.
type Spawner struct {
	params Params
	logger *slog.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	closed bool
	wg     sync.WaitGroup
}

// NewSpawner creates a spawner.
func NewSpawner(params Params, seed int64, logger *slog.Logger) *Spawner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Spawner{
		params: params,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Spawn starts a creature that reports to out until it finishes, is stopped
// or ctx ends.
func (s *Spawner) Spawn(ctx context.Context, spec Spec, out chan<- protocol.Inbound) (*Creature, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	rng := rand.New(rand.NewSource(s.rng.Int63()))
	s.wg.Add(1)
	s.mu.Unlock()

	c := newCreature(spec, s.params, rng, out, s.logger)
	period := s.params.Period(rng)

	go func() {
		defer s.wg.Done()
		c.run(ctx, period)
	}()
	return c, nil
}

// Close refuses further spawns and waits for running creatures to exit.
// Callers stop the creatures (or cancel their context) first.
func (s *Spawner) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
