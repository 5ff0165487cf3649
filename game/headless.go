package game

import (
	"context"
	"log/slog"

	"github.com/pthm-cable/natsel/config"
	"github.com/pthm-cable/natsel/creature"
	"github.com/pthm-cable/natsel/protocol"
	"github.com/pthm-cable/natsel/telemetry"
)

// NewCreatureSpawner runs creatures as goroutines of this process.
func NewCreatureSpawner(sp *creature.Spawner) Spawner {
	return SpawnerFunc(func(ctx context.Context, spec creature.Spec, inbox chan<- protocol.Inbound) (Process, error) {
		c, err := sp.Spawn(ctx, spec, inbox)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

// RunHeadless runs a whole simulation with in-process creatures and no
// observers, and returns the summary of every finalized generation.
func RunHeadless(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) ([]telemetry.GenerationSummary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sp := creature.NewSpawner(creature.ParamsFromConfig(cfg), cfg.Seed, logger)
	defer sp.Close()

	c := NewCoordinator(cfg, NewCreatureSpawner(sp), append([]Option{WithLogger(logger)}, opts...)...)
	err := c.Run(ctx)
	return c.Summaries(), err
}
