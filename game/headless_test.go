package game

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pthm-cable/natsel/config"
)

func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.Seed = 5
	cfg.World.Width = 10
	cfg.World.Height = 10
	cfg.World.FoodCount = 6
	cfg.Population.Initial = 4
	cfg.Population.MaxGenerations = 2
	cfg.Timing.ReportPeriod = 0.01
	cfg.Timing.PollInterval = 0.01
	cfg.Timing.LastEatGrace = 0.1
	cfg.Timing.FinishGrace = 0.2
	cfg.ComputeDerived()
	return cfg
}

func TestRunHeadless_CompletesGenerations(t *testing.T) {
	if testing.Short() {
		t.Skip("runs real creature goroutines")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sink := &fakeSink{}
	summaries, err := RunHeadless(ctx, fastConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), WithSink(sink))
	if err != nil {
		t.Fatalf("RunHeadless: %v", err)
	}
	if len(summaries) == 0 || len(summaries) > 2 {
		t.Fatalf("got %d generations, want 1 or 2", len(summaries))
	}
	if summaries[0].Initial != 4 {
		t.Errorf("first generation size = %d, want 4", summaries[0].Initial)
	}
	if len(sink.summaries) != len(summaries) {
		t.Errorf("sink saw %d generations, coordinator %d", len(sink.summaries), len(summaries))
	}

	for _, s := range summaries {
		if s.Deaths+s.Survivors != s.Initial {
			t.Errorf("generation %d: deaths %d + survivors %d != %d", s.Generation, s.Deaths, s.Survivors, s.Initial)
		}
		if s.NextPopulation != s.Survivors+s.Reproducers {
			t.Errorf("generation %d: next population %d", s.Generation, s.NextPopulation)
		}
	}
}

func TestRunHeadless_DefaultConfigFinalizes(t *testing.T) {
	if testing.Short() {
		t.Skip("runs real creature goroutines")
	}
	for _, seed := range []int64{1, 2, 3} {
		cfg := config.Default()
		cfg.Seed = seed
		cfg.Population.MaxGenerations = 2
		cfg.Timing.ReportPeriod = 0.01
		cfg.Timing.PollInterval = 0.01
		cfg.Timing.LastEatGrace = 0.05
		cfg.Timing.FinishGrace = 0.05
		cfg.ComputeDerived()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		summaries, err := RunHeadless(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
		cancel()
		if err != nil {
			t.Fatalf("seed %d: RunHeadless: %v after %d generations", seed, err, len(summaries))
		}
		if len(summaries) == 0 {
			t.Errorf("seed %d: no generation finalized", seed)
		}
	}
}
