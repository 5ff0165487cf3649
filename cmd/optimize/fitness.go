package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/natsel/config"
	"github.com/pthm-cable/natsel/game"
	"github.com/pthm-cable/natsel/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	seeds      []int64
	baseConfig *config.Config
	timeScale  float64
	runTimeout time.Duration

	logger *slog.Logger

	mu           sync.Mutex
	lastQuality  float64 // quality from most recent Evaluate call
	lastTimeouts int     // seeds that hit runTimeout in the most recent call
}

// timeoutPenalty is the fitness of a run that did not terminate in time.
// It is worse than any run that finalized at least one generation.
const timeoutPenalty = 1.0

// NewFitnessEvaluator creates a new evaluator. timeScale shrinks every
// timing value so a run finishes quickly.
func NewFitnessEvaluator(params *ParamVector, seeds []int64, baseCfg *config.Config, timeScale float64, runTimeout time.Duration) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		seeds:      seeds,
		baseConfig: baseCfg,
		timeScale:  timeScale,
		runTimeout: runTimeout,
		logger:     slog.Default(),
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// LastTimeouts returns how many seeds timed out in the most recent evaluation.
func (fe *FitnessEvaluator) LastTimeouts() int {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastTimeouts
}

type seedResult struct {
	fitness  float64
	quality  float64
	timedOut bool
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			summaries, err := fe.runSimulation(x, s)
			if err != nil {
				fe.logger.Warn("run_failed", "seed", s, "generations", len(summaries), "error", err)
			}
			results[idx] = seedResult{
				fitness:  scoreRun(summaries, err, fe.baseConfig.Population.Initial),
				quality:  computeQuality(summaries),
				timedOut: errors.Is(err, context.DeadlineExceeded),
			}
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalQuality float64
	timeouts := 0
	for _, r := range results {
		totalFitness += r.fitness
		totalQuality += r.quality
		if r.timedOut {
			timeouts++
		}
	}
	n := float64(len(fe.seeds))

	fe.mu.Lock()
	fe.lastQuality = totalQuality / n
	fe.lastTimeouts = timeouts
	fe.mu.Unlock()

	return totalFitness / n
}

// runSimulation executes a single headless run and returns its summaries.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) ([]telemetry.GenerationSummary, error) {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)
	cfg.Seed = seed

	ctx, cancel := context.WithTimeout(context.Background(), fe.runTimeout)
	defer cancel()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return game.RunHeadless(ctx, cfg, quiet)
}

// copyConfig returns a copy of the base config with timing scaled.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	t := &cfg.Timing
	t.ReportPeriod *= fe.timeScale
	t.PollInterval *= fe.timeScale
	t.LastEatGrace *= fe.timeScale
	t.FinishGrace *= fe.timeScale
	cfg.ComputeDerived()
	return &cfg
}

// computeFitness is the negated number of finalized generations plus the
// final population relative to the initial one. Lineages that survive to
// max_generations with a growing population score best.
func computeFitness(summaries []telemetry.GenerationSummary, initial int) float64 {
	if len(summaries) == 0 || initial <= 0 {
		return 0
	}
	last := summaries[len(summaries)-1]
	growth := math.Min(float64(last.NextPopulation)/float64(initial), 3)
	return -(float64(len(summaries)) + growth)
}

// scoreRun is computeFitness for a run that terminated on its own. A run
// cut off by its deadline scores timeoutPenalty whatever it finalized.
func scoreRun(summaries []telemetry.GenerationSummary, err error, initial int) float64 {
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutPenalty
	}
	return computeFitness(summaries, initial)
}

// computeQuality is the mean foods eaten per creature across generations,
// squashed to [0, 1).
func computeQuality(summaries []telemetry.GenerationSummary) float64 {
	if len(summaries) == 0 {
		return 0
	}
	foods := make([]float64, len(summaries))
	for i, s := range summaries {
		foods[i] = s.AvgFoods
	}
	return 1 - math.Exp(-stat.Mean(foods, nil))
}
