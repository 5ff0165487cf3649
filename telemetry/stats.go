package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/natsel/systems"
)

// GenerationSummary holds aggregated statistics for one finished generation.
type GenerationSummary struct {
	Generation     int     `csv:"generation"`
	Initial        int     `csv:"initial"`
	Deaths         int     `csv:"deaths"`
	Survivors      int     `csv:"survivors"`
	Reproducers    int     `csv:"reproducers"`
	NextPopulation int     `csv:"next_population"`
	AvgSpeed       float64 `csv:"avg_speed"`
	AvgFoods       float64 `csv:"avg_foods"`
	AvgSize        float64 `csv:"avg_size"`
	AvgSense       float64 `csv:"avg_sense"`

	// Log-only spread of the population
	Killed   int     `csv:"-"`
	SpeedStd float64 `csv:"-"`
	SizeStd  float64 `csv:"-"`
	SenseStd float64 `csv:"-"`
	FoodsP50 float64 `csv:"-"`
	FoodsMax float64 `csv:"-"`
}

// CreatureDetail is one per-creature row of a finished generation.
// Alive means the creature is carried into the next generation.
type CreatureDetail struct {
	Generation   int     `csv:"generation"`
	ID           string  `csv:"id"`
	Speed        float64 `csv:"speed"`
	Energy       float64 `csv:"energy"`
	Size         float64 `csv:"size"`
	Sense        float64 `csv:"sense"`
	FoodsEaten   int     `csv:"foods_eaten"`
	Alive        bool    `csv:"alive"`
	IsReproducer bool    `csv:"is_reproducer"`
}

// Summarize computes the summary of a generation from its final records and
// the selection made from them. Averages cover every record, killed ones
// included.
func Summarize(generation int, records []systems.CreatureRecord, sel systems.Selection) GenerationSummary {
	s := GenerationSummary{
		Generation:     generation,
		Initial:        len(records),
		Deaths:         sel.Deaths,
		Survivors:      sel.Survivors,
		Reproducers:    sel.Reproducers,
		NextPopulation: len(sel.Specs),
	}
	if len(records) == 0 {
		return s
	}

	speeds := make([]float64, len(records))
	sizes := make([]float64, len(records))
	senses := make([]float64, len(records))
	foods := make([]float64, len(records))
	for i, r := range records {
		speeds[i] = r.Speed
		sizes[i] = r.Size
		senses[i] = r.Sense
		foods[i] = float64(r.FoodsEaten)
		if !r.Alive {
			s.Killed++
		}
	}

	s.AvgSpeed, s.SpeedStd = meanStd(speeds)
	s.AvgSize, s.SizeStd = meanStd(sizes)
	s.AvgSense, s.SenseStd = meanStd(senses)
	s.AvgFoods = stat.Mean(foods, nil)

	sort.Float64s(foods)
	s.FoodsP50 = stat.Quantile(0.5, stat.Empirical, foods, nil)
	s.FoodsMax = foods[len(foods)-1]

	return s
}

// Details builds the per-creature rows in record order.
func Details(generation int, records []systems.CreatureRecord, sel systems.Selection) []CreatureDetail {
	rows := make([]CreatureDetail, 0, len(records))
	for _, r := range records {
		fate, ok := sel.Fates[r.ID]
		if !ok {
			fate = systems.FateOf(r)
		}
		rows = append(rows, CreatureDetail{
			Generation:   generation,
			ID:           r.ID,
			Speed:        r.Speed,
			Energy:       r.Energy,
			Size:         r.Size,
			Sense:        r.Sense,
			FoodsEaten:   r.FoodsEaten,
			Alive:        fate != systems.FateDeath,
			IsReproducer: fate == systems.FateReproduce,
		})
	}
	return rows
}

// meanStd returns the mean and the population standard deviation.
func meanStd(values []float64) (mean, std float64) {
	if len(values) < 2 {
		return stat.Mean(values, nil), 0
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	return mean, math.Sqrt(variance)
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationSummary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", s.Generation),
		slog.Int("initial", s.Initial),
		slog.Int("deaths", s.Deaths),
		slog.Int("killed", s.Killed),
		slog.Int("survivors", s.Survivors),
		slog.Int("reproducers", s.Reproducers),
		slog.Int("next_population", s.NextPopulation),
		slog.Float64("avg_speed", s.AvgSpeed),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("avg_size", s.AvgSize),
		slog.Float64("size_std", s.SizeStd),
		slog.Float64("avg_sense", s.AvgSense),
		slog.Float64("sense_std", s.SenseStd),
		slog.Float64("avg_foods", s.AvgFoods),
		slog.Float64("foods_p50", s.FoodsP50),
		slog.Float64("foods_max", s.FoodsMax),
	)
}
