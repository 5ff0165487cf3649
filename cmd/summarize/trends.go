package main

import (
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/natsel/telemetry"
)

// Trend describes one trait over a run.
type Trend struct {
	Trait string
	First float64
	Last  float64
	Slope float64 // least-squares change per generation
	R2    float64
	// Selection is the mean gap between reproducers and the whole
	// generation, averaged over generations that had reproducers.
	Selection float64
}

type traitAccess struct {
	name    string
	summary func(telemetry.GenerationSummary) float64
	detail  func(telemetry.CreatureDetail) float64
}

var traitTable = []traitAccess{
	{"speed",
		func(s telemetry.GenerationSummary) float64 { return s.AvgSpeed },
		func(d telemetry.CreatureDetail) float64 { return d.Speed }},
	{"size",
		func(s telemetry.GenerationSummary) float64 { return s.AvgSize },
		func(d telemetry.CreatureDetail) float64 { return d.Size }},
	{"sense",
		func(s telemetry.GenerationSummary) float64 { return s.AvgSense },
		func(d telemetry.CreatureDetail) float64 { return d.Sense }},
	{"foods",
		func(s telemetry.GenerationSummary) float64 { return s.AvgFoods },
		func(d telemetry.CreatureDetail) float64 { return float64(d.FoodsEaten) }},
}

// Trends fits a line through every trait's per-generation mean.
func Trends(summaries []telemetry.GenerationSummary, details []telemetry.CreatureDetail) []Trend {
	if len(summaries) == 0 {
		return nil
	}
	gens := make([]float64, len(summaries))
	for i, s := range summaries {
		gens[i] = float64(s.Generation)
	}

	byGen := make(map[int][]telemetry.CreatureDetail)
	for _, d := range details {
		byGen[d.Generation] = append(byGen[d.Generation], d)
	}

	trends := make([]Trend, 0, len(traitTable))
	for _, ta := range traitTable {
		ys := make([]float64, len(summaries))
		for i, s := range summaries {
			ys[i] = ta.summary(s)
		}
		tr := Trend{Trait: ta.name, First: ys[0], Last: ys[len(ys)-1]}
		if len(ys) > 1 {
			alpha, beta := stat.LinearRegression(gens, ys, nil, false)
			tr.Slope = beta
			tr.R2 = stat.RSquared(gens, ys, nil, alpha, beta)
		}
		tr.Selection = selectionDifferential(byGen, ta.detail)
		trends = append(trends, tr)
	}
	return trends
}

func selectionDifferential(byGen map[int][]telemetry.CreatureDetail, value func(telemetry.CreatureDetail) float64) float64 {
	var diffs []float64
	for _, members := range byGen {
		var all, repro []float64
		for _, d := range members {
			v := value(d)
			all = append(all, v)
			if d.IsReproducer {
				repro = append(repro, v)
			}
		}
		if len(repro) == 0 {
			continue
		}
		diffs = append(diffs, stat.Mean(repro, nil)-stat.Mean(all, nil))
	}
	if len(diffs) == 0 {
		return 0
	}
	return stat.Mean(diffs, nil)
}
