package telemetry

import (
	"log/slog"
	"time"
)

// Stage names for handling one inbound event.
const (
	StageDecode    = "decode"
	StageApply     = "apply"
	StageFeeding   = "feeding"
	StageTargeting = "targeting"
	StagePredation = "predation"
	StagePublish   = "publish"
)

var stages = []string{StageDecode, StageApply, StageFeeding, StageTargeting, StagePredation, StagePublish}

type perfSample struct {
	total  time.Duration
	stages map[string]time.Duration
}

// PerfCollector keeps handler timings over a rolling window of events.
type PerfCollector struct {
	windowSize  int
	samples     []perfSample
	writeIndex  int
	sampleCount int
	clock       func() time.Time

	current    map[string]time.Duration
	eventStart time.Time
	stageStart time.Time
	lastStage  string
}

// NewPerfCollector creates a collector averaging over windowSize events.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 256
	}
	return &PerfCollector{
		windowSize: windowSize,
		samples:    make([]perfSample, windowSize),
		clock:      time.Now,
		current:    make(map[string]time.Duration),
	}
}

// StartEvent begins timing one event.
func (p *PerfCollector) StartEvent() {
	p.eventStart = p.clock()
	p.current = make(map[string]time.Duration)
	p.lastStage = ""
}

// StartStage closes the running stage, if any, and starts the named one.
func (p *PerfCollector) StartStage(stage string) {
	now := p.clock()
	if p.lastStage != "" {
		p.current[p.lastStage] += now.Sub(p.stageStart)
	}
	p.stageStart = now
	p.lastStage = stage
}

// EndEvent closes the event and stores its sample.
func (p *PerfCollector) EndEvent() {
	now := p.clock()
	if p.lastStage != "" {
		p.current[p.lastStage] += now.Sub(p.stageStart)
		p.lastStage = ""
	}

	p.samples[p.writeIndex] = perfSample{total: now.Sub(p.eventStart), stages: p.current}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats aggregates the samples currently in the window.
type PerfStats struct {
	Events   int
	Avg      time.Duration
	Max      time.Duration
	StageAvg map[string]time.Duration
}

// Stats computes the window aggregate.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{Events: p.sampleCount, StageAvg: make(map[string]time.Duration)}
	if p.sampleCount == 0 {
		return s
	}

	var total time.Duration
	sums := make(map[string]time.Duration)
	for i := 0; i < p.sampleCount; i++ {
		sample := p.samples[i]
		total += sample.total
		if sample.total > s.Max {
			s.Max = sample.total
		}
		for stage, d := range sample.stages {
			sums[stage] += d
		}
	}

	n := time.Duration(p.sampleCount)
	s.Avg = total / n
	for stage, sum := range sums {
		s.StageAvg[stage] = sum / n
	}
	return s
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("events", s.Events),
		slog.Int64("avg_us", s.Avg.Microseconds()),
		slog.Int64("max_us", s.Max.Microseconds()),
	}
	for _, stage := range stages {
		if d, ok := s.StageAvg[stage]; ok {
			attrs = append(attrs, slog.Int64(stage+"_us", d.Microseconds()))
		}
	}
	return slog.GroupValue(attrs...)
}
