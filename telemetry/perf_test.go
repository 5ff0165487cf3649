package telemetry

import (
	"testing"
	"time"
)

// stepClock advances by step on every read.
func stepClock(step time.Duration) func() time.Time {
	now := time.Unix(0, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestPerfCollector_StageTiming(t *testing.T) {
	pc := NewPerfCollector(10)
	pc.clock = stepClock(time.Millisecond)

	for i := 0; i < 5; i++ {
		pc.StartEvent()               // t
		pc.StartStage(StageDecode)    // t+1
		pc.StartStage(StagePredation) // t+2
		pc.EndEvent()                 // t+3
	}

	stats := pc.Stats()
	if stats.Events != 5 {
		t.Errorf("Events = %d, want 5", stats.Events)
	}
	if stats.Avg != 3*time.Millisecond || stats.Max != 3*time.Millisecond {
		t.Errorf("avg=%v max=%v, want 3ms", stats.Avg, stats.Max)
	}
	if stats.StageAvg[StageDecode] != time.Millisecond {
		t.Errorf("decode avg = %v", stats.StageAvg[StageDecode])
	}
	if stats.StageAvg[StagePredation] != time.Millisecond {
		t.Errorf("predation avg = %v", stats.StageAvg[StagePredation])
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)
	pc.clock = stepClock(time.Microsecond)

	for i := 0; i < 12; i++ {
		pc.StartEvent()
		pc.StartStage(StageApply)
		pc.EndEvent()
	}

	if got := pc.Stats().Events; got != 5 {
		t.Errorf("window holds %d samples, want 5", got)
	}
}

func TestPerfCollector_Empty(t *testing.T) {
	stats := NewPerfCollector(0).Stats()
	if stats.Events != 0 || stats.Avg != 0 || stats.StageAvg == nil {
		t.Errorf("unexpected empty stats %+v", stats)
	}
}
