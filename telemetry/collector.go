package telemetry

import (
	"log/slog"
	"time"
)

// Activity holds the message traffic of one generation.
type Activity struct {
	Generation int
	Duration   time.Duration

	Statuses     int // status reports applied
	Ignored      int // status/finished for unknown, dead or finished ids
	Malformed    int // undecodable payloads
	Meals        int
	Kills        int
	HostKills    int
	Finished     int
	ForcedStops  int // still active when the finish grace ran out
	Undelivered  int // directives dropped by a full or stopped inbox
	TraitReports int // reports whose traits disagreed with the record
}

// LogValue implements slog.LogValuer for structured logging.
func (a Activity) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", a.Generation),
		slog.Duration("duration", a.Duration),
		slog.Int("statuses", a.Statuses),
		slog.Int("ignored", a.Ignored),
		slog.Int("malformed", a.Malformed),
		slog.Int("meals", a.Meals),
		slog.Int("kills", a.Kills),
		slog.Int("host_kills", a.HostKills),
		slog.Int("finished", a.Finished),
		slog.Int("forced_stops", a.ForcedStops),
		slog.Int("undelivered", a.Undelivered),
		slog.Int("trait_mismatches", a.TraitReports),
	)
}

// Collector accumulates coordinator events for the current generation and
// produces an Activity when the generation is flushed. It is owned by the
// coordinator goroutine and is not safe for concurrent use.
type Collector struct {
	start   time.Time
	current Activity
}

// NewCollector creates a new collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Begin resets the counters for a new generation.
func (c *Collector) Begin(generation int, now time.Time) {
	c.start = now
	c.current = Activity{Generation: generation}
}

// RecordStatus records an applied status report.
func (c *Collector) RecordStatus(traitMismatch bool) {
	c.current.Statuses++
	if traitMismatch {
		c.current.TraitReports++
	}
}

// RecordIgnored records a report for an id that is no longer tracked.
func (c *Collector) RecordIgnored() {
	c.current.Ignored++
}

// RecordMalformed records an undecodable payload.
func (c *Collector) RecordMalformed() {
	c.current.Malformed++
}

// RecordMeal records a food item eaten.
func (c *Collector) RecordMeal() {
	c.current.Meals++
}

// RecordKill records a predation kill.
func (c *Collector) RecordKill() {
	c.current.Kills++
}

// RecordHostKill records a creature removed on request of the host.
func (c *Collector) RecordHostKill() {
	c.current.HostKills++
}

// RecordFinished records a creature reporting completion.
func (c *Collector) RecordFinished() {
	c.current.Finished++
}

// RecordForcedStop records a creature stopped at the end of the grace period.
func (c *Collector) RecordForcedStop(n int) {
	c.current.ForcedStops += n
}

// RecordUndelivered records a directive that could not be delivered.
func (c *Collector) RecordUndelivered() {
	c.current.Undelivered++
}

// Flush returns the generation's activity and resets the counters.
func (c *Collector) Flush(now time.Time) Activity {
	a := c.current
	if !c.start.IsZero() {
		a.Duration = now.Sub(c.start)
	}
	c.current = Activity{Generation: a.Generation}
	return a
}
