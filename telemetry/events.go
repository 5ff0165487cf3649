// Package telemetry provides generation statistics and the CSV audit trail.
package telemetry

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/natsel/systems"
)

// TimeFormat is the timestamp layout used in audit files.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// PredationEvent is one row of the predation audit log. Rows are never
// rewritten.
type PredationEvent struct {
	Generation   int     `csv:"generation"`
	Time         string  `csv:"time"`
	PredatorID   string  `csv:"predator_id"`
	PreyID       string  `csv:"prey_id"`
	EnergyGained float64 `csv:"energy_gained"`
	PredX        float64 `csv:"pred_x"`
	PredY        float64 `csv:"pred_y"`
	PreyX        float64 `csv:"prey_x"`
	PreyY        float64 `csv:"prey_y"`
	Distance     float64 `csv:"distance"`
}

// NewPredationEvent creates an audit row for a committed kill.
func NewPredationEvent(generation int, at time.Time, k systems.Kill) PredationEvent {
	return PredationEvent{
		Generation:   generation,
		Time:         at.UTC().Format(TimeFormat),
		PredatorID:   k.Predator.ID,
		PreyID:       k.Prey.ID,
		EnergyGained: k.Gain,
		PredX:        k.Predator.X,
		PredY:        k.Predator.Y,
		PreyX:        k.PreyX,
		PreyY:        k.PreyY,
		Distance:     k.Distance,
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (e PredationEvent) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", e.Generation),
		slog.String("predator", e.PredatorID),
		slog.String("prey", e.PreyID),
		slog.Float64("energy_gained", e.EnergyGained),
		slog.Float64("distance", e.Distance),
	)
}
