package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pthm-cable/natsel/systems"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot is the final state of one generation, kept for offline replay
// and debugging.
type Snapshot struct {
	Version    int    `json:"version"`
	Seed       int64  `json:"seed"`
	Generation int    `json:"generation"`
	EndReason  string `json:"end_reason"`
	EndedAt    string `json:"ended_at"`

	Creatures []CreatureState `json:"creatures"`
	FoodsLeft []FoodState     `json:"foods_left"`
}

// CreatureState is one creature as the coordinator last saw it.
type CreatureState struct {
	ID         string  `json:"id"`
	Speed      float64 `json:"speed"`
	Size       float64 `json:"size"`
	Sense      float64 `json:"sense"`
	Energy     float64 `json:"energy"`
	FoodsEaten int     `json:"foods_eaten"`
	Kills      int     `json:"kills"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Placed     bool    `json:"placed"`
	Alive      bool    `json:"alive"`
	Fate       string  `json:"fate"`
}

// FoodState is an uneaten food item.
type FoodState struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewSnapshot builds a snapshot from the world state and the selection
// made from it.
func NewSnapshot(seed int64, snap systems.Snapshot, sel systems.Selection, reason systems.EndReason, at time.Time) *Snapshot {
	s := &Snapshot{
		Version:    SnapshotVersion,
		Seed:       seed,
		Generation: snap.Generation,
		EndReason:  string(reason),
		EndedAt:    at.UTC().Format(TimeFormat),
		Creatures:  make([]CreatureState, len(snap.Records)),
		FoodsLeft:  make([]FoodState, len(snap.Foods)),
	}
	for i, r := range snap.Records {
		s.Creatures[i] = CreatureState{
			ID:         r.ID,
			Speed:      r.Speed,
			Size:       r.Size,
			Sense:      r.Sense,
			Energy:     r.Energy,
			FoodsEaten: r.FoodsEaten,
			Kills:      r.Kills,
			X:          r.X,
			Y:          r.Y,
			Placed:     r.HasPosition,
			Alive:      r.Alive,
			Fate:       sel.Fates[r.ID].String(),
		}
	}
	for i, f := range snap.Foods {
		s.FoodsLeft[i] = FoodState{X: f.X, Y: f.Y}
	}
	return s
}

// SaveSnapshot writes a snapshot into dir and returns its path.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("generation_%04d.json", snapshot.Generation))

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}
	return &snapshot, nil
}
