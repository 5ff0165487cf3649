package host

import (
	"context"
	"sync"
	"time"

	"github.com/pthm-cable/natsel/config"
	"github.com/pthm-cable/natsel/protocol"
)

// Removal is an entry of the removal log.
type Removal struct {
	ID       string    `json:"id"`
	Reason   string    `json:"reason"`
	KilledBy string    `json:"killed_by,omitempty"`
	At       time.Time `json:"at"`
}

// WorldSize is the world extent.
type WorldSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// State is a detached copy of the view.
type State struct {
	Generation int                       `json:"generation"`
	Creatures  []protocol.CreatureStatus `json:"creatures"`
	Foods      []protocol.Point          `json:"foods"`
	Removals   []Removal                 `json:"removals"`
	World      WorldSize                 `json:"world"`
}

// View materializes coordinator events into the current generation as an
// observer sees it. Removed creatures stay in the removal log for the
// retention period, and late status updates for them are ignored within the
// stale window.
type View struct {
	staleWindow time.Duration
	retention   time.Duration
	world       WorldSize

	mu         sync.RWMutex
	generation int
	creatures  map[string]protocol.CreatureStatus
	order      []string
	foods      []protocol.Point
	removals   []Removal
	removedAt  map[string]time.Time
}

// NewView creates an empty view.
func NewView(cfg *config.Config) *View {
	return &View{
		staleWindow: cfg.Derived.StaleWindow,
		retention:   cfg.Derived.RemovalRetention,
		world:       WorldSize{Width: cfg.World.Width, Height: cfg.World.Height},
		creatures:   make(map[string]protocol.CreatureStatus),
		removedAt:   make(map[string]time.Time),
	}
}

// Apply folds one event into the view.
func (v *View) Apply(msg protocol.Message, now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch m := msg.(type) {
	case protocol.GenerationStart:
		v.generation = m.Generation
		v.creatures = make(map[string]protocol.CreatureStatus)
		v.order = v.order[:0]
		v.foods = append([]protocol.Point(nil), m.Foods...)

	case protocol.CreatureStatus:
		if at, ok := v.removedAt[m.ID]; ok && now.Sub(at) <= v.staleWindow {
			return
		}
		if _, ok := v.creatures[m.ID]; !ok {
			v.order = append(v.order, m.ID)
		}
		v.creatures[m.ID] = m

	case protocol.CreatureRemoved:
		if _, ok := v.creatures[m.ID]; ok {
			delete(v.creatures, m.ID)
			v.dropOrder(m.ID)
		}
		v.removedAt[m.ID] = now
		v.removals = append(v.removals, Removal{ID: m.ID, Reason: m.Reason, KilledBy: m.KilledBy, At: now})

	case protocol.FoodConsumed:
		for i, f := range v.foods {
			if f.X == m.X && f.Y == m.Y {
				v.foods = append(v.foods[:i], v.foods[i+1:]...)
				break
			}
		}
	}

	v.prune(now)
}

func (v *View) dropOrder(id string) {
	for i, o := range v.order {
		if o == id {
			v.order = append(v.order[:i], v.order[i+1:]...)
			return
		}
	}
}

// prune drops log entries past retention and stale markers past both windows.
func (v *View) prune(now time.Time) {
	keep := v.removals[:0]
	for _, r := range v.removals {
		if now.Sub(r.At) <= v.retention {
			keep = append(keep, r)
		}
	}
	v.removals = keep

	horizon := max(v.retention, v.staleWindow)
	for id, at := range v.removedAt {
		if now.Sub(at) > horizon {
			delete(v.removedAt, id)
		}
	}
}

// State returns a copy of the view. Removals past retention are left out.
func (v *View) State(now time.Time) State {
	v.mu.RLock()
	defer v.mu.RUnlock()

	s := State{
		Generation: v.generation,
		Creatures:  make([]protocol.CreatureStatus, 0, len(v.order)),
		Foods:      append([]protocol.Point{}, v.foods...),
		Removals:   make([]Removal, 0, len(v.removals)),
		World:      v.world,
	}
	for _, id := range v.order {
		s.Creatures = append(s.Creatures, v.creatures[id])
	}
	for _, r := range v.removals {
		if now.Sub(r.At) <= v.retention {
			s.Removals = append(s.Removals, r)
		}
	}
	return s
}

// Follow applies events from sub until it is closed or ctx is done.
func (v *View) Follow(ctx context.Context, sub Subscription, clock func() time.Time) {
	if clock == nil {
		clock = time.Now
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Events:
			if !ok {
				return
			}
			v.Apply(msg, clock())
		}
	}
}
