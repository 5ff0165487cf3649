package components

// Position is the last known position of a creature.
// Known is false until the first status report arrives.
type Position struct {
	X, Y  float64
	Known bool
}
