package components

// Identity names a creature within its generation.
type Identity struct {
	ID  string // unique within a generation
	Seq int    // spawn order, used for stable iteration
}

// Vitals holds the coordinator's authoritative bookkeeping for a creature.
// Alive=false is terminal for the rest of the generation.
type Vitals struct {
	Energy     float64
	FoodsEaten int
	Kills      int
	Alive      bool
}
