package component

// Health tracks current and maximum hit points. RegenAcc is the regen
// system's per-entity accumulator; no other system touches it.
type Health struct {
	HP, MaxHP int32
	RegenAcc  int
}

// Lifetime marks an entity for destruction once Remaining reaches zero.
type Lifetime struct {
	Remaining float64 // seconds
}
