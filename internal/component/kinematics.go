package component

// Position is an entity's location in world units.
type Position struct {
	X, Y float64
}

// Velocity is an entity's movement per second, applied to Position by the
// movement system.
type Velocity struct {
	DX, DY float64
}
