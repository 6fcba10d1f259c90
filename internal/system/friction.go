package system

import (
	"math"
	"time"

	"github.com/riftvale/engine/internal/component"
	"github.com/riftvale/engine/internal/core/ecs"
	"github.com/riftvale/engine/internal/core/schedule"
)

// FrictionSystem decays Velocity toward zero. A read-modify-write on
// Velocity: the write declaration alone is enough to serialize it against
// every reader of Velocity, including MovementSystem.
type FrictionSystem struct {
	velocities *ecs.Store[component.Velocity]
	decay      float64 // fraction of speed lost per second
}

func NewFrictionSystem(vel *ecs.Store[component.Velocity], decay float64) *FrictionSystem {
	return &FrictionSystem{velocities: vel, decay: decay}
}

func (s *FrictionSystem) DeclareDependencies(b *schedule.DependencyBuilder) {
	b.Writes(s.velocities)
}

func (s *FrictionSystem) Update(dt time.Duration) {
	factor := math.Pow(1-s.decay, dt.Seconds())
	s.velocities.Each(func(_ ecs.EntityID, v *component.Velocity) {
		v.DX *= factor
		v.DY *= factor
	})
}
