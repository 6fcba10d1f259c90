package system

import (
	"time"

	"github.com/riftvale/engine/internal/component"
	"github.com/riftvale/engine/internal/core/ecs"
	"github.com/riftvale/engine/internal/core/schedule"
)

// MovementSystem integrates Velocity into Position each frame.
// Reads Velocity, writes Position — it batches alongside anything that
// leaves those two alone.
type MovementSystem struct {
	positions  *ecs.Store[component.Position]
	velocities *ecs.Store[component.Velocity]
}

func NewMovementSystem(pos *ecs.Store[component.Position], vel *ecs.Store[component.Velocity]) *MovementSystem {
	return &MovementSystem{positions: pos, velocities: vel}
}

func (s *MovementSystem) DeclareDependencies(b *schedule.DependencyBuilder) {
	b.Reads(s.velocities).Writes(s.positions)
}

func (s *MovementSystem) Update(dt time.Duration) {
	secs := dt.Seconds()
	ecs.Each2(s.positions, s.velocities, func(_ ecs.EntityID, p *component.Position, v *component.Velocity) {
		p.X += v.DX * secs
		p.Y += v.DY * secs
	})
}
