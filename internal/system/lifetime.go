package system

import (
	"time"

	"github.com/riftvale/engine/internal/component"
	"github.com/riftvale/engine/internal/core/ecs"
	"github.com/riftvale/engine/internal/core/event"
	"github.com/riftvale/engine/internal/core/schedule"
)

// EntityExpired is published when a lifetime runs out. Delivered next
// frame via the double-buffered bus.
type EntityExpired struct {
	ID ecs.EntityID
}

// LifetimeSystem counts lifetimes down and queues expired entities for the
// end-of-frame cleanup pass.
type LifetimeSystem struct {
	world     *ecs.World
	lifetimes *ecs.Store[component.Lifetime]
	bus       *event.Bus
}

func NewLifetimeSystem(w *ecs.World, lifetimes *ecs.Store[component.Lifetime], bus *event.Bus) *LifetimeSystem {
	return &LifetimeSystem{world: w, lifetimes: lifetimes, bus: bus}
}

func (s *LifetimeSystem) DeclareDependencies(b *schedule.DependencyBuilder) {
	b.Writes(s.lifetimes)
}

func (s *LifetimeSystem) Update(dt time.Duration) {
	secs := dt.Seconds()
	s.lifetimes.Each(func(id ecs.EntityID, l *component.Lifetime) {
		l.Remaining -= secs
		if l.Remaining <= 0 {
			s.world.MarkForDestruction(id)
			event.Emit(s.bus, EntityExpired{ID: id})
		}
	})
}
