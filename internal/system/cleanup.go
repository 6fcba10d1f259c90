package system

import (
	"time"

	"github.com/riftvale/engine/internal/core/ecs"
	"github.com/riftvale/engine/internal/core/schedule"
)

// CleanupSystem flushes the world's destroy queue, clearing destroyed
// entities from every component store. It declares a write on every
// registered store, so the planner gives it a batch of its own — an honest
// footprint, since it may touch anything.
type CleanupSystem struct {
	world *ecs.World
}

func NewCleanupSystem(w *ecs.World) *CleanupSystem {
	return &CleanupSystem{world: w}
}

func (s *CleanupSystem) DeclareDependencies(b *schedule.DependencyBuilder) {
	for _, res := range s.world.Resources() {
		b.Writes(res)
	}
}

func (s *CleanupSystem) Update(_ time.Duration) {
	s.world.FlushDestroyQueue()
}
