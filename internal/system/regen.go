package system

import (
	"time"

	"github.com/riftvale/engine/internal/component"
	"github.com/riftvale/engine/internal/core/ecs"
	"github.com/riftvale/engine/internal/core/schedule"
)

// regenInterval gates actual healing: the system runs every frame but only
// adds hit points once the per-entity accumulator crosses this many frames.
const regenInterval = 5

// RegenSystem restores hit points on a fixed frame interval. Writes Health
// and nothing else, so it runs alongside movement and kinematics systems.
type RegenSystem struct {
	healths *ecs.Store[component.Health]
	amount  int32
}

func NewRegenSystem(healths *ecs.Store[component.Health], amount int32) *RegenSystem {
	return &RegenSystem{healths: healths, amount: amount}
}

func (s *RegenSystem) DeclareDependencies(b *schedule.DependencyBuilder) {
	b.Writes(s.healths)
}

func (s *RegenSystem) Update(_ time.Duration) {
	s.healths.Each(func(_ ecs.EntityID, h *component.Health) {
		if h.HP <= 0 || h.HP >= h.MaxHP {
			return
		}
		h.RegenAcc++
		if h.RegenAcc < regenInterval {
			return
		}
		h.RegenAcc = 0
		h.HP += s.amount
		if h.HP > h.MaxHP {
			h.HP = h.MaxHP
		}
	})
}
