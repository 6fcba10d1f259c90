package schedule

import (
	"time"

	"github.com/riftvale/engine/internal/core/ecs"
)

// System is the interface every schedulable system implements. Update runs
// once per frame; the scheduler decides on which thread.
type System interface {
	Update(dt time.Duration)
}

// Named lets a system override the diagnostic name derived from its type.
type Named interface {
	Name() string
}

// DependencyDeclarer is the optional capability a system implements to
// declare its data footprint. A system without it has empty read/write sets
// and never conflicts with anything. Evaluated once at registration:
// changing the declaration afterwards has no effect until re-registration.
type DependencyDeclarer interface {
	DeclareDependencies(b *DependencyBuilder)
}

// Dependencies is a system's declared data footprint. A type present in
// both sets is a read-modify-write; Writes always implies exclusive access
// intent.
type Dependencies struct {
	Reads  map[ecs.TypeID]struct{}
	Writes map[ecs.TypeID]struct{}
}

func newDependencies() Dependencies {
	return Dependencies{
		Reads:  make(map[ecs.TypeID]struct{}),
		Writes: make(map[ecs.TypeID]struct{}),
	}
}

// DependencyBuilder collects reads/writes declarations during registration
// and records component names for conflict labeling.
type DependencyBuilder struct {
	deps  Dependencies
	names map[ecs.TypeID]string
}

// Reads declares that the system reads res. Returns the builder for
// chaining.
func (b *DependencyBuilder) Reads(res ecs.Resource) *DependencyBuilder {
	b.deps.Reads[res.TypeID()] = struct{}{}
	b.names[res.TypeID()] = res.ComponentName()
	return b
}

// Writes declares that the system writes res.
func (b *DependencyBuilder) Writes(res ecs.Resource) *DependencyBuilder {
	b.deps.Writes[res.TypeID()] = struct{}{}
	b.names[res.TypeID()] = res.ComponentName()
	return b
}

// extractDependencies derives a system's footprint, recording component
// names into names as a side effect.
func extractDependencies(sys System, names map[ecs.TypeID]string) Dependencies {
	deps := newDependencies()
	if d, ok := sys.(DependencyDeclarer); ok {
		d.DeclareDependencies(&DependencyBuilder{deps: deps, names: names})
	}
	return deps
}

// Conflicts reports whether two footprints forbid concurrent execution:
// write/write or write/read overlap in either direction.
func Conflicts(a, b Dependencies) bool {
	_, ok := conflictingType(a, b)
	return ok
}

// conflictingType returns the lowest-numbered overlapping TypeID so that
// edge labels are deterministic regardless of map iteration order.
func conflictingType(a, b Dependencies) (ecs.TypeID, bool) {
	found := false
	var best ecs.TypeID
	consider := func(id ecs.TypeID) {
		if !found || id < best {
			best = id
			found = true
		}
	}
	for id := range a.Writes {
		if _, ok := b.Writes[id]; ok {
			consider(id)
		}
		if _, ok := b.Reads[id]; ok {
			consider(id)
		}
	}
	for id := range a.Reads {
		if _, ok := b.Writes[id]; ok {
			consider(id)
		}
	}
	return best, found
}
