package schedule

import (
	"testing"

	"github.com/riftvale/engine/internal/core/ecs"
)

func depsOf(reads, writes []ecs.Resource) Dependencies {
	d := newDependencies()
	names := map[ecs.TypeID]string{}
	b := &DependencyBuilder{deps: d, names: names}
	for _, r := range reads {
		b.Reads(r)
	}
	for _, w := range writes {
		b.Writes(w)
	}
	return d
}

func TestConflictPredicate(t *testing.T) {
	cases := []struct {
		name string
		a, b Dependencies
		want bool
	}{
		{
			name: "write/write overlap",
			a:    depsOf(nil, []ecs.Resource{position}),
			b:    depsOf(nil, []ecs.Resource{position}),
			want: true,
		},
		{
			name: "write/read overlap",
			a:    depsOf(nil, []ecs.Resource{velocity}),
			b:    depsOf([]ecs.Resource{velocity}, nil),
			want: true,
		},
		{
			name: "read/write overlap",
			a:    depsOf([]ecs.Resource{velocity}, nil),
			b:    depsOf(nil, []ecs.Resource{velocity}),
			want: true,
		},
		{
			name: "read/read overlap",
			a:    depsOf([]ecs.Resource{position}, nil),
			b:    depsOf([]ecs.Resource{position}, nil),
			want: false,
		},
		{
			name: "disjoint footprints",
			a:    depsOf([]ecs.Resource{position}, []ecs.Resource{velocity}),
			b:    depsOf([]ecs.Resource{health}, nil),
			want: false,
		},
		{
			name: "empty never conflicts",
			a:    depsOf(nil, nil),
			b:    depsOf([]ecs.Resource{position}, []ecs.Resource{velocity, health}),
			want: false,
		},
		{
			name: "read-modify-write conflicts with reader",
			a:    depsOf([]ecs.Resource{position}, []ecs.Resource{position}),
			b:    depsOf([]ecs.Resource{position}, nil),
			want: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Conflicts(tc.a, tc.b); got != tc.want {
				t.Fatalf("Conflicts = %v, want %v", got, tc.want)
			}
			// The relation is symmetric.
			if got := Conflicts(tc.b, tc.a); got != tc.want {
				t.Fatalf("Conflicts reversed = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestConflictingTypeIsDeterministic(t *testing.T) {
	// Multiple overlaps: the reported type must not depend on map order.
	a := depsOf(nil, []ecs.Resource{position, velocity, health})
	b := depsOf(nil, []ecs.Resource{health, velocity})
	for i := 0; i < 50; i++ {
		id, ok := conflictingType(a, b)
		if !ok {
			t.Fatal("expected a conflict")
		}
		if id != velocity.TypeID() {
			t.Fatalf("iteration %d: conflicting type %d, want lowest id %d", i, id, velocity.TypeID())
		}
	}
}

func TestExtractDependenciesWithoutCapability(t *testing.T) {
	names := map[ecs.TypeID]string{}
	d := extractDependencies(&plainSystem{}, names)
	if len(d.Reads) != 0 || len(d.Writes) != 0 {
		t.Fatalf("system without the capability must have empty sets, got %d/%d",
			len(d.Reads), len(d.Writes))
	}
}
