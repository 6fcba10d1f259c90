package schedule

import (
	"sort"
	"sync/atomic"

	"github.com/riftvale/engine/internal/core/ecs"
)

// registration is the scheduler's per-system record: footprint extracted
// once, stable ID assigned in registration order, enabled flag read
// immediately before every dispatch.
type registration struct {
	id      int
	sys     System
	name    string
	deps    Dependencies
	enabled atomic.Bool
}

// conflictEdge records one conflicting system pair and the component that
// forbids their concurrency.
type conflictEdge struct {
	a, b    *registration
	overlap ecs.TypeID
}

func conflictsWithBatch(reg *registration, batch []*registration) bool {
	for _, member := range batch {
		if Conflicts(reg.deps, member.deps) {
			return true
		}
	}
	return false
}

// plan is an immutable batch plan: an ordered sequence of batches, each a
// set of pairwise conflict-free systems, plus the conflict edges over the
// whole registered set for diagnostics. Rebuilt only when the registered
// set changes; reused every frame.
type plan struct {
	batches [][]*registration
	edges   []conflictEdge
}

// buildPlan partitions regs into conflict-free batches by first-fit in
// registration order: each system lands in the first batch it does not
// conflict with, or opens a new one. Deterministic for a fixed registration
// order, which keeps execution order reproducible across frames and runs.
func buildPlan(regs []*registration) *plan {
	p := &plan{}
	for _, reg := range regs {
		placed := false
		for bi := range p.batches {
			if !conflictsWithBatch(reg, p.batches[bi]) {
				p.batches[bi] = append(p.batches[bi], reg)
				placed = true
				break
			}
		}
		if !placed {
			p.batches = append(p.batches, []*registration{reg})
		}
	}

	for i := 0; i < len(regs); i++ {
		for j := i + 1; j < len(regs); j++ {
			if id, ok := conflictingType(regs[i].deps, regs[j].deps); ok {
				p.edges = append(p.edges, conflictEdge{a: regs[i], b: regs[j], overlap: id})
			}
		}
	}
	return p
}

// SystemInfo is the read-only per-system view exposed for diagnostics.
type SystemInfo struct {
	ID     int      `yaml:"id"`
	Name   string   `yaml:"name"`
	Reads  []string `yaml:"reads,omitempty"`
	Writes []string `yaml:"writes,omitempty"`
}

// BatchView is the read-only view of one batch.
type BatchView struct {
	Systems []SystemInfo `yaml:"systems"`
}

// Analysis summarizes the current plan.
type Analysis struct {
	SystemCount    int   `yaml:"system_count"`
	BatchCount     int   `yaml:"batch_count"`
	ConflictCount  int   `yaml:"conflict_count"`
	MaxParallelism int   `yaml:"max_parallelism"`
	BatchSizes     []int `yaml:"batch_sizes"`
}

func (p *plan) analysis() Analysis {
	a := Analysis{BatchCount: len(p.batches), ConflictCount: len(p.edges)}
	for _, b := range p.batches {
		a.SystemCount += len(b)
		a.BatchSizes = append(a.BatchSizes, len(b))
		if len(b) > a.MaxParallelism {
			a.MaxParallelism = len(b)
		}
	}
	return a
}

func (p *plan) views(names map[ecs.TypeID]string) []BatchView {
	out := make([]BatchView, len(p.batches))
	for bi, b := range p.batches {
		out[bi].Systems = make([]SystemInfo, len(b))
		for si, reg := range b {
			out[bi].Systems[si] = SystemInfo{
				ID:     reg.id,
				Name:   reg.name,
				Reads:  typeNames(reg.deps.Reads, names),
				Writes: typeNames(reg.deps.Writes, names),
			}
		}
	}
	return out
}

// typeNames resolves a TypeID set to sorted component names.
func typeNames(set map[ecs.TypeID]struct{}, names map[ecs.TypeID]string) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, names[id])
	}
	sort.Strings(out)
	return out
}
