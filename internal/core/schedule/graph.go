package schedule

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExportDOT renders the conflict graph in Graphviz form for external
// visualization: one node per system, one edge per conflicting pair labeled
// with the component that forbids their concurrency, one cluster per batch.
// The exact text is a diagnostic artifact; only its content is contractual.
func (s *Scheduler) ExportDOT() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.ensurePlan()

	var b strings.Builder
	b.WriteString("graph systems {\n")
	b.WriteString("\tnode [shape=box];\n")
	for bi, batch := range p.batches {
		fmt.Fprintf(&b, "\tsubgraph cluster_%d {\n", bi)
		fmt.Fprintf(&b, "\t\tlabel=\"batch %d\";\n", bi)
		for _, reg := range batch {
			fmt.Fprintf(&b, "\t\ts%d [label=%q];\n", reg.id, reg.name)
		}
		b.WriteString("\t}\n")
	}
	for _, e := range p.edges {
		fmt.Fprintf(&b, "\ts%d -- s%d [label=%q];\n", e.a.id, e.b.id, s.typeNames[e.overlap])
	}
	b.WriteString("}\n")
	return b.String()
}

// exportDoc is the YAML analysis document consumed by tooling.
type exportDoc struct {
	Analysis  Analysis       `yaml:"analysis"`
	Batches   []BatchView    `yaml:"batches"`
	Conflicts []conflictInfo `yaml:"conflicts,omitempty"`
}

type conflictInfo struct {
	A         string `yaml:"a"`
	B         string `yaml:"b"`
	Component string `yaml:"component"`
}

// ExportYAML renders the plan, its analysis, and the conflict pairs as a
// YAML document.
func (s *Scheduler) ExportYAML() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.ensurePlan()

	doc := exportDoc{
		Analysis: p.analysis(),
		Batches:  p.views(s.typeNames),
	}
	for _, e := range p.edges {
		doc.Conflicts = append(doc.Conflicts, conflictInfo{
			A:         e.a.name,
			B:         e.b.name,
			Component: s.typeNames[e.overlap],
		})
	}
	return yaml.Marshal(doc)
}
