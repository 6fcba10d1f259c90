package schedule

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/riftvale/engine/internal/core/ecs"
)

func TestExportDOTContent(t *testing.T) {
	s := newTestScheduler(t, 0)
	registerAll(t, s,
		&fakeSystem{name: "Move", writes: []ecs.Resource{position}, reads: []ecs.Resource{velocity}},
		&fakeSystem{name: "Heal", writes: []ecs.Resource{health}},
		&fakeSystem{name: "Steer", writes: []ecs.Resource{velocity}})

	dot := s.ExportDOT()

	// Content contract: all systems present, the conflict edge present and
	// labeled with the conflicting component, batch clusters present.
	for _, name := range []string{"Move", "Heal", "Steer"} {
		if !strings.Contains(dot, `"`+name+`"`) {
			t.Fatalf("export missing system %s:\n%s", name, dot)
		}
	}
	if !strings.Contains(dot, `"Velocity"`) {
		t.Fatalf("conflict edge not labeled with component:\n%s", dot)
	}
	if !strings.Contains(dot, "cluster_0") || !strings.Contains(dot, "cluster_1") {
		t.Fatalf("batch clusters missing:\n%s", dot)
	}
	if strings.Contains(dot, "cluster_2") {
		t.Fatalf("unexpected third cluster:\n%s", dot)
	}
}

func TestExportYAMLContent(t *testing.T) {
	s := newTestScheduler(t, 0)
	registerAll(t, s,
		&fakeSystem{name: "Move", writes: []ecs.Resource{position}, reads: []ecs.Resource{velocity}},
		&fakeSystem{name: "Heal", writes: []ecs.Resource{health}},
		&fakeSystem{name: "Steer", writes: []ecs.Resource{velocity}})

	data, err := s.ExportYAML()
	if err != nil {
		t.Fatalf("ExportYAML: %v", err)
	}

	var doc struct {
		Analysis Analysis `yaml:"analysis"`
		Batches  []struct {
			Systems []struct {
				Name   string   `yaml:"name"`
				Reads  []string `yaml:"reads"`
				Writes []string `yaml:"writes"`
			} `yaml:"systems"`
		} `yaml:"batches"`
		Conflicts []struct {
			A         string `yaml:"a"`
			B         string `yaml:"b"`
			Component string `yaml:"component"`
		} `yaml:"conflicts"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}

	if doc.Analysis.BatchCount != 2 || doc.Analysis.ConflictCount != 1 || doc.Analysis.MaxParallelism != 2 {
		t.Fatalf("analysis = %+v", doc.Analysis)
	}
	if len(doc.Batches) != 2 {
		t.Fatalf("got %d batches in export, want 2", len(doc.Batches))
	}
	if len(doc.Conflicts) != 1 {
		t.Fatalf("got %d conflicts in export, want 1", len(doc.Conflicts))
	}
	c := doc.Conflicts[0]
	if c.A != "Move" || c.B != "Steer" || c.Component != "Velocity" {
		t.Fatalf("conflict = %+v, want Move/Steer on Velocity", c)
	}
	if got := doc.Batches[0].Systems[0]; got.Name != "Move" ||
		len(got.Reads) != 1 || got.Reads[0] != "Velocity" ||
		len(got.Writes) != 1 || got.Writes[0] != "Position" {
		t.Fatalf("first system view = %+v", got)
	}
}
