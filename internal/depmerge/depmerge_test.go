package depmerge

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/buildrecorder/internal/project"
)

func dep(artifact, scope string) project.Coordinate {
	return project.Coordinate{GroupID: "org.acme", ArtifactID: artifact, Version: "1.0", Scope: scope, Type: "jar"}
}

func TestMerge_PriorityOrder(t *testing.T) {
	got := Merge(Sources{
		Graph:       []project.Coordinate{dep("a", ""), dep("b", "test")},
		Accumulated: []project.Coordinate{dep("a", "compile"), dep("c", "runtime")},
		BuildTime:   []project.Coordinate{dep("b", "test"), dep("d", "compile")},
		RecordAll:   true,
	})

	want := []project.Coordinate{
		dep("a", "compile"),
		dep("b", "test"),
		dep("c", "runtime"),
		dep("d", "compile"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_GraphScopeKept(t *testing.T) {
	graph := []project.Coordinate{dep("a", "provided"), dep("b", "")}
	accumulated := []project.Coordinate{dep("a", "provided"), dep("b", "compile")}

	got := Merge(Sources{Graph: graph, Accumulated: accumulated})

	if len(got) != 2 {
		t.Fatalf("len(Merge()) = %d, want 2: %v", len(got), got)
	}
	if got[0].Scope != "provided" {
		t.Errorf("a scope = %q, want provided", got[0].Scope)
	}
	if got[1].Scope != project.ScopeCompile {
		t.Errorf("b scope = %q, want %q", got[1].Scope, project.ScopeCompile)
	}
}

// The same coordinates under different scopes are distinct entries.
func TestMerge_ScopeIsPartOfKey(t *testing.T) {
	got := Merge(Sources{
		Graph:       []project.Coordinate{dep("a", "compile")},
		Accumulated: []project.Coordinate{dep("a", "test")},
	})

	want := []project.Coordinate{dep("a", "compile"), dep("a", "test")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_BuildTimeOnlyWhenRecordAll(t *testing.T) {
	src := Sources{
		Graph:     []project.Coordinate{dep("a", "compile")},
		BuildTime: []project.Coordinate{dep("plugin", "runtime")},
	}

	if got := Merge(src); len(got) != 1 {
		t.Errorf("Merge() without RecordAll = %v, want only graph deps", got)
	}

	src.RecordAll = true
	if got := Merge(src); len(got) != 2 {
		t.Errorf("Merge() with RecordAll = %v, want graph and build-time deps", got)
	}
}

func TestMerge_IdempotentOverItsOwnOutput(t *testing.T) {
	graph := []project.Coordinate{dep("a", ""), dep("b", "test")}
	first := Merge(Sources{Graph: graph})
	second := Merge(Sources{Graph: graph, Accumulated: first})

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("re-merge changed result (-first +second):\n%s", diff)
	}
}

func TestMerge_Empty(t *testing.T) {
	got := Merge(Sources{})
	if got == nil || len(got) != 0 {
		t.Errorf("Merge(empty) = %#v, want empty non-nil slice", got)
	}
}
