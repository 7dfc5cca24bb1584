// Package depmerge combines the dependency records reported for a module by
// several sources into one de-duplicated, priority-ordered list.
package depmerge

import "github.com/Iron-Ham/buildrecorder/internal/project"

// Sources are the inputs of a merge, in decreasing priority.
type Sources struct {
	// Graph is the module's live dependency graph. Its scopes are
	// authoritative; blank scopes are defaulted to compile.
	Graph []project.Coordinate
	// Accumulated holds what earlier merges of the same module produced.
	Accumulated []project.Coordinate
	// BuildTime holds artifacts the host resolved outside the declared
	// graph. Only consulted when RecordAll is set.
	BuildTime []project.Coordinate
	RecordAll bool
}

// Merge returns the graph dependencies followed by the accumulated and then
// the build-time dependencies whose key was not already taken.
//
// Keys are project.Coordinate.Key, which includes the scope: the same
// coordinates seen under two scopes are kept as two entries.
func Merge(src Sources) []project.Coordinate {
	size := len(src.Graph) + len(src.Accumulated)
	if src.RecordAll {
		size += len(src.BuildTime)
	}

	seen := make(map[string]struct{}, size)
	out := make([]project.Coordinate, 0, size)
	add := func(c project.Coordinate) {
		k := c.Key()
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}

	for _, c := range src.Graph {
		add(c.WithDefaultScope())
	}
	for _, c := range src.Accumulated {
		add(c)
	}
	if src.RecordAll {
		for _, c := range src.BuildTime {
			add(c)
		}
	}
	return out
}
