package buildinfo

import (
	"encoding/json"
	"fmt"
	"io"
)

// DeployedArtifact is one entry of the deployable-artifacts export.
type DeployedArtifact struct {
	SourcePath       string `json:"sourcePath"`
	ArtifactDest     string `json:"artifactDest"`
	TargetRepository string `json:"targetRepository"`
}

// WriteDeployableArtifacts writes the per-module deployable set as a JSON
// object keyed by module id. ArtifactDest is "<repo>/<path>".
func WriteDeployableArtifacts(w io.Writer, groups []ModuleGroup) error {
	out := make(map[string][]DeployedArtifact, len(groups))
	for _, g := range groups {
		entries := make([]DeployedArtifact, 0, len(g.Artifacts))
		for _, d := range g.Artifacts {
			entries = append(entries, DeployedArtifact{
				SourcePath:       d.File,
				ArtifactDest:     d.TargetRepository + "/" + d.ArtifactPath,
				TargetRepository: d.TargetRepository,
			})
		}
		out[g.ModuleID] = entries
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode deployable artifacts: %w", err)
	}
	return nil
}

// WriteJSON writes info as indented JSON.
func WriteJSON(w io.Writer, info *BuildInfo) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		return fmt.Errorf("encode build info: %w", err)
	}
	return nil
}
