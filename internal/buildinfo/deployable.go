package buildinfo

import "sync"

// DeployDetails describes one upload: where the file goes and what to send
// with it.
type DeployDetails struct {
	ModuleID         string            `json:"moduleId"`
	ArtifactName     string            `json:"artifactName"`
	ArtifactPath     string            `json:"artifactPath"`
	File             string            `json:"file"`
	TargetRepository string            `json:"targetRepository"`
	Md5              string            `json:"md5,omitempty"`
	Sha1             string            `json:"sha1,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
}

// Key returns ArtifactKey(ModuleID, ArtifactName).
func (d DeployDetails) Key() string {
	return ArtifactKey(d.ModuleID, d.ArtifactName)
}

// DeployableMap holds the session's deployable artifacts keyed by
// ArtifactKey. Put is safe for concurrent use; a second Put for the same key
// replaces the first.
type DeployableMap struct {
	mu    sync.Mutex
	items map[string]DeployDetails
}

// NewDeployableMap returns an empty map.
func NewDeployableMap() *DeployableMap {
	return &DeployableMap{items: make(map[string]DeployDetails)}
}

// Put stores d under d.Key().
func (m *DeployableMap) Put(d DeployDetails) {
	m.mu.Lock()
	m.items[d.Key()] = d
	m.mu.Unlock()
}

// Len returns the number of entries.
func (m *DeployableMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Clear removes every entry.
func (m *DeployableMap) Clear() {
	m.mu.Lock()
	m.items = make(map[string]DeployDetails)
	m.mu.Unlock()
}

// Snapshot returns a copy of the current entries.
func (m *DeployableMap) Snapshot() map[string]DeployDetails {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]DeployDetails, len(m.items))
	for k, v := range m.items {
		out[k] = v
	}
	return out
}

// ModuleGroup is the ordered deployable artifacts of one module.
type ModuleGroup struct {
	ModuleID  string          `json:"module"`
	Artifacts []DeployDetails `json:"artifacts"`
}

// GroupByModule walks info's modules and their artifacts in order and
// collects the deployable entries for each. Modules with nothing to deploy
// are omitted.
func GroupByModule(info *BuildInfo, deployables map[string]DeployDetails) []ModuleGroup {
	var groups []ModuleGroup
	for _, m := range info.Modules {
		var details []DeployDetails
		for _, a := range m.Artifacts {
			if d, ok := deployables[ArtifactKey(m.ID, a.Name)]; ok {
				details = append(details, d)
			}
		}
		if len(details) > 0 {
			groups = append(groups, ModuleGroup{ModuleID: m.ID, Artifacts: details})
		}
	}
	return groups
}
