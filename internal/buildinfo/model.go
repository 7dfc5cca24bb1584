// Package buildinfo defines the aggregated build-info record published at
// the end of a session, the per-artifact deploy details, and the
// concurrency-safe containers the recorder fills while modules complete.
package buildinfo

import "time"

// StartedFormat is the layout of BuildInfo.Started.
const StartedFormat = "2006-01-02T15:04:05.000-0700"

// ModuleTypeMaven is the type recorded on every module.
const ModuleTypeMaven = "maven"

// EnvPropertyPrefix prefixes environment variables recorded as properties.
const EnvPropertyPrefix = "buildInfo.env."

// Agent names a tool and its version.
type Agent struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// String renders "name/version".
func (a Agent) String() string {
	if a.Version == "" {
		return a.Name
	}
	return a.Name + "/" + a.Version
}

// Vcs is the revision the build ran against.
type Vcs struct {
	Revision string `json:"revision,omitempty"`
	URL      string `json:"url,omitempty"`
}

// BuildInfo is the aggregated record of one successful build session.
type BuildInfo struct {
	Name           string            `json:"name"`
	Number         string            `json:"number"`
	Started        string            `json:"started"`
	StartedAt      time.Time         `json:"-"`
	DurationMillis int64             `json:"durationMillis"`
	Agent          *Agent            `json:"agent,omitempty"`
	BuildAgent     *Agent            `json:"buildAgent,omitempty"`
	Principal      string            `json:"principal,omitempty"`
	URL            string            `json:"url,omitempty"`
	Vcs            []Vcs             `json:"vcs,omitempty"`
	ParentName     string            `json:"parentName,omitempty"`
	ParentNumber   string            `json:"parentNumber,omitempty"`
	Modules        []Module          `json:"modules"`
	Properties     map[string]string `json:"properties,omitempty"`
}

// Module returns the module with the given id.
func (b *BuildInfo) Module(id string) (Module, bool) {
	for _, m := range b.Modules {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}

// Module is the record of one successfully built unit.
type Module struct {
	ID                string            `json:"id"`
	Type              string            `json:"type"`
	Properties        map[string]string `json:"properties,omitempty"`
	Artifacts         []Artifact        `json:"artifacts"`
	ExcludedArtifacts []Artifact        `json:"excludedArtifacts,omitempty"`
	Dependencies      []Dependency      `json:"dependencies"`
}

// Artifact is a file produced by a module. Its name is unique within the
// module.
type Artifact struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Md5  string `json:"md5,omitempty"`
	Sha1 string `json:"sha1,omitempty"`
}

// Dependency is a file a module consumed.
type Dependency struct {
	ID     string   `json:"id"`
	Type   string   `json:"type,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
	Md5    string   `json:"md5,omitempty"`
	Sha1   string   `json:"sha1,omitempty"`
}

// SetChecksums copies md5 and sha1 from sums. A nil map leaves both unset.
func (a *Artifact) SetChecksums(sums map[string]string) {
	a.Md5, a.Sha1 = sums["md5"], sums["sha1"]
}

// SetChecksums copies md5 and sha1 from sums. A nil map leaves both unset.
func (d *Dependency) SetChecksums(sums map[string]string) {
	d.Md5, d.Sha1 = sums["md5"], sums["sha1"]
}
