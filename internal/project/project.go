// Package project models what the host build orchestrator reports about the
// modules it executes: coordinates of produced and consumed artifacts, module
// descriptors, and the outcome of the whole session.
package project

import (
	"strings"
	"time"
)

// ScopeCompile is the scope assigned to dependencies reported without one.
const ScopeCompile = "compile"

// TypePOM is the artifact type of a module's metadata descriptor.
const TypePOM = "pom"

// Coordinate identifies an artifact in the group/artifact/version space,
// together with the file that backs it locally (if any).
type Coordinate struct {
	GroupID    string `yaml:"group" toml:"group" json:"group"`
	ArtifactID string `yaml:"artifact" toml:"artifact" json:"artifact"`
	Version    string `yaml:"version" toml:"version" json:"version"`
	Scope      string `yaml:"scope,omitempty" toml:"scope,omitempty" json:"scope,omitempty"`
	Type       string `yaml:"type,omitempty" toml:"type,omitempty" json:"type,omitempty"`
	Classifier string `yaml:"classifier,omitempty" toml:"classifier,omitempty" json:"classifier,omitempty"`
	// Extension is the file extension used in deployment paths. Falls back
	// to Type when empty.
	Extension string `yaml:"extension,omitempty" toml:"extension,omitempty" json:"extension,omitempty"`
	File      string `yaml:"file,omitempty" toml:"file,omitempty" json:"file,omitempty"`
}

// Key returns the structural identity of the coordinate. Scope is part of
// the key, so the same coordinates under two scopes are distinct entries.
func (c Coordinate) Key() string {
	return strings.Join([]string{c.GroupID, c.ArtifactID, c.Version, c.Scope, c.Type, c.Classifier}, ":")
}

// Ext returns the extension used for the artifact's file name.
func (c Coordinate) Ext() string {
	if c.Extension != "" {
		return c.Extension
	}
	if c.Type != "" {
		return c.Type
	}
	return "jar"
}

// String renders the coordinate the way build tools usually print them.
func (c Coordinate) String() string {
	parts := []string{c.GroupID, c.ArtifactID, c.Ext()}
	if c.Classifier != "" {
		parts = append(parts, c.Classifier)
	}
	parts = append(parts, c.Version)
	if c.Scope != "" {
		parts = append(parts, c.Scope)
	}
	return strings.Join(parts, ":")
}

// WithDefaultScope returns a copy whose blank scope is set to compile.
func (c Coordinate) WithDefaultScope() Coordinate {
	if strings.TrimSpace(c.Scope) == "" {
		c.Scope = ScopeCompile
	}
	return c
}

// ProducedArtifact is an artifact emitted by a module. DescriptorFile is set
// when the artifact carries its module's descriptor as attached metadata
// instead of the descriptor being a standalone artifact.
type ProducedArtifact struct {
	Coordinate     `yaml:",inline" toml:",inline"`
	DescriptorFile string `yaml:"descriptor_file,omitempty" toml:"descriptor_file,omitempty" json:"descriptor_file,omitempty"`
}

// Key identifies a produced artifact within its module.
func (a ProducedArtifact) Key() string {
	return a.Coordinate.Key()
}

// IsDescriptor reports whether the artifact is itself a module descriptor.
func (a ProducedArtifact) IsDescriptor() bool {
	return a.Type == TypePOM
}

// ModuleDescriptor is the host's view of one build unit at the time an event
// fires for it.
type ModuleDescriptor struct {
	// Worker identifies the build worker executing the module. Per-module
	// in-flight state is keyed by it.
	Worker     string
	GroupID    string
	ArtifactID string
	Version    string
	Packaging  string
	Name       string
	// DescriptorFile is the module's own descriptor on disk.
	DescriptorFile string
	Properties     map[string]string
	MainArtifact   *ProducedArtifact
	Attached       []ProducedArtifact
	// Dependencies is the module's currently resolved dependency graph.
	Dependencies []Coordinate
}

// Artifacts returns the main artifact followed by all attached artifacts.
func (m ModuleDescriptor) Artifacts() []ProducedArtifact {
	out := make([]ProducedArtifact, 0, len(m.Attached)+1)
	if m.MainArtifact != nil {
		out = append(out, *m.MainArtifact)
	}
	return append(out, m.Attached...)
}

// IsMain reports whether a is the module's main artifact.
func (m ModuleDescriptor) IsMain(a ProducedArtifact) bool {
	return m.MainArtifact != nil && m.MainArtifact.Key() == a.Key()
}

// SessionOutcome is what the host reports once every module has finished.
type SessionOutcome struct {
	StartedAt time.Time
	// TopLevelName is the name of the root module, used as the build name
	// fallback.
	TopLevelName string
	// BuildAgent names the host tool, e.g. "Maven/3.9.6".
	BuildAgent string
	Errors     []error
}

// HasErrors reports whether the session ended with any reported error.
func (o SessionOutcome) HasErrors() bool {
	return len(o.Errors) > 0
}
