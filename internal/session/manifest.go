// Package session replays a recorded build session: a manifest describing
// the modules a host build executed is played back on a pool of workers,
// emitting the same lifecycle events the host would have emitted.
package session

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/buildrecorder/internal/buildinfo"
	"github.com/Iron-Ham/buildrecorder/internal/errors"
	"github.com/Iron-Ham/buildrecorder/internal/project"
)

// Manifest formats.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// Manifest describes a build session.
type Manifest struct {
	// Name is the top-level project name.
	Name string `yaml:"name" toml:"name"`
	// BuildAgent names the host tool, e.g. "Maven/3.9.6".
	BuildAgent string `yaml:"build_agent" toml:"build_agent"`
	// StartedAt is the session start; zero means the replay start time.
	StartedAt time.Time `yaml:"started" toml:"started"`
	// BaseDir resolves relative file paths. Defaults to the manifest's
	// directory when loaded from a file.
	BaseDir string           `yaml:"base_dir" toml:"base_dir"`
	Modules []ModuleManifest `yaml:"modules" toml:"modules"`
}

// ModuleManifest describes one module execution.
type ModuleManifest struct {
	Group          string             `yaml:"group" toml:"group"`
	Artifact       string             `yaml:"artifact" toml:"artifact"`
	Version        string             `yaml:"version" toml:"version"`
	Packaging      string             `yaml:"packaging" toml:"packaging"`
	Name           string             `yaml:"name" toml:"name"`
	DescriptorFile string             `yaml:"descriptor_file" toml:"descriptor_file"`
	Properties     map[string]string  `yaml:"properties" toml:"properties"`
	Main           *ArtifactManifest  `yaml:"main" toml:"main"`
	Attached       []ArtifactManifest `yaml:"attached" toml:"attached"`
	// Dependencies is the declared graph, resolved before the first step.
	Dependencies []DependencyManifest `yaml:"dependencies" toml:"dependencies"`
	Steps        []StepManifest       `yaml:"steps" toml:"steps"`
	// Resolved lists artifacts resolved outside the declared graph, such as
	// plugins and tooling.
	Resolved []DependencyManifest `yaml:"resolved" toml:"resolved"`
	// Failure, when set, fails the module with this message after its steps.
	Failure string `yaml:"failure" toml:"failure"`
}

// ArtifactManifest describes an artifact the module produced.
type ArtifactManifest struct {
	Type           string `yaml:"type" toml:"type"`
	Classifier     string `yaml:"classifier" toml:"classifier"`
	Extension      string `yaml:"extension" toml:"extension"`
	File           string `yaml:"file" toml:"file"`
	DescriptorFile string `yaml:"descriptor_file" toml:"descriptor_file"`
}

// DependencyManifest describes a consumed artifact.
type DependencyManifest struct {
	Group      string `yaml:"group" toml:"group"`
	Artifact   string `yaml:"artifact" toml:"artifact"`
	Version    string `yaml:"version" toml:"version"`
	Scope      string `yaml:"scope" toml:"scope"`
	Type       string `yaml:"type" toml:"type"`
	Classifier string `yaml:"classifier" toml:"classifier"`
	Extension  string `yaml:"extension" toml:"extension"`
	File       string `yaml:"file" toml:"file"`
}

// StepManifest is one step (plugin execution) of a module. Dependencies it
// lists join the module's graph from this step on.
type StepManifest struct {
	Name         string               `yaml:"name" toml:"name"`
	Failed       bool                 `yaml:"failed" toml:"failed"`
	Dependencies []DependencyManifest `yaml:"dependencies" toml:"dependencies"`
}

// ID returns the module's group:artifact:version id.
func (m ModuleManifest) ID() string {
	return buildinfo.ModuleID(m.Group, m.Artifact, m.Version)
}

// FormatForPath picks the manifest format from the file extension.
func FormatForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", errors.NewValidationError("unsupported manifest extension").
			WithField("manifest").
			WithValue(path).
			WithCause(errors.ErrManifestInvalid)
	}
}

// LoadManifest reads and validates the manifest at path. Relative file
// paths are resolved against the manifest's directory unless base_dir is
// set.
func LoadManifest(fs afero.Fs, path string) (*Manifest, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.NewNotFoundError("manifest", path).WithCause(err)
	}
	m, err := ParseManifest(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}

	dir := filepath.Dir(path)
	switch {
	case m.BaseDir == "":
		m.BaseDir = dir
	case !filepath.IsAbs(m.BaseDir):
		m.BaseDir = filepath.Join(dir, m.BaseDir)
	}
	return m, nil
}

// ParseManifest decodes and validates a manifest in the given format.
// Unknown keys are rejected.
func ParseManifest(data []byte, format string) (*Manifest, error) {
	var m Manifest
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			return nil, invalid(fmt.Sprintf("decode yaml: %v", err))
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, invalid(fmt.Sprintf("decode toml: %v", err))
		}
	default:
		return nil, invalid(fmt.Sprintf("unknown manifest format %q", format))
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every module is identified and ids are unique.
func (m *Manifest) Validate() error {
	if len(m.Modules) == 0 {
		return invalid("manifest has no modules")
	}
	seen := make(map[string]bool, len(m.Modules))
	for i, mod := range m.Modules {
		if mod.Group == "" || mod.Artifact == "" || mod.Version == "" {
			return invalid(fmt.Sprintf("module %d: group, artifact and version are required", i))
		}
		if seen[mod.ID()] {
			return invalid(fmt.Sprintf("module %s listed twice", mod.ID()))
		}
		seen[mod.ID()] = true

		for _, a := range mod.Attached {
			if a.Type == "" && a.Extension == "" {
				return invalid(fmt.Sprintf("module %s: attached artifact needs a type", mod.ID()))
			}
		}
		for _, d := range mod.allDependencies() {
			if d.Group == "" || d.Artifact == "" || d.Version == "" {
				return invalid(fmt.Sprintf("module %s: dependency needs group, artifact and version", mod.ID()))
			}
		}
	}
	return nil
}

func (m ModuleManifest) allDependencies() []DependencyManifest {
	all := append([]DependencyManifest(nil), m.Dependencies...)
	for _, s := range m.Steps {
		all = append(all, s.Dependencies...)
	}
	return append(all, m.Resolved...)
}

func invalid(msg string) error {
	return errors.NewValidationError(msg).WithField("manifest").WithCause(errors.ErrManifestInvalid)
}

// resolve makes a relative path absolute against base.
func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

func (d DependencyManifest) coordinate(base string) project.Coordinate {
	return project.Coordinate{
		GroupID:    d.Group,
		ArtifactID: d.Artifact,
		Version:    d.Version,
		Scope:      d.Scope,
		Type:       d.Type,
		Classifier: d.Classifier,
		Extension:  d.Extension,
		File:       resolve(base, d.File),
	}
}

func (m ModuleManifest) produced(a ArtifactManifest, base string) project.ProducedArtifact {
	return project.ProducedArtifact{
		Coordinate: project.Coordinate{
			GroupID:    m.Group,
			ArtifactID: m.Artifact,
			Version:    m.Version,
			Type:       a.Type,
			Classifier: a.Classifier,
			Extension:  a.Extension,
			File:       resolve(base, a.File),
		},
		DescriptorFile: resolve(base, a.DescriptorFile),
	}
}

// descriptor builds the host's view of the module for worker, with the
// given resolved dependency graph.
func (m ModuleManifest) descriptor(worker, base string, graph []project.Coordinate) project.ModuleDescriptor {
	d := project.ModuleDescriptor{
		Worker:         worker,
		GroupID:        m.Group,
		ArtifactID:     m.Artifact,
		Version:        m.Version,
		Packaging:      m.Packaging,
		Name:           m.Name,
		DescriptorFile: resolve(base, m.DescriptorFile),
		Properties:     m.Properties,
		Dependencies:   graph,
	}
	if d.Packaging == "" {
		d.Packaging = "jar"
	}
	if d.Name == "" {
		d.Name = m.Artifact
	}
	if m.Main != nil {
		main := m.produced(*m.Main, base)
		if main.Type == "" {
			main.Type = d.Packaging
		}
		d.MainArtifact = &main
	}
	for _, a := range m.Attached {
		d.Attached = append(d.Attached, m.produced(a, base))
	}
	return d
}
