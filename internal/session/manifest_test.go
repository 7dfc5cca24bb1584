package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/Iron-Ham/buildrecorder/internal/errors"
	"github.com/Iron-Ham/buildrecorder/internal/project"
)

const yamlManifest = `
name: acme
build_agent: Maven/3.9.6
started: 2026-05-01T10:00:00Z
modules:
  - group: org.acme
    artifact: core
    version: "1.0"
    descriptor_file: core/pom.xml
    main:
      type: jar
      file: core/target/core-1.0.jar
    attached:
      - type: jar
        classifier: sources
        file: core/target/core-1.0-sources.jar
    dependencies:
      - {group: com.fasterxml, artifact: json, version: "2.1", scope: compile}
    steps:
      - name: compile
      - name: test
        dependencies:
          - {group: junit, artifact: junit, version: "4.13", scope: test}
    resolved:
      - {group: org.apache.maven.plugins, artifact: maven-compiler-plugin, version: "3.11.0"}
  - group: org.acme
    artifact: web
    version: "1.0"
    packaging: war
    failure: compilation failure
`

const tomlManifest = `
name = "acme"
build_agent = "Maven/3.9.6"
started = 2026-05-01T10:00:00Z

[[modules]]
group = "org.acme"
artifact = "core"
version = "1.0"
descriptor_file = "core/pom.xml"

[modules.main]
type = "jar"
file = "core/target/core-1.0.jar"

[[modules.attached]]
type = "jar"
classifier = "sources"
file = "core/target/core-1.0-sources.jar"

[[modules.dependencies]]
group = "com.fasterxml"
artifact = "json"
version = "2.1"
scope = "compile"

[[modules.steps]]
name = "compile"

[[modules.steps]]
name = "test"

[[modules.steps.dependencies]]
group = "junit"
artifact = "junit"
version = "4.13"
scope = "test"

[[modules.resolved]]
group = "org.apache.maven.plugins"
artifact = "maven-compiler-plugin"
version = "3.11.0"

[[modules]]
group = "org.acme"
artifact = "web"
version = "1.0"
packaging = "war"
failure = "compilation failure"
`

func wantManifest() *Manifest {
	return &Manifest{
		Name:       "acme",
		BuildAgent: "Maven/3.9.6",
		StartedAt:  time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		Modules: []ModuleManifest{
			{
				Group:          "org.acme",
				Artifact:       "core",
				Version:        "1.0",
				DescriptorFile: "core/pom.xml",
				Main:           &ArtifactManifest{Type: "jar", File: "core/target/core-1.0.jar"},
				Attached: []ArtifactManifest{
					{Type: "jar", Classifier: "sources", File: "core/target/core-1.0-sources.jar"},
				},
				Dependencies: []DependencyManifest{
					{Group: "com.fasterxml", Artifact: "json", Version: "2.1", Scope: "compile"},
				},
				Steps: []StepManifest{
					{Name: "compile"},
					{Name: "test", Dependencies: []DependencyManifest{
						{Group: "junit", Artifact: "junit", Version: "4.13", Scope: "test"},
					}},
				},
				Resolved: []DependencyManifest{
					{Group: "org.apache.maven.plugins", Artifact: "maven-compiler-plugin", Version: "3.11.0"},
				},
			},
			{
				Group:     "org.acme",
				Artifact:  "web",
				Version:   "1.0",
				Packaging: "war",
				Failure:   "compilation failure",
			},
		},
	}
}

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format string
	}{
		{"yaml", yamlManifest, FormatYAML},
		{"toml", tomlManifest, FormatTOML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseManifest([]byte(tt.data), tt.format)
			if err != nil {
				t.Fatalf("ParseManifest() error = %v", err)
			}
			// Both decoders produce UTC; compare instants to stay independent of location
			if !got.StartedAt.Equal(wantManifest().StartedAt) {
				t.Errorf("StartedAt = %v", got.StartedAt)
			}
			got.StartedAt = wantManifest().StartedAt
			if diff := cmp.Diff(wantManifest(), got); diff != "" {
				t.Errorf("manifest mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format string
	}{
		{"no modules", "name: acme\n", FormatYAML},
		{"missing version", "modules:\n  - {group: g, artifact: a}\n", FormatYAML},
		{"duplicate module", "modules:\n  - {group: g, artifact: a, version: '1'}\n  - {group: g, artifact: a, version: '1'}\n", FormatYAML},
		{"unknown key", "modules:\n  - {group: g, artifact: a, version: '1', colour: red}\n", FormatYAML},
		{"attached without type", "modules:\n  - group: g\n    artifact: a\n    version: '1'\n    attached:\n      - {file: x}\n", FormatYAML},
		{"incomplete dependency", "modules:\n  - group: g\n    artifact: a\n    version: '1'\n    resolved:\n      - {group: p}\n", FormatYAML},
		{"unknown toml key", "[[modules]]\ngroup = \"g\"\nartifact = \"a\"\nversion = \"1\"\ncolour = \"red\"\n", FormatTOML},
		{"broken toml", "[[modules]\n", FormatTOML},
		{"unknown format", "modules: []", "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.data), tt.format)
			if !errors.Is(err, errors.ErrManifestInvalid) {
				t.Errorf("ParseManifest() error = %v, want ErrManifestInvalid", err)
			}
		})
	}
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"session.yaml", FormatYAML, false},
		{"session.YML", FormatYAML, false},
		{"build/session.toml", FormatTOML, false},
		{"session.json", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatForPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FormatForPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("FormatForPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/ws/session.yaml", []byte(yamlManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/ws/nested.yaml", []byte("base_dir: src\n"+yamlManifest), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(fs, "/ws/session.yaml")
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if m.BaseDir != "/ws" {
		t.Errorf("BaseDir = %q, want /ws", m.BaseDir)
	}

	nested, err := LoadManifest(fs, "/ws/nested.yaml")
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if want := filepath.Join("/ws", "src"); nested.BaseDir != want {
		t.Errorf("BaseDir = %q, want %q", nested.BaseDir, want)
	}

	_, err = LoadManifest(fs, "/ws/missing.yaml")
	var notFound *errors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("LoadManifest(missing) error = %v, want *NotFoundError", err)
	}
}

func TestModuleManifest_Descriptor(t *testing.T) {
	m := wantManifest().Modules[0]
	graph := []project.Coordinate{{GroupID: "com.fasterxml", ArtifactID: "json", Version: "2.1", Scope: "compile"}}

	got := m.descriptor("worker-1", "/ws", graph)

	want := project.ModuleDescriptor{
		Worker:         "worker-1",
		GroupID:        "org.acme",
		ArtifactID:     "core",
		Version:        "1.0",
		Packaging:      "jar",
		Name:           "core",
		DescriptorFile: "/ws/core/pom.xml",
		MainArtifact: &project.ProducedArtifact{Coordinate: project.Coordinate{
			GroupID: "org.acme", ArtifactID: "core", Version: "1.0", Type: "jar",
			File: "/ws/core/target/core-1.0.jar",
		}},
		Attached: []project.ProducedArtifact{{Coordinate: project.Coordinate{
			GroupID: "org.acme", ArtifactID: "core", Version: "1.0", Type: "jar", Classifier: "sources",
			File: "/ws/core/target/core-1.0-sources.jar",
		}}},
		Dependencies: graph,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestModuleManifest_DescriptorMainTypeFromPackaging(t *testing.T) {
	m := ModuleManifest{Group: "g", Artifact: "web", Version: "1", Packaging: "war", Main: &ArtifactManifest{File: "/abs/web.war"}}
	got := m.descriptor("w", "/ws", nil)
	if got.MainArtifact.Type != "war" {
		t.Errorf("main type = %q, want war", got.MainArtifact.Type)
	}
	if got.MainArtifact.File != "/abs/web.war" {
		t.Errorf("absolute file rewritten to %q", got.MainArtifact.File)
	}
}
