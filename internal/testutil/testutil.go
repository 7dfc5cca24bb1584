// Package testutil provides testing utilities for buildrecorder tests:
// artifact files on disk, module fixtures, and a recording repository client.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Iron-Ham/buildrecorder/internal/buildinfo"
	"github.com/Iron-Ham/buildrecorder/internal/project"
)

// SetupWorkspace creates a temporary directory populated with files. The
// files map holds relative paths to contents. The directory is removed when
// the test completes.
func SetupWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for path, content := range files {
		WriteFile(t, dir, path, content)
	}
	return dir
}

// WriteFile writes content to dir/rel, creating parent directories, and
// returns the absolute path.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()

	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return full
}

// Jar returns a produced jar artifact backed by file.
func Jar(group, artifact, version, classifier, file string) project.ProducedArtifact {
	return project.ProducedArtifact{Coordinate: project.Coordinate{
		GroupID:    group,
		ArtifactID: artifact,
		Version:    version,
		Type:       "jar",
		Classifier: classifier,
		File:       file,
	}}
}

// Dep returns a dependency coordinate.
func Dep(group, artifact, version, scope string) project.Coordinate {
	return project.Coordinate{
		GroupID:    group,
		ArtifactID: artifact,
		Version:    version,
		Scope:      scope,
		Type:       "jar",
	}
}

// Module returns a jar-packaged module descriptor whose main artifact is
// main (may be nil).
func Module(worker, group, artifact, version string, main *project.ProducedArtifact) project.ModuleDescriptor {
	return project.ModuleDescriptor{
		Worker:       worker,
		GroupID:      group,
		ArtifactID:   artifact,
		Version:      version,
		Packaging:    "jar",
		Name:         artifact,
		MainArtifact: main,
	}
}

// RecordingClient is an in-memory repository client that records every call.
// UploadErr and PublishErr, when set, are returned by the matching calls.
// It is safe for concurrent use.
type RecordingClient struct {
	mu         sync.Mutex
	uploads    []buildinfo.DeployDetails
	published  []*buildinfo.BuildInfo
	calls      []string
	UploadErr  func(buildinfo.DeployDetails) error
	PublishErr error
}

// Upload records d.
func (c *RecordingClient) Upload(ctx context.Context, d buildinfo.DeployDetails) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.UploadErr != nil {
		if err := c.UploadErr(d); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploads = append(c.uploads, d)
	c.calls = append(c.calls, "upload")
	return nil
}

// PublishBuildInfo records info.
func (c *RecordingClient) PublishBuildInfo(ctx context.Context, info *buildinfo.BuildInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.PublishErr != nil {
		return c.PublishErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, info)
	c.calls = append(c.calls, "publish")
	return nil
}

// Uploads returns the recorded uploads in call order.
func (c *RecordingClient) Uploads() []buildinfo.DeployDetails {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]buildinfo.DeployDetails, len(c.uploads))
	copy(out, c.uploads)
	return out
}

// Published returns the recorded build-info publications.
func (c *RecordingClient) Published() []*buildinfo.BuildInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*buildinfo.BuildInfo, len(c.published))
	copy(out, c.published)
	return out
}

// Calls returns "upload" and "publish" in the order the calls succeeded.
func (c *RecordingClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}
