package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/buildrecorder/internal/buildinfo"
	"github.com/Iron-Ham/buildrecorder/internal/errors"
	"github.com/Iron-Ham/buildrecorder/internal/logging"
)

// BuildsDir holds published build info under a local repository root, as
// builds/<name>/<number>.json.
const BuildsDir = "builds"

// LocalClient lays artifacts out under a directory as
// <root>/<repository>/<path>, with .md5 and .sha1 sidecar files.
type LocalClient struct {
	root   string
	dst    afero.Fs
	src    afero.Fs
	logger *logging.Logger
}

// LocalOption configures a LocalClient.
type LocalOption func(*LocalClient)

// WithFs sets the filesystem both artifact sources and the repository
// live on.
func WithFs(fs afero.Fs) LocalOption {
	return func(c *LocalClient) {
		if fs != nil {
			c.dst = fs
			c.src = fs
		}
	}
}

// WithLocalLogger sets the client's logger.
func WithLocalLogger(logger *logging.Logger) LocalOption {
	return func(c *LocalClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewLocalClient creates a client rooted at root.
func NewLocalClient(root string, opts ...LocalOption) (*LocalClient, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.NewConfigError("local repository directory is empty", nil).WithKey("repository.local_dir")
	}
	c := &LocalClient{
		root:   root,
		dst:    afero.NewOsFs(),
		src:    afero.NewOsFs(),
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Root returns the repository root directory.
func (c *LocalClient) Root() string {
	return c.root
}

// target joins rel under root, rejecting paths that escape it.
func (c *LocalClient) target(parts ...string) (string, error) {
	rel := path.Clean(strings.Join(parts, "/"))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return "", errors.NewValidationError("path escapes repository root").
			WithField("path").
			WithValue(strings.Join(parts, "/"))
	}
	return filepath.Join(c.root, filepath.FromSlash(rel)), nil
}

// Upload copies the artifact file into the repository.
func (c *LocalClient) Upload(ctx context.Context, d buildinfo.DeployDetails) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := c.target(d.TargetRepository, strings.TrimPrefix(d.ArtifactPath, "/"))
	if err != nil {
		return err
	}

	in, err := c.src.Open(d.File)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.File, err)
	}
	defer func() { _ = in.Close() }()

	if err := c.dst.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	out, err := c.dst.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", d.File, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}

	for ext, sum := range map[string]string{".md5": d.Md5, ".sha1": d.Sha1} {
		if sum == "" {
			continue
		}
		if err := afero.WriteFile(c.dst, dest+ext, []byte(sum), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dest+ext, err)
		}
	}

	c.logger.Debug("artifact stored", "path", dest)
	return nil
}

// PublishBuildInfo writes info as JSON under builds/<name>/<number>.json.
func (c *LocalClient) PublishBuildInfo(ctx context.Context, info *buildinfo.BuildInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := c.target(BuildsDir, info.Name, info.Number+".json")
	if err != nil {
		return err
	}

	var body bytes.Buffer
	if err := buildinfo.WriteJSON(&body, info); err != nil {
		return err
	}
	if err := c.dst.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	if err := afero.WriteFile(c.dst, dest, body.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}

	c.logger.Debug("build info stored", "path", dest)
	return nil
}
