package repository

import (
	"context"
	"sync"

	"github.com/Iron-Ham/buildrecorder/internal/buildinfo"
	"github.com/Iron-Ham/buildrecorder/internal/logging"
)

// DryRunClient logs what would be deployed without touching any repository.
type DryRunClient struct {
	logger *logging.Logger

	mu        sync.Mutex
	uploads   int
	published int
}

// NewDryRunClient creates a client that logs to logger. A nil logger
// discards the log.
func NewDryRunClient(logger *logging.Logger) *DryRunClient {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &DryRunClient{logger: logger}
}

// Upload logs the artifact that would be uploaded.
func (c *DryRunClient) Upload(ctx context.Context, d buildinfo.DeployDetails) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.uploads++
	c.mu.Unlock()

	c.logger.Info("dry run: would upload artifact",
		"repository", d.TargetRepository,
		"path", d.ArtifactPath,
		"file", d.File,
		"params", MatrixParams(d.Properties),
	)
	return nil
}

// PublishBuildInfo logs the build info that would be published.
func (c *DryRunClient) PublishBuildInfo(ctx context.Context, info *buildinfo.BuildInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.published++
	c.mu.Unlock()

	c.logger.Info("dry run: would publish build info",
		"name", info.Name,
		"number", info.Number,
		"modules", len(info.Modules),
	)
	return nil
}

// Counts returns how many uploads and publications were logged.
func (c *DryRunClient) Counts() (uploads, published int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploads, c.published
}
