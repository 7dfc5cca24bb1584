// Package deployer uploads a session's deployable artifacts and publishes
// its build info record.
//
// Uploads run on a bounded pool with one task per module group, so workers
// spread across modules while a module's own artifacts go out in order. The
// pool is fully drained before the build info is published. The first
// failure cancels outstanding uploads and is returned as a
// *errors.DeployError naming the phase that failed. Nothing is retried or
// rolled back.
package deployer

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/buildrecorder/internal/buildinfo"
	"github.com/Iron-Ham/buildrecorder/internal/errors"
	"github.com/Iron-Ham/buildrecorder/internal/event"
	"github.com/Iron-Ham/buildrecorder/internal/logging"
)

// DefaultConcurrency is the number of module groups uploaded at once when
// no positive limit is configured.
const DefaultConcurrency = 3

// Client is the artifact repository service.
type Client interface {
	Upload(ctx context.Context, d buildinfo.DeployDetails) error
	PublishBuildInfo(ctx context.Context, info *buildinfo.BuildInfo) error
}

// Config selects what gets published.
type Config struct {
	PublishArtifacts bool
	PublishBuildInfo bool
	Concurrency      int
}

// Deployer runs the deployment phase of a session.
type Deployer struct {
	client Client
	cfg    Config
	logger *logging.Logger
	bus    *event.Bus
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithLogger sets the deployer's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(d *Deployer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithBus publishes progress events on bus.
func WithBus(bus *event.Bus) Option {
	return func(d *Deployer) {
		d.bus = bus
	}
}

// New returns a Deployer for client.
func New(client Client, cfg Config, opts ...Option) (*Deployer, error) {
	if client == nil {
		return nil, errors.NewValidationError("repository client is required").WithField("client")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	d := &Deployer{
		client: client,
		cfg:    cfg,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Deploy uploads the deployables of info's modules and then publishes info.
// Artifacts are skipped when publishing them is disabled or nothing is
// deployable; build info is skipped when publishing it is disabled. Both
// being skipped is logged, not an error.
func (d *Deployer) Deploy(ctx context.Context, info *buildinfo.BuildInfo, deployables map[string]buildinfo.DeployDetails) error {
	log := d.logger.WithBuild(info.Name, info.Number)

	uploadArtifacts := d.cfg.PublishArtifacts && len(deployables) > 0
	if !uploadArtifacts && !d.cfg.PublishBuildInfo {
		log.Info("nothing to deploy",
			"publish_artifacts", d.cfg.PublishArtifacts,
			"publish_build_info", d.cfg.PublishBuildInfo,
			"deployables", len(deployables))
		return nil
	}

	if uploadArtifacts {
		groups := buildinfo.GroupByModule(info, deployables)
		if err := d.upload(ctx, log, groups); err != nil {
			return err
		}
	}

	if d.cfg.PublishBuildInfo {
		if err := d.publish(ctx, log, info); err != nil {
			return err
		}
	}
	return nil
}

func (d *Deployer) upload(ctx context.Context, log *logging.Logger, groups []buildinfo.ModuleGroup) error {
	log = log.WithPhase(errors.PhaseArtifactUpload)
	log.Info("deploying artifacts", "modules", len(groups), "concurrency", d.cfg.Concurrency)

	p := pool.New().
		WithMaxGoroutines(d.cfg.Concurrency).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for _, g := range groups {
		p.Go(func(ctx context.Context) error {
			return d.uploadGroup(ctx, log.WithModule(g.ModuleID), g)
		})
	}
	return p.Wait()
}

func (d *Deployer) uploadGroup(ctx context.Context, log *logging.Logger, g buildinfo.ModuleGroup) error {
	for _, a := range g.Artifacts {
		if err := ctx.Err(); err != nil {
			return errors.NewDeployError(errors.PhaseArtifactUpload, err).
				WithRepository(a.TargetRepository).
				WithPath(a.ArtifactPath)
		}

		start := time.Now()
		if err := d.client.Upload(ctx, a); err != nil {
			log.Error("artifact upload failed",
				"repository", a.TargetRepository,
				"path", a.ArtifactPath,
				"error", err.Error())
			return errors.NewDeployError(errors.PhaseArtifactUpload, err).
				WithRepository(a.TargetRepository).
				WithPath(a.ArtifactPath).
				WithRetryable(errors.IsRetryable(err))
		}
		elapsed := time.Since(start)
		log.Debug("artifact deployed",
			"repository", a.TargetRepository,
			"path", a.ArtifactPath,
			"duration_ms", elapsed.Milliseconds())
		d.publishEvent(event.NewArtifactDeployedEvent(g.ModuleID, a.TargetRepository, a.ArtifactPath, elapsed))
	}
	return nil
}

func (d *Deployer) publish(ctx context.Context, log *logging.Logger, info *buildinfo.BuildInfo) error {
	log = log.WithPhase(errors.PhaseBuildInfoPublish)
	log.Info("publishing build info", "modules", len(info.Modules))

	if err := d.client.PublishBuildInfo(ctx, info); err != nil {
		log.Error("build info publication failed", "error", err.Error())
		return errors.NewDeployError(errors.PhaseBuildInfoPublish, err).WithRetryable(errors.IsRetryable(err))
	}
	d.publishEvent(event.NewBuildInfoPublishedEvent(info.Name, info.Number, len(info.Modules)))
	return nil
}

func (d *Deployer) publishEvent(e event.Event) {
	if d.bus != nil {
		d.bus.Publish(e)
	}
}
