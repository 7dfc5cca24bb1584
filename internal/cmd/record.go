package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Iron-Ham/buildrecorder/internal/config"
	"github.com/Iron-Ham/buildrecorder/internal/deployer"
	"github.com/Iron-Ham/buildrecorder/internal/errors"
	"github.com/Iron-Ham/buildrecorder/internal/event"
	"github.com/Iron-Ham/buildrecorder/internal/logging"
	"github.com/Iron-Ham/buildrecorder/internal/planner"
	"github.com/Iron-Ham/buildrecorder/internal/recorder"
	"github.com/Iron-Ham/buildrecorder/internal/report"
	"github.com/Iron-Ham/buildrecorder/internal/repository"
	"github.com/Iron-Ham/buildrecorder/internal/session"
	"github.com/Iron-Ham/buildrecorder/internal/template"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var recordCmd = &cobra.Command{
	Use:   "record <manifest>",
	Short: "Replay a build session manifest and deploy the result",
	Long: `Replay a build session described by a YAML or TOML manifest.

Every module in the manifest is driven through the recorder on a pool of
workers. When the session ends without errors the build info is
materialized, the deployable artifacts are uploaded and the build info is
published to the configured repository.

Examples:
  # Record and deploy using ./buildrecorder.yaml
  buildrecorder record session.yaml

  # See what would be deployed without touching a repository
  buildrecorder record --dry-run session.yaml

  # Replay modules on four workers
  buildrecorder record -p 4 session.toml`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

var recordDryRun bool

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().BoolVar(&recordDryRun, "dry-run", false, "Log deployments instead of performing them")
	recordCmd.Flags().IntP("parallelism", "p", 0, "Number of workers replaying modules (default from config)")
	recordCmd.Flags().Bool("tolerate-failures", false, "Record the build even when modules fail")
	recordCmd.Flags().String("log-level", "", "Log level (debug/info/warn/error)")
	recordCmd.Flags().String("log-dir", "", "Directory for recorder.log (default stderr)")
	_ = viper.BindPFlag("session.parallelism", recordCmd.Flags().Lookup("parallelism"))
	_ = viper.BindPFlag("session.tolerate_failures", recordCmd.Flags().Lookup("tolerate-failures"))
	_ = viper.BindPFlag("logging.level", recordCmd.Flags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.dir", recordCmd.Flags().Lookup("log-dir"))
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if recordDryRun {
		cfg.Repository.Type = config.RepositoryDryRun
	}
	if errs := cfg.ValidateDeploy(); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", config.ValidationErrors(errs))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := recordSession(ctx, cfg, args[0])
	if writeErr := report.Write(cmd.OutOrStdout(), summary); writeErr != nil && err == nil {
		err = writeErr
	}
	return err
}

// recordSession replays the manifest at manifestPath through a recorder
// wired to the configured repository and returns what happened.
func recordSession(ctx context.Context, cfg *config.Config, manifestPath string) (report.Summary, error) {
	base, err := logging.NewLoggerWithRotation(cfg.Logging.Dir, logging.ParseLevel(cfg.Logging.Level), logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return report.Summary{}, fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = base.Close() }()
	logger := base.With("manifest", manifestPath)

	manifest, err := session.LoadManifest(afero.NewOsFs(), manifestPath)
	if err != nil {
		return report.Summary{}, err
	}

	lock, err := session.AcquireLock(filepath.Dir(manifestPath), filepath.Base(manifestPath), logger)
	if err != nil {
		return report.Summary{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release replay lock", "error", err.Error())
		}
	}()

	resolver := template.NewResolver()
	if cfg.Session.EnvFile != "" {
		if err := resolver.LoadEnvFile(cfg.Session.EnvFile); err != nil {
			return report.Summary{}, err
		}
	}

	client, err := repository.Open(cfg.Repository, logger)
	if err != nil {
		return report.Summary{}, err
	}

	bus := event.NewBus(event.WithLogger(logger))
	dep, err := deployer.New(client, deployer.Config{
		PublishArtifacts: cfg.Publisher.PublishArtifacts,
		PublishBuildInfo: cfg.Publisher.PublishBuildInfo,
		Concurrency:      cfg.Publisher.DeployConcurrency,
	}, deployer.WithLogger(logger), deployer.WithBus(bus))
	if err != nil {
		return report.Summary{}, err
	}

	rec := recorder.New(recorderConfig(cfg),
		recorder.WithLogger(logger),
		recorder.WithResolver(resolver),
		recorder.WithDeployer(dep),
	)
	bridge := recorder.Attach(ctx, bus, rec)
	defer bridge.Detach()
	collector := report.Collect(bus)
	defer collector.Stop()

	driver := session.NewDriver(bus,
		session.WithParallelism(cfg.Session.Parallelism),
		session.WithTolerateFailures(cfg.Session.TolerateFailures),
		session.WithLogger(logger),
	)
	outcome, runErr := driver.Run(ctx, manifest)

	summary := report.Summary{
		Info:        rec.BuildInfo(),
		Deployments: collector.Deployments(),
		Published:   collector.Published(),
	}
	summary.Failures = append(summary.Failures, outcome.Errors...)
	if err := bridge.Err(); err != nil {
		summary.Failures = append(summary.Failures, err)
	}

	if runErr != nil {
		return summary, runErr
	}
	if err := bridge.Err(); err != nil {
		return summary, err
	}
	if outcome.HasErrors() {
		return summary, errors.NewSessionError(
			fmt.Sprintf("%d module(s) failed, nothing was deployed", len(outcome.Errors)),
			errors.ErrSessionAborted,
		)
	}
	logger.Info("session recorded",
		"state", rec.State().String(),
		"deployed", len(summary.Deployments),
		"published", summary.Published)
	return summary, nil
}

// recorderConfig maps the loaded configuration onto the recorder's.
func recorderConfig(cfg *config.Config) recorder.Config {
	agentVersion := cfg.Build.AgentVersion
	if agentVersion == "" {
		agentVersion = Version
	}
	return recorder.Config{
		Identity: recorder.Identity{
			Name:         cfg.Build.Name,
			Number:       cfg.Build.Number,
			Started:      cfg.Build.Started,
			URL:          cfg.Build.URL,
			Principal:    cfg.Build.Principal,
			VcsRevision:  cfg.Build.VcsRevision,
			VcsURL:       cfg.Build.VcsURL,
			ParentName:   cfg.Build.ParentName,
			ParentNumber: cfg.Build.ParentNumber,
			Properties:   cfg.Build.Properties,
		},
		Planner: planner.Config{
			Patterns:                         cfg.Publisher.Patterns(),
			FilterExcludedArtifactsFromBuild: cfg.Publisher.FilterExcludedArtifactsFromBuild,
			ReleaseRepo:                      cfg.Publisher.RepoKey,
			SnapshotRepo:                     cfg.Publisher.SnapshotRepoKey,
			MatrixParams:                     cfg.Publisher.MatrixParams,
		},
		RecordAllDependencies:   cfg.Publisher.RecordAllDependencies,
		IncludeEnvVars:          cfg.Publisher.IncludeEnvVars,
		EnvPatterns:             cfg.Publisher.EnvPatterns(),
		AgentName:               cfg.Build.AgentName,
		AgentVersion:            agentVersion,
		DeployableArtifactsFile: cfg.Session.DeployableArtifactsFile,
	}
}
