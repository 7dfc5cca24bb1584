package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/buildrecorder/internal/patterns"
)

// EnvPrefix prefixes environment variables that override config keys, e.g.
// BUILDRECORDER_PUBLISHER_REPO_KEY for publisher.repo_key.
const EnvPrefix = "BUILDRECORDER"

// LocalConfigFile is looked up in the working directory before the user
// config directory.
const LocalConfigFile = "buildrecorder.yaml"

// Repository types.
const (
	RepositoryHTTP   = "http"
	RepositoryLocal  = "local"
	RepositoryDryRun = "dry-run"
)

// DefaultEnvExcludePatterns keeps secrets out of recorded environment
// properties.
const DefaultEnvExcludePatterns = "*password*,*psw*,*secret*,*key*,*token*,*auth*"

// Config represents the complete buildrecorder configuration
type Config struct {
	Build      BuildConfig      `mapstructure:"build"`
	Publisher  PublisherConfig  `mapstructure:"publisher"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Session    SessionConfig    `mapstructure:"session"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// BuildConfig is the build identity. Every value may use
// {{VAR|VAR2|"default"}} placeholders resolved from the environment.
type BuildConfig struct {
	// Name defaults to the top-level module name when empty
	Name string `mapstructure:"name"`
	// Number defaults to the current time in epoch milliseconds when empty
	Number string `mapstructure:"number"`
	// Started overrides the session start timestamp (format 2006-01-02T15:04:05.000-0700)
	Started      string `mapstructure:"started"`
	URL          string `mapstructure:"url"`
	Principal    string `mapstructure:"principal"`
	VcsRevision  string `mapstructure:"vcs_revision"`
	VcsURL       string `mapstructure:"vcs_url"`
	ParentName   string `mapstructure:"parent_name"`
	ParentNumber string `mapstructure:"parent_number"`
	// AgentName and AgentVersion identify the recording agent (default: buildrecorder/<version>)
	AgentName    string `mapstructure:"agent_name"`
	AgentVersion string `mapstructure:"agent_version"`
	// Properties are added to the build info as build-level properties
	Properties map[string]string `mapstructure:"properties"`
}

// PublisherConfig controls what gets recorded and deployed
type PublisherConfig struct {
	// PublishArtifacts uploads deployable artifacts (default: true)
	PublishArtifacts bool `mapstructure:"publish_artifacts"`
	// PublishBuildInfo publishes the build info record (default: true)
	PublishBuildInfo bool `mapstructure:"publish_build_info"`
	// RepoKey is the release repository
	RepoKey string `mapstructure:"repo_key"`
	// SnapshotRepoKey receives -SNAPSHOT paths; empty sends them to RepoKey
	SnapshotRepoKey string `mapstructure:"snapshot_repo_key"`
	// IncludePatterns and ExcludePatterns are globs over deployment paths.
	// Comma separated strings are accepted.
	IncludePatterns []string `mapstructure:"include_patterns"`
	ExcludePatterns []string `mapstructure:"exclude_patterns"`
	// FilterExcludedArtifactsFromBuild moves pattern-excluded artifacts to the
	// module's excluded list instead of keeping them in the artifact list
	FilterExcludedArtifactsFromBuild bool `mapstructure:"filter_excluded_artifacts_from_build"`
	// RecordAllDependencies also records artifacts resolved outside the
	// declared dependency graph (plugins, tooling)
	RecordAllDependencies bool `mapstructure:"record_all_dependencies"`
	// DeployConcurrency is the number of modules uploaded at once (default: 3)
	DeployConcurrency int `mapstructure:"deploy_concurrency"`
	// IncludeEnvVars records environment variables as buildInfo.env.* properties
	IncludeEnvVars     bool     `mapstructure:"include_env_vars"`
	EnvIncludePatterns []string `mapstructure:"env_include_patterns"`
	EnvExcludePatterns []string `mapstructure:"env_exclude_patterns"`
	// MatrixParams are attached to every uploaded artifact
	MatrixParams map[string]string `mapstructure:"matrix_params"`
}

// RepositoryConfig selects and configures the artifact repository client
type RepositoryConfig struct {
	// Type is "http", "local" or "dry-run" (default: "http")
	Type string `mapstructure:"type"`
	// URL is the repository service base URL (http only)
	URL string `mapstructure:"url"`
	// AccessToken is sent as a bearer token when set (http only)
	AccessToken string `mapstructure:"access_token"`
	// InsecureTLS skips server certificate verification (http only)
	InsecureTLS bool `mapstructure:"insecure_tls"`
	// Timeout bounds each request (default: 5m)
	Timeout time.Duration `mapstructure:"timeout"`
	// LocalDir is the root directory of the local repository (local only)
	LocalDir string `mapstructure:"local_dir"`
}

// SessionConfig controls how sessions are replayed
type SessionConfig struct {
	// Parallelism is the number of modules built at once (default: 1)
	Parallelism int `mapstructure:"parallelism"`
	// EnvFile is a dotenv file whose variables are visible to placeholders
	EnvFile string `mapstructure:"env_file"`
	// DeployableArtifactsFile receives the per-module deployable set as JSON
	DeployableArtifactsFile string `mapstructure:"deployable_artifacts_file"`
	// TolerateFailures ends the session without errors even when modules fail
	TolerateFailures bool `mapstructure:"tolerate_failures"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is where recorder.log is written; empty logs to stderr
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress"`
}

// Patterns returns the deployment include/exclude patterns.
func (p *PublisherConfig) Patterns() patterns.IncludeExclude {
	return patterns.New(p.IncludePatterns, p.ExcludePatterns)
}

// EnvPatterns returns the environment variable include/exclude patterns.
func (p *PublisherConfig) EnvPatterns() patterns.IncludeExclude {
	return patterns.New(p.EnvIncludePatterns, p.EnvExcludePatterns)
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Build: BuildConfig{
			Properties: map[string]string{},
		},
		Publisher: PublisherConfig{
			PublishArtifacts:   true,
			PublishBuildInfo:   true,
			IncludePatterns:    []string{},
			ExcludePatterns:    []string{},
			DeployConcurrency:  3,
			EnvIncludePatterns: []string{},
			EnvExcludePatterns: patterns.Split(DefaultEnvExcludePatterns),
			MatrixParams:       map[string]string{},
		},
		Repository: RepositoryConfig{
			Type:    RepositoryHTTP,
			Timeout: 5 * time.Minute,
		},
		Session: SessionConfig{
			Parallelism: 1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with the global viper instance
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers default values with v
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	// Build defaults
	v.SetDefault("build.name", defaults.Build.Name)
	v.SetDefault("build.number", defaults.Build.Number)
	v.SetDefault("build.started", defaults.Build.Started)
	v.SetDefault("build.url", defaults.Build.URL)
	v.SetDefault("build.principal", defaults.Build.Principal)
	v.SetDefault("build.vcs_revision", defaults.Build.VcsRevision)
	v.SetDefault("build.vcs_url", defaults.Build.VcsURL)
	v.SetDefault("build.parent_name", defaults.Build.ParentName)
	v.SetDefault("build.parent_number", defaults.Build.ParentNumber)
	v.SetDefault("build.agent_name", defaults.Build.AgentName)
	v.SetDefault("build.agent_version", defaults.Build.AgentVersion)
	v.SetDefault("build.properties", defaults.Build.Properties)

	// Publisher defaults
	v.SetDefault("publisher.publish_artifacts", defaults.Publisher.PublishArtifacts)
	v.SetDefault("publisher.publish_build_info", defaults.Publisher.PublishBuildInfo)
	v.SetDefault("publisher.repo_key", defaults.Publisher.RepoKey)
	v.SetDefault("publisher.snapshot_repo_key", defaults.Publisher.SnapshotRepoKey)
	v.SetDefault("publisher.include_patterns", defaults.Publisher.IncludePatterns)
	v.SetDefault("publisher.exclude_patterns", defaults.Publisher.ExcludePatterns)
	v.SetDefault("publisher.filter_excluded_artifacts_from_build", defaults.Publisher.FilterExcludedArtifactsFromBuild)
	v.SetDefault("publisher.record_all_dependencies", defaults.Publisher.RecordAllDependencies)
	v.SetDefault("publisher.deploy_concurrency", defaults.Publisher.DeployConcurrency)
	v.SetDefault("publisher.include_env_vars", defaults.Publisher.IncludeEnvVars)
	v.SetDefault("publisher.env_include_patterns", defaults.Publisher.EnvIncludePatterns)
	v.SetDefault("publisher.env_exclude_patterns", defaults.Publisher.EnvExcludePatterns)
	v.SetDefault("publisher.matrix_params", defaults.Publisher.MatrixParams)

	// Repository defaults
	v.SetDefault("repository.type", defaults.Repository.Type)
	v.SetDefault("repository.url", defaults.Repository.URL)
	v.SetDefault("repository.access_token", defaults.Repository.AccessToken)
	v.SetDefault("repository.insecure_tls", defaults.Repository.InsecureTLS)
	v.SetDefault("repository.timeout", defaults.Repository.Timeout)
	v.SetDefault("repository.local_dir", defaults.Repository.LocalDir)

	// Session defaults
	v.SetDefault("session.parallelism", defaults.Session.Parallelism)
	v.SetDefault("session.env_file", defaults.Session.EnvFile)
	v.SetDefault("session.deployable_artifacts_file", defaults.Session.DeployableArtifactsFile)
	v.SetDefault("session.tolerate_failures", defaults.Session.TolerateFailures)

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.dir", defaults.Logging.Dir)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	v.SetDefault("logging.compress", defaults.Logging.Compress)
}

// decodeHook turns duration strings into time.Duration and comma separated
// strings into slices.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// Load reads the configuration from the global viper instance into a Config
// struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v and validates it
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, err
	}

	// Property maps may come from env vars or flags as loosely typed values
	cfg.Build.Properties = cast.ToStringMapString(v.Get("build.properties"))
	cfg.Publisher.MatrixParams = cast.ToStringMapString(v.Get("publisher.matrix_params"))
	cfg.Publisher.IncludePatterns = patterns.Split(cfg.Publisher.IncludePatterns...)
	cfg.Publisher.ExcludePatterns = patterns.Split(cfg.Publisher.ExcludePatterns...)
	cfg.Publisher.EnvIncludePatterns = patterns.Split(cfg.Publisher.EnvIncludePatterns...)
	cfg.Publisher.EnvExcludePatterns = patterns.Split(cfg.Publisher.EnvExcludePatterns...)

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "buildrecorder")
	}
	// Fall back to ~/.config/buildrecorder
	home, err := os.UserHomeDir()
	if err != nil {
		return ".buildrecorder"
	}
	return filepath.Join(home, ".config", "buildrecorder")
}

// ConfigFile returns the path to the user config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidRepositoryTypes returns the list of valid repository types
func ValidRepositoryTypes() []string {
	return []string{RepositoryHTTP, RepositoryLocal, RepositoryDryRun}
}
