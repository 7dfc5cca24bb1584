package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/buildrecorder/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or validate buildrecorder configuration",
	Long: `View or validate buildrecorder configuration.

Without arguments, displays the effective configuration: defaults merged
with the config file and BUILDRECORDER_* environment variables.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration, including what deployment needs",
	RunE:  runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/buildrecorder/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// secretKeys are masked by config show.
var secretKeys = []string{"repository.access_token"}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "# Config file: (none - using defaults)\n")
	}
	settings := viper.AllSettings()
	delete(settings, "config")
	return writeSettings(out, settings)
}

// writeSettings writes settings as YAML with secret values masked.
func writeSettings(w io.Writer, settings map[string]any) error {
	for _, key := range secretKeys {
		maskSetting(settings, key)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(settings); err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	return enc.Close()
}

// maskSetting replaces a non-empty value at the dotted key with asterisks.
func maskSetting(settings map[string]any, key string) {
	section, name, ok := strings.Cut(key, ".")
	if !ok {
		return
	}
	nested, ok := settings[section].(map[string]any)
	if !ok {
		return
	}
	if v, ok := nested[name].(string); ok && v != "" {
		nested[name] = "********"
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if errs := cfg.ValidateDeploy(); len(errs) > 0 {
		return config.ValidationErrors(errs)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. ./%s (current directory)\n", config.LocalConfigFile)
	fmt.Fprintf(out, "  2. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_PUBLISHER_REPO_KEY)\n", config.EnvPrefix, config.EnvPrefix)

	return nil
}

const defaultConfigContent = `# buildrecorder configuration
# Values may use {{VAR|OTHER_VAR|"default"}} placeholders resolved from the
# environment when the session ends.

build:
  # Build name, defaults to the top-level module name
  name: ""
  # Build number, defaults to the current time in milliseconds
  number: ""
  properties: {}

publisher:
  publish_artifacts: true
  publish_build_info: true
  # Release repository, required when publish_artifacts is true
  repo_key: ""
  # Repository for SNAPSHOT versions (defaults to repo_key)
  snapshot_repo_key: ""
  # Comma separated globs matched against artifact names
  include_patterns: ""
  exclude_patterns: ""
  filter_excluded_artifacts_from_build: false
  record_all_dependencies: false
  deploy_concurrency: 3
  include_env_vars: false
  env_exclude_patterns: "*password*,*psw*,*secret*,*key*,*token*,*auth*"
  matrix_params: {}

repository:
  # http, local or dry-run
  type: http
  url: ""
  access_token: ""
  insecure_tls: false
  timeout: 5m
  local_dir: ""

session:
  parallelism: 1
  env_file: ""
  deployable_artifacts_file: ""
  tolerate_failures: false

logging:
  level: info
  # Empty logs to stderr
  dir: ""
  max_size_mb: 10
  max_backups: 3
  compress: false
`
