package cmd

import (
	"os"
	"strings"

	"github.com/Iron-Ham/buildrecorder/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is the release version, set at build time with -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "buildrecorder",
	Short: "Record build sessions as build info and deploy their artifacts",
	Long: `Buildrecorder observes a multi-module build session, records every
module's artifacts and dependencies as a build-info document, and deploys
the deployable artifacts and the build info to an artifact repository.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.Version = Version

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./buildrecorder.yaml or $HOME/.config/buildrecorder/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if _, err := os.Stat(config.LocalConfigFile); err == nil {
		viper.SetConfigFile(config.LocalConfigFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// Replace dots with underscores for nested keys in env vars
	// e.g., BUILDRECORDER_PUBLISHER_REPO_KEY for publisher.repo_key
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
