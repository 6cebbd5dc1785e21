// Package app provides the mfgate command line.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mfstack/mfgate/internal/config"
	"github.com/mfstack/mfgate/internal/environment"
	"github.com/mfstack/mfgate/internal/versions"
)

var rootCmd = &cobra.Command{
	Use:               "mfgate",
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	Short:             "Module federation readiness coordinator",
	Long: `mfgate serves a module federation host application and holds incoming requests
until every remote application of the selected environment serves its manifest.

Remotes that rebuild can announce themselves on /__mf/rebuild, which pushes a
full reload to every connected dev client.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			slog.Error("Error displaying help", "error", err)
		}
	},
}

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")
	rootCmd.PersistentFlags().String("env", "",
		fmt.Sprintf("Environment mode (overrides %s and the config file)", environment.EnvVar))

	bindFlags(rootCmd.PersistentFlags(), "config", "env")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(envsCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

// bindFlags binds the named flags of fs to viper keys of the same name
func bindFlags(fs *pflag.FlagSet, names ...string) {
	for _, name := range names {
		if err := viper.BindPFlag(name, fs.Lookup(name)); err != nil {
			slog.Error("Error binding flag", "flag", name, "error", err)
		}
	}
}

// loadConfig loads the file at path, or returns an empty configuration when
// no path was given
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{}, nil
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration", "path", path)
	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := versions.GetVersionInfo()
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("failed to read format flag: %w", err)
		}

		if format == "json" {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to format version info as JSON: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
			return err
		}

		slog.Info("mfgate version",
			"version", info.Version,
			"commit", info.Commit,
			"built", info.BuildDate,
			"go", info.GoVersion,
			"platform", info.Platform)
		return nil
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}
