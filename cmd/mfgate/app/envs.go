package app

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfstack/mfgate/internal/config"
	"github.com/mfstack/mfgate/internal/environment"
)

var envsCmd = &cobra.Command{
	Use:   "envs",
	Short: "List the environments and their remotes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(viper.GetString("config"))
		if err != nil {
			return err
		}
		return printEnvironments(cmd.OutOrStdout(), cfg, cfg.SelectMode(viper.GetString("env")))
	},
}

// printEnvironments writes one row per remote of every mode. The mode that
// would be selected is marked with an asterisk.
func printEnvironments(out io.Writer, cfg *config.Config, selected string) error {
	resolver, err := environment.NewResolver(environment.WithOverrides(cfg.Environments))
	if err != nil {
		return err
	}
	current, err := environment.ParseMode(selected)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.Header("Mode", "Host", "Remote", "Manifest URL")

	for _, mode := range resolver.Modes() {
		env, err := resolver.Resolve(mode.String())
		if err != nil {
			return err
		}

		name := mode.String()
		if mode == current {
			name += " *"
		}
		host := env.Host().Origin

		remotes := env.Remotes()
		if len(remotes) == 0 {
			if err := table.Append([]string{name, host, "-", "-"}); err != nil {
				return fmt.Errorf("failed to add row: %w", err)
			}
			continue
		}
		for _, r := range remotes {
			if err := table.Append([]string{name, host, r.Name, r.ManifestURL}); err != nil {
				return fmt.Errorf("failed to add row: %w", err)
			}
		}
	}

	return table.Render()
}
