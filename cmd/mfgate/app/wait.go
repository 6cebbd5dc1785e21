package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfstack/mfgate/internal/config"
	"github.com/mfstack/mfgate/internal/environment"
	"github.com/mfstack/mfgate/internal/gate"
	"github.com/mfstack/mfgate/internal/httpclient"
	"github.com/mfstack/mfgate/internal/probe"
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait until the remotes of an environment serve their manifests",
	Long: `Probe every remote of the selected environment concurrently and print one line
per remote. Unreachable remotes are reported but do not fail the command; only an
invalid configuration or environment exits non-zero.`,
	RunE: runWait,
}

func init() {
	waitCmd.Flags().Int("max-attempts", probe.StandaloneMaxAttempts, "Attempts per remote before giving up")
	waitCmd.Flags().Duration("retry-delay", probe.DefaultRetryDelay, "Delay between attempts")
	waitCmd.Flags().Duration("attempt-timeout", probe.DefaultAttemptTimeout, "Timeout of a single attempt")
}

func runWait(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(viper.GetString("config"))
	if err != nil {
		return err
	}

	maxAttempts, err := cmd.Flags().GetInt("max-attempts")
	if err != nil {
		return err
	}
	retryDelay, err := cmd.Flags().GetDuration("retry-delay")
	if err != nil {
		return err
	}
	attemptTimeout, err := cmd.Flags().GetDuration("attempt-timeout")
	if err != nil {
		return err
	}

	prober := probe.New(httpclient.NewDefaultClient(attemptTimeout))
	return waitForRemotes(cmd.Context(), cmd.OutOrStdout(), cfg, cfg.SelectMode(viper.GetString("env")), prober,
		probe.WithMaxAttempts(maxAttempts),
		probe.WithRetryDelay(retryDelay),
		probe.WithAttemptTimeout(attemptTimeout),
	)
}

// waitForRemotes probes every remote of mode and reports each outcome to out.
// It fails only when the environment cannot be resolved or ctx ends first.
func waitForRemotes(
	ctx context.Context,
	out io.Writer,
	cfg *config.Config,
	mode string,
	prober gate.Prober,
	opts ...probe.Option,
) error {
	resolver, err := environment.NewResolver(environment.WithOverrides(cfg.Environments))
	if err != nil {
		return err
	}
	env, err := resolver.Resolve(mode)
	if err != nil {
		return err
	}

	g := gate.New(prober, env.Remotes(), gate.WithProbeOptions(opts...))
	if err := g.Start(ctx); err != nil {
		return err
	}
	state, err := g.Wait(ctx)
	if err == nil {
		// Probes cut short by ctx settle as unreachable; do not report them as such
		err = ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("interrupted while waiting for remotes: %w", err)
	}

	var unreachable []string
	for _, r := range g.Results() {
		if r.Outcome == probe.Ready {
			fmt.Fprintf(out, "%s is ready (%d attempts, %s)\n", r.RemoteName, r.Attempts, r.Elapsed.Round(time.Millisecond))
			continue
		}
		unreachable = append(unreachable, r.RemoteName)
		fmt.Fprintf(out, "%s did not become ready after %d attempts, continuing anyway\n", r.RemoteName, r.Attempts)
	}

	if state == gate.Ready {
		fmt.Fprintln(out, "All remote apps are ready")
	} else {
		fmt.Fprintf(out, "Continuing with %d unreachable remote apps\n", len(unreachable))
	}
	return nil
}
