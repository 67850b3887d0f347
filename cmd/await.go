// File: cmd/await.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/dccon-cli/internal/injector"
	"github.com/xkilldash9x/dccon-cli/internal/observability"
)

func newAwaitCmd() *cobra.Command {
	awaitCmd := &cobra.Command{
		Use:   "await",
		Short: "Waits for a matching page to appear, then injects once",
		Long: `Polls the remote debugging endpoint until at least one page matches the
target prefix, backing off linearly between attempts, then runs one
injection pass. Gives up after readiness.max_attempts attempts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}
			strict, _ := cmd.Flags().GetBool("strict")

			components, err := initializePassComponents(cfg, observability.GetLogger())
			if err != nil {
				return err
			}

			gate := &injector.Gate{
				MaxAttempts:  cfg.Readiness.MaxAttempts,
				Interval:     cfg.Readiness.Interval,
				InitialDelay: cfg.Readiness.InitialDelay,
				Logger:       components.Logger,
			}
			probe := func(ctx context.Context) (bool, error) {
				return components.Discovery.Probe(ctx, cfg.Injector.DebugPort, cfg.Injector.TargetPrefix)
			}
			if err := gate.Wait(ctx, probe); err != nil {
				return fmt.Errorf("giving up before injection: %w", err)
			}

			outcomes, err := runPass(ctx, cfg, components)
			if err != nil {
				return err
			}
			printOutcomes(cmd.OutOrStdout(), outcomes)
			return strictCheck(strict, outcomes)
		},
	}
	addInjectionFlags(awaitCmd)
	awaitCmd.Flags().Int("attempts", 0, "readiness attempts before giving up")
	awaitCmd.Flags().Duration("interval", 0, "base backoff between readiness attempts")
	return awaitCmd
}
