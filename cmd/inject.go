// File: cmd/inject.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/dccon-cli/internal/observability"
)

// addInjectionFlags registers the flags shared by inject and await. They are
// bound to configuration keys in initializeConfig.
func addInjectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("base-url", "", "base URL of the emoticon assets")
	cmd.Flags().String("port", "", "remote debugging port of the browser")
	cmd.Flags().Int("timeout", 0, "seconds to wait for each evaluate response")
	cmd.Flags().String("prefix", "", "only inject into pages whose URL starts with this prefix")
	cmd.Flags().String("host", "", "host of the remote debugging endpoint")
	cmd.Flags().Bool("strict", false, "exit with an error if any target failed")
}

func newInjectCmd() *cobra.Command {
	injectCmd := &cobra.Command{
		Use:   "inject",
		Short: "Injects the watcher into every matching page once",
		Long: `Queries the browser's remote debugging endpoint for pages whose URL starts
with the target prefix and evaluates the emoticon watcher in each of them.
A page that cannot be reached or fails to evaluate is reported and skipped.`,
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

			outcomes, err := runPass(ctx, cfg, components)
			if err != nil {
				return err
			}
			printOutcomes(cmd.OutOrStdout(), outcomes)
			return strictCheck(strict, outcomes)
		},
	}
	addInjectionFlags(injectCmd)
	return injectCmd
}
