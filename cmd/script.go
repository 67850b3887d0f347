// File: cmd/script.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/dccon-cli/internal/browser/shim"
)

func newScriptCmd() *cobra.Command {
	scriptCmd := &cobra.Command{
		Use:   "script",
		Short: "Prints the watcher expression for manual use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}
			script, err := shim.WatcherScript(cfg.Injector.BaseURL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), script)
			return nil
		},
	}
	scriptCmd.Flags().String("base-url", "", "base URL of the emoticon assets")
	return scriptCmd
}
