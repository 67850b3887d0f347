// File: cmd/preview.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/dccon-cli/internal/pagewatch"
)

func newPreviewCmd() *cobra.Command {
	previewCmd := &cobra.Command{
		Use:   "preview <message>",
		Short: "Shows how the watcher would rewrite a chat message",
		Example: `  dccon-cli preview '~smile~wave' --catalog ./dccon_list.js
  dccon-cli preview '~smile' --base-url https://cdn.example.com/dccon`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}

			load, err := catalogLoader(cmd, cfg)
			if err != nil {
				return err
			}
			descriptors, err := load(ctx)
			if err != nil {
				return err
			}

			rewriter := pagewatch.NewRewriter(pagewatch.NewIndex(descriptors...), cfg.Injector.BaseURL)
			plan := rewriter.Plan(args[0])

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "verdict: %s\n", plan.Verdict)
			switch plan.Verdict {
			case pagewatch.Unmatched:
				fmt.Fprintln(out, "message does not follow ~keyword or ~keyword~keyword; left as text")
			case pagewatch.Unresolved:
				fmt.Fprintf(out, "no emoticon for: %s; left as text\n", strings.Join(plan.Missing, ", "))
			case pagewatch.Replace:
				for _, img := range plan.Images {
					fmt.Fprintf(out, "  %s -> %s\n", img.Keyword, img.Src)
				}
			}
			return nil
		},
	}
	addCatalogFlags(previewCmd)
	return previewCmd
}
