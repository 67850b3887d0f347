// File: cmd/replay.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/dccon-cli/internal/browser/shim"
	"github.com/xkilldash9x/dccon-cli/internal/observability"
	"github.com/xkilldash9x/dccon-cli/internal/pagewatch"
)

func newReplayCmd() *cobra.Command {
	replayCmd := &cobra.Command{
		Use:   "replay <page.html>",
		Short: "Rewrites a saved chat page offline, as if every message just arrived",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			load, err := catalogLoader(cmd, cfg)
			if err != nil {
				return err
			}

			// The catalog and the page are independent; fetch and parse together.
			var (
				descriptors []pagewatch.Descriptor
				page        *pagewatch.Page
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				descriptors, err = load(gctx)
				return err
			})
			g.Go(func() error {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open page: %w", err)
				}
				defer f.Close()
				page, err = pagewatch.ParsePage(f, cfg.Injector.BaseURL, logger)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			result := page.Install(ctx, func(context.Context) ([]pagewatch.Descriptor, error) {
				return descriptors, nil
			})
			if result != shim.ResultInstalled {
				return fmt.Errorf("unexpected watcher state: %s", result)
			}
			select {
			case <-page.Ready():
			case <-ctx.Done():
				return ctx.Err()
			}

			replayed, err := page.Replay()
			if err != nil {
				return err
			}
			stats := page.Stats()
			logger.Info("Replayed chat page.",
				zap.Int("messages", replayed),
				zap.Int("rewritten", stats.Rewritten),
				zap.Int("unresolved", stats.Unresolved),
			)

			var out io.Writer = cmd.OutOrStdout()
			if path, _ := cmd.Flags().GetString("out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("failed to create output: %w", err)
				}
				defer f.Close()
				out = f
			}
			if err := page.Render(out); err != nil {
				return fmt.Errorf("failed to render page: %w", err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "%d message(s): %d rewritten, %d unresolved, %d left as text\n",
				replayed, stats.Rewritten, stats.Unresolved, stats.Ignored)
			return nil
		},
	}
	addCatalogFlags(replayCmd)
	replayCmd.Flags().StringP("out", "o", "", "write the rewritten page here instead of stdout")
	return replayCmd
}
