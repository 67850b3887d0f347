// File: cmd/catalog.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/dccon-cli/internal/config"
	"github.com/xkilldash9x/dccon-cli/internal/observability"
	"github.com/xkilldash9x/dccon-cli/internal/pagewatch"
)

func addCatalogFlags(cmd *cobra.Command) {
	cmd.Flags().String("base-url", "", "base URL of the emoticon assets")
	cmd.Flags().String("catalog", "", "read the emoticon list from this file instead of <base-url>/lib/dccon_list.js")
}

// catalogLoader returns a loader for the file given by --catalog, or for the
// published list under the configured base URL.
func catalogLoader(cmd *cobra.Command, cfg *config.Config) (pagewatch.Loader, error) {
	path, _ := cmd.Flags().GetString("catalog")
	if path != "" {
		return func(ctx context.Context) ([]pagewatch.Descriptor, error) {
			return pagewatch.ReadCatalogFile(path)
		}, nil
	}

	if cfg.Injector.BaseURL == "" {
		return nil, fmt.Errorf("either --catalog or a base URL is required")
	}
	client := newHTTPClient(cfg, observability.GetLogger())
	return func(ctx context.Context) ([]pagewatch.Descriptor, error) {
		return pagewatch.FetchCatalog(ctx, client, cfg.Injector.BaseURL)
	}, nil
}
