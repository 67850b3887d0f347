// File: cmd/pass.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/dccon-cli/internal/browser/shim"
	"github.com/xkilldash9x/dccon-cli/internal/cdp"
	"github.com/xkilldash9x/dccon-cli/internal/config"
	"github.com/xkilldash9x/dccon-cli/internal/discovery"
	"github.com/xkilldash9x/dccon-cli/internal/injector"
	"github.com/xkilldash9x/dccon-cli/internal/network"
)

// passComponents bundles what an injection pass needs.
type passComponents struct {
	RunID        string
	Logger       *zap.Logger
	Discovery    *discovery.Client
	Orchestrator *injector.Orchestrator
	Script       string
}

// newHTTPClient builds the client used for discovery and catalog fetches.
func newHTTPClient(cfg *config.Config, logger *zap.Logger) *network.Client {
	clientCfg := network.NewDefaultClientConfig()
	clientCfg.RequestTimeout = cfg.Discovery.RequestTimeout
	clientCfg.Logger = logger
	return network.NewClient(clientCfg)
}

func initializePassComponents(cfg *config.Config, logger *zap.Logger) (*passComponents, error) {
	runID := uuid.New().String()
	logger = logger.With(zap.String("run_id", runID))

	script, err := shim.WatcherScript(cfg.Injector.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to build watcher script: %w", err)
	}

	httpClient := newHTTPClient(cfg, logger)
	disc := discovery.NewClient(discovery.NewHTTPClientAdapter(httpClient.Client), cfg.Discovery.Host, logger)

	orch, err := injector.New(injector.ChannelDialer{Options: cdp.Options{Logger: logger}}, logger)
	if err != nil {
		return nil, err
	}

	return &passComponents{
		RunID:        runID,
		Logger:       logger,
		Discovery:    disc,
		Orchestrator: orch,
		Script:       script,
	}, nil
}

// runPass does one discovery, inject and close pass. A discovery failure or
// an empty target list aborts the pass; per-target failures do not.
func runPass(ctx context.Context, cfg *config.Config, c *passComponents) ([]injector.Outcome, error) {
	targets, err := c.Discovery.Discover(ctx, cfg.Injector.DebugPort, cfg.Injector.TargetPrefix)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		c.Logger.Warn("WebSocket URL not found.", zap.String("prefix", cfg.Injector.TargetPrefix))
		return nil, discovery.ErrNoTargets
	}

	c.Logger.Info("Starting injection pass.", zap.Int("targets", len(targets)))
	outcomes := c.Orchestrator.Run(ctx, targets, c.Script, cfg.Injector.EvalTimeout())

	summary := injector.Summarize(outcomes)
	c.Logger.Info("Injection pass finished.",
		zap.Int("injected", summary.Injected),
		zap.Int("connect_failed", summary.ConnectFailed),
		zap.Int("eval_failed", summary.EvalFailed),
	)
	return outcomes, nil
}

// printOutcomes writes one line per target followed by the summary.
func printOutcomes(w io.Writer, outcomes []injector.Outcome) {
	for _, o := range outcomes {
		detail := o.Result
		if o.Err != nil {
			detail = o.Err.Error()
		}
		fmt.Fprintf(w, "%-15s %s  %s\n", o.Kind, o.Target.WebSocketDebuggerURL, detail)
	}
	s := injector.Summarize(outcomes)
	fmt.Fprintf(w, "\n%d target(s): %d injected, %d connect failed, %d eval failed\n",
		s.Total(), s.Injected, s.ConnectFailed, s.EvalFailed)
}

// strictCheck turns per-target failures into an error when strict is set.
func strictCheck(strict bool, outcomes []injector.Outcome) error {
	if !strict {
		return nil
	}
	if s := injector.Summarize(outcomes); s.Failed() > 0 {
		return fmt.Errorf("%d of %d targets failed", s.Failed(), s.Total())
	}
	return nil
}
