// File: internal/injector/orchestrator.go
// Description: Runs one injection pass over a list of discovered targets. Each
// target gets its own command channel; a failure on one target is recorded as
// that target's outcome and never stops the pass.

package injector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/dccon-cli/internal/cdp"
	"github.com/xkilldash9x/dccon-cli/internal/discovery"
)

// Session is an open command channel as seen by the orchestrator.
type Session interface {
	Evaluate(ctx context.Context, expression string, timeout time.Duration) (*cdp.EvaluateResult, error)
	Close() error
}

// Dialer opens a Session to a command channel address.
type Dialer interface {
	Dial(ctx context.Context, address string) (Session, error)
}

// ChannelDialer is the production Dialer backed by cdp.Dial.
type ChannelDialer struct {
	Options cdp.Options
}

// Dial implements Dialer.
func (d ChannelDialer) Dial(ctx context.Context, address string) (Session, error) {
	ch, err := cdp.Dial(ctx, address, d.Options)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// OutcomeKind classifies what happened to one target.
type OutcomeKind int

const (
	// Injected means the watcher expression was evaluated in the page.
	Injected OutcomeKind = iota
	// ConnectFailed means no channel could be opened; nothing was sent.
	ConnectFailed
	// EvalFailed means the channel opened but the evaluation did not succeed.
	EvalFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case Injected:
		return "injected"
	case ConnectFailed:
		return "connect_failed"
	case EvalFailed:
		return "eval_failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of the pass for a single target. Result holds the
// value the page returned when Kind is Injected.
type Outcome struct {
	Target discovery.Target
	Kind   OutcomeKind
	Result string
	Err    error
}

// Orchestrator drives the per-target injection loop.
type Orchestrator struct {
	dialer Dialer
	logger *zap.Logger
}

// New creates an Orchestrator.
func New(dialer Dialer, logger *zap.Logger) (*Orchestrator, error) {
	if dialer == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	return &Orchestrator{dialer: dialer, logger: logger.Named("injector")}, nil
}

// Run evaluates source in every target, strictly one after another, and
// returns exactly one outcome per target in input order. If ctx ends early,
// the targets not yet attempted are recorded as ConnectFailed with the
// context error.
func (o *Orchestrator) Run(ctx context.Context, targets []discovery.Target, source string, evalTimeout time.Duration) []Outcome {
	outcomes := make([]Outcome, 0, len(targets))

	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("Injection pass interrupted.", zap.Int("skipped", len(targets)-i), zap.Error(err))
			for _, rest := range targets[i:] {
				outcomes = append(outcomes, Outcome{Target: rest, Kind: ConnectFailed, Err: err})
			}
			break
		}
		outcomes = append(outcomes, o.inject(ctx, target, source, evalTimeout))
	}

	return outcomes
}

func (o *Orchestrator) inject(ctx context.Context, target discovery.Target, source string, evalTimeout time.Duration) Outcome {
	logger := o.logger.With(zap.String("address", target.WebSocketDebuggerURL), zap.String("url", target.URL))

	session, err := o.dialer.Dial(ctx, target.WebSocketDebuggerURL)
	if err != nil {
		logger.Warn("Failed to open command channel.", zap.Error(err))
		return Outcome{Target: target, Kind: ConnectFailed, Err: err}
	}
	logger.Info("Command channel connected.")

	defer func() {
		if err := session.Close(); err != nil {
			logger.Debug("Error while closing command channel.", zap.Error(err))
		}
		logger.Debug("Command channel closed.")
	}()

	result, err := session.Evaluate(ctx, source, evalTimeout)
	if err != nil {
		logger.Warn("Watcher evaluation failed.", zap.Error(err))
		return Outcome{Target: target, Kind: EvalFailed, Err: err}
	}

	value := result.Result.String()
	logger.Info("Watcher evaluated.", zap.String("result", value))
	return Outcome{Target: target, Kind: Injected, Result: value}
}

// Summary counts outcomes by kind.
type Summary struct {
	Injected      int
	ConnectFailed int
	EvalFailed    int
}

// Total is the number of outcomes summarized.
func (s Summary) Total() int { return s.Injected + s.ConnectFailed + s.EvalFailed }

// Failed is the number of targets that were not injected.
func (s Summary) Failed() int { return s.ConnectFailed + s.EvalFailed }

// Summarize counts outcomes by kind.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Kind {
		case Injected:
			s.Injected++
		case ConnectFailed:
			s.ConnectFailed++
		case EvalFailed:
			s.EvalFailed++
		}
	}
	return s
}
