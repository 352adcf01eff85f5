// Package orchestrator wires the compiler, screener and backtest engine
// into the single entry point behind the CLI: natural-language text in,
// screen results or a backtest report out.
package orchestrator

import (
	"context"

	"github.com/finsight-lab/finsight/internal/backtest/engine"
	"github.com/finsight-lab/finsight/internal/compiler"
	"github.com/finsight-lab/finsight/internal/logger"
	"github.com/finsight-lab/finsight/internal/market"
	"github.com/finsight-lab/finsight/internal/screener"
	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
	"go.uber.org/zap"
)

// Result is the outcome of one handled request. Exactly one of Screen and
// Report is populated, according to Variant.
type Result struct {
	Variant types.SpecificationVariant
	Screen  []types.ScreenResult
	Report  *types.BacktestReport
}

// Orchestrator routes compiled specifications to their executor.
type Orchestrator struct {
	compiler *compiler.Compiler
	screener *screener.Screener
	engine   engine.Engine
	provider market.Provider
	log      *logger.Logger
}

// NewOrchestrator creates an orchestrator over the given components.
func NewOrchestrator(
	c *compiler.Compiler,
	s *screener.Screener,
	e engine.Engine,
	provider market.Provider,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		compiler: c,
		screener: s,
		engine:   e,
		provider: provider,
		log:      log,
	}
}

// Handle compiles the user text and executes the resulting specification.
// Every error returned is a *UserFacingError wrapping the underlying cause.
func (o *Orchestrator) Handle(ctx context.Context, userText string, hints []string) (Result, error) {
	spec, err := o.compileWithRetry(ctx, userText, hints)
	if err != nil {
		return Result{}, mapError(err)
	}

	switch s := spec.(type) {
	case types.ScreenSpecification:
		results, err := o.runScreen(ctx, s)
		if err != nil {
			return Result{}, mapError(err)
		}

		return Result{Variant: types.SpecificationVariantScreen, Screen: results}, nil
	case types.StrategySpecification:
		report, err := o.engine.Run(ctx, s, o.provider)
		if err != nil {
			return Result{}, mapError(err)
		}

		return Result{Variant: types.SpecificationVariantStrategy, Report: &report}, nil
	default:
		return Result{}, mapError(errors.Newf(errors.ErrCodeUnknown, "unhandled specification variant %q", spec.Variant()))
	}
}

// compileWithRetry retries exactly once, and only on a provider timeout.
// Every other failure surfaces immediately; a second timeout surfaces too.
func (o *Orchestrator) compileWithRetry(ctx context.Context, userText string, hints []string) (types.Specification, error) {
	spec, err := o.compiler.Compile(ctx, userText, hints)
	if err == nil || !errors.HasCode(err, errors.ErrCodeProviderTimeout) {
		return spec, err
	}

	o.log.Warn("Provider timed out, retrying compile once", zap.Error(err))

	return o.compiler.Compile(ctx, userText, hints)
}

func (o *Orchestrator) runScreen(ctx context.Context, spec types.ScreenSpecification) ([]types.ScreenResult, error) {
	snap, err := screener.BuildSnapshot(ctx, o.provider, spec.Universe, spec.AsOf)
	if err != nil {
		return nil, err
	}

	return o.screener.Run(ctx, spec, snap)
}
