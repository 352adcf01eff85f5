package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/finsight-lab/finsight/internal/backtest/engine"
	"github.com/finsight-lab/finsight/internal/backtest/engine/engine_v1"
	"github.com/finsight-lab/finsight/internal/compiler"
	"github.com/finsight-lab/finsight/internal/config"
	"github.com/finsight-lab/finsight/internal/gateway"
	"github.com/finsight-lab/finsight/internal/indicator"
	"github.com/finsight-lab/finsight/internal/indicator/cache"
	"github.com/finsight-lab/finsight/internal/logger"
	"github.com/finsight-lab/finsight/internal/market"
	"github.com/finsight-lab/finsight/internal/orchestrator"
	"github.com/finsight-lab/finsight/internal/screener"
	"github.com/finsight-lab/finsight/internal/types"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// app bundles the wired components behind the CLI commands.
type app struct {
	log          *logger.Logger
	config       *config.AppConfig
	provider     market.Provider
	screener     *screener.Screener
	engine       engine.Engine
	orchestrator *orchestrator.Orchestrator
}

// buildApp wires every component from the configuration file.
func buildApp(configPath string) (*app, error) {
	log, err := logger.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	appConfig, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	modelProvider, err := gateway.NewProvider(appConfig.Provider.Type, appConfig.Provider.Gateway(), log)
	if err != nil {
		return nil, err
	}

	dataProvider, err := market.NewDuckDBProvider(appConfig.Data, log)
	if err != nil {
		return nil, err
	}

	registry := indicator.NewDefaultRegistry()
	seriesCache := cache.NewLRUCache(appConfig.CacheCapacity)

	scr := screener.NewScreener(registry, seriesCache, appConfig.Screener, log)
	eng := engine_v1.NewBacktestEngineV1(registry, seriesCache, appConfig.Backtest, log)
	comp := compiler.NewCompiler(modelProvider, appConfig.Compiler, log)

	return &app{
		log:          log,
		config:       appConfig,
		provider:     dataProvider,
		screener:     scr,
		engine:       eng,
		orchestrator: orchestrator.NewOrchestrator(comp, scr, eng, dataProvider, log),
	}, nil
}

// printYaml writes any value as yaml to stdout.
func printYaml(value any) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}

	fmt.Print(string(data))

	return nil
}

func askAction(ctx context.Context, cmd *cli.Command) error {
	a, err := buildApp(cmd.String("config"))
	if err != nil {
		return err
	}
	defer a.log.Sync()

	result, err := a.orchestrator.Handle(ctx, cmd.String("query"), cmd.StringSlice("hint"))
	if err != nil {
		return err
	}

	switch result.Variant {
	case types.SpecificationVariantScreen:
		return printYaml(result.Screen)
	case types.SpecificationVariantStrategy:
		return printYaml(result.Report)
	default:
		return fmt.Errorf("unhandled result variant %q", result.Variant)
	}
}

func screenAction(ctx context.Context, cmd *cli.Command) error {
	a, err := buildApp(cmd.String("config"))
	if err != nil {
		return err
	}
	defer a.log.Sync()

	specData, err := os.ReadFile(cmd.String("spec"))
	if err != nil {
		return fmt.Errorf("failed to read screen spec: %w", err)
	}

	var payload compiler.ScreenPayload
	if err := yaml.Unmarshal(specData, &payload); err != nil {
		return fmt.Errorf("failed to parse screen spec: %w", err)
	}

	spec, err := compiler.BuildScreenSpecification(payload, a.config.Compiler.MaxLimit, time.Now())
	if err != nil {
		return err
	}

	snap, err := screener.BuildSnapshot(ctx, a.provider, spec.Universe, spec.AsOf)
	if err != nil {
		return err
	}

	results, err := a.screener.Run(ctx, spec, snap)
	if err != nil {
		return err
	}

	return printYaml(results)
}

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	a, err := buildApp(cmd.String("config"))
	if err != nil {
		return err
	}
	defer a.log.Sync()

	specData, err := os.ReadFile(cmd.String("spec"))
	if err != nil {
		return fmt.Errorf("failed to read strategy spec: %w", err)
	}

	var payload compiler.StrategyPayload
	if err := yaml.Unmarshal(specData, &payload); err != nil {
		return fmt.Errorf("failed to parse strategy spec: %w", err)
	}

	spec, err := compiler.BuildStrategySpecification(payload)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	a.engine.SetProgressCallback(func(current int, total int) error {
		if bar == nil {
			bar = progressbar.Default(int64(total), "backtesting")
		}

		return bar.Set(current)
	})

	report, err := a.engine.Run(ctx, spec, a.provider)
	if err != nil {
		return err
	}

	if output := cmd.String("output"); output != "" {
		if err := types.WriteBacktestReport(output, report); err != nil {
			return err
		}
	}

	return printYaml(report.Summary)
}

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the application config file",
		Value:   "finsight.yaml",
	}

	cmd := &cli.Command{
		Name:  "finsight",
		Usage: "Screen stocks and backtest strategies from natural-language requests",
		Commands: []*cli.Command{
			{
				Name:  "ask",
				Usage: "Translate a natural-language request and execute it",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "The request, e.g. 'stocks under 15x earnings with a MACD golden cross'",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "hint",
						Usage: "Extra user context passed to the translator (repeatable)",
					},
				},
				Action: askAction,
			},
			{
				Name:  "screen",
				Usage: "Run a screen specification from a yaml file",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:     "spec",
						Aliases:  []string{"s"},
						Usage:    "Path to the screen specification yaml",
						Required: true,
					},
				},
				Action: screenAction,
			},
			{
				Name:  "backtest",
				Usage: "Run a strategy specification from a yaml file",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:     "spec",
						Aliases:  []string{"s"},
						Usage:    "Path to the strategy specification yaml",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the full report to this yaml file",
					},
				},
				Action: backtestAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
