// Package cli implements the tickerlab command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"tickerlab/internal/config"
	"tickerlab/internal/engine"
	"tickerlab/internal/gather"
	"tickerlab/internal/results"
	"tickerlab/internal/source"
	"tickerlab/internal/store"
	"tickerlab/internal/util"
)

// Version is the CLI version, overridable at link time.
var Version = "0.1.0"

const defaultConfigPath = "config/tickerlab.yaml"

// app carries the persistent flags and the loaded configuration.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tickerlab",
		Short: "Cache-or-fetch market data and SMA crossover backtests",
		Long: `tickerlab retrieves daily, weekly and monthly OHLCV bars, caching them in a
relational store, and runs dual moving-average crossover backtests whose
results are persisted for later inspection.

Examples:
  tickerlab fetch --ticker AAPL --start 2023-01-01 --end 2023-12-31
  tickerlab backtest --ticker MSFT --start 2020-01-01 --end 2023-12-31 --fast 10 --slow 30
  tickerlab ask "backtest NVDA sma 5/20 last 2 years"`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "path to the YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		a.initDBCmd(),
		a.fetchCmd(),
		a.backtestCmd(),
		a.askCmd(),
		a.runsCmd(),
		a.instrumentsCmd(),
		a.exportCmd(),
		versionCmd(),
	)
	return root
}

// Execute runs the root command under ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	util.SetDefault(util.NewLogger(cfg.Logging))
	a.cfg = cfg
	return nil
}

// pipeline is the set of components a data or backtest command needs.
type pipeline struct {
	store  *store.SQLStore
	engine *engine.Engine
}

func (p *pipeline) Close() error { return p.store.Close() }

func (a *app) openStore(ctx context.Context) (*store.SQLStore, error) {
	return store.Open(ctx, a.cfg.Storage)
}

func (a *app) openPipeline(ctx context.Context) (*pipeline, error) {
	s, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	src, err := source.New(a.cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	e := engine.NewEngine(gather.NewRetriever(s, src, nil), results.NewPersister(s), a.cfg.Backtest, nil)
	return &pipeline{store: s, engine: e}, nil
}

func (a *app) initDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			slog.Info("schema ready", "driver", s.Dialect())
			fmt.Fprintf(cmd.OutOrStdout(), "database ready (%s)\n", s.Dialect())
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		// Skip config loading.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tickerlab version %s\n", Version)
		},
	}
}
