package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tickerlab/internal/domain"
	"tickerlab/internal/engine"
	"tickerlab/internal/util"
)

type queryFlags struct {
	ticker    string
	start     string
	end       string
	timeframe string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ticker, "ticker", "", "ticker symbol, 1-5 uppercase letters (required)")
	cmd.Flags().StringVar(&f.start, "start", "", "first bar date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&f.end, "end", "", "last bar date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&f.timeframe, "timeframe", "daily", "daily, weekly or monthly")
	cmd.MarkFlagRequired("ticker")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
}

func (f *queryFlags) query() (domain.Query, error) {
	return domain.NewQuery(f.ticker, f.start, f.end, f.timeframe)
}

func (a *app) fetchCmd() *cobra.Command {
	var qf queryFlags
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Retrieve bars, from the store when cached and the source otherwise",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := qf.query()
			if err != nil {
				return err
			}
			p, err := a.openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			out, err := p.engine.Run(cmd.Context(), engine.Request{Query: q})
			if err != nil {
				return err
			}
			printBars(cmd.OutOrStdout(), q, out.Bars)
			return nil
		},
	}
	qf.register(cmd)
	return cmd
}

func (a *app) backtestCmd() *cobra.Command {
	var (
		qf          queryFlags
		strategy    string
		fast, slow  int
		cash        float64
		commission  float64
		description string
		retries     int
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run an SMA crossover backtest and persist the result",
		Long: `Backtest retrieves the bars for the query (cache first), simulates a long-only
dual SMA crossover and stores the run summary with its trade ledger.

Unset --fast, --slow, --cash and --commission fall back to the configuration.
--retries re-runs the pipeline only when the external source failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := qf.query()
			if err != nil {
				return err
			}
			p, err := a.openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			req := engine.Request{
				Query:       q,
				Backtest:    true,
				Strategy:    strategy,
				Params:      map[string]int{},
				InitialCash: cash,
				Description: description,
			}
			if cmd.Flags().Changed("fast") {
				req.Params["fast"] = fast
			}
			if cmd.Flags().Changed("slow") {
				req.Params["slow"] = slow
			}
			if cmd.Flags().Changed("commission") {
				req.Commission = &commission
			}

			out, err := runWithRetries(cmd.Context(), p.engine, req, retries)
			if err != nil {
				return err
			}
			if out.Run == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "no bars for %s, nothing to backtest\n", q)
				return nil
			}
			printRun(cmd.OutOrStdout(), out.Run)
			printTrades(cmd.OutOrStdout(), out.Trades)
			if out.Result.OpenPosition > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "\nstill holding %d shares at the last bar\n", out.Result.OpenPosition)
			}
			return nil
		},
	}
	qf.register(cmd)
	f := cmd.Flags()
	f.StringVar(&strategy, "strategy", "sma-cross", "strategy name")
	f.IntVar(&fast, "fast", 0, "fast SMA window")
	f.IntVar(&slow, "slow", 0, "slow SMA window")
	f.Float64Var(&cash, "cash", 0, "initial cash")
	f.Float64Var(&commission, "commission", 0, "commission per fill as a fraction of traded value")
	f.StringVar(&description, "description", "", "free-text note stored with the run")
	f.IntVar(&retries, "retries", 0, "extra attempts after a data source failure")
	return cmd
}

// runWithRetries runs req, retrying with backoff while the failure is a
// data source error.
func runWithRetries(ctx context.Context, e *engine.Engine, req engine.Request, retries int) (*engine.Outcome, error) {
	var out *engine.Outcome
	err := util.RetryIf(ctx, retries+1, time.Second,
		func(err error) bool { return errors.Is(err, domain.ErrDataSource) },
		func() error {
			var err error
			out, err = e.Run(ctx, req)
			return err
		})
	return out, err
}

func (a *app) askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   `ask "<text>"`,
		Short: "Answer a free-text request such as \"AAPL weekly last year\"",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			out, err := p.engine.Ask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out.Run == nil {
				printBars(w, out.Query, out.Bars)
				return nil
			}
			printRun(w, out.Run)
			printTrades(w, out.Trades)
			return nil
		},
	}
}
