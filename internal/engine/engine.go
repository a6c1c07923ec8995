// Package engine runs the query pipeline: cache-or-fetch retrieval, an
// optional strategy simulation, and persistence of its results.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"maps"

	"github.com/oklog/ulid/v2"

	"tickerlab/internal/config"
	"tickerlab/internal/domain"
	"tickerlab/internal/metrics"
	"tickerlab/internal/query"
	"tickerlab/internal/results"
	"tickerlab/internal/strategy"
	"tickerlab/internal/strategy/builtins"
)

// Fetcher retrieves bars for a query. *gather.Retriever implements it.
type Fetcher interface {
	Fetch(ctx context.Context, q domain.Query) ([]domain.Bar, error)
}

// Request describes one pipeline execution.
type Request struct {
	Query    domain.Query
	Backtest bool

	// Strategy defaults to the SMA crossover; Params are passed to its
	// factory unchanged.
	Strategy    string
	Params      map[string]int
	InitialCash float64  // zero selects the configured default
	Commission  *float64 // nil selects the configured default
	Description string
}

// Outcome is the result of one pipeline execution. Result, Run and Trades
// are nil when no backtest was run.
type Outcome struct {
	RequestID string
	Query     domain.Query
	Bars      []domain.Bar
	Result    *strategy.Result
	Run       *domain.BacktestRun
	Trades    []domain.TradeDetail
}

// Engine wires the pipeline stages together. It holds no per-request state
// and is safe for concurrent use.
type Engine struct {
	fetcher    Fetcher
	strategies *strategy.Registry
	simulator  *strategy.Simulator
	persister  *results.Persister
	parser     *query.Parser
	defaults   config.Backtest
	metrics    *metrics.Metrics
	log        *slog.Logger
}

// NewEngine creates an Engine. The built-in strategies are registered on a
// fresh registry. m may be nil.
func NewEngine(
	f Fetcher,
	p *results.Persister,
	defaults config.Backtest,
	m *metrics.Metrics,
) *Engine {
	reg := strategy.NewRegistry()
	builtins.Register(reg)

	return &Engine{
		fetcher:    f,
		strategies: reg,
		simulator:  strategy.NewSimulator(),
		persister:  p,
		parser:     query.NewParser(defaults.FastWindow, defaults.SlowWindow),
		defaults:   defaults,
		metrics:    m,
		log:        slog.Default().With("component", "engine"),
	}
}

// Strategies returns the names of the registered strategies.
func (e *Engine) Strategies() []string {
	return e.strategies.List()
}

// Ask parses free text and runs the resulting request.
func (e *Engine) Ask(ctx context.Context, text string) (*Outcome, error) {
	parsed, err := e.parser.Parse(text)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, Request{
		Query:       parsed.Query,
		Backtest:    parsed.Backtest,
		Params:      map[string]int{"fast": parsed.Fast, "slow": parsed.Slow},
		Description: parsed.Text,
	})
}

// Run executes req. Retrieval errors are returned unchanged. When a backtest
// is requested over an empty series the simulation is skipped; a series
// shorter than the strategy warm-up is still persisted as a zero-trade run.
func (e *Engine) Run(ctx context.Context, req Request) (*Outcome, error) {
	id := ulid.Make().String()
	log := e.log.With("requestID", id)
	log.Info("pipeline started", "query", req.Query.String(), "backtest", req.Backtest)

	bars, err := e.fetcher.Fetch(ctx, req.Query)
	if err != nil {
		log.Error("retrieval failed", "error", err)
		return nil, err
	}
	out := &Outcome{RequestID: id, Query: req.Query, Bars: bars}
	if !req.Backtest {
		log.Info("pipeline finished", "bars", len(bars))
		return out, nil
	}
	if len(bars) == 0 {
		log.Info("no bars, backtest skipped")
		return out, nil
	}

	name := req.Strategy
	if name == "" {
		name = builtins.SMACrossName
	}
	strat, err := e.strategies.New(name, e.params(req.Params))
	if err != nil {
		e.metrics.Backtest(name, "error")
		return nil, err
	}

	res, err := e.simulator.Run(bars, strat, e.simParams(req))
	var insufficient *domain.InsufficientDataError
	switch {
	case errors.As(err, &insufficient):
		log.Warn("not enough bars for strategy, saving empty run",
			"bars", insufficient.Bars, "required", insufficient.Required)
		e.metrics.Backtest(name, "no_data")
	case err != nil:
		e.metrics.Backtest(name, "error")
		return nil, err
	default:
		e.metrics.Backtest(name, "ok")
	}

	run, trades := results.Normalize(results.RunMetadata{
		Ticker:      req.Query.Ticker,
		Description: req.Description,
	}, res)
	if _, err := e.persister.Save(ctx, run, trades); err != nil {
		return nil, err
	}

	out.Result, out.Run, out.Trades = res, run, trades
	log.Info("pipeline finished", "bars", len(bars), "runID", run.RunID, "trades", len(trades))
	return out, nil
}

// params fills the SMA windows from the configured defaults when the caller
// left them out.
func (e *Engine) params(in map[string]int) map[string]int {
	out := map[string]int{"fast": e.defaults.FastWindow, "slow": e.defaults.SlowWindow}
	maps.Copy(out, in)
	return out
}

func (e *Engine) simParams(req Request) strategy.Params {
	p := strategy.Params{InitialCash: req.InitialCash, Commission: e.defaults.Commission}
	if p.InitialCash == 0 {
		p.InitialCash = e.defaults.InitialCash
	}
	if req.Commission != nil {
		p.Commission = *req.Commission
	}
	return p
}
