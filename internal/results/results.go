// Package results turns simulator output into the persisted backtest_run and
// trade_detail records and writes them in a single transaction.
package results

import (
	"context"
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	"tickerlab/internal/domain"
	"tickerlab/internal/store"
	"tickerlab/internal/strategy"
)

// Decimal places kept for each kind of value.
const (
	pricePlaces = domain.PriceScale
	valuePlaces = 4 // money, percentages and ratios
)

// RunMetadata is the caller-supplied context of a run.
type RunMetadata struct {
	Ticker      string // falls back to the ticker of the simulated bars
	Description string
}

// Normalize maps a simulation result onto storage records. Undefined
// statistics (NaN or infinite) become NULL; durations are kept as elapsed
// time and stored as whole seconds.
func Normalize(meta RunMetadata, res *strategy.Result) (*domain.BacktestRun, []domain.TradeDetail) {
	st := res.Stats
	ticker := meta.Ticker
	if ticker == "" {
		ticker = res.Ticker
	}

	run := &domain.BacktestRun{
		Description:        meta.Description,
		Ticker:             ticker,
		StrategyName:       res.Strategy,
		StrategyParameters: res.Params,
		StartDate:          st.Start,
		EndDate:            st.End,

		ExposureTimePct:     value(st.ExposureTimePct),
		EquityFinal:         value(st.EquityFinal),
		EquityPeak:          value(st.EquityPeak),
		ReturnPct:           value(st.ReturnPct),
		BuyHoldReturnPct:    value(st.BuyHoldReturnPct),
		AnnualReturnPct:     value(st.AnnualReturnPct),
		AnnualVolatilityPct: value(st.AnnualVolatilityPct),
		SharpeRatio:         value(st.SharpeRatio),
		SortinoRatio:        value(st.SortinoRatio),
		CalmarRatio:         value(st.CalmarRatio),
		MaxDrawdownPct:      value(st.MaxDrawdownPct),
		AvgDrawdownPct:      value(st.AvgDrawdownPct),
		MaxDrawdownDuration: st.MaxDrawdownDuration,
		AvgDrawdownDuration: st.AvgDrawdownDuration,
		TotalTrades:         st.TotalTrades,
		WinRatePct:          value(st.WinRatePct),
		BestTradePct:        value(st.BestTradePct),
		WorstTradePct:       value(st.WorstTradePct),
		AvgTradePct:         value(st.AvgTradePct),
		MaxTradeDuration:    st.MaxTradeDuration,
		AvgTradeDuration:    st.AvgTradeDuration,
		ProfitFactor:        value(st.ProfitFactor),
		ExpectancyPct:       value(st.ExpectancyPct),
		SQN:                 value(st.SQN),
	}
	if len(res.Bars) > 0 {
		run.Duration = domain.NewNullDuration(st.Duration)
	}

	trades := make([]domain.TradeDetail, len(res.Trades))
	for i, t := range res.Trades {
		trades[i] = domain.TradeDetail{
			TradeNumber:      t.Number,
			BuyTime:          t.EntryTime,
			SellTime:         t.ExitTime,
			BuyPrice:         price(t.EntryPrice),
			SellPrice:        price(t.ExitPrice),
			PositionSize:     t.Size,
			Duration:         domain.NewNullDuration(t.Duration()),
			ReturnPct:        value(t.ReturnPct),
			ProfitLoss:       value(t.PnL),
			EquityAfterTrade: value(t.EquityAfter),
		}
	}
	return run, trades
}

func price(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(pricePlaces)
}

func value(f float64) decimal.NullDecimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(f).Round(valuePlaces))
}

// Persister writes normalized runs through a BacktestStore.
type Persister struct {
	store store.BacktestStore
	log   *slog.Logger
}

// NewPersister creates a Persister over s.
func NewPersister(s store.BacktestStore) *Persister {
	return &Persister{
		store: s,
		log:   slog.Default().With("component", "persister"),
	}
}

// Persist normalizes res and saves it. It returns the new run id.
func (p *Persister) Persist(ctx context.Context, meta RunMetadata, res *strategy.Result) (int64, error) {
	run, trades := Normalize(meta, res)
	return p.Save(ctx, run, trades)
}

// Save writes an already normalized run and its trades. On success the run
// id is set on run and every trade.
func (p *Persister) Save(ctx context.Context, run *domain.BacktestRun, trades []domain.TradeDetail) (int64, error) {
	id, err := p.store.SaveBacktest(ctx, run, trades)
	if err != nil {
		p.log.Error("saving backtest failed", "ticker", run.Ticker, "strategy", run.StrategyName, "error", err)
		return 0, err
	}
	p.log.Info("backtest persisted", "runID", id, "ticker", run.Ticker, "trades", len(trades))
	return id, nil
}
