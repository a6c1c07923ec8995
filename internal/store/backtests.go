package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tickerlab/internal/domain"
)

// runColumns lists the backtest_run columns written on insert, in argument
// order.
var runColumns = []string{
	"description", "ticker", "strategy_name", "strategy_parameters",
	"start_date", "end_date", "duration",
	"exposure_time_pct", "equity_final", "equity_peak",
	"return_pct", "buy_hold_return_pct", "annual_return_pct", "annual_volatility_pct",
	"sharpe_ratio", "sortino_ratio", "calmar_ratio",
	"max_drawdown_pct", "avg_drawdown_pct", "max_drawdown_duration", "avg_drawdown_duration",
	"total_trades", "win_rate_pct", "best_trade_pct", "worst_trade_pct", "avg_trade_pct",
	"max_trade_duration", "avg_trade_duration",
	"profit_factor", "expectancy_pct", "sqn",
}

var tradeColumns = []string{
	"run_id", "trade_number", "buy_date", "buy_time", "sell_date", "sell_time",
	"buy_price", "sell_price", "position_size", "trade_duration",
	"trade_return_pct", "profit_loss", "equity_after_trade",
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// ---------------------------------------------------------------------------
// BacktestStore implementation
// ---------------------------------------------------------------------------

// SaveBacktest writes the summary row and every trade in one transaction.
// On any failure nothing is committed, so a run never exists without its
// trades. The assigned id is written back into run and trades.
func (s *SQLStore) SaveBacktest(ctx context.Context, run *domain.BacktestRun, trades []domain.TradeDetail) (int64, error) {
	if run.TotalTrades != len(trades) {
		return 0, &domain.ValidationError{
			Field:  "total_trades",
			Reason: fmt.Sprintf("summary reports %d trades but %d were given", run.TotalTrades, len(trades)),
		}
	}

	insertRun := fmt.Sprintf("INSERT INTO backtest_run (%s) VALUES (%s) RETURNING run_id",
		strings.Join(runColumns, ", "), placeholders(len(runColumns)))
	insertTrade := fmt.Sprintf("INSERT INTO trade_detail (%s) VALUES (%s)",
		strings.Join(tradeColumns, ", "), placeholders(len(tradeColumns)))

	var runID int64
	err := s.withTx(ctx, "saving backtest for "+run.Ticker, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, s.q(insertRun), s.runArgs(run)...).Scan(&runID); err != nil {
			return fmt.Errorf("inserting run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, s.q(insertTrade))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range trades {
			t := &trades[i]
			_, err := stmt.ExecContext(ctx,
				runID, t.TradeNumber,
				s.d.date(t.BuyTime), t.BuyTime.UTC().Format(domain.TimeLayout),
				s.d.date(t.SellTime), t.SellTime.UTC().Format(domain.TimeLayout),
				decimalArg(t.BuyPrice), decimalArg(t.SellPrice), t.PositionSize,
				nullDurationArg(t.Duration),
				nullDecimalArg(t.ReturnPct), nullDecimalArg(t.ProfitLoss), nullDecimalArg(t.EquityAfterTrade))
			if err != nil {
				return fmt.Errorf("inserting trade %d: %w", t.TradeNumber, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	run.RunID = runID
	for i := range trades {
		trades[i].RunID = runID
	}
	s.log.Info("saved backtest", "runID", runID, "ticker", run.Ticker, "trades", len(trades))
	return runID, nil
}

func (s *SQLStore) runArgs(r *domain.BacktestRun) []any {
	return []any{
		nullString(r.Description), r.Ticker, r.StrategyName, nullString(r.StrategyParameters),
		s.d.stamp(r.StartDate), s.d.stamp(r.EndDate), nullDurationArg(r.Duration),
		nullDecimalArg(r.ExposureTimePct), nullDecimalArg(r.EquityFinal), nullDecimalArg(r.EquityPeak),
		nullDecimalArg(r.ReturnPct), nullDecimalArg(r.BuyHoldReturnPct),
		nullDecimalArg(r.AnnualReturnPct), nullDecimalArg(r.AnnualVolatilityPct),
		nullDecimalArg(r.SharpeRatio), nullDecimalArg(r.SortinoRatio), nullDecimalArg(r.CalmarRatio),
		nullDecimalArg(r.MaxDrawdownPct), nullDecimalArg(r.AvgDrawdownPct),
		nullDurationArg(r.MaxDrawdownDuration), nullDurationArg(r.AvgDrawdownDuration),
		r.TotalTrades, nullDecimalArg(r.WinRatePct),
		nullDecimalArg(r.BestTradePct), nullDecimalArg(r.WorstTradePct), nullDecimalArg(r.AvgTradePct),
		nullDurationArg(r.MaxTradeDuration), nullDurationArg(r.AvgTradeDuration),
		nullDecimalArg(r.ProfitFactor), nullDecimalArg(r.ExpectancyPct), nullDecimalArg(r.SQN),
	}
}

var selectRun = "SELECT run_id, " + strings.Join(runColumns, ", ") + ", created_at FROM backtest_run"

func scanRun(r rowScanner) (*domain.BacktestRun, error) {
	var (
		run         domain.BacktestRun
		description sql.NullString
		params      sql.NullString
	)
	err := r.Scan(
		&run.RunID, &description, &run.Ticker, &run.StrategyName, &params,
		timeValue{&run.StartDate}, timeValue{&run.EndDate}, &run.Duration,
		&run.ExposureTimePct, &run.EquityFinal, &run.EquityPeak,
		&run.ReturnPct, &run.BuyHoldReturnPct, &run.AnnualReturnPct, &run.AnnualVolatilityPct,
		&run.SharpeRatio, &run.SortinoRatio, &run.CalmarRatio,
		&run.MaxDrawdownPct, &run.AvgDrawdownPct, &run.MaxDrawdownDuration, &run.AvgDrawdownDuration,
		&run.TotalTrades, &run.WinRatePct, &run.BestTradePct, &run.WorstTradePct, &run.AvgTradePct,
		&run.MaxTradeDuration, &run.AvgTradeDuration,
		&run.ProfitFactor, &run.ExpectancyPct, &run.SQN,
		timeValue{&run.CreatedAt},
	)
	if err != nil {
		return nil, err
	}
	run.Description = description.String
	run.StrategyParameters = params.String
	return &run, nil
}

// GetBacktest returns the run and its trades ordered by trade number.
func (s *SQLStore) GetBacktest(ctx context.Context, runID int64) (*domain.BacktestRun, []domain.TradeDetail, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, s.q(selectRun+" WHERE run_id = ?"), runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("backtest run %d: %w", runID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, nil, storageErr(fmt.Sprintf("reading backtest run %d", runID), err)
	}

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT run_id, trade_number, buy_date, buy_time, sell_date, sell_time,
		       buy_price, sell_price, position_size, trade_duration,
		       trade_return_pct, profit_loss, equity_after_trade
		FROM trade_detail WHERE run_id = ? ORDER BY trade_number`), runID)
	if err != nil {
		return nil, nil, storageErr(fmt.Sprintf("reading trades for run %d", runID), err)
	}
	defer rows.Close()

	var trades []domain.TradeDetail
	for rows.Next() {
		var (
			t                 domain.TradeDetail
			buyDate, sellDate time.Time
			buyTime, sellTime string
		)
		if err := rows.Scan(&t.RunID, &t.TradeNumber,
			timeValue{&buyDate}, &buyTime, timeValue{&sellDate}, &sellTime,
			&t.BuyPrice, &t.SellPrice, &t.PositionSize, &t.Duration,
			&t.ReturnPct, &t.ProfitLoss, &t.EquityAfterTrade); err != nil {
			return nil, nil, storageErr("scanning trade", err)
		}
		t.BuyTime = combine(buyDate, buyTime)
		t.SellTime = combine(sellDate, sellTime)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, storageErr(fmt.Sprintf("reading trades for run %d", runID), err)
	}
	return run, trades, nil
}

// ListBacktests returns run summaries, newest first, optionally filtered by
// ticker. A non-positive limit returns every run.
func (s *SQLStore) ListBacktests(ctx context.Context, ticker string, limit int) ([]domain.BacktestRun, error) {
	query := selectRun
	var args []any
	if ticker != "" {
		query += " WHERE ticker = ?"
		args = append(args, ticker)
	}
	query += " ORDER BY run_id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, storageErr("listing backtest runs", err)
	}
	defer rows.Close()

	var runs []domain.BacktestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, storageErr("scanning backtest run", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("listing backtest runs", err)
	}
	return runs, nil
}

// VerifyBacktest checks that a run has exactly as many trade rows as its
// summary reports.
func (s *SQLStore) VerifyBacktest(ctx context.Context, runID int64) error {
	var total, stored int
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT r.total_trades,
		       (SELECT COUNT(*) FROM trade_detail d WHERE d.run_id = r.run_id)
		FROM backtest_run r WHERE r.run_id = ?`), runID).Scan(&total, &stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("backtest run %d: %w", runID, domain.ErrNotFound)
	}
	if err != nil {
		return storageErr(fmt.Sprintf("verifying backtest run %d", runID), err)
	}
	if total != stored {
		return fmt.Errorf("%w: backtest run %d has %d of %d trade details", domain.ErrStorage, runID, stored, total)
	}
	return nil
}
