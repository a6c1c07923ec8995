package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"tickerlab/internal/domain"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printBars(out io.Writer, q domain.Query, bars []domain.Bar) {
	if len(bars) == 0 {
		fmt.Fprintf(out, "no bars for %s\n", q)
		return
	}
	w := newTable(out)
	fmt.Fprintln(w, "DATE\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME")
	for _, b := range bars {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", b.Date.Format(domain.DateLayout),
			b.Open.StringFixed(2), b.High.StringFixed(2), b.Low.StringFixed(2), b.Close.StringFixed(2), b.Volume)
	}
	w.Flush()
	fmt.Fprintf(out, "%d bars for %s\n", len(bars), q)
}

func printRun(out io.Writer, r *domain.BacktestRun) {
	w := newTable(out)
	row := func(label, value string) { fmt.Fprintf(w, "%s\t%s\n", label, value) }

	row("Run", fmt.Sprintf("%d", r.RunID))
	row("Ticker", r.Ticker)
	row("Strategy", r.StrategyName+" "+r.StrategyParameters)
	if r.Description != "" {
		row("Description", r.Description)
	}
	row("Start", r.StartDate.Format(domain.DateLayout))
	row("End", r.EndDate.Format(domain.DateLayout))
	row("Duration", dur(r.Duration))
	row("Exposure Time [%]", num(r.ExposureTimePct))
	row("Equity Final [$]", num(r.EquityFinal))
	row("Equity Peak [$]", num(r.EquityPeak))
	row("Return [%]", num(r.ReturnPct))
	row("Buy & Hold Return [%]", num(r.BuyHoldReturnPct))
	row("Return (Ann.) [%]", num(r.AnnualReturnPct))
	row("Volatility (Ann.) [%]", num(r.AnnualVolatilityPct))
	row("Sharpe Ratio", num(r.SharpeRatio))
	row("Sortino Ratio", num(r.SortinoRatio))
	row("Calmar Ratio", num(r.CalmarRatio))
	row("Max. Drawdown [%]", num(r.MaxDrawdownPct))
	row("Avg. Drawdown [%]", num(r.AvgDrawdownPct))
	row("Max. Drawdown Duration", dur(r.MaxDrawdownDuration))
	row("Avg. Drawdown Duration", dur(r.AvgDrawdownDuration))
	row("# Trades", fmt.Sprintf("%d", r.TotalTrades))
	row("Win Rate [%]", num(r.WinRatePct))
	row("Best Trade [%]", num(r.BestTradePct))
	row("Worst Trade [%]", num(r.WorstTradePct))
	row("Avg. Trade [%]", num(r.AvgTradePct))
	row("Max. Trade Duration", dur(r.MaxTradeDuration))
	row("Avg. Trade Duration", dur(r.AvgTradeDuration))
	row("Profit Factor", num(r.ProfitFactor))
	row("Expectancy [%]", num(r.ExpectancyPct))
	row("SQN", num(r.SQN))
	w.Flush()
}

func printTrades(out io.Writer, trades []domain.TradeDetail) {
	if len(trades) == 0 {
		return
	}
	fmt.Fprintln(out)
	w := newTable(out)
	fmt.Fprintln(w, "#\tBUY\tSELL\tBUY PRICE\tSELL PRICE\tSIZE\tRETURN %\tP/L\tEQUITY")
	for _, t := range trades {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			t.TradeNumber,
			t.BuyTime.Format(domain.DateLayout), t.SellTime.Format(domain.DateLayout),
			t.BuyPrice.StringFixed(2), t.SellPrice.StringFixed(2), t.PositionSize,
			num(t.ReturnPct), num(t.ProfitLoss), num(t.EquityAfterTrade))
	}
	w.Flush()
}

func printRunList(out io.Writer, runs []domain.BacktestRun) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs")
		return
	}
	w := newTable(out)
	fmt.Fprintln(w, "ID\tTICKER\tSTRATEGY\tPARAMS\tSTART\tEND\tTRADES\tRETURN %\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.RunID, r.Ticker, r.StrategyName, r.StrategyParameters,
			r.StartDate.Format(domain.DateLayout), r.EndDate.Format(domain.DateLayout),
			r.TotalTrades, num(r.ReturnPct), r.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
}

func num(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.StringFixed(2)
}

func dur(d domain.NullDuration) string {
	if !d.Valid {
		return "-"
	}
	return d.Duration.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
