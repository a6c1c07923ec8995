package strategy

import (
	"math"
	"time"

	"tickerlab/internal/domain"
)

// Stats summarises a simulation. Ratios that are undefined for the run (a
// zero denominator, too few observations) are NaN; duration statistics
// without any underlying period are invalid NullDurations.
type Stats struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration

	ExposureTimePct     float64
	EquityFinal         float64
	EquityPeak          float64
	ReturnPct           float64
	BuyHoldReturnPct    float64
	AnnualReturnPct     float64
	AnnualVolatilityPct float64
	SharpeRatio         float64
	SortinoRatio        float64
	CalmarRatio         float64
	MaxDrawdownPct      float64 // <= 0
	AvgDrawdownPct      float64 // <= 0
	MaxDrawdownDuration domain.NullDuration
	AvgDrawdownDuration domain.NullDuration

	TotalTrades      int
	WinRatePct       float64
	BestTradePct     float64
	WorstTradePct    float64
	AvgTradePct      float64
	MaxTradeDuration domain.NullDuration
	AvgTradeDuration domain.NullDuration
	ProfitFactor     float64
	ExpectancyPct    float64
	SQN              float64
}

var nan = math.NaN()

// ComputeStats derives the run statistics from the equity curve, exposure
// flags and closed trades of r. Annualisation uses the periods per year of
// r.Timeframe.
func ComputeStats(r *Result) Stats {
	st := Stats{
		ReturnPct:           nan,
		BuyHoldReturnPct:    nan,
		AnnualReturnPct:     nan,
		AnnualVolatilityPct: nan,
		SharpeRatio:         nan,
		SortinoRatio:        nan,
		CalmarRatio:         nan,
		EquityFinal:         r.InitialCash,
		EquityPeak:          r.InitialCash,
	}
	tradeStats(&st, r.Trades)

	n := len(r.Equity)
	if n == 0 || len(r.Bars) != n {
		return st
	}

	st.Start = r.Bars[0].Timestamp()
	st.End = r.Bars[n-1].Timestamp()
	st.Duration = st.End.Sub(st.Start)

	exposed := 0
	for _, e := range r.Exposed {
		if e {
			exposed++
		}
	}
	st.ExposureTimePct = float64(exposed) / float64(n) * 100

	st.EquityFinal = r.Equity[n-1]
	st.EquityPeak = r.Equity[0]
	for _, e := range r.Equity {
		st.EquityPeak = math.Max(st.EquityPeak, e)
	}
	if r.InitialCash > 0 {
		st.ReturnPct = (st.EquityFinal - r.InitialCash) / r.InitialCash * 100
	}
	first, last := r.Bars[0].Close.InexactFloat64(), r.Bars[n-1].Close.InexactFloat64()
	if first != 0 {
		st.BuyHoldReturnPct = (last - first) / first * 100
	}

	ppy := r.Timeframe.PeriodsPerYear()
	returns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		returns = append(returns, r.Equity[i]/r.Equity[i-1]-1)
	}
	if len(returns) > 0 {
		gmean := geometricMean(returns)
		st.AnnualReturnPct = (math.Pow(1+gmean, ppy) - 1) * 100
	}
	sd := stdev(returns)
	st.AnnualVolatilityPct = sd * math.Sqrt(ppy) * 100
	st.SharpeRatio = ratio(mean(returns), sd) * math.Sqrt(ppy)
	st.SortinoRatio = ratio(mean(returns), downsideDeviation(returns)) * math.Sqrt(ppy)

	drawdownStats(&st, r)
	st.CalmarRatio = ratio(st.AnnualReturnPct, math.Abs(st.MaxDrawdownPct))
	return st
}

// drawdownStats fills the drawdown fields. A drawdown period starts at the
// last equity peak and ends at the bar that recovers it, or at the final
// bar if equity never recovers.
func drawdownStats(st *Stats, r *Result) {
	peak, peakBar := r.Equity[0], 0
	var (
		inDD      bool
		depth     float64
		maxDepth  float64
		depths    []float64
		durations []time.Duration
	)
	closePeriod := func(end int) {
		depths = append(depths, depth)
		durations = append(durations, r.Bars[end].Timestamp().Sub(r.Bars[peakBar].Timestamp()))
		inDD, depth = false, 0
	}

	for i, e := range r.Equity {
		if e >= peak {
			if inDD {
				closePeriod(i)
			}
			peak, peakBar = e, i
			continue
		}
		dd := 1 - e/peak
		inDD = true
		depth = math.Max(depth, dd)
		maxDepth = math.Max(maxDepth, dd)
	}
	if inDD {
		closePeriod(len(r.Equity) - 1)
	}

	st.MaxDrawdownPct = negPct(maxDepth)
	st.AvgDrawdownPct = negPct(mean(depths))
	if len(depths) == 0 {
		st.AvgDrawdownPct = 0
		return
	}

	var longest, total time.Duration
	for _, d := range durations {
		if d > longest {
			longest = d
		}
		total += d
	}
	st.MaxDrawdownDuration = domain.NewNullDuration(longest)
	st.AvgDrawdownDuration = domain.NewNullDuration(total / time.Duration(len(durations)))
}

// tradeStats fills the per-trade fields. With no closed trades the count
// and win rate are zero and everything else is undefined.
func tradeStats(st *Stats, trades []Trade) {
	st.TotalTrades = len(trades)
	st.BestTradePct, st.WorstTradePct, st.AvgTradePct = nan, nan, nan
	st.ProfitFactor, st.ExpectancyPct, st.SQN = nan, nan, nan
	if len(trades) == 0 {
		return
	}

	var (
		wins                   int
		grossProfit, grossLoss float64
		longest, total         time.Duration
	)
	rets := make([]float64, len(trades))
	pnls := make([]float64, len(trades))
	st.BestTradePct, st.WorstTradePct = math.Inf(-1), math.Inf(1)
	for i, t := range trades {
		rets[i], pnls[i] = t.ReturnPct, t.PnL
		if t.PnL > 0 {
			wins++
			grossProfit += t.PnL
		} else {
			grossLoss += t.PnL
		}
		st.BestTradePct = math.Max(st.BestTradePct, t.ReturnPct)
		st.WorstTradePct = math.Min(st.WorstTradePct, t.ReturnPct)

		d := t.Duration()
		if d > longest {
			longest = d
		}
		total += d
	}

	st.WinRatePct = float64(wins) / float64(len(trades)) * 100
	fracs := make([]float64, len(rets))
	for i, r := range rets {
		fracs[i] = r / 100
	}
	// Avg. trade compounds; expectancy is the arithmetic mean.
	st.AvgTradePct = geometricMean(fracs) * 100
	st.ExpectancyPct = mean(rets)
	st.MaxTradeDuration = domain.NewNullDuration(longest)
	st.AvgTradeDuration = domain.NewNullDuration(total / time.Duration(len(trades)))
	st.ProfitFactor = ratio(grossProfit, math.Abs(grossLoss))
	st.SQN = math.Sqrt(float64(len(trades))) * ratio(mean(pnls), stdev(pnls))
}

// ---------------------------------------------------------------------------
// Numeric helpers
// ---------------------------------------------------------------------------

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return nan
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdev is the sample standard deviation; NaN below two observations.
func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return nan
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func downsideDeviation(xs []float64) float64 {
	if len(xs) == 0 {
		return nan
	}
	var ss float64
	for _, x := range xs {
		if x < 0 {
			ss += x * x
		}
	}
	return math.Sqrt(ss / float64(len(xs)))
}

func geometricMean(returns []float64) float64 {
	var logs float64
	for _, r := range returns {
		if 1+r <= 0 {
			return nan
		}
		logs += math.Log1p(r)
	}
	return math.Expm1(logs / float64(len(returns)))
}

// ratio returns a/b, or NaN when b is zero or either side is undefined.
func ratio(a, b float64) float64 {
	if b == 0 || math.IsNaN(a) || math.IsNaN(b) {
		return nan
	}
	return a / b
}

// negPct renders a drawdown fraction as a non-positive percentage.
func negPct(dd float64) float64 {
	if math.IsNaN(dd) || dd == 0 {
		return 0
	}
	return -dd * 100
}
