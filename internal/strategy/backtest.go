package strategy

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"tickerlab/internal/domain"
)

// Params holds the account settings of a simulation.
type Params struct {
	InitialCash float64
	Commission  float64 // fraction of notional charged on each fill
}

// Validate rejects a non-positive cash balance and commissions outside [0, 1).
func (p Params) Validate() error {
	if !(p.InitialCash > 0) {
		return &domain.ValidationError{Field: "initial_cash", Reason: fmt.Sprintf("must be positive, got %v", p.InitialCash)}
	}
	if p.Commission < 0 || p.Commission >= 1 || math.IsNaN(p.Commission) {
		return &domain.ValidationError{Field: "commission", Reason: fmt.Sprintf("must be in [0, 1), got %v", p.Commission)}
	}
	return nil
}

// Trade is one closed round trip.
type Trade struct {
	Number          int
	EntryBar        int
	ExitBar         int
	EntryTime       time.Time
	ExitTime        time.Time
	EntryPrice      float64
	ExitPrice       float64
	Size            int64
	EntryCommission float64
	ExitCommission  float64
	PnL             float64 // net of both commissions
	ReturnPct       float64 // PnL over entry cost including commission
	EquityAfter     float64
}

// Duration returns the time the position was held.
func (t Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

// Result is the outcome of one simulation. It is complete even when Run also
// reports an *InsufficientDataError.
type Result struct {
	Ticker      string
	Timeframe   domain.Timeframe
	Strategy    string
	Params      string
	InitialCash float64
	Commission  float64

	Bars    []domain.Bar
	Signals []Signal
	Equity  []float64 // marked to market at each close
	Exposed []bool    // a position was held at each close
	Trades  []Trade

	// OpenPosition is the share count still held after the last bar.
	// Positions are not force-closed at the end of the series.
	OpenPosition int64

	Stats Stats
}

// Simulator replays bars through a strategy for a single long-only
// instrument. It keeps no state between runs.
type Simulator struct {
	log *slog.Logger
}

// NewSimulator creates a Simulator.
func NewSimulator() *Simulator {
	return &Simulator{log: slog.Default().With("component", "simulator")}
}

// Run simulates strat over bars.
//
// The account is flat or long. An Enter signal while flat buys
// floor(cash / (close * (1 + commission))) shares at that bar's close; a
// size of zero skips the entry. An Exit signal while long sells the whole
// position at the close. Commission is charged on both fills.
//
// A series shorter than the strategy warm-up yields a zero-trade Result
// together with an *domain.InsufficientDataError.
func (s *Simulator) Run(bars []domain.Bar, strat Strategy, p Params) (*Result, error) {
	if v, ok := strat.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		Strategy:    strat.Name(),
		Params:      strat.Params(),
		InitialCash: p.InitialCash,
		Commission:  p.Commission,
		Bars:        bars,
		Equity:      make([]float64, len(bars)),
		Exposed:     make([]bool, len(bars)),
	}
	if len(bars) > 0 {
		res.Ticker = bars[0].Ticker
		res.Timeframe = bars[0].Timeframe
	}

	var insufficient error
	required := 1
	if w, ok := strat.(Warmer); ok {
		required = w.Warmup()
	}
	if len(bars) < required {
		insufficient = &domain.InsufficientDataError{Bars: len(bars), Required: required}
		res.Signals = make([]Signal, len(bars))
	} else {
		res.Signals = strat.Signals(bars)
		if len(res.Signals) != len(bars) {
			return nil, fmt.Errorf("strategy %s returned %d signals for %d bars", strat.Name(), len(res.Signals), len(bars))
		}
	}

	var (
		cash   = p.InitialCash
		shares int64
		open   Trade
	)
	for i, b := range bars {
		price := b.Close.InexactFloat64()

		switch res.Signals[i] {
		case Enter:
			if shares > 0 {
				break
			}
			size := int64(math.Floor(cash / (price * (1 + p.Commission))))
			if size <= 0 {
				s.log.Debug("entry skipped, cash below one share", "bar", i, "cash", cash, "price", price)
				break
			}
			cost := float64(size) * price
			fee := cost * p.Commission
			cash -= cost + fee
			shares = size
			open = Trade{
				EntryBar:        i,
				EntryTime:       b.Timestamp(),
				EntryPrice:      price,
				Size:            size,
				EntryCommission: fee,
			}

		case Exit:
			if shares == 0 {
				break
			}
			proceeds := float64(shares) * price
			fee := proceeds * p.Commission
			cash += proceeds - fee

			basis := float64(open.Size)*open.EntryPrice + open.EntryCommission
			open.Number = len(res.Trades) + 1
			open.ExitBar = i
			open.ExitTime = b.Timestamp()
			open.ExitPrice = price
			open.ExitCommission = fee
			open.PnL = proceeds - fee - basis
			open.ReturnPct = open.PnL / basis * 100
			open.EquityAfter = cash
			res.Trades = append(res.Trades, open)
			shares = 0
		}

		res.Equity[i] = cash + float64(shares)*price
		res.Exposed[i] = shares > 0
	}
	res.OpenPosition = shares
	res.Stats = ComputeStats(res)

	if insufficient != nil {
		s.log.Warn("insufficient data", "ticker", res.Ticker, "bars", len(bars), "required", required)
	}
	return res, insufficient
}
