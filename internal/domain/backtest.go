package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// BacktestRun is the persisted summary of one simulation execution. Numeric
// fields are nullable: a NULL marks a statistic that is undefined for the
// run (for example a profit factor without losing trades).
type BacktestRun struct {
	RunID              int64        `json:"run_id"`
	Description        string       `json:"description"`
	Ticker             string       `json:"ticker"`
	StrategyName       string       `json:"strategy_name"`
	StrategyParameters string       `json:"strategy_parameters"`
	StartDate          time.Time    `json:"start_date"`
	EndDate            time.Time    `json:"end_date"`
	Duration           NullDuration `json:"duration"`

	ExposureTimePct     decimal.NullDecimal `json:"exposure_time_pct"`
	EquityFinal         decimal.NullDecimal `json:"equity_final"`
	EquityPeak          decimal.NullDecimal `json:"equity_peak"`
	ReturnPct           decimal.NullDecimal `json:"return_pct"`
	BuyHoldReturnPct    decimal.NullDecimal `json:"buy_hold_return_pct"`
	AnnualReturnPct     decimal.NullDecimal `json:"annual_return_pct"`
	AnnualVolatilityPct decimal.NullDecimal `json:"annual_volatility_pct"`
	SharpeRatio         decimal.NullDecimal `json:"sharpe_ratio"`
	SortinoRatio        decimal.NullDecimal `json:"sortino_ratio"`
	CalmarRatio         decimal.NullDecimal `json:"calmar_ratio"`
	MaxDrawdownPct      decimal.NullDecimal `json:"max_drawdown_pct"`
	AvgDrawdownPct      decimal.NullDecimal `json:"avg_drawdown_pct"`
	MaxDrawdownDuration NullDuration        `json:"max_drawdown_duration"`
	AvgDrawdownDuration NullDuration        `json:"avg_drawdown_duration"`
	TotalTrades         int                 `json:"total_trades"`
	WinRatePct          decimal.NullDecimal `json:"win_rate_pct"`
	BestTradePct        decimal.NullDecimal `json:"best_trade_pct"`
	WorstTradePct       decimal.NullDecimal `json:"worst_trade_pct"`
	AvgTradePct         decimal.NullDecimal `json:"avg_trade_pct"`
	MaxTradeDuration    NullDuration        `json:"max_trade_duration"`
	AvgTradeDuration    NullDuration        `json:"avg_trade_duration"`
	ProfitFactor        decimal.NullDecimal `json:"profit_factor"`
	ExpectancyPct       decimal.NullDecimal `json:"expectancy_pct"`
	SQN                 decimal.NullDecimal `json:"sqn"`

	CreatedAt time.Time `json:"created_at"`
}

// TradeDetail is one closed round-trip trade of a backtest run.
type TradeDetail struct {
	RunID            int64               `json:"run_id"`
	TradeNumber      int                 `json:"trade_number"`
	BuyTime          time.Time           `json:"buy_time"`
	SellTime         time.Time           `json:"sell_time"`
	BuyPrice         decimal.Decimal     `json:"buy_price"`
	SellPrice        decimal.Decimal     `json:"sell_price"`
	PositionSize     int64               `json:"position_size"`
	Duration         NullDuration        `json:"trade_duration"`
	ReturnPct        decimal.NullDecimal `json:"trade_return_pct"`
	ProfitLoss       decimal.NullDecimal `json:"profit_loss"`
	EquityAfterTrade decimal.NullDecimal `json:"equity_after_trade"`
}

// ---------------------------------------------------------------------------
// NullDuration
// ---------------------------------------------------------------------------

// NullDuration is a nullable elapsed-time interval. It is stored as whole
// seconds.
type NullDuration struct {
	Duration time.Duration
	Valid    bool
}

// NewNullDuration returns a valid NullDuration.
func NewNullDuration(d time.Duration) NullDuration {
	return NullDuration{Duration: d, Valid: true}
}

// Scan implements sql.Scanner.
func (n *NullDuration) Scan(src any) error {
	var secs int64
	switch v := src.(type) {
	case nil:
		n.Duration, n.Valid = 0, false
		return nil
	case int64:
		secs = v
	case float64:
		secs = int64(v)
	case []byte:
		p, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return fmt.Errorf("scanning duration %q: %w", v, err)
		}
		secs = p
	case string:
		p, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("scanning duration %q: %w", v, err)
		}
		secs = p
	default:
		return fmt.Errorf("scanning duration: unsupported type %T", src)
	}
	n.Duration, n.Valid = time.Duration(secs)*time.Second, true
	return nil
}

// Value implements driver.Valuer.
func (n NullDuration) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return int64(n.Duration / time.Second), nil
}

// MarshalJSON renders the duration in Go notation, or null.
func (n NullDuration) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Duration.String())
}

// UnmarshalJSON parses Go duration notation or null.
func (n *NullDuration) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		n.Duration, n.Valid = 0, false
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	n.Duration, n.Valid = d, true
	return nil
}
