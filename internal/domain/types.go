// Package domain defines the core value types shared across tickerlab:
// instruments, OHLCV bars, query parameters, backtest runs, and trades.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Layouts used for the split bar_date / bar_time representation.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// PriceScale is the number of fractional digits kept for OHLC prices.
const PriceScale = 6

// ---------------------------------------------------------------------------
// Enumerations
// ---------------------------------------------------------------------------

// AssetClass classifies an instrument.
type AssetClass string

const (
	AssetClassStock  AssetClass = "stock"
	AssetClassETF    AssetClass = "etf"
	AssetClassIndex  AssetClass = "index"
	AssetClassCrypto AssetClass = "crypto"
	AssetClassOther  AssetClass = "other"
)

// AssetClasses lists every valid asset class in schema order.
var AssetClasses = []AssetClass{
	AssetClassStock, AssetClassETF, AssetClassIndex, AssetClassCrypto, AssetClassOther,
}

// ParseAssetClass converts s into an AssetClass.
func ParseAssetClass(s string) (AssetClass, error) {
	ac := AssetClass(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range AssetClasses {
		if v == ac {
			return ac, nil
		}
	}
	return "", &ValidationError{Field: "asset_class", Reason: fmt.Sprintf("unknown asset class %q", s)}
}

// Timeframe is the sampling granularity of a bar series.
type Timeframe string

const (
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
)

var timeframeAliases = map[string]Timeframe{
	"daily":   TimeframeDaily,
	"day":     TimeframeDaily,
	"1d":      TimeframeDaily,
	"weekly":  TimeframeWeekly,
	"week":    TimeframeWeekly,
	"1wk":     TimeframeWeekly,
	"monthly": TimeframeMonthly,
	"month":   TimeframeMonthly,
	"1mo":     TimeframeMonthly,
}

// ParseTimeframe converts s into a Timeframe. An empty string yields daily.
func ParseTimeframe(s string) (Timeframe, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TimeframeDaily, nil
	}
	if tf, ok := timeframeAliases[s]; ok {
		return tf, nil
	}
	return "", &ValidationError{Field: "timeframe", Reason: fmt.Sprintf("unrecognized timeframe %q", s)}
}

// Valid reports whether tf is a known timeframe.
func (tf Timeframe) Valid() bool {
	switch tf {
	case TimeframeDaily, TimeframeWeekly, TimeframeMonthly:
		return true
	}
	return false
}

// PeriodsPerYear returns the annualization factor for the timeframe.
func (tf Timeframe) PeriodsPerYear() float64 {
	switch tf {
	case TimeframeWeekly:
		return 52
	case TimeframeMonthly:
		return 12
	default:
		return 252
	}
}

// ---------------------------------------------------------------------------
// Instruments and bars
// ---------------------------------------------------------------------------

// Instrument is a tradable symbol and its descriptive metadata.
type Instrument struct {
	Ticker      string
	DisplayName string
	Industry    string // optional
	AssetClass  AssetClass
	CreatedAt   time.Time
}

// DefaultInstrument returns the instrument created on first ingestion of a
// ticker: display name equal to the ticker and asset class stock.
func DefaultInstrument(ticker string) Instrument {
	return Instrument{
		Ticker:      ticker,
		DisplayName: ticker,
		AssetClass:  AssetClassStock,
	}
}

// Bar is one OHLCV observation for an instrument at a date/time and
// timeframe. Bars are immutable once stored.
type Bar struct {
	Ticker    string
	Date      time.Time // calendar date, UTC midnight
	Time      string    // time of day, "15:04:05"
	Timeframe Timeframe
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    int64
}

// BarKey is the de-duplication key of a bar.
type BarKey struct {
	Ticker    string
	Date      string
	Time      string
	Timeframe Timeframe
}

func (k BarKey) String() string {
	return fmt.Sprintf("%s/%s/%s %s", k.Ticker, k.Timeframe, k.Date, k.Time)
}

// Key returns the bar's unique (ticker, bar_date, bar_time, timeframe) key.
func (b Bar) Key() BarKey {
	return BarKey{
		Ticker:    b.Ticker,
		Date:      b.Date.Format(DateLayout),
		Time:      b.TimeOfDay(),
		Timeframe: b.Timeframe,
	}
}

// TimeOfDay returns the bar time, defaulting to midnight.
func (b Bar) TimeOfDay() string {
	if b.Time == "" {
		return "00:00:00"
	}
	return b.Time
}

// Timestamp combines the bar date and time of day into a single UTC instant.
func (b Bar) Timestamp() time.Time {
	tod, err := time.Parse(TimeLayout, b.TimeOfDay())
	if err != nil {
		return b.Date
	}
	y, m, d := b.Date.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), tod.Second(), 0, time.UTC)
}

// NewBar builds a bar from float prices, rounding them to PriceScale digits.
// It is the common path for adapters that decode prices as floats.
func NewBar(ticker string, date time.Time, tf Timeframe, open, high, low, closePrice float64, volume int64) Bar {
	y, m, d := date.Date()
	return Bar{
		Ticker:    ticker,
		Date:      time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Time:      "00:00:00",
		Timeframe: tf,
		Open:      decimal.NewFromFloat(open).Round(PriceScale),
		High:      decimal.NewFromFloat(high).Round(PriceScale),
		Low:       decimal.NewFromFloat(low).Round(PriceScale),
		Close:     decimal.NewFromFloat(closePrice).Round(PriceScale),
		Volume:    volume,
	}
}

// Validate checks the structural invariants of a bar.
func (b Bar) Validate() error {
	if b.Ticker == "" {
		return &ValidationError{Field: "ticker", Reason: "empty ticker"}
	}
	if b.Date.IsZero() {
		return &ValidationError{Field: "bar_date", Reason: "missing date"}
	}
	if _, err := time.Parse(TimeLayout, b.TimeOfDay()); err != nil {
		return &ValidationError{Field: "bar_time", Reason: fmt.Sprintf("invalid time %q", b.Time)}
	}
	if !b.Timeframe.Valid() {
		return &ValidationError{Field: "timeframe", Reason: fmt.Sprintf("unrecognized timeframe %q", b.Timeframe)}
	}
	if b.Volume < 0 {
		return &ValidationError{Field: "volume", Reason: "negative volume"}
	}
	return nil
}

// ClosePrices returns the close price of every bar as float64, in order.
func ClosePrices(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close.InexactFloat64()
	}
	return out
}
