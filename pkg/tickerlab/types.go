package tickerlab

import (
	"github.com/shopspring/decimal"

	"tickerlab/internal/domain"
)

// Run and Trade are the persisted backtest records as served by the API.
type (
	Run   = domain.BacktestRun
	Trade = domain.TradeDetail
)

// Bar is the JSON representation of one OHLCV bar.
type Bar struct {
	Date   string          `json:"date"`
	Time   string          `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// NewBar converts a domain bar.
func NewBar(b domain.Bar) Bar {
	return Bar{
		Date:   b.Date.Format(domain.DateLayout),
		Time:   b.TimeOfDay(),
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	}
}

// NewBars converts a slice of domain bars. The result is never nil.
func NewBars(bars []domain.Bar) []Bar {
	out := make([]Bar, len(bars))
	for i, b := range bars {
		out[i] = NewBar(b)
	}
	return out
}

// BarsResponse is returned by GET /api/v1/bars.
type BarsResponse struct {
	RequestID string `json:"request_id"`
	Ticker    string `json:"ticker"`
	Timeframe string `json:"timeframe"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Count     int    `json:"count"`
	Bars      []Bar  `json:"bars"`
}

// BacktestRequest is the body of POST /api/v1/backtests. Zero windows and
// cash, and a nil commission, select the server defaults.
type BacktestRequest struct {
	Ticker      string   `json:"ticker"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Timeframe   string   `json:"timeframe,omitempty"`
	Strategy    string   `json:"strategy,omitempty"`
	FastWindow  int      `json:"fast_window,omitempty"`
	SlowWindow  int      `json:"slow_window,omitempty"`
	InitialCash float64  `json:"initial_cash,omitempty"`
	Commission  *float64 `json:"commission,omitempty"`
	Description string   `json:"description,omitempty"`
}

// BacktestResponse is returned by POST /api/v1/backtests.
type BacktestResponse struct {
	RequestID    string  `json:"request_id"`
	Bars         int     `json:"bars"`
	OpenPosition int64   `json:"open_position"`
	Run          *Run    `json:"run"`
	Trades       []Trade `json:"trades"`
}

// RunResponse is returned by GET /api/v1/backtests/{id}.
type RunResponse struct {
	Run    *Run    `json:"run"`
	Trades []Trade `json:"trades"`
}

// RunsResponse is returned by GET /api/v1/backtests.
type RunsResponse struct {
	Runs []Run `json:"runs"`
}

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	Text string `json:"text"`
}

// QueryResponse is returned by POST /api/v1/query. Run and Trades are set
// only when the text asked for a backtest over a non-empty series.
type QueryResponse struct {
	RequestID string  `json:"request_id"`
	Ticker    string  `json:"ticker"`
	Timeframe string  `json:"timeframe"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Backtest  bool    `json:"backtest"`
	Bars      []Bar   `json:"bars"`
	Run       *Run    `json:"run,omitempty"`
	Trades    []Trade `json:"trades,omitempty"`
}

// Instrument is the JSON representation of an instrument.
type Instrument struct {
	Ticker      string `json:"ticker"`
	DisplayName string `json:"display_name"`
	Industry    string `json:"industry,omitempty"`
	AssetClass  string `json:"asset_class"`
}

// InstrumentsResponse is returned by GET /api/v1/instruments.
type InstrumentsResponse struct {
	Instruments []Instrument `json:"instruments"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
