package source

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"tickerlab/internal/config"
	"tickerlab/internal/domain"
)

var (
	_ Source    = (*Alpaca)(nil)
	_ Describer = (*Alpaca)(nil)
)

// Alpaca fetches split-adjusted bars from the Alpaca market-data API and
// instrument metadata from the trading API.
type Alpaca struct {
	client  *marketdata.Client
	trading *alpaca.Client
	feed    marketdata.Feed
	log     *slog.Logger
}

// NewAlpaca creates an adapter with the given credentials. Empty DataURL and
// TradingURL use the SDK default endpoints.
func NewAlpaca(cfg config.Alpaca) *Alpaca {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	feed := marketdata.Feed(strings.ToLower(cfg.Feed))
	if feed == "" {
		feed = marketdata.IEX
	}
	return &Alpaca{
		client: marketdata.NewClient(opts),
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.TradingURL,
		}),
		feed: feed,
		log:  slog.Default().With("source", "alpaca"),
	}
}

// Name returns the provider identifier.
func (a *Alpaca) Name() string { return "alpaca" }

func alpacaTimeFrame(tf domain.Timeframe) marketdata.TimeFrame {
	switch tf {
	case domain.TimeframeWeekly:
		return marketdata.NewTimeFrame(1, marketdata.Week)
	case domain.TimeframeMonthly:
		return marketdata.NewTimeFrame(1, marketdata.Month)
	default:
		return marketdata.OneDay
	}
}

// Fetch requests bars for the query range. The SDK call is not
// context-aware, so cancellation is only observed before the request.
func (a *Alpaca) Fetch(ctx context.Context, q domain.Query) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, sourceErr(a.Name(), "requesting "+q.Ticker, err)
	}

	raw, err := a.client.GetBars(q.Ticker, marketdata.GetBarsRequest{
		TimeFrame:  alpacaTimeFrame(q.Timeframe),
		Start:      q.Start,
		End:        q.End.AddDate(0, 0, 1),
		Feed:       a.feed,
		Adjustment: marketdata.Split,
	})
	if err != nil {
		return nil, sourceErr(a.Name(), "GetBars "+q.Ticker, err)
	}

	bars := convertAlpacaBars(q, raw)
	a.log.Debug("fetched", "ticker", q.Ticker, "timeframe", q.Timeframe, "bars", len(bars))
	return bars, nil
}

// convertAlpacaBars maps SDK bars onto domain bars. Alpaca stamps daily and
// longer bars at the session's midnight in New York, which is still the same
// calendar date in UTC.
func convertAlpacaBars(q domain.Query, raw []marketdata.Bar) []domain.Bar {
	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		y, m, d := ab.Timestamp.UTC().Date()
		b := domain.NewBar(q.Ticker, time.Date(y, m, d, 0, 0, 0, 0, time.UTC), q.Timeframe,
			ab.Open, ab.High, ab.Low, ab.Close, int64(ab.Volume))
		bars = append(bars, b)
	}
	return clip(q, bars)
}

// Describe looks up the asset's name and class. The returned instrument is
// usable even when err is non-nil.
func (a *Alpaca) Describe(ctx context.Context, ticker string) (domain.Instrument, error) {
	inst := domain.DefaultInstrument(ticker)
	if err := ctx.Err(); err != nil {
		return inst, sourceErr(a.Name(), "describing "+ticker, err)
	}
	asset, err := a.trading.GetAsset(ticker)
	if err != nil {
		return inst, sourceErr(a.Name(), "GetAsset "+ticker, err)
	}
	return assetInstrument(ticker, asset), nil
}

func assetInstrument(ticker string, asset *alpaca.Asset) domain.Instrument {
	inst := domain.DefaultInstrument(ticker)
	if asset.Name != "" {
		inst.DisplayName = asset.Name
	}
	switch asset.Class {
	case alpaca.USEquity:
		inst.AssetClass = domain.AssetClassStock
	case alpaca.Crypto:
		inst.AssetClass = domain.AssetClassCrypto
	default:
		inst.AssetClass = domain.AssetClassOther
	}
	return inst
}
