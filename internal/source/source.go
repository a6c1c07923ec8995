// Package source provides adapters for external market-data providers.
//
// Every adapter satisfies Source: it returns bars for the query's ticker and
// timeframe inside [Start, End], sorted ascending, or an empty slice. Any
// transport or payload failure is reported as an error wrapping
// domain.ErrDataSource. Adapters never retry; retrying is the caller's call.
package source

import (
	"context"
	"fmt"
	"sort"

	"tickerlab/internal/config"
	"tickerlab/internal/domain"
	"tickerlab/internal/store"
)

// Source fetches OHLCV bars from an external provider.
type Source interface {
	// Name returns the provider identifier.
	Name() string
	// Fetch returns bars matching q, ordered by date and time.
	Fetch(ctx context.Context, q domain.Query) ([]domain.Bar, error)
}

// Describer is implemented by sources that can look up instrument metadata.
type Describer interface {
	Describe(ctx context.Context, ticker string) (domain.Instrument, error)
}

// DefaultAlphaVantagePerMin is the free-tier request budget of Alpha Vantage.
const DefaultAlphaVantagePerMin = 5

// New builds the provider selected by cfg.Source.Provider. A positive
// rate_limit_per_min wraps it in a limiter; Alpha Vantage gets its free-tier
// budget when no limit is configured.
func New(cfg *config.Config) (Source, error) {
	var (
		src     Source
		perMin  = cfg.Source.RateLimitPerMin
		archive = store.NewParquetArchive(cfg.Storage.ArchiveDir)
	)
	switch cfg.Source.Provider {
	case "alphavantage":
		if cfg.AlphaVantage.APIKey == "" {
			return nil, &domain.ValidationError{Field: "alphavantage.api_key", Reason: "not set (ALPHA_VANTAGE_API_KEY)"}
		}
		src = NewAlphaVantage(cfg.AlphaVantage)
		if perMin == 0 {
			perMin = DefaultAlphaVantagePerMin
		}
	case "alpaca":
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, &domain.ValidationError{Field: "alpaca", Reason: "api_key and api_secret are required"}
		}
		src = NewAlpaca(cfg.Alpaca)
	case "parquet":
		src = NewParquet(archive)
	default:
		return nil, &domain.ValidationError{Field: "source.provider", Reason: fmt.Sprintf("unknown provider %q", cfg.Source.Provider)}
	}

	if perMin > 0 {
		src = RateLimited(src, perMin)
	}
	return src, nil
}

// sourceErr wraps err as a data-source failure of the named provider.
func sourceErr(name, op string, err error) error {
	return fmt.Errorf("%w: %s: %s: %w", domain.ErrDataSource, name, op, err)
}

// sourceErrf reports a malformed or rejected provider response.
func sourceErrf(name, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", domain.ErrDataSource, name, fmt.Sprintf(format, args...))
}

// clip keeps bars inside the query range and sorts them ascending.
func clip(q domain.Query, bars []domain.Bar) []domain.Bar {
	out := bars[:0]
	for _, b := range bars {
		if q.Contains(b.Date) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp().Before(out[j].Timestamp())
	})
	return out
}
