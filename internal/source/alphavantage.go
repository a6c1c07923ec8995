package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tickerlab/internal/config"
	"tickerlab/internal/domain"
)

var _ Source = (*AlphaVantage)(nil)

// AlphaVantage fetches bars from the Alpha Vantage TIME_SERIES_* endpoints.
type AlphaVantage struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewAlphaVantage creates an adapter for the configured endpoint.
func NewAlphaVantage(cfg config.AlphaVantage) *AlphaVantage {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AlphaVantage{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		log:     slog.Default().With("source", "alphavantage"),
	}
}

// Name returns the provider identifier.
func (a *AlphaVantage) Name() string { return "alphavantage" }

func avFunction(tf domain.Timeframe) string {
	switch tf {
	case domain.TimeframeWeekly:
		return "TIME_SERIES_WEEKLY"
	case domain.TimeframeMonthly:
		return "TIME_SERIES_MONTHLY"
	default:
		return "TIME_SERIES_DAILY"
	}
}

// Fetch requests the full series for the ticker and clips it to the query
// range.
func (a *AlphaVantage) Fetch(ctx context.Context, q domain.Query) ([]domain.Bar, error) {
	params := url.Values{}
	params.Set("function", avFunction(q.Timeframe))
	params.Set("symbol", q.Ticker)
	params.Set("outputsize", "full")
	params.Set("apikey", a.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, sourceErr(a.Name(), "building request", err)
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, sourceErr(a.Name(), "requesting "+q.Ticker, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, sourceErr(a.Name(), "reading response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, sourceErrf(a.Name(), "HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	bars, err := parseAlphaVantage(body, q)
	if err != nil {
		return nil, err
	}
	a.log.Debug("fetched", "ticker", q.Ticker, "timeframe", q.Timeframe, "bars", len(bars),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return bars, nil
}

// parseAlphaVantage decodes a TIME_SERIES_* payload. The series lives under
// the one key containing "Time Series"; provider errors and throttling
// notices arrive as 200 responses with an "Error Message", "Note" or
// "Information" key instead.
func parseAlphaVantage(body []byte, q domain.Query) ([]domain.Bar, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, sourceErr("alphavantage", "decoding response", err)
	}

	for _, key := range []string{"Error Message", "Note", "Information"} {
		if raw, ok := payload[key]; ok {
			var msg string
			_ = json.Unmarshal(raw, &msg)
			return nil, sourceErrf("alphavantage", "%s: %s", strings.ToLower(key), msg)
		}
	}

	var series map[string]map[string]string
	found := false
	for key, raw := range payload {
		if !strings.Contains(key, "Time Series") {
			continue
		}
		if err := json.Unmarshal(raw, &series); err != nil {
			return nil, sourceErr("alphavantage", "decoding "+key, err)
		}
		found = true
		break
	}
	if !found {
		return nil, sourceErrf("alphavantage", "response has no time series for %s", q.Ticker)
	}

	bars := make([]domain.Bar, 0, len(series))
	for day, fields := range series {
		b, err := avBar(q, day, fields)
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return clip(q, bars), nil
}

func avBar(q domain.Query, day string, f map[string]string) (domain.Bar, error) {
	d, err := time.Parse(domain.DateLayout, day)
	if err != nil {
		return domain.Bar{}, sourceErrf("alphavantage", "bad date %q", day)
	}

	prices := make([]decimal.Decimal, 4)
	for i, name := range []string{"1. open", "2. high", "3. low", "4. close"} {
		p, err := decimal.NewFromString(f[name])
		if err != nil {
			return domain.Bar{}, sourceErrf("alphavantage", "%s: bad %s %q", day, name, f[name])
		}
		prices[i] = p.Round(domain.PriceScale)
	}

	vol, err := strconv.ParseInt(f["5. volume"], 10, 64)
	if err != nil {
		return domain.Bar{}, sourceErrf("alphavantage", "%s: bad volume %q", day, f["5. volume"])
	}

	return domain.Bar{
		Ticker:    q.Ticker,
		Date:      d,
		Time:      "00:00:00",
		Timeframe: q.Timeframe,
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    vol,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
