package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"tickerlab/internal/config"
	"tickerlab/internal/domain"
	"tickerlab/internal/engine"
	"tickerlab/internal/gather"
	"tickerlab/internal/metrics"
	"tickerlab/internal/results"
	"tickerlab/internal/store"
	"tickerlab/pkg/tickerlab"
)

// seriesSource serves 30 daily bars from 2024-01-01 that rise for 15 days
// and fall for 15.
type seriesSource struct {
	err error
}

func (s *seriesSource) Name() string { return "series" }

func (s *seriesSource) Fetch(_ context.Context, q domain.Query) ([]domain.Bar, error) {
	if s.err != nil {
		return nil, s.err
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []domain.Bar
	for i := 0; i < 30; i++ {
		c := float64(100 + i)
		if i >= 15 {
			c = float64(113 - (i - 15))
		}
		if d := start.AddDate(0, 0, i); q.Contains(d) {
			bars = append(bars, domain.NewBar(q.Ticker, d, q.Timeframe, c, c, c, c, 1000))
		}
	}
	return bars, nil
}

type testEnv struct {
	server *Server
	http   *httptest.Server
	source *seriesSource
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cfg := config.Default()
	src := &seriesSource{}
	m := metrics.New()
	e := engine.NewEngine(gather.NewRetriever(s, src, m), results.NewPersister(s), cfg.Backtest, m)
	srv := NewServer(cfg, e, s, m)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: srv, http: ts, source: src}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.http.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestNewServer(t *testing.T) {
	cfg := config.Default()
	s := NewServer(cfg, nil, nil, nil)
	require.NotNil(t, s)
	assert.Equal(t, ":8080", s.httpAddr)
	assert.Equal(t, ":9090", s.grpcAddr)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	env.do(t, http.MethodGet, "/api/v1/bars?ticker=AAPL&start=2024-01-01&end=2024-01-10", nil)
	code, body = env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "tickerlab_cache_misses_total 1")
}

func TestGetBars(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/bars?ticker=AAPL&start=2024-01-01&end=2024-01-30&timeframe=daily", nil)
	require.Equal(t, http.StatusOK, code, string(body))

	resp := decode[tickerlab.BarsResponse](t, body)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "AAPL", resp.Ticker)
	assert.Equal(t, 30, resp.Count)
	require.Len(t, resp.Bars, 30)
	assert.Equal(t, "2024-01-01", resp.Bars[0].Date)
	assert.True(t, resp.Bars[0].Close.Equal(decimal.NewFromInt(100)))
	assert.True(t, resp.Bars[14].High.Equal(decimal.NewFromInt(114)))
}

func TestGetBarsErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name, path string
		want       int
	}{
		{"lowercase ticker", "/api/v1/bars?ticker=aapl&start=2024-01-01&end=2024-01-30", http.StatusBadRequest},
		{"inverted range", "/api/v1/bars?ticker=AAPL&start=2024-02-01&end=2024-01-01", http.StatusBadRequest},
		{"bad timeframe", "/api/v1/bars?ticker=AAPL&start=2024-01-01&end=2024-01-30&timeframe=hourly", http.StatusBadRequest},
		{"missing dates", "/api/v1/bars?ticker=AAPL", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := env.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.want, code)
			assert.NotEmpty(t, decode[tickerlab.ErrorResponse](t, body).Error)
		})
	}

	env.source.err = errors.New("upstream timeout")
	code, _ := env.do(t, http.MethodGet, "/api/v1/bars?ticker=MSFT&start=2024-01-01&end=2024-01-30", nil)
	assert.Equal(t, http.StatusBadGateway, code)
}

func TestBacktestLifecycle(t *testing.T) {
	env := newTestEnv(t)
	commission := 0.001

	code, body := env.do(t, http.MethodPost, "/api/v1/backtests", tickerlab.BacktestRequest{
		Ticker:      "AAPL",
		StartDate:   "2024-01-01",
		EndDate:     "2024-01-30",
		FastWindow:  3,
		SlowWindow:  7,
		InitialCash: 10000,
		Commission:  &commission,
		Description: "api test",
	})
	require.Equal(t, http.StatusCreated, code, string(body))

	created := decode[tickerlab.BacktestResponse](t, body)
	require.NotNil(t, created.Run)
	assert.Equal(t, 30, created.Bars)
	assert.Equal(t, 1, created.Run.TotalTrades)
	require.Len(t, created.Trades, 1)
	assert.Equal(t, int64(94), created.Trades[0].PositionSize)
	assert.True(t, created.Run.EquityFinal.Decimal.Equal(decimal.RequireFromString("10449.602")))
	id := created.Run.RunID

	code, body = env.do(t, http.MethodGet, "/api/v1/backtests/"+strconv.FormatInt(id, 10), nil)
	require.Equal(t, http.StatusOK, code)
	got := decode[tickerlab.RunResponse](t, body)
	assert.Equal(t, "api test", got.Run.Description)
	assert.Len(t, got.Trades, 1)

	code, body = env.do(t, http.MethodGet, "/api/v1/backtests?ticker=aapl&limit=5", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[tickerlab.RunsResponse](t, body).Runs, 1)

	code, body = env.do(t, http.MethodGet, "/api/v1/backtests?ticker=MSFT", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"runs":[]}`, string(body))

	code, _ = env.do(t, http.MethodGet, "/api/v1/backtests?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(t, http.MethodGet, "/api/v1/backtests/999", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = env.do(t, http.MethodGet, "/api/v1/backtests/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBacktestErrors(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodPost, "/api/v1/backtests", tickerlab.BacktestRequest{
		Ticker: "AAPL", StartDate: "2023-01-01", EndDate: "2023-01-31",
	})
	assert.Equal(t, http.StatusNotFound, code, "no bars in range")

	code, _ = env.do(t, http.MethodPost, "/api/v1/backtests", tickerlab.BacktestRequest{
		Ticker: "AAPL", StartDate: "2024-01-01", EndDate: "2024-01-30", FastWindow: 20, SlowWindow: 5,
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/backtests", map[string]any{"ticker": "AAPL", "bogus": 1})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestQuery(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/v1/query", tickerlab.QueryRequest{
		Text: "backtest AAPL sma 3/7 from 2024-01-01 to 2024-01-30",
	})
	require.Equal(t, http.StatusOK, code, string(body))
	resp := decode[tickerlab.QueryResponse](t, body)
	assert.Equal(t, "AAPL", resp.Ticker)
	assert.True(t, resp.Backtest)
	assert.Len(t, resp.Bars, 30)
	require.NotNil(t, resp.Run)
	assert.Equal(t, `{"fast":3,"slow":7}`, resp.Run.StrategyParameters)

	code, body = env.do(t, http.MethodPost, "/api/v1/query", tickerlab.QueryRequest{Text: "AAPL weekly from 2024-01-01 to 2024-01-30"})
	require.Equal(t, http.StatusOK, code)
	resp = decode[tickerlab.QueryResponse](t, body)
	assert.False(t, resp.Backtest)
	assert.Equal(t, "weekly", resp.Timeframe)

	code, _ = env.do(t, http.MethodPost, "/api/v1/query", tickerlab.QueryRequest{Text: "what happened today"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestInstruments(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/backtests", tickerlab.BacktestRequest{
		Ticker: "AAPL", StartDate: "2024-01-01", EndDate: "2024-01-30", FastWindow: 3, SlowWindow: 7,
	})

	code, body := env.do(t, http.MethodGet, "/api/v1/instruments", nil)
	require.Equal(t, http.StatusOK, code)
	insts := decode[tickerlab.InstrumentsResponse](t, body).Instruments
	require.Len(t, insts, 1)
	assert.Equal(t, "AAPL", insts[0].Ticker)
	assert.Equal(t, "stock", insts[0].AssetClass)

	code, _ = env.do(t, http.MethodDelete, "/api/v1/instruments/aapl", nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = env.do(t, http.MethodDelete, "/api/v1/instruments/AAPL", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = env.do(t, http.MethodGet, "/api/v1/backtests", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[tickerlab.RunsResponse](t, body).Runs, "runs cascade with the instrument")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	code, _ := env.do(t, http.MethodOptions, "/api/v1/query", nil)
	assert.Equal(t, http.StatusNoContent, code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(&domain.ValidationError{Field: "x"}))
	assert.Equal(t, http.StatusNotFound, statusFor(domain.ErrNotFound))
	assert.Equal(t, http.StatusBadGateway, statusFor(domain.ErrDataSource))
	assert.Equal(t, http.StatusInternalServerError, statusFor(domain.ErrStorage))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

// ---------------------------------------------------------------------------
// gRPC
// ---------------------------------------------------------------------------

func dialBufconn(t *testing.T, env *testEnv) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := env.server.GRPCServer()
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGRPCFetchBars(t *testing.T) {
	env := newTestEnv(t)
	client := NewMarketDataClient(dialBufconn(t, env))
	ctx := context.Background()

	in, err := structpb.NewStruct(map[string]any{
		"ticker": "AAPL", "start_date": "2024-01-01", "end_date": "2024-01-10",
	})
	require.NoError(t, err)
	out, err := client.FetchBars(ctx, in)
	require.NoError(t, err)

	f := out.GetFields()
	assert.Equal(t, "AAPL", f["ticker"].GetStringValue())
	assert.Equal(t, "daily", f["timeframe"].GetStringValue())
	assert.Equal(t, 10.0, f["count"].GetNumberValue())
	bars := f["bars"].GetListValue().GetValues()
	require.Len(t, bars, 10)
	assert.Equal(t, "2024-01-01", bars[0].GetStructValue().GetFields()["date"].GetStringValue())

	bad, _ := structpb.NewStruct(map[string]any{"ticker": "toolong", "start_date": "2024-01-01", "end_date": "2024-01-10"})
	_, err = client.FetchBars(ctx, bad)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	env.source.err = errors.New("down")
	in, _ = structpb.NewStruct(map[string]any{"ticker": "IBM", "start_date": "2024-01-01", "end_date": "2024-01-10"})
	_, err = client.FetchBars(ctx, in)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestGRPCRunBacktest(t *testing.T) {
	env := newTestEnv(t)
	client := NewMarketDataClient(dialBufconn(t, env))

	in, err := structpb.NewStruct(map[string]any{
		"ticker": "AAPL", "start_date": "2024-01-01", "end_date": "2024-01-30",
		"fast_window": 3, "slow_window": 7,
	})
	require.NoError(t, err)
	out, err := client.RunBacktest(context.Background(), in)
	require.NoError(t, err)

	run := out.GetFields()["run"].GetStructValue().GetFields()
	assert.Equal(t, 1.0, run["total_trades"].GetNumberValue())
	assert.Equal(t, "sma-cross", run["strategy_name"].GetStringValue())
	assert.Positive(t, run["run_id"].GetNumberValue())
	assert.Len(t, out.GetFields()["trades"].GetListValue().GetValues(), 1)

	empty, _ := structpb.NewStruct(map[string]any{"ticker": "AAPL", "start_date": "2023-01-01", "end_date": "2023-01-31"})
	_, err = client.RunBacktest(context.Background(), empty)
	assert.Equal(t, codes.NotFound, status.Code(err))

	unknown, _ := structpb.NewStruct(map[string]any{"ticker": "AAPL", "fast_window": "three"})
	_, err = client.RunBacktest(context.Background(), unknown)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCHealth(t *testing.T) {
	env := newTestEnv(t)
	hc := healthpb.NewHealthClient(dialBufconn(t, env))

	resp, err := hc.Check(context.Background(), &healthpb.HealthCheckRequest{Service: MarketDataServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestListenAndServeStops(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Server.GRPCPort = freePort(t)
	srv := NewServer(cfg, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.HTTPAddr() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()
	return lis.Addr().(*net.TCPAddr).Port
}
