package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tickerlab/internal/config"
	"tickerlab/internal/domain"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testBars(ticker string, n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	start := date(2024, 1, 2)
	for i := range bars {
		p := 100 + float64(i)
		bars[i] = domain.NewBar(ticker, start.AddDate(0, 0, i), domain.TimeframeDaily, p, p+1.5, p-0.5, p+0.25, int64(1000*(i+1)))
	}
	return bars
}

func mustQuery(t *testing.T, ticker, start, end string) domain.Query {
	t.Helper()
	q, err := domain.NewQuery(ticker, start, end, "daily")
	if err != nil {
		t.Fatalf("NewQuery: %v", err)
	}
	return q
}

// ---------------------------------------------------------------------------
// SQL store
// ---------------------------------------------------------------------------

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idem.db")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		s, err := OpenSQLite(ctx, path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		if s.Dialect() != "sqlite" {
			t.Errorf("Dialect = %q, want sqlite", s.Dialect())
		}
		s.Close()
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.Storage{Driver: "oracle"})
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestEnsureInstrument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnsureInstrument(ctx, domain.DefaultInstrument("AAPL")); err != nil {
		t.Fatalf("EnsureInstrument: %v", err)
	}
	// A second call leaves the existing row alone.
	if err := s.EnsureInstrument(ctx, domain.Instrument{Ticker: "AAPL", DisplayName: "Apple Inc.", AssetClass: domain.AssetClassStock}); err != nil {
		t.Fatalf("EnsureInstrument (again): %v", err)
	}

	inst, err := s.GetInstrument(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetInstrument: %v", err)
	}
	if inst.DisplayName != "AAPL" {
		t.Errorf("DisplayName = %q, want AAPL", inst.DisplayName)
	}
	if inst.AssetClass != domain.AssetClassStock {
		t.Errorf("AssetClass = %q, want stock", inst.AssetClass)
	}
	if inst.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set by the database")
	}

	if err := s.EnsureInstrument(ctx, domain.Instrument{Ticker: "BAD", AssetClass: "bond"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown asset class: expected ErrValidation, got %v", err)
	}

	if _, err := s.GetInstrument(ctx, "MSFT"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetInstrument(MSFT): expected ErrNotFound, got %v", err)
	}
}

func TestListInstruments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, tk := range []string{"MSFT", "AAPL", "SPY"} {
		if err := s.EnsureInstrument(ctx, domain.DefaultInstrument(tk)); err != nil {
			t.Fatalf("EnsureInstrument(%s): %v", tk, err)
		}
	}
	list, err := s.ListInstruments(ctx)
	if err != nil {
		t.Fatalf("ListInstruments: %v", err)
	}
	var got []string
	for _, inst := range list {
		got = append(got, inst.Ticker)
	}
	if strings.Join(got, ",") != "AAPL,MSFT,SPY" {
		t.Errorf("tickers = %v, want sorted AAPL,MSFT,SPY", got)
	}
}

func TestInsertAndReadBars(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnsureInstrument(ctx, domain.DefaultInstrument("AAPL")); err != nil {
		t.Fatal(err)
	}
	bars := testBars("AAPL", 5)
	n, err := s.InsertBars(ctx, bars)
	if err != nil {
		t.Fatalf("InsertBars: %v", err)
	}
	if n != 5 {
		t.Fatalf("inserted %d, want 5", n)
	}

	got, err := s.ReadBars(ctx, mustQuery(t, "AAPL", "2024-01-03", "2024-01-05"))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d bars, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Date.Before(got[i].Date) {
			t.Errorf("bars not ascending at %d: %s then %s", i, got[i-1].Date, got[i].Date)
		}
	}

	first := got[0]
	want := bars[1]
	if !first.Date.Equal(want.Date) {
		t.Errorf("Date = %s, want %s", first.Date, want.Date)
	}
	if first.Time != "00:00:00" {
		t.Errorf("Time = %q, want 00:00:00", first.Time)
	}
	if !first.Close.Equal(want.Close) || !first.High.Equal(want.High) {
		t.Errorf("prices = %s/%s, want %s/%s", first.High, first.Close, want.High, want.Close)
	}
	if first.Volume != want.Volume {
		t.Errorf("Volume = %d, want %d", first.Volume, want.Volume)
	}
	if first.Key() != want.Key() {
		t.Errorf("Key = %s, want %s", first.Key(), want.Key())
	}

	// Other timeframes do not leak into a daily query.
	weekly := testBars("AAPL", 1)
	weekly[0].Timeframe = domain.TimeframeWeekly
	if _, err := s.InsertBars(ctx, weekly); err != nil {
		t.Fatal(err)
	}
	got, err = s.ReadBars(ctx, mustQuery(t, "AAPL", "2024-01-01", "2024-12-31"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Errorf("daily query returned %d bars, want 5", len(got))
	}
}

func TestInsertBarsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnsureInstrument(ctx, domain.DefaultInstrument("AAPL")); err != nil {
		t.Fatal(err)
	}
	bars := testBars("AAPL", 5)
	if _, err := s.InsertBars(ctx, bars); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	n, err := s.InsertBars(ctx, bars)
	if n != 0 {
		t.Errorf("second insert reported %d rows, want 0", n)
	}
	var dup *domain.DuplicateDataError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateDataError, got %v", err)
	}
	if len(dup.Keys) != 5 {
		t.Errorf("duplicate keys = %d, want 5", len(dup.Keys))
	}
	if !errors.Is(err, domain.ErrDuplicateData) {
		t.Error("DuplicateDataError should match ErrDuplicateData")
	}

	count, err := s.CountBars(ctx, "AAPL", domain.TimeframeDaily)
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("CountBars = %d, want 5", count)
	}

	// A mixed batch commits the new rows and reports the rest.
	more := testBars("AAPL", 7)
	n, err = s.InsertBars(ctx, more)
	if n != 2 {
		t.Errorf("mixed insert reported %d rows, want 2", n)
	}
	if !errors.As(err, &dup) || len(dup.Keys) != 5 {
		t.Errorf("mixed insert: expected 5 duplicate keys, got %v", err)
	}
}

func TestInsertBarsRequiresInstrument(t *testing.T) {
	s := openTestStore(t)
	_, err := s.InsertBars(context.Background(), testBars("ZZZ", 1))
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage for missing instrument, got %v", err)
	}
}

func TestInsertBarsRejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	bars := testBars("AAPL", 1)
	bars[0].Volume = -1
	if _, err := s.InsertBars(context.Background(), bars); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestExistingKeys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnsureInstrument(ctx, domain.DefaultInstrument("AAPL")); err != nil {
		t.Fatal(err)
	}
	bars := testBars("AAPL", 3)
	if _, err := s.InsertBars(ctx, bars); err != nil {
		t.Fatal(err)
	}

	keys, err := s.ExistingKeys(ctx, "AAPL", domain.TimeframeDaily)
	if err != nil {
		t.Fatalf("ExistingKeys: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("got %d keys, want 3", len(keys))
	}
	for _, b := range bars {
		if _, ok := keys[b.Key()]; !ok {
			t.Errorf("missing key %s", b.Key())
		}
	}

	keys, err = s.ExistingKeys(ctx, "AAPL", domain.TimeframeWeekly)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Errorf("weekly keys = %d, want 0", len(keys))
	}
}

func testRun(ticker string, trades int) (*domain.BacktestRun, []domain.TradeDetail) {
	run := &domain.BacktestRun{
		Description:        "unit test",
		Ticker:             ticker,
		StrategyName:       "sma-cross",
		StrategyParameters: `{"fast":3,"slow":7}`,
		StartDate:          date(2024, 1, 2),
		EndDate:            date(2024, 1, 31),
		Duration:           domain.NewNullDuration(29 * 24 * time.Hour),
		EquityFinal:        decimal.NewNullDecimal(decimal.RequireFromString("10512.3456")),
		ReturnPct:          decimal.NewNullDecimal(decimal.RequireFromString("5.1235")),
		MaxDrawdownPct:     decimal.NewNullDecimal(decimal.RequireFromString("-2.5")),
		TotalTrades:        trades,
	}
	details := make([]domain.TradeDetail, trades)
	for i := range details {
		buy := date(2024, 1, 3+i*5)
		details[i] = domain.TradeDetail{
			TradeNumber:      i + 1,
			BuyTime:          buy,
			SellTime:         buy.AddDate(0, 0, 3),
			BuyPrice:         decimal.RequireFromString("101.25"),
			SellPrice:        decimal.RequireFromString("103.5"),
			PositionSize:     98,
			Duration:         domain.NewNullDuration(72 * time.Hour),
			ReturnPct:        decimal.NewNullDecimal(decimal.RequireFromString("2.0222")),
			ProfitLoss:       decimal.NewNullDecimal(decimal.RequireFromString("200.55")),
			EquityAfterTrade: decimal.NewNullDecimal(decimal.RequireFromString("10200.55")),
		}
	}
	return run, details
}

func TestSaveAndGetBacktest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnsureInstrument(ctx, domain.DefaultInstrument("AAPL")); err != nil {
		t.Fatal(err)
	}
	run, trades := testRun("AAPL", 2)
	id, err := s.SaveBacktest(ctx, run, trades)
	if err != nil {
		t.Fatalf("SaveBacktest: %v", err)
	}
	if id <= 0 || run.RunID != id || trades[1].RunID != id {
		t.Fatalf("run id not propagated: id=%d run=%d trade=%d", id, run.RunID, trades[1].RunID)
	}

	got, gotTrades, err := s.GetBacktest(ctx, id)
	if err != nil {
		t.Fatalf("GetBacktest: %v", err)
	}
	if got.Ticker != "AAPL" || got.StrategyName != "sma-cross" || got.StrategyParameters != run.StrategyParameters {
		t.Errorf("identity fields mismatch: %+v", got)
	}
	if !got.StartDate.Equal(run.StartDate) || !got.EndDate.Equal(run.EndDate) {
		t.Errorf("span = %s..%s, want %s..%s", got.StartDate, got.EndDate, run.StartDate, run.EndDate)
	}
	if got.Duration != run.Duration {
		t.Errorf("Duration = %+v, want %+v", got.Duration, run.Duration)
	}
	if !got.EquityFinal.Valid || !got.EquityFinal.Decimal.Equal(run.EquityFinal.Decimal) {
		t.Errorf("EquityFinal = %+v, want %s", got.EquityFinal, run.EquityFinal.Decimal)
	}
	if !got.MaxDrawdownPct.Decimal.Equal(decimal.RequireFromString("-2.5")) {
		t.Errorf("MaxDrawdownPct = %s, want -2.5", got.MaxDrawdownPct.Decimal)
	}
	if got.SharpeRatio.Valid {
		t.Errorf("SharpeRatio should be NULL, got %s", got.SharpeRatio.Decimal)
	}
	if got.MaxDrawdownDuration.Valid {
		t.Error("MaxDrawdownDuration should be NULL")
	}
	if got.TotalTrades != 2 {
		t.Errorf("TotalTrades = %d, want 2", got.TotalTrades)
	}

	if len(gotTrades) != 2 {
		t.Fatalf("got %d trades, want 2", len(gotTrades))
	}
	for i, tr := range gotTrades {
		if tr.TradeNumber != i+1 {
			t.Errorf("trade %d: number = %d", i, tr.TradeNumber)
		}
		if !tr.BuyTime.Equal(trades[i].BuyTime) || !tr.SellTime.Equal(trades[i].SellTime) {
			t.Errorf("trade %d: times %s..%s, want %s..%s", i, tr.BuyTime, tr.SellTime, trades[i].BuyTime, trades[i].SellTime)
		}
		if !tr.BuyPrice.Equal(trades[i].BuyPrice) || tr.PositionSize != 98 {
			t.Errorf("trade %d: price/size = %s/%d", i, tr.BuyPrice, tr.PositionSize)
		}
		if tr.Duration.Duration != 72*time.Hour {
			t.Errorf("trade %d: duration = %s", i, tr.Duration.Duration)
		}
	}

	if err := s.VerifyBacktest(ctx, id); err != nil {
		t.Errorf("VerifyBacktest: %v", err)
	}
	if _, _, err := s.GetBacktest(ctx, id+100); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetBacktest(missing): expected ErrNotFound, got %v", err)
	}
	if err := s.VerifyBacktest(ctx, id+100); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("VerifyBacktest(missing): expected ErrNotFound, got %v", err)
	}
}

func TestSaveBacktestZeroTrades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnsureInstrument(ctx, domain.DefaultInstrument("SPY")); err != nil {
		t.Fatal(err)
	}
	run, trades := testRun("SPY", 0)
	id, err := s.SaveBacktest(ctx, run, trades)
	if err != nil {
		t.Fatalf("SaveBacktest: %v", err)
	}
	_, got, err := s.GetBacktest(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d trades, want 0", len(got))
	}
}

func TestSaveBacktestTradeCountMismatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnsureInstrument(ctx, domain.DefaultInstrument("AAPL")); err != nil {
		t.Fatal(err)
	}
	run, trades := testRun("AAPL", 2)
	run.TotalTrades = 3
	if _, err := s.SaveBacktest(ctx, run, trades); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	runs, err := s.ListBacktests(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("found %d runs after rejected save, want 0", len(runs))
	}
}

func TestSaveBacktestRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnsureInstrument(ctx, domain.DefaultInstrument("AAPL")); err != nil {
		t.Fatal(err)
	}
	run, trades := testRun("AAPL", 2)
	// Duplicate trade numbers violate UNIQUE(run_id, trade_number) on the
	// second detail row, after the summary row was written.
	trades[1].TradeNumber = 1
	if _, err := s.SaveBacktest(ctx, run, trades); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}

	runs, err := s.ListBacktests(ctx, "AAPL", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("orphan summary left behind: %d runs", len(runs))
	}
}

func TestListBacktests(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, tk := range []string{"AAPL", "MSFT"} {
		if err := s.EnsureInstrument(ctx, domain.DefaultInstrument(tk)); err != nil {
			t.Fatal(err)
		}
	}
	for _, tk := range []string{"AAPL", "MSFT", "AAPL"} {
		run, trades := testRun(tk, 1)
		if _, err := s.SaveBacktest(ctx, run, trades); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListBacktests(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d runs, want 3", len(all))
	}
	if all[0].RunID < all[1].RunID {
		t.Error("runs should be newest first")
	}

	aapl, err := s.ListBacktests(ctx, "AAPL", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(aapl) != 1 || aapl[0].Ticker != "AAPL" || aapl[0].RunID != all[0].RunID {
		t.Errorf("filtered list = %+v", aapl)
	}
}

func TestDeleteInstrumentCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnsureInstrument(ctx, domain.DefaultInstrument("AAPL")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertBars(ctx, testBars("AAPL", 4)); err != nil {
		t.Fatal(err)
	}
	run, trades := testRun("AAPL", 2)
	id, err := s.SaveBacktest(ctx, run, trades)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteInstrument(ctx, "AAPL"); err != nil {
		t.Fatalf("DeleteInstrument: %v", err)
	}

	n, err := s.CountBars(ctx, "AAPL", domain.TimeframeDaily)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("bars left after delete: %d", n)
	}
	if _, _, err := s.GetBacktest(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("run should be gone, got %v", err)
	}
	var details int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trade_detail`).Scan(&details); err != nil {
		t.Fatal(err)
	}
	if details != 0 {
		t.Errorf("trade details left after delete: %d", details)
	}

	if err := s.DeleteInstrument(ctx, "AAPL"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestRebindDollar(t *testing.T) {
	got := rebindDollar("SELECT * FROM bar WHERE ticker = ? AND bar_date >= ? AND bar_date <= ?")
	want := "SELECT * FROM bar WHERE ticker = $1 AND bar_date >= $2 AND bar_date <= $3"
	if got != want {
		t.Errorf("rebindDollar:\n  got  %s\n  want %s", got, want)
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN("data/x.db")
	if !strings.HasPrefix(dsn, "file:data/x.db?") {
		t.Errorf("dsn = %s", dsn)
	}
	if !strings.Contains(dsn, "foreign_keys(1)") {
		t.Errorf("dsn should enable foreign keys: %s", dsn)
	}
	if got := sqliteDSN("file:x.db?mode=rwc"); !strings.Contains(got, "mode=rwc&_pragma=") {
		t.Errorf("existing query not extended: %s", got)
	}
}

// ---------------------------------------------------------------------------
// Parquet archive
// ---------------------------------------------------------------------------

func TestParquetArchivePath(t *testing.T) {
	a := NewParquetArchive("/data")

	got := a.barPath("aapl", domain.TimeframeDaily, 2024)
	want := filepath.Join("/data", "daily", "AAPL", "2024.parquet")
	if got != want {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", got, want)
	}
}

func TestParquetArchiveWriteRead(t *testing.T) {
	a := NewParquetArchive(t.TempDir())
	ctx := context.Background()

	bars := testBars("AAPL", 5)
	// Spill into the next year to exercise multiple files.
	late := domain.NewBar("AAPL", date(2023, 12, 29), domain.TimeframeDaily, 99, 100, 98, 99.5, 500)
	bars = append(bars, late)

	if err := a.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := a.ReadBars(ctx, mustQuery(t, "AAPL", "2023-01-01", "2024-12-31"))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 6 {
		t.Fatalf("got %d bars, want 6", len(got))
	}
	if !got[0].Date.Equal(late.Date) {
		t.Errorf("first bar = %s, want %s", got[0].Date, late.Date)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Date.Before(got[i-1].Date) {
			t.Errorf("bars out of order at %d", i)
		}
	}
	if !got[1].Close.Equal(bars[0].Close) || got[1].Volume != bars[0].Volume {
		t.Errorf("round trip mismatch: %+v vs %+v", got[1], bars[0])
	}
	if got[1].Key() != bars[0].Key() {
		t.Errorf("Key = %s, want %s", got[1].Key(), bars[0].Key())
	}

	ranged, err := a.ReadBars(ctx, mustQuery(t, "AAPL", "2024-01-03", "2024-01-04"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ranged) != 2 {
		t.Errorf("range read returned %d bars, want 2", len(ranged))
	}

	missing, err := a.ReadBars(ctx, mustQuery(t, "MSFT", "2024-01-01", "2024-12-31"))
	if err != nil {
		t.Fatalf("ReadBars(missing): %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("missing ticker returned %d bars", len(missing))
	}
}

func TestParquetArchiveMerge(t *testing.T) {
	a := NewParquetArchive(t.TempDir())
	ctx := context.Background()

	original := testBars("AAPL", 3)
	if err := a.WriteBars(ctx, original); err != nil {
		t.Fatal(err)
	}
	// Overlaps the first three days and adds two more.
	updated := testBars("AAPL", 5)
	updated[0].Close = decimal.RequireFromString("123.456789")
	if err := a.WriteBars(ctx, updated); err != nil {
		t.Fatal(err)
	}

	got, err := a.ReadBars(ctx, mustQuery(t, "AAPL", "2024-01-01", "2024-12-31"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d bars after merge, want 5", len(got))
	}
	if !got[0].Close.Equal(original[0].Close) {
		t.Errorf("stored bar was overwritten: close = %s, want %s", got[0].Close, original[0].Close)
	}

	tickers, err := a.ListTickers(ctx, domain.TimeframeDaily)
	if err != nil {
		t.Fatal(err)
	}
	if len(tickers) != 1 || tickers[0] != "AAPL" {
		t.Errorf("ListTickers = %v, want [AAPL]", tickers)
	}
	none, err := a.ListTickers(ctx, domain.TimeframeMonthly)
	if err != nil || len(none) != 0 {
		t.Errorf("ListTickers(monthly) = %v, %v", none, err)
	}
}

func TestMergeBarRecords(t *testing.T) {
	a := toRecord(domain.NewBar("AAPL", date(2024, 1, 3), domain.TimeframeDaily, 1, 1, 1, 1, 10))
	b := toRecord(domain.NewBar("AAPL", date(2024, 1, 2), domain.TimeframeDaily, 2, 2, 2, 2, 20))
	c := toRecord(domain.NewBar("AAPL", date(2024, 1, 3), domain.TimeframeDaily, 3, 3, 3, 3, 30))
	d := toRecord(domain.NewBar("AAPL", date(2024, 1, 4), domain.TimeframeDaily, 4, 4, 4, 4, 40))

	merged := mergeBarRecords([]BarRecord{a, b}, []BarRecord{c, d})
	if len(merged) != 3 {
		t.Fatalf("got %d records, want 3", len(merged))
	}
	if merged[0].Volume != 20 || merged[1].Volume != 10 || merged[2].Volume != 40 {
		t.Errorf("merge result = %+v", merged)
	}
	if merged[1].Close != 1_000_000 {
		t.Errorf("stored close was overwritten: got %d, want 1000000", merged[1].Close)
	}
}
