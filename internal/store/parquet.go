package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"tickerlab/internal/domain"
)

// ParquetArchive keeps bars in Parquet files on disk, one file per ticker,
// timeframe and year. It backs the export command and the offline parquet
// source.
type ParquetArchive struct {
	Dir string
}

// NewParquetArchive creates a ParquetArchive rooted at dir.
func NewParquetArchive(dir string) *ParquetArchive {
	return &ParquetArchive{Dir: dir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for bar data. Prices are fixed-point
// integers scaled by 10^6.
type BarRecord struct {
	Ticker    string `parquet:"ticker"`
	Timestamp int64  `parquet:"bar_date,timestamp(millisecond)"` // Unix ms of the date at UTC midnight
	Time      string `parquet:"bar_time"`
	Timeframe string `parquet:"timeframe"`
	Open      int64  `parquet:"open_price,decimal(6:18)"`
	High      int64  `parquet:"high_price,decimal(6:18)"`
	Low       int64  `parquet:"low_price,decimal(6:18)"`
	Close     int64  `parquet:"close_price,decimal(6:18)"`
	Volume    int64  `parquet:"volume"`
}

func toRecord(b domain.Bar) BarRecord {
	return BarRecord{
		Ticker:    b.Ticker,
		Timestamp: b.Date.UnixMilli(),
		Time:      b.TimeOfDay(),
		Timeframe: string(b.Timeframe),
		Open:      scaled(b.Open),
		High:      scaled(b.High),
		Low:       scaled(b.Low),
		Close:     scaled(b.Close),
		Volume:    b.Volume,
	}
}

func (r BarRecord) bar() domain.Bar {
	return domain.Bar{
		Ticker:    r.Ticker,
		Date:      time.UnixMilli(r.Timestamp).UTC(),
		Time:      r.Time,
		Timeframe: domain.Timeframe(r.Timeframe),
		Open:      unscaled(r.Open),
		High:      unscaled(r.High),
		Low:       unscaled(r.Low),
		Close:     unscaled(r.Close),
		Volume:    r.Volume,
	}
}

func (r BarRecord) key() domain.BarKey {
	return r.bar().Key()
}

func scaled(d decimal.Decimal) int64 {
	return d.Shift(domain.PriceScale).Round(0).IntPart()
}

func unscaled(v int64) decimal.Decimal {
	return decimal.New(v, -domain.PriceScale)
}

// ---------------------------------------------------------------------------
// Reading and writing
// ---------------------------------------------------------------------------

// WriteBars merges bars into the archive. Each ticker, timeframe and year
// produces a separate file at:
//
//	<Dir>/<timeframe>/<TICKER>/<YYYY>.parquet
//
// Records sharing a bar key are replaced by the incoming version.
func (a *ParquetArchive) WriteBars(_ context.Context, bars []domain.Bar) error {
	type key struct {
		ticker string
		tf     domain.Timeframe
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		k := key{ticker: b.Ticker, tf: b.Timeframe, year: b.Date.Year()}
		groups[k] = append(groups[k], toRecord(b))
	}

	for k, records := range groups {
		path := a.barPath(k.ticker, k.tf, k.year)

		existing, err := readParquetFile[BarRecord](path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%s/%d: %w", k.ticker, k.tf, k.year, err)
		}
	}
	return nil
}

// ReadBars returns archived bars inside the query range, ordered by date and
// time. Years without a file contribute nothing.
func (a *ParquetArchive) ReadBars(_ context.Context, q domain.Query) ([]domain.Bar, error) {
	var bars []domain.Bar
	for year := q.Start.Year(); year <= q.End.Year(); year++ {
		path := a.barPath(q.Ticker, q.Timeframe, year)

		records, err := readParquetFile[BarRecord](path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		for _, r := range records {
			b := r.bar()
			if q.Contains(b.Date) {
				bars = append(bars, b)
			}
		}
	}
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp().Before(bars[j].Timestamp())
	})
	return bars, nil
}

// ListTickers lists the tickers archived for the timeframe.
func (a *ParquetArchive) ListTickers(_ context.Context, tf domain.Timeframe) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(a.Dir, string(tf)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var tickers []string
	for _, e := range entries {
		if e.IsDir() {
			tickers = append(tickers, e.Name())
		}
	}
	sort.Strings(tickers)
	return tickers, nil
}

// barPath returns the filesystem path for a bar Parquet file.
func (a *ParquetArchive) barPath(ticker string, tf domain.Timeframe, year int) string {
	return filepath.Join(a.Dir, string(tf), strings.ToUpper(ticker), fmt.Sprintf("%d.parquet", year))
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return parquet.ReadFile[T](path)
}

// mergeBarRecords deduplicates bar records by bar key. Stored bars are
// immutable, so an incoming record whose key already exists is dropped.
// Results are sorted by date then time.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	seen := make(map[domain.BarKey]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.key()] = r
	}
	for _, r := range incoming {
		if _, ok := seen[r.key()]; !ok {
			seen[r.key()] = r
		}
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Timestamp != merged[j].Timestamp {
			return merged[i].Timestamp < merged[j].Timestamp
		}
		return merged[i].Time < merged[j].Time
	})
	return merged
}
