// Package gather implements cache-or-fetch retrieval of OHLCV bars: the
// relational store is consulted first and the external source only on a
// miss. Fetched rows are persisted before they are returned.
package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tickerlab/internal/domain"
	"tickerlab/internal/metrics"
	"tickerlab/internal/source"
	"tickerlab/internal/store"
)

// Store is the slice of the relational store the retriever needs.
type Store interface {
	store.BarStore
	EnsureInstrument(ctx context.Context, inst domain.Instrument) error
}

// Retriever serves bar queries from the store and falls back to the source.
type Retriever struct {
	store   Store
	source  source.Source
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewRetriever creates a Retriever. m may be nil.
func NewRetriever(s Store, src source.Source, m *metrics.Metrics) *Retriever {
	return &Retriever{
		store:   s,
		source:  src,
		metrics: m,
		log:     slog.Default().With("component", "retriever", "source", src.Name()),
	}
}

// Fetch returns the bars for q.
//
// Any stored row for the ticker and timeframe inside the range counts as a
// hit and is returned as is: a partially cached range is not topped up from
// the source. On a miss the source is called once; its rows are stored
// (skipping keys already present) and returned in the order the source
// produced them. An empty source result is not an error.
func (r *Retriever) Fetch(ctx context.Context, q domain.Query) ([]domain.Bar, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	cached, err := r.store.ReadBars(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		r.metrics.CacheHit()
		r.log.Info("cache hit", "query", q.String(), "bars", len(cached))
		return cached, nil
	}
	r.metrics.CacheMiss()
	r.log.Info("cache miss", "query", q.String())

	start := time.Now()
	fetched, err := r.source.Fetch(ctx, q)
	r.metrics.ObserveFetch(time.Since(start).Seconds())
	if err != nil {
		r.metrics.SourceError(r.source.Name())
		r.log.Error("source fetch failed", "query", q.String(), "error", err)
		if !errors.Is(err, domain.ErrDataSource) {
			err = fmt.Errorf("%w: %s: %w", domain.ErrDataSource, r.source.Name(), err)
		}
		return nil, err
	}
	if len(fetched) == 0 {
		r.log.Info("source returned no data", "query", q.String())
		return []domain.Bar{}, nil
	}

	if err := checkRows(q, fetched); err != nil {
		r.metrics.SourceError(r.source.Name())
		return nil, err
	}

	inserted, dup, err := r.ingest(ctx, q, fetched)
	if err != nil {
		return nil, err
	}
	r.metrics.Ingested(len(fetched), inserted, dup)
	r.log.Info("ingested",
		"query", q.String(),
		"fetched", len(fetched),
		"inserted", inserted,
		"duplicate", dup,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return fetched, nil
}

// checkRows rejects source rows that do not belong to the query.
func checkRows(q domain.Query, bars []domain.Bar) error {
	for _, b := range bars {
		if b.Ticker != q.Ticker || b.Timeframe != q.Timeframe {
			return fmt.Errorf("%w: row %s does not match query %s", domain.ErrDataSource, b.Key(), q)
		}
		if err := b.Validate(); err != nil {
			return fmt.Errorf("%w: row %s: %w", domain.ErrDataSource, b.Key(), err)
		}
	}
	return nil
}

// describe asks the source for instrument metadata, falling back to the
// default instrument.
func (r *Retriever) describe(ctx context.Context, ticker string) domain.Instrument {
	d, ok := r.source.(source.Describer)
	if !ok {
		return domain.DefaultInstrument(ticker)
	}
	inst, err := d.Describe(ctx, ticker)
	if err != nil {
		r.log.Warn("instrument lookup failed", "ticker", ticker, "error", err)
		return domain.DefaultInstrument(ticker)
	}
	return inst
}

// ingest stores the rows whose keys are new. Keys already stored and repeats
// inside the batch are counted as duplicates; a duplicate reported by the
// store itself (a concurrent writer) is logged and counted the same way.
func (r *Retriever) ingest(ctx context.Context, q domain.Query, bars []domain.Bar) (inserted, duplicate int, err error) {
	if err := r.store.EnsureInstrument(ctx, r.describe(ctx, q.Ticker)); err != nil {
		return 0, 0, err
	}

	existing, err := r.store.ExistingKeys(ctx, q.Ticker, q.Timeframe)
	if err != nil {
		return 0, 0, err
	}

	fresh := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		k := b.Key()
		if _, ok := existing[k]; ok {
			duplicate++
			continue
		}
		existing[k] = struct{}{}
		fresh = append(fresh, b)
	}
	if len(fresh) == 0 {
		return 0, duplicate, nil
	}

	inserted, err = r.store.InsertBars(ctx, fresh)
	var dupErr *domain.DuplicateDataError
	switch {
	case errors.As(err, &dupErr):
		r.log.Warn("duplicate rows skipped", "query", q.String(), "count", len(dupErr.Keys))
		duplicate += len(dupErr.Keys)
	case err != nil:
		return 0, 0, err
	}
	return inserted, duplicate, nil
}
