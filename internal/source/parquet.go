package source

import (
	"context"

	"tickerlab/internal/domain"
	"tickerlab/internal/store"
)

var _ Source = (*Parquet)(nil)

// Parquet serves bars from a local Parquet archive, for offline use and for
// replaying previously exported data.
type Parquet struct {
	archive *store.ParquetArchive
}

// NewParquet creates an adapter over archive.
func NewParquet(archive *store.ParquetArchive) *Parquet {
	return &Parquet{archive: archive}
}

// Name returns the provider identifier.
func (p *Parquet) Name() string { return "parquet" }

// Fetch reads the archived bars for q.
func (p *Parquet) Fetch(ctx context.Context, q domain.Query) ([]domain.Bar, error) {
	bars, err := p.archive.ReadBars(ctx, q)
	if err != nil {
		return nil, sourceErr(p.Name(), "reading archive", err)
	}
	return bars, nil
}
