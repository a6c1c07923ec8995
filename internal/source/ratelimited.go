package source

import (
	"context"

	"tickerlab/internal/domain"
	"tickerlab/internal/util"
)

type rateLimited struct {
	src Source
	rl  *util.RateLimiter
}

// RateLimited wraps src so that at most perMinute fetches start per minute.
func RateLimited(src Source, perMinute int) Source {
	return &rateLimited{src: src, rl: util.NewRateLimiter(perMinute)}
}

func (r *rateLimited) Name() string { return r.src.Name() }

func (r *rateLimited) Fetch(ctx context.Context, q domain.Query) ([]domain.Bar, error) {
	if err := r.rl.Wait(ctx); err != nil {
		return nil, sourceErr(r.src.Name(), "waiting for rate limit", err)
	}
	return r.src.Fetch(ctx, q)
}

// Describe forwards to the wrapped source when it is a Describer and returns
// the default instrument otherwise. Lookups share the fetch budget.
func (r *rateLimited) Describe(ctx context.Context, ticker string) (domain.Instrument, error) {
	d, ok := r.src.(Describer)
	if !ok {
		return domain.DefaultInstrument(ticker), nil
	}
	if err := r.rl.Wait(ctx); err != nil {
		return domain.DefaultInstrument(ticker), sourceErr(r.src.Name(), "waiting for rate limit", err)
	}
	return d.Describe(ctx, ticker)
}
