// Package builtins provides built-in strategy implementations that ship with
// tickerlab.
package builtins

import (
	"fmt"
	"math"

	"tickerlab/internal/domain"
	"tickerlab/internal/strategy"
)

// Compile-time interface checks.
var (
	_ strategy.Strategy  = (*SMACross)(nil)
	_ strategy.Validator = (*SMACross)(nil)
	_ strategy.Warmer    = (*SMACross)(nil)
)

// SMACrossName is the registry name of SMACross.
const SMACrossName = "sma-cross"

// SMACross implements a dual simple moving average crossover. It enters
// when the fast average moves above the slow one and exits when it falls
// below.
type SMACross struct {
	Fast int
	Slow int
}

// NewSMACross creates a new SMACross strategy with the given fast and slow
// window lengths.
func NewSMACross(fast, slow int) *SMACross {
	return &SMACross{Fast: fast, Slow: slow}
}

// Register adds the built-in strategies to r.
func Register(r *strategy.Registry) {
	r.Register(SMACrossName, func(p map[string]int) (strategy.Strategy, error) {
		s := NewSMACross(p["fast"], p["slow"])
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Name returns "sma-cross".
func (s *SMACross) Name() string { return SMACrossName }

// Params renders the windows as a small JSON object.
func (s *SMACross) Params() string {
	return fmt.Sprintf(`{"fast":%d,"slow":%d}`, s.Fast, s.Slow)
}

// Validate requires 1 <= Fast < Slow.
func (s *SMACross) Validate() error {
	if s.Fast < 1 {
		return &domain.ValidationError{Field: "fast_window", Reason: fmt.Sprintf("must be at least 1, got %d", s.Fast)}
	}
	if s.Slow <= s.Fast {
		return &domain.ValidationError{
			Field:  "slow_window",
			Reason: fmt.Sprintf("must be greater than fast_window (%d), got %d", s.Fast, s.Slow),
		}
	}
	return nil
}

// Warmup returns the slow window length.
func (s *SMACross) Warmup() int { return s.Slow }

// Signals evaluates the crossover on closing prices.
//
// Until both averages are defined the fast-above-slow regime counts as
// false, so the first bar with both averages defined already enters when
// fast > slow there. An exit needs fast >= slow on the previous bar and
// fast < slow on the current one.
func (s *SMACross) Signals(bars []domain.Bar) []strategy.Signal {
	closes := domain.ClosePrices(bars)
	fast := SMA(closes, s.Fast)
	slow := SMA(closes, s.Slow)

	out := make([]strategy.Signal, len(bars))
	above := func(i int) bool {
		return defined(fast[i], slow[i]) && fast[i] > slow[i]
	}
	for i := 1; i < len(bars); i++ {
		switch {
		case !above(i-1) && above(i):
			out[i] = strategy.Enter
		case defined(fast[i-1], slow[i-1]) && defined(fast[i], slow[i]) &&
			fast[i-1] >= slow[i-1] && fast[i] < slow[i]:
			out[i] = strategy.Exit
		}
	}
	return out
}

func defined(a, b float64) bool {
	return !math.IsNaN(a) && !math.IsNaN(b)
}

// SMA returns the simple moving average of values over window. Entries
// before the window fills are NaN.
func SMA(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i+1 < window {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(window)
	}
	return out
}
