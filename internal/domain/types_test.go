package domain

import (
	"errors"
	"testing"
	"time"
)

func TestTypesExist(t *testing.T) {
	// Verify Bar can be instantiated with zero values.
	bar := Bar{}
	if bar.Ticker != "" {
		t.Error("expected empty Ticker for zero-value Bar")
	}
	if !bar.Date.IsZero() {
		t.Error("expected zero Date for zero-value Bar")
	}
	if !bar.Open.IsZero() || !bar.High.IsZero() || !bar.Low.IsZero() || !bar.Close.IsZero() {
		t.Error("expected zero OHLC values for zero-value Bar")
	}
	if bar.TimeOfDay() != "00:00:00" {
		t.Errorf("zero-value TimeOfDay = %q, want midnight", bar.TimeOfDay())
	}

	// Verify enum constants are defined correctly.
	if AssetClassStock != "stock" {
		t.Errorf("AssetClassStock = %q, want %q", AssetClassStock, "stock")
	}
	if TimeframeDaily != "daily" || TimeframeWeekly != "weekly" || TimeframeMonthly != "monthly" {
		t.Error("Timeframe constants have unexpected values")
	}

	inst := DefaultInstrument("AAPL")
	if inst.DisplayName != "AAPL" || inst.AssetClass != AssetClassStock {
		t.Errorf("DefaultInstrument = %+v, want display name AAPL and class stock", inst)
	}
}

func TestBarKey(t *testing.T) {
	d := time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC)
	b := NewBar("AAPL", d, TimeframeDaily, 185.1234567, 186, 184, 185.5, 1000)

	k := b.Key()
	want := BarKey{Ticker: "AAPL", Date: "2024-01-02", Time: "00:00:00", Timeframe: TimeframeDaily}
	if k != want {
		t.Errorf("Key() = %+v, want %+v", k, want)
	}
	if got := b.Open.String(); got != "185.123457" {
		t.Errorf("Open = %s, want 185.123457", got)
	}
	if !b.Timestamp().Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Timestamp() = %v, want midnight", b.Timestamp())
	}
}

func TestBarValidate(t *testing.T) {
	good := NewBar("AAPL", time.Now(), TimeframeDaily, 1, 1, 1, 1, 0)
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate returned unexpected error: %v", err)
	}

	bad := good
	bad.Volume = -1
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("negative volume: err = %v, want ErrValidation", err)
	}

	bad = good
	bad.Time = "25:99"
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("bad time: err = %v, want ErrValidation", err)
	}
}

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in   string
		want Timeframe
		ppy  float64
	}{
		{"", TimeframeDaily, 252},
		{"Daily", TimeframeDaily, 252},
		{"1wk", TimeframeWeekly, 52},
		{"monthly", TimeframeMonthly, 12},
	}
	for _, tt := range tests {
		got, err := ParseTimeframe(tt.in)
		if err != nil {
			t.Fatalf("ParseTimeframe(%q) returned error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseTimeframe(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if got.PeriodsPerYear() != tt.ppy {
			t.Errorf("%s.PeriodsPerYear() = %v, want %v", got, got.PeriodsPerYear(), tt.ppy)
		}
	}

	if _, err := ParseTimeframe("hourly"); !errors.Is(err, ErrValidation) {
		t.Errorf("ParseTimeframe(hourly) err = %v, want ErrValidation", err)
	}
}

func TestNewQuery(t *testing.T) {
	q, err := NewQuery("AAPL", "2024-01-01", "2024-12-31", "daily")
	if err != nil {
		t.Fatalf("NewQuery returned unexpected error: %v", err)
	}
	if q.Ticker != "AAPL" || q.Timeframe != TimeframeDaily {
		t.Errorf("NewQuery = %+v", q)
	}
	if !q.Contains(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("Contains should include a date inside the range")
	}
	if q.Contains(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("Contains should exclude a date after the range")
	}
}

func TestQueryValidate(t *testing.T) {
	tests := []struct {
		name                   string
		ticker, start, end, tf string
	}{
		{"empty ticker", "", "2024-01-01", "2024-02-01", "daily"},
		{"lowercase ticker", "aapl", "2024-01-01", "2024-02-01", "daily"},
		{"long ticker", "ABCDEF", "2024-01-01", "2024-02-01", "daily"},
		{"end before start", "AAPL", "2024-02-01", "2024-01-01", "daily"},
		{"bad date", "AAPL", "01/01/2024", "2024-02-01", "daily"},
		{"bad timeframe", "AAPL", "2024-01-01", "2024-02-01", "hourly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewQuery(tt.ticker, tt.start, tt.end, tt.tf)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestErrorTaxonomy(t *testing.T) {
	dup := &DuplicateDataError{Keys: []BarKey{{Ticker: "AAPL", Date: "2024-01-02", Time: "00:00:00", Timeframe: TimeframeDaily}}}
	if !errors.Is(dup, ErrDuplicateData) {
		t.Error("DuplicateDataError should match ErrDuplicateData")
	}
	short := &InsufficientDataError{Bars: 3, Required: 20}
	if !errors.Is(short, ErrInsufficientData) {
		t.Error("InsufficientDataError should match ErrInsufficientData")
	}
	var ve *ValidationError
	if _, err := ParseAssetClass("bond"); !errors.As(err, &ve) || ve.Field != "asset_class" {
		t.Errorf("ParseAssetClass(bond) err = %v, want asset_class ValidationError", err)
	}
}

func TestNullDuration(t *testing.T) {
	var n NullDuration
	if err := n.Scan(int64(86400)); err != nil {
		t.Fatalf("Scan returned unexpected error: %v", err)
	}
	if !n.Valid || n.Duration != 24*time.Hour {
		t.Errorf("Scan(86400) = %+v, want 24h", n)
	}
	v, err := n.Value()
	if err != nil {
		t.Fatalf("Value returned unexpected error: %v", err)
	}
	if v != int64(86400) {
		t.Errorf("Value() = %v, want 86400", v)
	}

	if err := n.Scan(nil); err != nil || n.Valid {
		t.Errorf("Scan(nil) = %+v, %v; want invalid", n, err)
	}
}
