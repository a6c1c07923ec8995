package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tickerlab/internal/domain"
)

// ---------------------------------------------------------------------------
// InstrumentStore implementation
// ---------------------------------------------------------------------------

// EnsureInstrument inserts the instrument unless a row for the ticker exists.
func (s *SQLStore) EnsureInstrument(ctx context.Context, inst domain.Instrument) error {
	if inst.Ticker == "" {
		return &domain.ValidationError{Field: "ticker", Reason: "empty ticker"}
	}
	if inst.DisplayName == "" {
		inst.DisplayName = inst.Ticker
	}
	if inst.AssetClass == "" {
		inst.AssetClass = domain.AssetClassStock
	}
	if _, err := domain.ParseAssetClass(string(inst.AssetClass)); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO instrument (ticker, display_name, industry, asset_class)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (ticker) DO NOTHING`),
		inst.Ticker, inst.DisplayName, nullString(inst.Industry), string(inst.AssetClass))
	if err != nil {
		return storageErr("ensuring instrument "+inst.Ticker, err)
	}
	return nil
}

// GetInstrument returns the instrument for ticker.
func (s *SQLStore) GetInstrument(ctx context.Context, ticker string) (*domain.Instrument, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT ticker, display_name, industry, asset_class, created_at
		FROM instrument WHERE ticker = ?`), ticker)

	inst, err := scanInstrument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("instrument %s: %w", ticker, domain.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("reading instrument "+ticker, err)
	}
	return inst, nil
}

// ListInstruments returns every instrument ordered by ticker.
func (s *SQLStore) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, display_name, industry, asset_class, created_at
		FROM instrument ORDER BY ticker`)
	if err != nil {
		return nil, storageErr("listing instruments", err)
	}
	defer rows.Close()

	var out []domain.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, storageErr("scanning instrument", err)
		}
		out = append(out, *inst)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("listing instruments", err)
	}
	return out, nil
}

// DeleteInstrument removes the instrument. Bars and backtest runs go with it
// through ON DELETE CASCADE.
func (s *SQLStore) DeleteInstrument(ctx context.Context, ticker string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM instrument WHERE ticker = ?`), ticker)
	if err != nil {
		return storageErr("deleting instrument "+ticker, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("deleting instrument "+ticker, err)
	}
	if n == 0 {
		return fmt.Errorf("instrument %s: %w", ticker, domain.ErrNotFound)
	}
	s.log.Info("deleted instrument", "ticker", ticker)
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstrument(r rowScanner) (*domain.Instrument, error) {
	var (
		inst     domain.Instrument
		industry sql.NullString
		class    string
	)
	if err := r.Scan(&inst.Ticker, &inst.DisplayName, &industry, &class, timeValue{&inst.CreatedAt}); err != nil {
		return nil, err
	}
	inst.Industry = industry.String
	inst.AssetClass = domain.AssetClass(class)
	return &inst, nil
}
