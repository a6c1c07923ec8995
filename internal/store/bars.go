package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tickerlab/internal/domain"
)

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// ReadBars returns stored bars for (ticker, timeframe) with bar_date within
// the query range, ordered by bar_date then bar_time.
func (s *SQLStore) ReadBars(ctx context.Context, q domain.Query) ([]domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT ticker, bar_date, bar_time, timeframe,
		       open_price, high_price, low_price, close_price, volume
		FROM bar
		WHERE ticker = ? AND timeframe = ? AND bar_date >= ? AND bar_date <= ?
		ORDER BY bar_date, bar_time`),
		q.Ticker, string(q.Timeframe), s.d.date(q.Start), s.d.date(q.End))
	if err != nil {
		return nil, storageErr("reading bars for "+q.String(), err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var (
			b  domain.Bar
			tf string
		)
		if err := rows.Scan(&b.Ticker, timeValue{&b.Date}, &b.Time, &tf,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, storageErr("scanning bar", err)
		}
		b.Timeframe = domain.Timeframe(tf)
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("reading bars for "+q.String(), err)
	}
	return bars, nil
}

// ExistingKeys returns the set of stored bar keys for ticker and timeframe.
func (s *SQLStore) ExistingKeys(ctx context.Context, ticker string, tf domain.Timeframe) (map[domain.BarKey]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT bar_date, bar_time FROM bar WHERE ticker = ? AND timeframe = ?`),
		ticker, string(tf))
	if err != nil {
		return nil, storageErr(fmt.Sprintf("listing keys for %s/%s", ticker, tf), err)
	}
	defer rows.Close()

	keys := make(map[domain.BarKey]struct{})
	for rows.Next() {
		var (
			date time.Time
			tod  string
		)
		if err := rows.Scan(timeValue{&date}, &tod); err != nil {
			return nil, storageErr("scanning bar key", err)
		}
		keys[domain.BarKey{
			Ticker:    ticker,
			Date:      date.Format(domain.DateLayout),
			Time:      tod,
			Timeframe: tf,
		}] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(fmt.Sprintf("listing keys for %s/%s", ticker, tf), err)
	}
	return keys, nil
}

// InsertBars inserts the batch in a single transaction. Conflicting keys are
// skipped by the database and collected into a *domain.DuplicateDataError;
// the rest of the batch still commits.
func (s *SQLStore) InsertBars(ctx context.Context, bars []domain.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			return 0, fmt.Errorf("bar %s: %w", b.Key(), err)
		}
	}

	var (
		inserted int
		skipped  []domain.BarKey
	)
	err := s.withTx(ctx, fmt.Sprintf("inserting %d bars", len(bars)), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.q(`
			INSERT INTO bar (ticker, bar_date, bar_time, timeframe,
			                 open_price, high_price, low_price, close_price, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (ticker, bar_date, bar_time, timeframe) DO NOTHING`))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, b := range bars {
			res, err := stmt.ExecContext(ctx,
				b.Ticker, s.d.date(b.Date), b.TimeOfDay(), string(b.Timeframe),
				decimalArg(b.Open), decimalArg(b.High), decimalArg(b.Low), decimalArg(b.Close),
				b.Volume)
			if err != nil {
				if s.d.isUniqueViolation(err) {
					skipped = append(skipped, b.Key())
					continue
				}
				return fmt.Errorf("bar %s: %w", b.Key(), err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				skipped = append(skipped, b.Key())
				continue
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(skipped) > 0 {
		s.log.Debug("skipped duplicate bars", "count", len(skipped), "inserted", inserted)
		return inserted, &domain.DuplicateDataError{Keys: skipped}
	}
	return inserted, nil
}

// CountBars returns the number of stored bars for ticker and timeframe.
func (s *SQLStore) CountBars(ctx context.Context, ticker string, tf domain.Timeframe) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM bar WHERE ticker = ? AND timeframe = ?`),
		ticker, string(tf)).Scan(&n)
	if err != nil {
		return 0, storageErr(fmt.Sprintf("counting bars for %s/%s", ticker, tf), err)
	}
	return n, nil
}
