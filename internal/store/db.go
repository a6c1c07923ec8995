package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"tickerlab/internal/config"
	"tickerlab/internal/domain"
)

// Compile-time interface checks.
var _ Store = (*SQLStore)(nil)

// dialect captures the differences between the supported databases.
type dialect struct {
	name              string
	driver            string
	schema            []string
	rebind            func(string) string
	date              func(time.Time) any
	stamp             func(time.Time) any
	isUniqueViolation func(error) bool
}

// SQLStore implements Store on database/sql, backed by SQLite (modernc) or
// PostgreSQL (pgx).
type SQLStore struct {
	db  *sql.DB
	d   *dialect
	log *slog.Logger
}

// Open connects to the database described by cfg, verifies the connection
// and applies the schema. Schema creation is idempotent.
func Open(ctx context.Context, cfg config.Storage) (*SQLStore, error) {
	var (
		d   *dialect
		dsn string
	)
	switch cfg.Driver {
	case "", "sqlite":
		d = sqliteDialect
		path := cfg.DSN
		if path == "" {
			path = cfg.SQLitePath
		}
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("%w: creating %s: %w", domain.ErrStorage, dir, err)
			}
		}
		dsn = sqliteDSN(path)
	case "postgres":
		d = postgresDialect
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", domain.ErrStorage, cfg.Driver)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s database: %w", domain.ErrStorage, d.name, err)
	}
	if d == sqliteDialect {
		// One writer at a time; avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}

	s := &SQLStore{
		db:  db,
		d:   d,
		log: slog.Default().With("component", "store", "driver", d.name),
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: connecting to %s database: %w", domain.ErrStorage, d.name, err)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenSQLite is a convenience wrapper for a SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	return Open(ctx, config.Storage{Driver: "sqlite", SQLitePath: path})
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Dialect returns the name of the database dialect in use.
func (s *SQLStore) Dialect() string {
	return s.d.name
}

func (s *SQLStore) migrate(ctx context.Context) error {
	return s.withTx(ctx, "applying schema", func(tx *sql.Tx) error {
		for _, stmt := range s.d.schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// withTx runs fn inside a transaction. The transaction is rolled back on any
// error or panic and committed otherwise. Errors come back wrapped in
// domain.ErrStorage with op as context.
func (s *SQLStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return storageErr(op, err)
	}
	if err = tx.Commit(); err != nil {
		return storageErr(op, err)
	}
	return nil
}

func (s *SQLStore) q(query string) string {
	return s.d.rebind(query)
}

// storageErr wraps err in domain.ErrStorage unless it already is one.
func storageErr(op string, err error) error {
	if errors.Is(err, domain.ErrStorage) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}

// ---------------------------------------------------------------------------
// Value conversion helpers
// ---------------------------------------------------------------------------

// decimalArg renders a price with exactly domain.PriceScale digits.
func decimalArg(d decimal.Decimal) any {
	return d.StringFixed(domain.PriceScale)
}

// nullDecimalArg renders a nullable statistic, keeping its own scale.
func nullDecimalArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func nullDurationArg(n domain.NullDuration) any {
	v, _ := n.Value()
	return v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// timeValue scans DATE, TIMESTAMP and their TEXT renderings into a
// time.Time in UTC.
type timeValue struct {
	t *time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	domain.DateLayout,
}

func (v timeValue) Scan(src any) error {
	switch x := src.(type) {
	case nil:
		*v.t = time.Time{}
		return nil
	case time.Time:
		*v.t = x.UTC()
		return nil
	case []byte:
		return v.parse(string(x))
	case string:
		return v.parse(x)
	}
	return fmt.Errorf("scanning time: unsupported type %T", src)
}

func (v timeValue) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*v.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("scanning time: unrecognised value %q", s)
}

// combine joins a calendar date and an "HH:MM:SS" time of day.
func combine(date time.Time, tod string) time.Time {
	t, err := time.Parse(domain.TimeLayout, tod)
	if err != nil {
		return date
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
