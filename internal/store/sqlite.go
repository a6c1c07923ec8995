package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite "modernc.org/sqlite" // Pure-Go SQLite driver.
	sqlite3 "modernc.org/sqlite/lib"

	"tickerlab/internal/domain"
)

// sqliteDialect stores dates, times and decimals as TEXT. ISO dates sort
// lexically, so range filters on bar_date stay index-friendly.
var sqliteDialect = &dialect{
	name:   "sqlite",
	driver: "sqlite",
	schema: sqliteSchema,
	rebind: func(q string) string { return q },
	date:   func(t time.Time) any { return t.Format(domain.DateLayout) },
	stamp:  func(t time.Time) any { return t.UTC().Format(time.RFC3339) },
	isUniqueViolation: func(err error) bool {
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	},
}

// sqliteDSN turns a database path into a modernc DSN with foreign keys
// enforced on every pooled connection. A value already starting with
// "file:" is extended rather than replaced.
func sqliteDSN(path string) string {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn, sep)
}
