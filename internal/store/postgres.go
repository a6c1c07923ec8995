package store

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Registers the "pgx" database/sql driver.
)

// postgresDialect uses native DATE, TIMESTAMPTZ and NUMERIC columns. Queries
// are written with '?' placeholders and rebound to $n.
var postgresDialect = &dialect{
	name:   "postgres",
	driver: "pgx",
	schema: postgresSchema,
	rebind: rebindDollar,
	date:   func(t time.Time) any { return t.UTC() },
	stamp:  func(t time.Time) any { return t.UTC() },
	isUniqueViolation: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "23505"
	},
}

// rebindDollar replaces each '?' placeholder with $1, $2, ...
func rebindDollar(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 16)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}
