package repository

import (
	"time"

	"github.com/jmoiron/sqlx"
)

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx, so writes can join a
// caller's transaction.
type Queryer = sqlx.ExtContext

// Now is the timestamp format stored in every created_at/updated_at column.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// likePattern builds a case-insensitive substring pattern for a LIKE
// clause, escaping the LIKE wildcards with a backslash.
func likePattern(q string) string {
	out := make([]rune, 0, len(q)+2)
	out = append(out, '%')
	for _, r := range q {
		switch r {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(append(out, '%'))
}
