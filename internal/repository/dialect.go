package repository

import (
	"strconv"
	"strings"
)

// dialect captures the SQL differences between the supported backends.
type dialect struct {
	name string

	// rowLocks enables SELECT ... FOR UPDATE inside a unit of work.
	// SQLite serializes writers at BEGIN IMMEDIATE instead.
	rowLocks bool

	// numbered placeholders ($1, $2, ...) instead of ?.
	numbered bool

	// upsertGame is the dialect-specific insert-or-update statement for games.
	upsertGame string

	// isUniqueViolation reports whether err is a primary/unique key conflict.
	isUniqueViolation func(err error) bool
}

// rebind rewrites ? placeholders for dialects that use numbered parameters.
func (d *dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// lockClause returns the row lock suffix for reads inside a unit of work.
func (d *dialect) lockClause(inTx bool) string {
	if inTx && d.rowLocks {
		return " FOR UPDATE"
	}
	return ""
}
