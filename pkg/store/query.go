package store

import (
	"fmt"
	"strings"
	"time"
)

// whereClause renders f as a WHERE clause. placeholder returns the bind
// marker for the n-th argument (1-based). timeArg converts the Since bound
// to the column's storage representation.
func whereClause(f Filter, placeholder func(n int) string, timeArg func(time.Time) any) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, placeholder(len(args))))
	}

	if f.Path != "" {
		add("path = %s", f.Path)
	}
	if f.Source != "" {
		add("source = %s", f.Source)
	}
	if !f.Since.IsZero() {
		add("published_at >= %s", timeArg(f.Since))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func limitClause(f Filter) string {
	if f.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", f.Limit)
}
