package pg

import (
	"fmt"
	"strings"

	"relaycrm.org/internal/scope"
)

// fieldColumns maps predicate fields to the SQL expressions of one query.
// Fields absent from the map have no column on that table and can never match.
type fieldColumns map[scope.Field]string

// predicateSQL renders a row filter as a where-clause fragment. The clause is
// always non-empty so callers can interpolate it unconditionally; argIdx is
// the first free placeholder number and the updated value is returned.
func predicateSQL(p scope.Predicate, cols fieldColumns, argIdx int) (string, []any, int) {
	if p.All {
		return "true", nil, argIdx
	}
	if p.None || len(p.Any) == 0 {
		return "false", nil, argIdx
	}

	var (
		parts []string
		args  []any
	)
	for _, c := range p.Any {
		col, ok := cols[c.Field]
		if !ok {
			continue
		}
		switch {
		case c.Equals != "":
			parts = append(parts, fmt.Sprintf("%s = $%d", col, argIdx))
			args = append(args, c.Equals)
			argIdx++
		case len(c.In) > 0:
			placeholders := make([]string, 0, len(c.In))
			for _, v := range c.In {
				placeholders = append(placeholders, fmt.Sprintf("$%d", argIdx))
				args = append(args, v)
				argIdx++
			}
			parts = append(parts, fmt.Sprintf("%s in (%s)", col, strings.Join(placeholders, ", ")))
		}
	}
	if len(parts) == 0 {
		return "false", nil, argIdx
	}
	return "(" + strings.Join(parts, " or ") + ")", args, argIdx
}
