// AngelaMos | 2026
// sql.go

package resource

import (
	"fmt"
	"strings"

	"github.com/carterperez-dev/cinemadb/internal/core"
)

// Filter is a WHERE clause with its positional arguments. Columns come from
// the descriptor, values are always bound.
type Filter struct {
	Where string
	Args  []any
}

// NextArg is the placeholder index following the filter's arguments.
func (f Filter) NextArg() int {
	return len(f.Args) + 1
}

func BuildFilter(d Descriptor, q ListQuery) Filter {
	var (
		conditions []string
		args       []any
	)

	if q.Active != nil {
		args = append(args, *q.Active)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}

	if q.Search != "" && len(d.Searchable) > 0 {
		args = append(args, "%"+core.EscapeLike(q.Search)+"%")
		idx := len(args)

		ors := make([]string, 0, len(d.Searchable))
		for _, col := range d.Searchable {
			ors = append(ors, fmt.Sprintf("%s ILIKE $%d", col, idx))
		}
		conditions = append(conditions, "("+strings.Join(ors, " OR ")+")")
	}

	if len(conditions) == 0 {
		return Filter{Where: "TRUE"}
	}
	return Filter{Where: strings.Join(conditions, " AND "), Args: args}
}

// OrderClause renders ORDER BY for a validated column with id as the tie
// breaker so pages are stable.
func OrderClause(d Descriptor, q ListQuery) string {
	col := d.OrderBy(q.Order)
	if col == "" || col == "id" {
		return "id ASC"
	}
	return col + " ASC, id ASC"
}
