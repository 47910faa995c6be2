package source

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/gridkit/internal/grid"
)

// pgQuery is a built count/select pair sharing one WHERE clause.
type pgQuery struct {
	count string
	sel   string
	args  []any
	page  int
	size  int
}

// selArgs appends the LIMIT and OFFSET arguments.
func (q pgQuery) selArgs() []any {
	out := append([]any(nil), q.args...)
	return append(out, q.size, (q.page-1)*q.size)
}

// whereBuilder accumulates AND-ed conditions with positional arguments.
type whereBuilder struct {
	conds []string
	args  []any
}

// add appends cond, replacing each ? with the next $n placeholder.
func (wb *whereBuilder) add(cond string, args ...any) {
	for _, a := range args {
		wb.args = append(wb.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(wb.args)), 1)
	}
	wb.conds = append(wb.conds, cond)
}

func (wb *whereBuilder) build() string {
	if len(wb.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(wb.conds, " AND ")
}

func (wb *whereBuilder) next() int { return len(wb.args) + 1 }

func (s *Postgres) buildQuery(p grid.Params) (pgQuery, error) {
	q := pgQuery{page: p.Pagination.Page, size: p.Pagination.PageSize}
	if q.page < 1 {
		q.page = 1
	}
	if q.size < 1 {
		q.size = grid.DefaultPageSize
	}

	var wb whereBuilder
	var errs grid.ValidationErrors
	for _, key := range sortedFilterKeys(p.Filters) {
		col, ok := s.lookup(key)
		if !ok {
			errs = append(errs, grid.ValidationError{Column: key, Message: "unknown column"})
			continue
		}
		addFilter(&wb, col, p.Filters[key])
	}
	if len(errs) > 0 {
		return q, errs
	}
	if search := strings.TrimSpace(p.Search); search != "" {
		cols := s.schema.Searchable()
		if len(cols) > 0 {
			ors := make([]string, len(cols))
			for i, c := range cols {
				ors[i] = quoteIdentifier(c) + "::text ILIKE ?"
			}
			// Every ? shares the same argument.
			cond := strings.ReplaceAll("("+strings.Join(ors, " OR ")+")", "?", fmt.Sprintf("$%d", wb.next()))
			wb.conds = append(wb.conds, cond)
			wb.args = append(wb.args, "%"+escapeLike(search)+"%")
		}
	}

	where := wb.build()
	table := quoteIdentifier(s.table)
	q.args = wb.args
	q.count = fmt.Sprintf("SELECT COUNT(*) FROM %s%s", table, where)

	var order []string
	for _, srt := range p.Sorting {
		if _, ok := s.lookup(srt.Field); !ok {
			continue
		}
		if srt.Direction == grid.Desc {
			order = append(order, quoteIdentifier(srt.Field)+" DESC NULLS LAST")
		} else {
			order = append(order, quoteIdentifier(srt.Field)+" ASC NULLS FIRST")
		}
	}
	// Stable paging needs a unique tiebreaker.
	order = append(order, quoteIdentifier(s.idCol)+" ASC")

	argIndex := wb.next()
	q.sel = fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT $%d OFFSET $%d",
		s.selectList(), table, where, strings.Join(order, ", "), argIndex, argIndex+1)
	return q, nil
}

func (s *Postgres) lookup(key string) (grid.ColumnDefinition, bool) {
	if s.schema.Len() == 0 {
		return grid.ColumnDefinition{Key: key, Type: grid.FieldText}, true
	}
	return s.schema.Column(key)
}

// addFilter translates one filter value the same way MatchFilter evaluates
// it in process.
func addFilter(wb *whereBuilder, col grid.ColumnDefinition, filter any) {
	c := quoteIdentifier(col.Key)
	switch f := filter.(type) {
	case nil:
	case grid.NumberRange:
		if f.Min != nil {
			wb.add(c+" >= ?", *f.Min)
		}
		if f.Max != nil {
			wb.add(c+" <= ?", *f.Max)
		}
	case *grid.NumberRange:
		if f != nil {
			addFilter(wb, col, *f)
		}
	case grid.DateRange:
		if f.From != nil {
			wb.add(c+" >= ?", *f.From)
		}
		if f.To != nil {
			wb.add(c+" < ?", inclusiveEnd(*f.To))
		}
	case *grid.DateRange:
		if f != nil {
			addFilter(wb, col, *f)
		}
	case []string, []any:
		want := grid.ToStrings(f)
		if len(want) == 0 {
			return
		}
		lower := make([]string, len(want))
		for i, w := range want {
			lower[i] = strings.ToLower(w)
		}
		if col.Type == grid.FieldMultiSelect {
			wb.add("EXISTS (SELECT 1 FROM unnest("+c+") AS v WHERE lower(v) = ANY(?))", lower)
			return
		}
		wb.add("lower("+c+"::text) = ANY(?)", lower)
	case bool:
		wb.add(c+" = ?", f)
	default:
		switch {
		case col.Type.Numeric():
			if v, ok := grid.ToFloat(f); ok {
				wb.add(c+" = ?", v)
			}
		case col.Type == grid.FieldMultiSelect:
			wb.add("EXISTS (SELECT 1 FROM unnest("+c+") AS v WHERE lower(v) = lower(?))", grid.Stringify(f))
		case col.Type == grid.FieldText, col.Type == grid.FieldEmail, col.Type == grid.FieldURL, col.Type == grid.FieldCustom:
			wb.add(c+"::text ILIKE ?", "%"+escapeLike(grid.Stringify(f))+"%")
		default:
			wb.add("lower("+c+"::text) = lower(?)", grid.Stringify(f))
		}
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func sortedFilterKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
