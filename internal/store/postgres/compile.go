package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/septivank/asset-tracker/internal/store"
)

const rootAlias = "t"

type compiler struct {
	args  []any
	paths int
}

// Compile turns a query into SQL returning one jsonb row object per result row
func Compile(q *store.Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	c := &compiler{}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(projection(q.Columns))
	sb.WriteString(" FROM ")
	sb.WriteString(ident(q.Table))
	sb.WriteString(" " + rootAlias)

	var conds []string
	for _, p := range q.Filters {
		cond, err := c.predicate(q.Table, p)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
	}
	if len(q.AnyOf) > 0 {
		ors := make([]string, 0, len(q.AnyOf))
		for _, p := range q.AnyOf {
			cond, err := c.predicate(q.Table, p)
			if err != nil {
				return "", nil, err
			}
			ors = append(ors, cond)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	if len(q.Orders) > 0 {
		terms := make([]string, 0, len(q.Orders))
		for _, o := range q.Orders {
			dir := "DESC"
			if o.Ascending {
				dir = "ASC"
			}
			terms = append(terms, column(rootAlias, o.Column)+" "+dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(terms, ", "))
	}

	limit := q.MaxRows
	if q.ExpectSingle && (limit == 0 || limit > 2) {
		// two rows are enough to detect a violated single-row assertion
		limit = 2
	}
	if limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	}

	return sb.String(), c.args, nil
}

func projection(columns []string) string {
	if len(columns) == 0 || (len(columns) == 1 && columns[0] == "*") {
		return "to_jsonb(" + rootAlias + ")"
	}
	pairs := make([]string, 0, len(columns))
	for _, col := range columns {
		pairs = append(pairs, fmt.Sprintf("'%s', %s", col, column(rootAlias, col)))
	}
	return "jsonb_build_object(" + strings.Join(pairs, ", ") + ")"
}

// predicate renders p, following relation hops as nested IN subqueries
func (c *compiler) predicate(table string, p store.Predicate) (string, error) {
	hops, col, err := store.Resolve(table, p.Column)
	if err != nil {
		return "", err
	}
	c.paths++
	alias := func(i int) string {
		if i == 0 {
			return rootAlias
		}
		return fmt.Sprintf("r%d_%d", c.paths, i)
	}

	cond, err := c.leaf(alias(len(hops)), col, p)
	if err != nil {
		return "", err
	}
	for i := len(hops) - 1; i >= 0; i-- {
		h := hops[i]
		cond = fmt.Sprintf("%s IN (SELECT %s FROM %s %s WHERE %s)",
			column(alias(i), h.LocalKey),
			column(alias(i+1), h.ForeignKey),
			ident(h.Table), alias(i+1),
			cond,
		)
	}
	return cond, nil
}

func (c *compiler) leaf(alias, col string, p store.Predicate) (string, error) {
	target := column(alias, col)
	switch p.Op {
	case store.OpEq:
		return target + " = " + c.bind(p.Value), nil
	case store.OpGte:
		return target + " >= " + c.bind(p.Value), nil
	case store.OpLte:
		return target + " <= " + c.bind(p.Value), nil
	case store.OpILike:
		return target + "::text ILIKE " + c.bind(p.Value), nil
	case store.OpIn:
		values := p.Value.([]any)
		if len(values) == 0 {
			return "FALSE", nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = c.bind(v)
		}
		return target + " IN (" + strings.Join(placeholders, ", ") + ")", nil
	}
	return "", fmt.Errorf("unsupported operator %q", p.Op)
}

func (c *compiler) bind(v any) string {
	c.args = append(c.args, v)
	return fmt.Sprintf("$%d", len(c.args))
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func column(alias, name string) string {
	return alias + "." + ident(name)
}
