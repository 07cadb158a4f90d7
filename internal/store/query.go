package store

import (
	"fmt"
	"strings"
)

// Op is a predicate operator understood by every backend
type Op string

const (
	OpEq    Op = "eq"
	OpIn    Op = "in"
	OpGte   Op = "gte"
	OpLte   Op = "lte"
	OpILike Op = "ilike"
)

// Predicate restricts rows of a query. Column may be a dotted relation path
// such as "project.end_customer.client_id", resolved through Resolve.
type Predicate struct {
	Column string
	Op     Op
	Value  any
}

// Order is a single ORDER BY term
type Order struct {
	Column    string
	Ascending bool
}

// Query describes a read against one table of the backend.
// All predicates in Filters are ANDed; AnyOf, when set, is one ORed group.
type Query struct {
	Table        string
	Columns      []string
	Filters      []Predicate
	AnyOf        []Predicate
	Orders       []Order
	MaxRows      int
	ExpectSingle bool
}

// From starts a query on table
func From(table string) *Query {
	return &Query{Table: table}
}

// Select sets the projected columns. No columns means all columns.
func (q *Query) Select(columns ...string) *Query {
	q.Columns = append(q.Columns, columns...)
	return q
}

// Eq adds column = value
func (q *Query) Eq(column string, value any) *Query {
	q.Filters = append(q.Filters, Predicate{Column: column, Op: OpEq, Value: value})
	return q
}

// In adds column IN (values...)
func (q *Query) In(column string, values []any) *Query {
	q.Filters = append(q.Filters, Predicate{Column: column, Op: OpIn, Value: values})
	return q
}

// Gte adds column >= value
func (q *Query) Gte(column string, value any) *Query {
	q.Filters = append(q.Filters, Predicate{Column: column, Op: OpGte, Value: value})
	return q
}

// Lte adds column <= value
func (q *Query) Lte(column string, value any) *Query {
	q.Filters = append(q.Filters, Predicate{Column: column, Op: OpLte, Value: value})
	return q
}

// ILike adds a case-insensitive pattern match
func (q *Query) ILike(column, pattern string) *Query {
	q.Filters = append(q.Filters, Predicate{Column: column, Op: OpILike, Value: pattern})
	return q
}

// Or sets the ORed predicate group
func (q *Query) Or(preds ...Predicate) *Query {
	q.AnyOf = append(q.AnyOf, preds...)
	return q
}

// OrderBy appends an ordering term
func (q *Query) OrderBy(column string, ascending bool) *Query {
	q.Orders = append(q.Orders, Order{Column: column, Ascending: ascending})
	return q
}

// Limit caps the number of returned rows
func (q *Query) Limit(n int) *Query {
	q.MaxRows = n
	return q
}

// Single asserts the query yields exactly one row
func (q *Query) Single() *Query {
	q.ExpectSingle = true
	return q
}

// Clone returns a deep copy so role scoping never mutates a shared base query
func (q *Query) Clone() *Query {
	c := *q
	c.Columns = append([]string(nil), q.Columns...)
	c.Filters = append([]Predicate(nil), q.Filters...)
	c.AnyOf = append([]Predicate(nil), q.AnyOf...)
	c.Orders = append([]Order(nil), q.Orders...)
	return &c
}

// ILikeOf builds a pattern predicate for use in Or
func ILikeOf(column, pattern string) Predicate {
	return Predicate{Column: column, Op: OpILike, Value: pattern}
}

// Values converts a typed slice into the []any form In expects
func Values[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// Contains builds a "%term%" pattern with LIKE wildcards in term escaped
func Contains(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// Validate checks the query is well formed before a backend compiles it
func (q *Query) Validate() error {
	if !IsIdentifier(q.Table) {
		return fmt.Errorf("invalid table name %q", q.Table)
	}
	for _, c := range q.Columns {
		if c != "*" && !IsIdentifier(c) {
			return fmt.Errorf("invalid column %q", c)
		}
	}
	for _, p := range append(append([]Predicate(nil), q.Filters...), q.AnyOf...) {
		if _, _, err := Resolve(q.Table, p.Column); err != nil {
			return err
		}
		switch p.Op {
		case OpEq, OpGte, OpLte:
		case OpIn:
			if _, ok := p.Value.([]any); !ok {
				return fmt.Errorf("predicate %s: in requires []any, got %T", p.Column, p.Value)
			}
		case OpILike:
			if _, ok := p.Value.(string); !ok {
				return fmt.Errorf("predicate %s: ilike requires a string pattern", p.Column)
			}
		default:
			return fmt.Errorf("predicate %s: unknown operator %q", p.Column, p.Op)
		}
	}
	for _, o := range q.Orders {
		if !IsIdentifier(o.Column) {
			return fmt.Errorf("invalid order column %q", o.Column)
		}
	}
	if q.MaxRows < 0 {
		return fmt.Errorf("negative limit %d", q.MaxRows)
	}
	return nil
}

// IsIdentifier reports whether s is a plain lower-case SQL identifier
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
