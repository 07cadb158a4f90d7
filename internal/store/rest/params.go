package rest

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/septivank/asset-tracker/internal/store"
)

// embed is one node of the resource-embedding tree needed by relation filters
type embed struct {
	rel      store.Relation
	columns  map[string]bool
	children map[string]*embed
}

func newEmbed(rel store.Relation) *embed {
	return &embed{rel: rel, columns: map[string]bool{}, children: map[string]*embed{}}
}

// compileParams renders q as PostgREST query parameters
func compileParams(q *store.Query) (url.Values, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	params := url.Values{}
	roots := map[string]*embed{}

	for _, p := range q.Filters {
		hops, col, err := store.Resolve(q.Table, p.Column)
		if err != nil {
			return nil, err
		}
		if len(hops) > 0 {
			addEmbed(roots, hops, col)
		}
		value, err := operand(p, false)
		if err != nil {
			return nil, err
		}
		params.Add(p.Column, value)
	}

	if len(q.AnyOf) > 0 {
		terms := make([]string, 0, len(q.AnyOf))
		for _, p := range q.AnyOf {
			value, err := operand(p, true)
			if err != nil {
				return nil, err
			}
			terms = append(terms, p.Column+"."+value)
		}
		params.Set("or", "("+strings.Join(terms, ",")+")")
	}

	params.Set("select", selectList(q.Columns, roots))

	if len(q.Orders) > 0 {
		terms := make([]string, 0, len(q.Orders))
		for _, o := range q.Orders {
			dir := "desc"
			if o.Ascending {
				dir = "asc"
			}
			terms = append(terms, o.Column+"."+dir)
		}
		params.Set("order", strings.Join(terms, ","))
	}
	if q.MaxRows > 0 {
		params.Set("limit", strconv.Itoa(q.MaxRows))
	}
	return params, nil
}

func addEmbed(roots map[string]*embed, hops []store.Relation, col string) {
	level := roots
	var node *embed
	for _, h := range hops {
		next, ok := level[h.Name]
		if !ok {
			next = newEmbed(h)
			level[h.Name] = next
		}
		node = next
		level = next.children
	}
	node.columns[col] = true
}

func selectList(columns []string, roots map[string]*embed) string {
	items := []string{"*"}
	if len(columns) > 0 {
		items = append([]string(nil), columns...)
	}
	return strings.Join(append(items, renderEmbeds(roots)...), ",")
}

func renderEmbeds(level map[string]*embed) []string {
	names := make([]string, 0, len(level))
	for name := range level {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		node := level[name]
		var inner []string
		for col := range node.columns {
			inner = append(inner, col)
		}
		sort.Strings(inner)
		inner = append(inner, renderEmbeds(node.children)...)
		out = append(out, fmt.Sprintf("%s:%s!inner(%s)", name, node.rel.Table, strings.Join(inner, ",")))
	}
	return out
}

// operand renders the right-hand side of a filter. Values inside list or
// logical-group syntax are quoted; top-level values are taken literally.
func operand(p store.Predicate, nested bool) (string, error) {
	switch p.Op {
	case store.OpEq, store.OpGte, store.OpLte, store.OpILike:
		value := format(p.Value)
		if nested {
			value = quote(value)
		}
		return string(p.Op) + "." + value, nil
	case store.OpIn:
		values := p.Value.([]any)
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = quote(format(v))
		}
		return "in.(" + strings.Join(parts, ",") + ")", nil
	}
	return "", fmt.Errorf("unsupported operator %q", p.Op)
}

func format(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// quote wraps values containing PostgREST reserved characters in double quotes
func quote(s string) string {
	if !strings.ContainsAny(s, `,.:()" `) {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
