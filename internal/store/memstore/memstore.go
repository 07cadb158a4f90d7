// Package memstore is an in-memory implementation of store.Store. It
// evaluates the same query model as the SQL and REST backends, counts calls
// per table and can be told to fail, which makes fetcher and resolver
// properties testable without a database.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/septivank/asset-tracker/internal/store"
)

type row = map[string]any

// Store keeps rows per table as decoded JSON objects
type Store struct {
	mu       sync.Mutex
	tables   map[string][]row
	calls    map[string]int
	failures map[string]error
}

// New returns an empty store
func New() *Store {
	return &Store{
		tables:   map[string][]row{},
		calls:    map[string]int{},
		failures: map[string]error{},
	}
}

var _ store.Store = (*Store)(nil)

// Insert appends rows to table. Rows are encoded through JSON exactly as a
// backend would return them; a row that does not encode to an object panics.
func (s *Store) Insert(table string, rows ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		decoded, err := toRow(r)
		if err != nil {
			panic(fmt.Sprintf("memstore: %v", err))
		}
		s.tables[table] = append(s.tables[table], decoded)
	}
}

// FailOn makes every subsequent read of table return err
func (s *Store) FailOn(table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[table] = err
}

// Calls returns how many reads hit table
func (s *Store) Calls(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[table]
}

// TotalCalls returns the number of reads across all tables
func (s *Store) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Select evaluates q
func (s *Store) Select(ctx context.Context, q *store.Query) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[q.Table]++
	if err := s.failures[q.Table]; err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var out []row
	for _, r := range s.tables[q.Table] {
		if s.keep(q, r) {
			out = append(out, r)
		}
	}

	if len(q.Orders) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Orders {
				c := order(out[i][o.Column], out[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Ascending {
					return c < 0
				}
				return c > 0
			}
			return false
		})
	}
	if q.MaxRows > 0 && len(out) > q.MaxRows {
		out = out[:q.MaxRows]
	}

	projected := make([]row, len(out))
	for i, r := range out {
		projected[i] = project(r, q.Columns)
	}

	if q.ExpectSingle {
		switch len(projected) {
		case 0:
			return nil, store.ErrNotFound
		case 1:
			return json.Marshal(projected[0])
		default:
			return nil, store.ErrMultipleRows
		}
	}
	return json.Marshal(projected)
}

// Upsert replaces the columns of the row with the same id, or appends a new row
func (s *Store) Upsert(ctx context.Context, table string, r any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	decoded, err := toRow(r)
	if err != nil {
		return err
	}
	id, ok := decoded["id"]
	if !ok {
		return fmt.Errorf("%s row has no id", table)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures[table]; err != nil {
		return err
	}
	for _, existing := range s.tables[table] {
		if equal(existing["id"], id) {
			for k, v := range decoded {
				existing[k] = v
			}
			return nil
		}
	}
	s.tables[table] = append(s.tables[table], decoded)
	return nil
}

func (s *Store) keep(q *store.Query, r row) bool {
	for _, p := range q.Filters {
		if !s.match(q.Table, r, p) {
			return false
		}
	}
	if len(q.AnyOf) == 0 {
		return true
	}
	for _, p := range q.AnyOf {
		if s.match(q.Table, r, p) {
			return true
		}
	}
	return false
}

func (s *Store) match(table string, r row, p store.Predicate) bool {
	hops, col, err := store.Resolve(table, p.Column)
	if err != nil {
		return false
	}
	return s.follow(r, hops, col, p)
}

// follow walks relation hops; a path matches when any related row matches
func (s *Store) follow(r row, hops []store.Relation, col string, p store.Predicate) bool {
	if len(hops) == 0 {
		return test(r[col], p)
	}
	h := hops[0]
	local := r[h.LocalKey]
	if local == nil {
		return false
	}
	for _, related := range s.tables[h.Table] {
		if equal(related[h.ForeignKey], local) && s.follow(related, hops[1:], col, p) {
			return true
		}
	}
	return false
}

func test(v any, p store.Predicate) bool {
	switch p.Op {
	case store.OpEq:
		return equal(v, normalize(p.Value))
	case store.OpIn:
		for _, candidate := range p.Value.([]any) {
			if equal(v, normalize(candidate)) {
				return true
			}
		}
		return false
	case store.OpGte:
		c, ok := compare(v, normalize(p.Value))
		return ok && c >= 0
	case store.OpLte:
		c, ok := compare(v, normalize(p.Value))
		return ok && c <= 0
	case store.OpILike:
		str, ok := v.(string)
		if !ok {
			return false
		}
		return likePattern(p.Value.(string)).MatchString(str)
	}
	return false
}

func equal(a, b any) bool {
	c, ok := compare(a, b)
	return ok && c == 0
}

// compare orders two decoded JSON values of the same kind
func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		tx, errX := time.Parse(time.RFC3339Nano, x)
		ty, errY := time.Parse(time.RFC3339Nano, y)
		if errX == nil && errY == nil {
			return tx.Compare(ty), true
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// order sorts nulls last
func order(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	c, _ := compare(a, b)
	return c
}

func project(r row, columns []string) row {
	if len(columns) == 0 || (len(columns) == 1 && columns[0] == "*") {
		return r
	}
	out := make(row, len(columns))
	for _, c := range columns {
		out[c] = r[c]
	}
	return out
}

func likePattern(pattern string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString("(?is)^")
	escaped := false
	for _, ch := range pattern {
		switch {
		case escaped:
			sb.WriteString(regexp.QuoteMeta(string(ch)))
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '%':
			sb.WriteString(".*")
		case ch == '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	sb.WriteString("$")
	return regexp.MustCompile(sb.String())
}

func normalize(v any) any {
	body, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil
	}
	return out
}

func toRow(v any) (row, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out row
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("row must encode to a JSON object: %w", err)
	}
	return out, nil
}
