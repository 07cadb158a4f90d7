package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/septivank/asset-tracker/internal/store"
	"go.uber.org/zap"
)

// Querier is the subset of *pgxpool.Pool the store needs
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store reads the backend tables directly over PostgreSQL
type Store struct {
	db     Querier
	logger *zap.Logger
}

// NewStore creates a store on top of a pool
func NewStore(db Querier, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

var _ store.Store = (*Store)(nil)

// Select runs q and returns the rows as JSON
func (s *Store) Select(ctx context.Context, q *store.Query) ([]byte, error) {
	sql, args, err := Compile(q)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s query: %w", q.Table, err)
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Table, backendError(err))
	}
	defer rows.Close()

	items := []json.RawMessage{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", q.Table, err)
		}
		items = append(items, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", backendError(err))
	}

	s.logger.Debug("backend select",
		zap.String("table", q.Table),
		zap.Int("rows", len(items)),
	)

	if q.ExpectSingle {
		switch len(items) {
		case 0:
			return nil, store.ErrNotFound
		case 1:
			return items[0], nil
		default:
			return nil, store.ErrMultipleRows
		}
	}
	return json.Marshal(items)
}

// Upsert inserts row into table or updates the existing row with the same id
func (s *Store) Upsert(ctx context.Context, table string, row any) error {
	sql, body, err := compileUpsert(table, row)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, sql, body); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", table, backendError(err))
	}
	return nil
}

// backendError turns a server-reported error into a *store.BackendError.
// Other errors are returned unchanged.
func backendError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	return &store.BackendError{
		Status:  statusFor(pgErr.Code),
		Code:    pgErr.Code,
		Message: pgErr.Message,
		Details: pgErr.Detail,
		Hint:    pgErr.Hint,
	}
}

// statusFor maps a SQLSTATE to the status PostgREST reports for it
func statusFor(code string) int {
	switch {
	case code == "42501":
		return http.StatusForbidden
	case code == "42P01", code == "42883":
		return http.StatusNotFound
	case strings.HasPrefix(code, "23"):
		return http.StatusConflict
	case strings.HasPrefix(code, "22"):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func compileUpsert(table string, row any) (string, string, error) {
	if !store.IsIdentifier(table) {
		return "", "", fmt.Errorf("invalid table name %q", table)
	}
	body, err := json.Marshal(row)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode %s row: %w", table, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", "", fmt.Errorf("%s row must encode to an object: %w", table, err)
	}
	if _, ok := fields["id"]; !ok {
		return "", "", fmt.Errorf("%s row has no id", table)
	}

	cols := make([]string, 0, len(fields))
	for name := range fields {
		if !store.IsIdentifier(name) {
			return "", "", fmt.Errorf("invalid column %q", name)
		}
		cols = append(cols, name)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	var sets []string
	for i, name := range cols {
		quoted[i] = ident(name)
		if name != "id" {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", ident(name), ident(name)))
		}
	}

	list := strings.Join(quoted, ", ")
	sql := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM jsonb_populate_record(NULL::%s, $1::jsonb) ON CONFLICT (%s) ",
		ident(table), list, list, ident(table), ident("id"))
	if len(sets) == 0 {
		sql += "DO NOTHING"
	} else {
		sql += "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return sql, string(body), nil
}
