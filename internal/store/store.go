package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by single-row reads that matched nothing.
	// It is an outcome, not a transport failure.
	ErrNotFound = errors.New("no matching row")

	// ErrMultipleRows is returned by single-row reads that matched more than one row
	ErrMultipleRows = errors.New("multiple rows returned for single-row query")
)

// BackendError is a failure reported by the backend itself
type BackendError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
}

// Store is the tabular backend collaborator.
//
// Select returns a JSON array of row objects, or a single JSON object when
// the query is marked Single. A single-row query that matches nothing
// returns ErrNotFound.
type Store interface {
	Select(ctx context.Context, q *Query) ([]byte, error)
	Upsert(ctx context.Context, table string, row any) error
}

// List runs q and decodes every row into T
func List[T any](ctx context.Context, s Store, q *Query) ([]T, error) {
	body, err := s.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s rows: %w", q.Table, err)
	}
	return out, nil
}

// One runs q as a single-row query and decodes the row into T
func One[T any](ctx context.Context, s Store, q *Query) (*T, error) {
	q.ExpectSingle = true
	body, err := s.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s row: %w", q.Table, err)
	}
	return &out, nil
}

type bearerKey struct{}

// WithBearer attaches the caller's access token so backends that enforce
// row-level security can act on the caller's behalf.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

// BearerFrom returns the token attached by WithBearer
func BearerFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerKey{}).(string)
	return token, ok && token != ""
}
