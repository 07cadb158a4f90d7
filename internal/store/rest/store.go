package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/septivank/asset-tracker/internal/store"
	"go.uber.org/zap"
)

const (
	restPath       = "/rest/v1/"
	singleObject   = "application/vnd.pgrst.object+json"
	codeSingleRows = "PGRST116"
)

// Store talks to a PostgREST endpoint (the hosted backend's table API).
// Requests carry the caller's bearer token when one is attached to the
// context, so row-level security applies as the caller.
type Store struct {
	client  *resty.Client
	anonKey string
	logger  *zap.Logger
}

// NewStore creates a REST store. Failed requests are not retried.
func NewStore(baseURL, anonKey string, timeout time.Duration, logger *zap.Logger) *Store {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("apikey", anonKey).
		SetHeader("Accept", "application/json")

	return &Store{
		client:  client,
		anonKey: anonKey,
		logger:  logger,
	}
}

var _ store.Store = (*Store)(nil)

// Select runs q against /rest/v1/<table>
func (s *Store) Select(ctx context.Context, q *store.Query) ([]byte, error) {
	params, err := compileParams(q)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s query: %w", q.Table, err)
	}

	req := s.request(ctx).SetQueryParamsFromValues(params)
	if q.ExpectSingle {
		req.SetHeader("Accept", singleObject)
	}

	resp, err := req.Get(restPath + q.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Table, err)
	}
	if resp.IsError() {
		backendErr := decodeError(resp)
		if q.ExpectSingle && backendErr.Code == codeSingleRows {
			if strings.Contains(backendErr.Details, " 0 rows") {
				return nil, store.ErrNotFound
			}
			return nil, store.ErrMultipleRows
		}
		s.logger.Warn("backend select failed",
			zap.String("table", q.Table),
			zap.Int("status", resp.StatusCode()),
			zap.String("code", backendErr.Code),
		)
		return nil, backendErr
	}

	return resp.Body(), nil
}

// Upsert posts row with merge-duplicates resolution
func (s *Store) Upsert(ctx context.Context, table string, row any) error {
	if !store.IsIdentifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	resp, err := s.request(ctx).
		SetHeader("Prefer", "resolution=merge-duplicates,return=minimal").
		SetBody(row).
		Post(restPath + table)
	if err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", table, err)
	}
	if resp.IsError() {
		return decodeError(resp)
	}
	return nil
}

func (s *Store) request(ctx context.Context) *resty.Request {
	token, ok := store.BearerFrom(ctx)
	if !ok {
		token = s.anonKey
	}
	return s.client.R().SetContext(ctx).SetAuthToken(token)
}

func decodeError(resp *resty.Response) *store.BackendError {
	backendErr := &store.BackendError{Status: resp.StatusCode()}
	if err := json.Unmarshal(resp.Body(), backendErr); err != nil || backendErr.Message == "" {
		backendErr.Message = http.StatusText(resp.StatusCode())
	}
	return backendErr
}
