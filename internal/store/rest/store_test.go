package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCompileParams_Filters(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	q := store.From(store.TableEndCustomers).
		Eq("is_active", true).
		In("client_id", store.Values([]uuid.UUID{a, b}))

	params, err := compileParams(q)
	require.NoError(t, err)

	assert.Equal(t, "*", params.Get("select"))
	assert.Equal(t, "eq.true", params.Get("is_active"))
	assert.Equal(t, "in.("+a.String()+","+b.String()+")", params.Get("client_id"))
}

func TestCompileParams_RelationPathAddsInnerEmbed(t *testing.T) {
	client := uuid.New()
	q := store.From(store.TableDevices).Eq("asset.project.end_customer.client_id", client)

	params, err := compileParams(q)
	require.NoError(t, err)

	assert.Equal(t,
		"*,asset:assets!inner(project:projects!inner(end_customer:end_customers!inner(client_id)))",
		params.Get("select"))
	assert.Equal(t, "eq."+client.String(), params.Get("asset.project.end_customer.client_id"))
}

func TestCompileParams_OrderLimitAndOr(t *testing.T) {
	q := store.From(store.TableDevices).
		Or(store.ILikeOf("name", "%a,b%"), store.ILikeOf("device_eui", "%ab%")).
		OrderBy("timestamp", false).
		Limit(1000)

	params, err := compileParams(q)
	require.NoError(t, err)

	assert.Equal(t, `(name.ilike."%a,b%",device_eui.ilike.%ab%)`, params.Get("or"))
	assert.Equal(t, "timestamp.desc", params.Get("order"))
	assert.Equal(t, "1000", params.Get("limit"))
}

func TestStoreSelect_ForwardsBearerToken(t *testing.T) {
	var gotAuth, gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1}]`))
	}))
	defer srv.Close()

	s := NewStore(srv.URL, "anon", time.Second, zap.NewNop())
	ctx := store.WithBearer(context.Background(), "user-token")

	body, err := s.Select(ctx, store.From(store.TableDevices).In("id", []any{int64(1)}))
	require.NoError(t, err)

	assert.JSONEq(t, `[{"id":1}]`, string(body))
	assert.Equal(t, "Bearer user-token", gotAuth)
	assert.Equal(t, "anon", gotKey)
	assert.Equal(t, "/rest/v1/devices", gotPath)
}

func TestStoreSelect_SingleNoRowsIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, singleObject, r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = w.Write([]byte(`{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned","details":"The result contains 0 rows"}`))
	}))
	defer srv.Close()

	s := NewStore(srv.URL, "anon", time.Second, zap.NewNop())
	_, err := s.Select(context.Background(), store.From(store.TableUsers).Eq("id", uuid.New()).Single())

	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStoreSelect_BackendErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"42703","message":"column assets.nope does not exist"}`))
	}))
	defer srv.Close()

	s := NewStore(srv.URL, "anon", time.Second, zap.NewNop())
	_, err := s.Select(context.Background(), store.From(store.TableAssets))

	var backendErr *store.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusBadRequest, backendErr.Status)
	assert.Equal(t, "42703", backendErr.Code)
}

func TestStoreUpsert_MergesDuplicates(t *testing.T) {
	var prefer, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefer = r.Header.Get("Prefer")
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewStore(srv.URL, "anon", time.Second, zap.NewNop())
	err := s.Upsert(context.Background(), store.TableUsers, map[string]any{"id": "u1", "first_name": "Ada"})
	require.NoError(t, err)

	assert.Contains(t, prefer, "resolution=merge-duplicates")
	assert.JSONEq(t, `{"id":"u1","first_name":"Ada"}`, body)
}

func TestStorage_UploadAndPublicURL(t *testing.T) {
	var gotPath, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewStorage(srv.URL, "anon", "avatars", time.Second)
	require.NoError(t, s.Upload(context.Background(), "abc.png", "image/png", []byte{1, 2, 3}))

	assert.Equal(t, "/storage/v1/object/avatars/abc.png", gotPath)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, srv.URL+"/storage/v1/object/public/avatars/abc.png", s.PublicURL("abc.png"))
}

func TestStorage_Disabled(t *testing.T) {
	s := NewStorage("", "", "avatars", time.Second)
	assert.ErrorIs(t, s.Upload(context.Background(), "x.png", "image/png", nil), ErrStorageDisabled)
}
