package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_ActiveByIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	q := store.From(store.TableClients).Eq("is_active", true).In("id", store.Values([]uuid.UUID{a, b}))

	sql, args, err := Compile(q)
	require.NoError(t, err)

	assert.Equal(t, `SELECT to_jsonb(t) FROM "clients" t WHERE t."is_active" = $1 AND t."id" IN ($2, $3)`, sql)
	assert.Equal(t, []any{true, a, b}, args)
}

func TestCompile_LatestReading(t *testing.T) {
	q := store.From(store.TableDeviceData).Eq("device_id", int64(4)).OrderBy("timestamp", false).Limit(1)

	sql, args, err := Compile(q)
	require.NoError(t, err)

	assert.Equal(t, `SELECT to_jsonb(t) FROM "device_data" t WHERE t."device_id" = $1 ORDER BY t."timestamp" DESC LIMIT 1`, sql)
	assert.Equal(t, []any{int64(4)}, args)
}

func TestCompile_RelationPathBecomesSubquery(t *testing.T) {
	client := uuid.New()
	q := store.From(store.TableAssets).Eq("project.end_customer.client_id", client)

	sql, args, err := Compile(q)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT to_jsonb(t) FROM "assets" t WHERE t."current_project_id" IN `+
			`(SELECT r1_1."id" FROM "projects" r1_1 WHERE r1_1."end_customer_id" IN `+
			`(SELECT r1_2."id" FROM "end_customers" r1_2 WHERE r1_2."client_id" = $1))`,
		sql)
	assert.Equal(t, []any{client}, args)
}

func TestCompile_ReverseRelationForDevices(t *testing.T) {
	project := uuid.New()
	q := store.From(store.TableDevices).Eq("asset.current_project_id", project)

	sql, _, err := Compile(q)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT to_jsonb(t) FROM "devices" t WHERE t."id" IN `+
			`(SELECT r1_1."device_id" FROM "assets" r1_1 WHERE r1_1."current_project_id" = $1)`,
		sql)
}

func TestCompile_OrGroupAndProjection(t *testing.T) {
	q := store.From(store.TableDevices).
		Select("id", "name").
		Eq("is_active", true).
		Or(store.ILikeOf("name", "%ab%"), store.ILikeOf("device_eui", "%ab%"))

	sql, args, err := Compile(q)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT jsonb_build_object('id', t."id", 'name', t."name") FROM "devices" t `+
			`WHERE t."is_active" = $1 AND (t."name"::text ILIKE $2 OR t."device_eui"::text ILIKE $3)`,
		sql)
	assert.Equal(t, []any{true, "%ab%", "%ab%"}, args)
}

func TestCompile_EmptyInMatchesNothing(t *testing.T) {
	sql, args, err := Compile(store.From(store.TableDevices).In("id", []any{}))
	require.NoError(t, err)
	assert.Equal(t, `SELECT to_jsonb(t) FROM "devices" t WHERE FALSE`, sql)
	assert.Empty(t, args)
}

func TestCompile_SingleCapsAtTwoRows(t *testing.T) {
	sql, _, err := Compile(store.From(store.TableUsers).Eq("id", uuid.New()).Single())
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT 2")
}

func TestCompileUpsert(t *testing.T) {
	row := map[string]any{"id": "u1", "first_name": "Ada", "last_name": "L"}

	sql, body, err := compileUpsert(store.TableUsers, row)
	require.NoError(t, err)

	assert.Equal(t,
		`INSERT INTO "users" ("first_name", "id", "last_name") SELECT "first_name", "id", "last_name" `+
			`FROM jsonb_populate_record(NULL::"users", $1::jsonb) ON CONFLICT ("id") `+
			`DO UPDATE SET "first_name" = EXCLUDED."first_name", "last_name" = EXCLUDED."last_name"`,
		sql)
	assert.JSONEq(t, `{"id":"u1","first_name":"Ada","last_name":"L"}`, body)
}

func TestCompileUpsert_RequiresID(t *testing.T) {
	_, _, err := compileUpsert(store.TableUsers, map[string]any{"first_name": "x"})
	assert.Error(t, err)
}
