package scope

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole_BoundVariants(t *testing.T) {
	c, e, p := uuid.New(), uuid.New(), uuid.New()

	role, err := ParseRole(RoleClientAdmin, &c, &e, &p)
	require.NoError(t, err)
	assert.Equal(t, ClientAdmin{ClientID: c}, role)

	role, err = ParseRole(RoleEndCustomerAdmin, &c, &e, &p)
	require.NoError(t, err)
	assert.Equal(t, EndCustomerAdmin{EndCustomerID: e}, role)

	role, err = ParseRole(RoleProjectUser, nil, nil, &p)
	require.NoError(t, err)
	assert.Equal(t, ProjectUser{ProjectID: p}, role)

	role, err = ParseRole(RoleAdmin, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Admin{}, role)
}

func TestParseRole_MissingBoundIDIsDenied(t *testing.T) {
	p := uuid.New()

	role, err := ParseRole(RoleClientAdmin, nil, nil, &p)
	assert.ErrorIs(t, err, ErrUnboundScope)

	denied, ok := role.(Denied)
	require.True(t, ok)
	assert.Equal(t, RoleClientAdmin, denied.Name())

	nilID := uuid.Nil
	_, err = ParseRole(RoleProjectUser, nil, nil, &nilID)
	assert.ErrorIs(t, err, ErrUnboundScope)
}

func TestParseRole_UnknownIsDenied(t *testing.T) {
	role, err := ParseRole("auditor", nil, nil, nil)
	assert.ErrorIs(t, err, ErrUnknownRole)
	assert.IsType(t, Denied{}, role)
}

func TestBoundID(t *testing.T) {
	id := uuid.New()
	kind, got, ok := BoundID(EndCustomerAdmin{EndCustomerID: id})
	assert.True(t, ok)
	assert.Equal(t, KindEndCustomer, kind)
	assert.Equal(t, id, got)

	_, _, ok = BoundID(Admin{})
	assert.False(t, ok)
}

func TestRecordsAndIDs(t *testing.T) {
	user, c, e, p := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	grants := []Grant{
		ClientGrant{UserID: user, ClientID: c},
		EndCustomerGrant{UserID: user, EndCustomerID: e},
		ProjectGrant{UserID: user, ProjectID: p},
	}

	records := Records(grants)
	require.Len(t, records, 3)
	assert.Equal(t, Record{UserID: user, Scope: KindClient, RefID: c, AccessMode: ReadWrite}, records[0])
	assert.Equal(t, KindProject, records[2].Scope)

	clients, ecs, projects := IDs(grants)
	assert.Equal(t, []uuid.UUID{c}, clients)
	assert.Equal(t, []uuid.UUID{e}, ecs)
	assert.Equal(t, []uuid.UUID{p}, projects)
}

func TestParseWidening(t *testing.T) {
	w, err := ParseWidening("none")
	require.NoError(t, err)
	assert.Equal(t, WidenNone, w)

	_, err = ParseWidening("ancestors")
	assert.Error(t, err)
}
