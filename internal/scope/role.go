package scope

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Role names as stored on the user row
const (
	RoleAdmin            = "admin"
	RoleClientAdmin      = "client_admin"
	RoleEndCustomerAdmin = "end_customer_admin"
	RoleProjectUser      = "project_user"
)

var (
	ErrUnknownRole  = errors.New("unknown role")
	ErrUnboundScope = errors.New("role has no bound scope id")
)

// Role is one of Admin, ClientAdmin, EndCustomerAdmin, ProjectUser or Denied.
// Every scoped role carries its bound id as a required field.
type Role interface {
	Name() string
	sealed()
}

// Admin sees everything
type Admin struct{}

// ClientAdmin sees everything under one client
type ClientAdmin struct{ ClientID uuid.UUID }

// EndCustomerAdmin sees everything under one end customer
type EndCustomerAdmin struct{ EndCustomerID uuid.UUID }

// ProjectUser sees one project
type ProjectUser struct{ ProjectID uuid.UUID }

// Denied is the role of a user whose declared role could not be resolved.
// It sees nothing.
type Denied struct {
	Declared string
	Reason   error
}

func (Admin) Name() string            { return RoleAdmin }
func (ClientAdmin) Name() string      { return RoleClientAdmin }
func (EndCustomerAdmin) Name() string { return RoleEndCustomerAdmin }
func (ProjectUser) Name() string      { return RoleProjectUser }
func (d Denied) Name() string         { return d.Declared }

func (Admin) sealed()            {}
func (ClientAdmin) sealed()      {}
func (EndCustomerAdmin) sealed() {}
func (ProjectUser) sealed()      {}
func (Denied) sealed()           {}

// ParseRole builds the role variant for a user row. Only the id matching the
// role name is consulted. When the name is unknown or its bound id is
// missing, the returned role is Denied and the error says why.
func ParseRole(name string, clientID, endCustomerID, projectID *uuid.UUID) (Role, error) {
	bound := func(id *uuid.UUID) (uuid.UUID, error) {
		if id == nil || *id == uuid.Nil {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrUnboundScope, name)
		}
		return *id, nil
	}

	switch name {
	case RoleAdmin:
		return Admin{}, nil
	case RoleClientAdmin:
		id, err := bound(clientID)
		if err != nil {
			return Denied{Declared: name, Reason: err}, err
		}
		return ClientAdmin{ClientID: id}, nil
	case RoleEndCustomerAdmin:
		id, err := bound(endCustomerID)
		if err != nil {
			return Denied{Declared: name, Reason: err}, err
		}
		return EndCustomerAdmin{EndCustomerID: id}, nil
	case RoleProjectUser:
		id, err := bound(projectID)
		if err != nil {
			return Denied{Declared: name, Reason: err}, err
		}
		return ProjectUser{ProjectID: id}, nil
	}
	err := fmt.Errorf("%w: %q", ErrUnknownRole, name)
	return Denied{Declared: name, Reason: err}, err
}

// BoundID returns the scope and id a role is bound to. Admin and Denied
// are bound to nothing.
func BoundID(r Role) (Kind, uuid.UUID, bool) {
	switch r := r.(type) {
	case ClientAdmin:
		return KindClient, r.ClientID, true
	case EndCustomerAdmin:
		return KindEndCustomer, r.EndCustomerID, true
	case ProjectUser:
		return KindProject, r.ProjectID, true
	}
	return "", uuid.Nil, false
}

// Caller is the identity every resolver and query-builder call runs as
type Caller struct {
	UserID uuid.UUID
	Role   Role
	Token  string
}

// IsAdmin reports whether the caller is unrestricted
func (c Caller) IsAdmin() bool {
	_, ok := c.Role.(Admin)
	return ok
}
