// Package scope models the organisational hierarchy a user can be granted
// access to, the closed set of roles and the grants read from the
// membership tables.
//
// The hierarchy is Client ⊇ EndCustomer ⊇ Project ⊇ Asset ⊇ Device ⊇
// DeviceReading. Grants exist at the first three levels only.
package scope

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is a level of the hierarchy a grant or role applies to
type Kind string

const (
	KindClient      Kind = "client"
	KindEndCustomer Kind = "end_customer"
	KindProject     Kind = "project"
)

// AccessMode is the mode of a grant. Only read-write grants exist.
type AccessMode string

const ReadWrite AccessMode = "RW"

// Grant is one of ClientGrant, EndCustomerGrant or ProjectGrant
type Grant interface {
	Kind() Kind
	RefID() uuid.UUID
	Mode() AccessMode
	Holder() uuid.UUID
	sealed()
}

// ClientGrant gives a user access to a client
type ClientGrant struct {
	UserID   uuid.UUID
	ClientID uuid.UUID
}

// EndCustomerGrant gives a user access to an end customer
type EndCustomerGrant struct {
	UserID        uuid.UUID
	EndCustomerID uuid.UUID
}

// ProjectGrant gives a user access to a project
type ProjectGrant struct {
	UserID    uuid.UUID
	ProjectID uuid.UUID
}

func (g ClientGrant) Kind() Kind        { return KindClient }
func (g ClientGrant) RefID() uuid.UUID  { return g.ClientID }
func (g ClientGrant) Mode() AccessMode  { return ReadWrite }
func (g ClientGrant) Holder() uuid.UUID { return g.UserID }
func (ClientGrant) sealed()             {}

func (g EndCustomerGrant) Kind() Kind        { return KindEndCustomer }
func (g EndCustomerGrant) RefID() uuid.UUID  { return g.EndCustomerID }
func (g EndCustomerGrant) Mode() AccessMode  { return ReadWrite }
func (g EndCustomerGrant) Holder() uuid.UUID { return g.UserID }
func (EndCustomerGrant) sealed()             {}

func (g ProjectGrant) Kind() Kind        { return KindProject }
func (g ProjectGrant) RefID() uuid.UUID  { return g.ProjectID }
func (g ProjectGrant) Mode() AccessMode  { return ReadWrite }
func (g ProjectGrant) Holder() uuid.UUID { return g.UserID }
func (ProjectGrant) sealed()             {}

// Record is the flat (user, scope, ref, mode) form of a grant
type Record struct {
	UserID     uuid.UUID  `json:"user_id"`
	Scope      Kind       `json:"scope"`
	RefID      uuid.UUID  `json:"ref_id"`
	AccessMode AccessMode `json:"access_mode"`
}

// Records flattens grants, keeping their order
func Records(grants []Grant) []Record {
	out := make([]Record, len(grants))
	for i, g := range grants {
		out[i] = Record{UserID: g.Holder(), Scope: g.Kind(), RefID: g.RefID(), AccessMode: g.Mode()}
	}
	return out
}

// IDs groups the referenced ids of grants by kind
func IDs(grants []Grant) (clients, endCustomers, projects []uuid.UUID) {
	for _, g := range grants {
		switch g := g.(type) {
		case ClientGrant:
			clients = append(clients, g.ClientID)
		case EndCustomerGrant:
			endCustomers = append(endCustomers, g.EndCustomerID)
		case ProjectGrant:
			projects = append(projects, g.ProjectID)
		}
	}
	return clients, endCustomers, projects
}

// Widening decides whether a grant implies access to the levels below it
type Widening string

const (
	// WidenDescendants: a client grant covers the client's end customers and
	// their projects; an end-customer grant covers its projects.
	WidenDescendants Widening = "descendants"
	// WidenNone: only explicitly granted records are visible.
	WidenNone Widening = "none"
)

// ParseWidening validates a configured widening policy
func ParseWidening(s string) (Widening, error) {
	switch Widening(s) {
	case WidenDescendants, WidenNone:
		return Widening(s), nil
	}
	return "", fmt.Errorf("unknown access widening policy %q", s)
}
