package service

import (
	"errors"

	"github.com/septivank/asset-tracker/internal/scope"
	"github.com/septivank/asset-tracker/internal/store"
)

var (
	// ErrForbidden is returned when a caller may not perform an operation
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput is returned for request data a service rejects
	ErrInvalidInput = errors.New("invalid input")
)

// Paths names the relation path from an entity to each hierarchy level
type Paths struct {
	Client      string
	EndCustomer string
	Project     string
}

// AssetPaths reach the hierarchy from an asset row
var AssetPaths = Paths{
	Client:      "project.end_customer.client_id",
	EndCustomer: "project.end_customer_id",
	Project:     "current_project_id",
}

// DevicePaths reach the hierarchy from a device row through its asset
var DevicePaths = Paths{
	Client:      "asset.project.end_customer.client_id",
	EndCustomer: "asset.project.end_customer_id",
	Project:     "asset.current_project_id",
}

// ScopeQuery narrows a copy of base to the rows role may see. The second
// result is false when role may see nothing; the query must then not be run.
func ScopeQuery(role scope.Role, base *store.Query, paths Paths) (*store.Query, bool) {
	q := base.Clone()
	switch r := role.(type) {
	case scope.Admin:
		return q, true
	case scope.ClientAdmin:
		return q.Eq(paths.Client, r.ClientID), true
	case scope.EndCustomerAdmin:
		return q.Eq(paths.EndCustomer, r.EndCustomerID), true
	case scope.ProjectUser:
		return q.Eq(paths.Project, r.ProjectID), true
	default:
		return nil, false
	}
}
