package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/internal/repository"
	"github.com/septivank/asset-tracker/internal/scope"
)

// Visibility is the set of hierarchy records a caller may see. All is set for
// admins only; otherwise only the listed ids are visible.
type Visibility struct {
	All            bool
	Grants         []scope.Grant
	ClientIDs      []uuid.UUID
	EndCustomerIDs []uuid.UUID
	ProjectIDs     []uuid.UUID
}

// Empty reports whether nothing is visible
func (v Visibility) Empty() bool {
	return !v.All && len(v.ClientIDs) == 0 && len(v.EndCustomerIDs) == 0 && len(v.ProjectIDs) == 0
}

// HasClient reports whether the client is visible
func (v Visibility) HasClient(id uuid.UUID) bool {
	return v.All || contains(v.ClientIDs, id)
}

// HasEndCustomer reports whether the end customer is visible
func (v Visibility) HasEndCustomer(id uuid.UUID) bool {
	return v.All || contains(v.EndCustomerIDs, id)
}

// HasProject reports whether the project is visible
func (v Visibility) HasProject(id uuid.UUID) bool {
	return v.All || contains(v.ProjectIDs, id)
}

// Visibility expands the caller's grants into visible ids. The id bound to the
// caller's role counts as a grant of its level. Denied callers see nothing and
// cause no backend reads.
func (r *Resolver) Visibility(ctx context.Context, caller scope.Caller) (Visibility, error) {
	switch caller.Role.(type) {
	case scope.Admin:
		return Visibility{All: true}, nil
	case scope.Denied, nil:
		return Visibility{}, nil
	}

	grants, err := r.Resolve(ctx, caller.UserID)
	if err != nil {
		return Visibility{}, err
	}
	if kind, id, ok := scope.BoundID(caller.Role); ok {
		grants = append(grants, bindingGrant(caller.UserID, kind, id))
	}

	clients, endCustomers, projects := scope.IDs(grants)
	v := Visibility{
		Grants:         grants,
		ClientIDs:      unique(clients),
		EndCustomerIDs: unique(endCustomers),
		ProjectIDs:     unique(projects),
	}
	if r.widening == scope.WidenNone {
		return v, nil
	}

	if len(v.ClientIDs) > 0 {
		derived, err := r.hierarchy.EndCustomers(ctx, repository.Filter{ParentIDs: v.ClientIDs})
		if err != nil {
			return Visibility{}, fmt.Errorf("failed to widen client grants: %w", err)
		}
		for _, ec := range derived {
			v.EndCustomerIDs = appendUnique(v.EndCustomerIDs, ec.ID)
		}
	}
	if len(v.EndCustomerIDs) > 0 {
		derived, err := r.hierarchy.Projects(ctx, repository.Filter{ParentIDs: v.EndCustomerIDs})
		if err != nil {
			return Visibility{}, fmt.Errorf("failed to widen end customer grants: %w", err)
		}
		for _, p := range derived {
			v.ProjectIDs = appendUnique(v.ProjectIDs, p.ID)
		}
	}
	return v, nil
}

func bindingGrant(userID uuid.UUID, kind scope.Kind, id uuid.UUID) scope.Grant {
	switch kind {
	case scope.KindClient:
		return scope.ClientGrant{UserID: userID, ClientID: id}
	case scope.KindEndCustomer:
		return scope.EndCustomerGrant{UserID: userID, EndCustomerID: id}
	default:
		return scope.ProjectGrant{UserID: userID, ProjectID: id}
	}
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func appendUnique(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	if contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

func unique(ids []uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for _, id := range ids {
		out = appendUnique(out, id)
	}
	return out
}
