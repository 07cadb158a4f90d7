package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/internal/db"
	"github.com/septivank/asset-tracker/internal/store"
)

// DefaultBulkLimit caps the bulk latest-readings query
const DefaultBulkLimit = 1000

// Filter narrows an entity fetch. IDs takes priority over ParentIDs; when
// both are empty the full active set is returned.
type Filter struct {
	IDs       []uuid.UUID
	ParentIDs []uuid.UUID
}

// AssetFilter narrows an asset fetch. ParentIDs are project ids; ClientIDs
// apply only when IDs and ParentIDs are both empty.
type AssetFilter struct {
	Filter
	ClientIDs []uuid.UUID
}

// Repository handles backend reads and writes
type Repository struct {
	store     store.Store
	bulkLimit int
}

// NewRepository creates a new repository
func NewRepository(s store.Store, bulkLimit int) *Repository {
	if bulkLimit <= 0 {
		bulkLimit = DefaultBulkLimit
	}
	return &Repository{store: s, bulkLimit: bulkLimit}
}

// Store returns the backend the repository reads from
func (r *Repository) Store() store.Store {
	return r.store
}

// narrow applies the id-over-parent precedence to q
func narrow(q *store.Query, parentColumn string, f Filter) *store.Query {
	switch {
	case len(f.IDs) > 0:
		q.In("id", store.Values(f.IDs))
	case len(f.ParentIDs) > 0 && parentColumn != "":
		q.In(parentColumn, store.Values(f.ParentIDs))
	}
	return q
}

// Clients gets active clients, optionally restricted to ids
func (r *Repository) Clients(ctx context.Context, ids []uuid.UUID) ([]db.Client, error) {
	q := narrow(ActiveClients(), "", Filter{IDs: ids})
	clients, err := store.List[db.Client](ctx, r.store, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	return clients, nil
}

// EndCustomers gets active end customers, by id or by client
func (r *Repository) EndCustomers(ctx context.Context, f Filter) ([]db.EndCustomer, error) {
	q := narrow(store.From(store.TableEndCustomers).Eq("is_active", true), "client_id", f)
	endCustomers, err := store.List[db.EndCustomer](ctx, r.store, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query end customers: %w", err)
	}
	return endCustomers, nil
}

// Projects gets active projects, by id or by end customer
func (r *Repository) Projects(ctx context.Context, f Filter) ([]db.Project, error) {
	q := narrow(store.From(store.TableProjects).Eq("is_active", true), "end_customer_id", f)
	projects, err := store.List[db.Project](ctx, r.store, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	return projects, nil
}

// Assets gets active assets, by id, by current project or by client
func (r *Repository) Assets(ctx context.Context, f AssetFilter) ([]db.Asset, error) {
	q := narrow(ActiveAssets(), "current_project_id", f.Filter)
	if len(f.IDs) == 0 && len(f.ParentIDs) == 0 && len(f.ClientIDs) > 0 {
		q.In("client_id", store.Values(f.ClientIDs))
	}
	return r.FindAssets(ctx, q)
}

// Devices gets devices by id. No ids means no devices.
func (r *Repository) Devices(ctx context.Context, ids []int64) ([]db.Device, error) {
	if len(ids) == 0 {
		return []db.Device{}, nil
	}
	q := store.From(store.TableDevices).In("id", store.Values(ids))
	return r.FindDevices(ctx, q)
}

// ActiveClients is the base query for active clients
func ActiveClients() *store.Query {
	return store.From(store.TableClients).Eq("is_active", true)
}

// ActiveAssets is the base query for active assets
func ActiveAssets() *store.Query {
	return store.From(store.TableAssets).Eq("is_active", true)
}

// ActiveDevices is the base query for active devices
func ActiveDevices() *store.Query {
	return store.From(store.TableDevices).Eq("is_active", true)
}

// FindAssets runs an asset query built by the caller
func (r *Repository) FindAssets(ctx context.Context, q *store.Query) ([]db.Asset, error) {
	assets, err := store.List[db.Asset](ctx, r.store, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	return assets, nil
}

// FindAsset runs a single-row asset query built by the caller
func (r *Repository) FindAsset(ctx context.Context, q *store.Query) (*db.Asset, error) {
	asset, err := store.One[db.Asset](ctx, r.store, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset: %w", err)
	}
	return asset, nil
}

// FindDevices runs a device query built by the caller
func (r *Repository) FindDevices(ctx context.Context, q *store.Query) ([]db.Device, error) {
	devices, err := store.List[db.Device](ctx, r.store, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	return devices, nil
}

// LatestReading gets the newest reading of a device. A device without
// readings yields nil and no error.
func (r *Repository) LatestReading(ctx context.Context, deviceID int64) (*db.DeviceReading, error) {
	q := store.From(store.TableDeviceData).
		Eq("device_id", deviceID).
		OrderBy("timestamp", false).
		Limit(1)

	reading, err := store.One[db.DeviceReading](ctx, r.store, q)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest reading for device %d: %w", deviceID, err)
	}
	return reading, nil
}

// LatestReadings gets the most recent readings across devices, newest first,
// capped at the bulk limit. A busy device can crowd out the others.
func (r *Repository) LatestReadings(ctx context.Context, deviceIDs []int64) ([]db.DeviceReading, error) {
	if len(deviceIDs) == 0 {
		return []db.DeviceReading{}, nil
	}
	q := store.From(store.TableDeviceData).
		In("device_id", store.Values(deviceIDs)).
		OrderBy("timestamp", false).
		Limit(r.bulkLimit)

	readings, err := store.List[db.DeviceReading](ctx, r.store, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest readings: %w", err)
	}
	return readings, nil
}

// ReadingHistory gets the readings of a device within [from, to], oldest first
func (r *Repository) ReadingHistory(ctx context.Context, deviceID int64, from, to time.Time) ([]db.DeviceReading, error) {
	q := store.From(store.TableDeviceData).
		Eq("device_id", deviceID).
		Gte("timestamp", from.UTC()).
		Lte("timestamp", to.UTC()).
		OrderBy("timestamp", true)

	readings, err := store.List[db.DeviceReading](ctx, r.store, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query reading history for device %d: %w", deviceID, err)
	}
	return readings, nil
}

// UserProfile gets a user row. A missing user is store.ErrNotFound.
func (r *Repository) UserProfile(ctx context.Context, userID uuid.UUID) (*db.User, error) {
	q := store.From(store.TableUsers).Eq("id", userID)
	user, err := store.One[db.User](ctx, r.store, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query user %s: %w", userID, err)
	}
	return user, nil
}

// UpdateProfile upserts the editable part of a user row
func (r *Repository) UpdateProfile(ctx context.Context, row db.ProfileRow) error {
	if err := r.store.Upsert(ctx, store.TableUsers, row); err != nil {
		return fmt.Errorf("failed to update profile %s: %w", row.ID, err)
	}
	return nil
}

// ClientMemberships gets the active client memberships of a user
func (r *Repository) ClientMemberships(ctx context.Context, userID uuid.UUID) ([]db.ClientMembership, error) {
	q := store.From(store.TableUserClientAccess).
		Select("user_id", "client_id", "is_active", "notes").
		Eq("user_id", userID).
		Eq("is_active", true)

	rows, err := store.List[db.ClientMembership](ctx, r.store, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query client access: %w", err)
	}
	return rows, nil
}

// EndCustomerMemberships gets the active end-customer memberships of a user
func (r *Repository) EndCustomerMemberships(ctx context.Context, userID uuid.UUID) ([]db.EndCustomerMembership, error) {
	q := store.From(store.TableUserEndCustAccess).
		Select("user_id", "end_customer_id", "is_active").
		Eq("user_id", userID).
		Eq("is_active", true)

	rows, err := store.List[db.EndCustomerMembership](ctx, r.store, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query end customer access: %w", err)
	}
	return rows, nil
}

// ProjectMemberships gets the active project memberships of a user
func (r *Repository) ProjectMemberships(ctx context.Context, userID uuid.UUID) ([]db.ProjectMembership, error) {
	q := store.From(store.TableUserProjectAccess).
		Select("user_id", "project_id", "is_active").
		Eq("user_id", userID).
		Eq("is_active", true)

	rows, err := store.List[db.ProjectMembership](ctx, r.store, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query project access: %w", err)
	}
	return rows, nil
}

// MonitoringRows runs a query against the asset monitoring view
func (r *Repository) MonitoringRows(ctx context.Context, q *store.Query) ([]db.MonitoringRow, error) {
	rows, err := store.List[db.MonitoringRow](ctx, r.store, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset monitoring list: %w", err)
	}
	return rows, nil
}

// UserDevices gets the detailed device overview of a user
func (r *Repository) UserDevices(ctx context.Context, userID uuid.UUID) ([]db.UserDeviceRow, error) {
	q := store.From(store.ViewUserDevicesDetailed).
		Eq("user_id", userID.String()).
		OrderBy("last_report_date", false)

	rows, err := store.List[db.UserDeviceRow](ctx, r.store, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query user devices: %w", err)
	}
	return rows, nil
}
