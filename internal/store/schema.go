package store

import (
	"fmt"
	"strings"
)

// Backend table and view names
const (
	TableClients            = "clients"
	TableEndCustomers       = "end_customers"
	TableProjects           = "projects"
	TableAssets             = "assets"
	TableDevices            = "devices"
	TableDeviceData         = "device_data"
	TableUsers              = "users"
	TableUserClientAccess   = "user_client_access"
	TableUserEndCustAccess  = "user_end_customer_access"
	TableUserProjectAccess  = "user_project_access"
	ViewAssetMonitoring     = "asset_monitoring_list"
	ViewUserDevicesDetailed = "view_users_devices_detailed"
)

// Relation links a row of one table to rows of another: the related rows are
// those whose ForeignKey equals this row's LocalKey.
type Relation struct {
	Name       string
	Table      string
	LocalKey   string
	ForeignKey string
}

// relations is the static scope hierarchy:
// Client ⊇ EndCustomer ⊇ Project ⊇ Asset ⊇ Device ⊇ DeviceReading.
var relations = map[string]map[string]Relation{
	TableEndCustomers: {
		"client": {Name: "client", Table: TableClients, LocalKey: "client_id", ForeignKey: "id"},
	},
	TableProjects: {
		"end_customer": {Name: "end_customer", Table: TableEndCustomers, LocalKey: "end_customer_id", ForeignKey: "id"},
	},
	TableAssets: {
		"client":  {Name: "client", Table: TableClients, LocalKey: "client_id", ForeignKey: "id"},
		"project": {Name: "project", Table: TableProjects, LocalKey: "current_project_id", ForeignKey: "id"},
		"device":  {Name: "device", Table: TableDevices, LocalKey: "device_id", ForeignKey: "id"},
	},
	TableDevices: {
		"asset": {Name: "asset", Table: TableAssets, LocalKey: "id", ForeignKey: "device_id"},
	},
	TableDeviceData: {
		"device": {Name: "device", Table: TableDevices, LocalKey: "device_id", ForeignKey: "id"},
	},
}

// Resolve splits a possibly dotted column into the relation hops to follow from
// table and the final column on the last related table.
func Resolve(table, column string) ([]Relation, string, error) {
	parts := strings.Split(column, ".")
	hops := make([]Relation, 0, len(parts)-1)
	current := table
	for _, name := range parts[:len(parts)-1] {
		rel, ok := relations[current][name]
		if !ok {
			return nil, "", fmt.Errorf("unknown relation %q on %s", name, current)
		}
		hops = append(hops, rel)
		current = rel.Table
	}
	leaf := parts[len(parts)-1]
	if !IsIdentifier(leaf) {
		return nil, "", fmt.Errorf("invalid column %q", column)
	}
	return hops, leaf, nil
}

// RelationOf returns a single named relation of table
func RelationOf(table, name string) (Relation, bool) {
	rel, ok := relations[table][name]
	return rel, ok
}
