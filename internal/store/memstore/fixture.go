package memstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/internal/db"
	"github.com/septivank/asset-tracker/internal/store"
)

// Fixture is a small two-client hierarchy:
//
//	Client1 ─ EndCustomer1 ─┬ Project1 ─ Asset1 (device 1, three readings)
//	                        └ Project2 ─ Asset2 (device 2, low battery)
//	Client1 ─ Asset4 (no project, no device)
//	Client2 ─ EndCustomer2 ─ Project3 ─ Asset3 (device 3)
//
// Asset5 is an inactive asset of Project1. Device 4 backs no asset.
type Fixture struct {
	Client1, Client2             uuid.UUID
	EndCustomer1, EndCustomer2   uuid.UUID
	Project1, Project2, Project3 uuid.UUID
	Asset1, Asset2, Asset3       uuid.UUID
	Asset4, Asset5               uuid.UUID
	T1, T2, T3                   time.Time
}

// Seed fills s with the fixture hierarchy
func Seed(s *Store) Fixture {
	f := Fixture{
		Client1: uuid.New(), Client2: uuid.New(),
		EndCustomer1: uuid.New(), EndCustomer2: uuid.New(),
		Project1: uuid.New(), Project2: uuid.New(), Project3: uuid.New(),
		Asset1: uuid.New(), Asset2: uuid.New(), Asset3: uuid.New(),
		Asset4: uuid.New(), Asset5: uuid.New(),
		T1: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	f.T2 = f.T1.Add(time.Hour)
	f.T3 = f.T2.Add(time.Hour)

	device := func(id int64) *int64 { return &id }
	project := func(id uuid.UUID) *uuid.UUID { return &id }
	low := "low"

	s.Insert(store.TableClients,
		db.Client{ID: f.Client1, Name: "Northwind", IsActive: true},
		db.Client{ID: f.Client2, Name: "Contoso", IsActive: true},
	)
	s.Insert(store.TableEndCustomers,
		db.EndCustomer{ID: f.EndCustomer1, ClientID: f.Client1, Name: "Harbor Works", IsActive: true},
		db.EndCustomer{ID: f.EndCustomer2, ClientID: f.Client2, Name: "Rail Freight", IsActive: true},
	)
	s.Insert(store.TableProjects,
		db.Project{ID: f.Project1, EndCustomerID: f.EndCustomer1, Name: "Quay 1", IsActive: true},
		db.Project{ID: f.Project2, EndCustomerID: f.EndCustomer1, Name: "Quay 2", IsActive: true},
		db.Project{ID: f.Project3, EndCustomerID: f.EndCustomer2, Name: "Depot", IsActive: true},
	)
	s.Insert(store.TableAssets,
		db.Asset{ID: f.Asset1, ClientID: f.Client1, CurrentProjectID: project(f.Project1), DeviceID: device(1), Name: "Crane A", AssetType: "crane", IsActive: true},
		db.Asset{ID: f.Asset2, ClientID: f.Client1, CurrentProjectID: project(f.Project2), DeviceID: device(2), Name: "Reach Stacker", AssetType: "vehicle", IsActive: true},
		db.Asset{ID: f.Asset3, ClientID: f.Client2, CurrentProjectID: project(f.Project3), DeviceID: device(3), Name: "Wagon 12", AssetType: "wagon", IsActive: true},
		db.Asset{ID: f.Asset4, ClientID: f.Client1, Name: "Spare Container", AssetType: "container", IsActive: true},
		db.Asset{ID: f.Asset5, ClientID: f.Client1, CurrentProjectID: project(f.Project1), Name: "Retired Crane", AssetType: "crane", IsActive: false},
	)
	s.Insert(store.TableDevices,
		db.Device{ID: 1, DeviceEUI: "70B3D57ED0000001", Name: "tracker-1", IsActive: true},
		db.Device{ID: 2, DeviceEUI: "70B3D57ED0000002", Name: "tracker-2", IsActive: true},
		db.Device{ID: 3, DeviceEUI: "70B3D57ED0000003", Name: "tracker-3", IsActive: true},
		db.Device{ID: 4, DeviceEUI: "70B3D57ED0000004", Name: "tracker-4", IsActive: true},
	)
	s.Insert(store.TableDeviceData,
		db.DeviceReading{ID: 11, DeviceID: 1, Latitude: 51.9, Longitude: 4.4, Temperature: 12, BatteryLevel: 90, Timestamp: f.T1},
		db.DeviceReading{ID: 12, DeviceID: 1, Latitude: 51.91, Longitude: 4.41, Temperature: 13, BatteryLevel: 89, Timestamp: f.T2},
		db.DeviceReading{ID: 13, DeviceID: 1, Latitude: 51.92, Longitude: 4.42, Temperature: 14, BatteryLevel: 88, Timestamp: f.T3},
		db.DeviceReading{ID: 21, DeviceID: 2, Latitude: 51.8, Longitude: 4.3, Temperature: 9, BatteryLevel: 10, BatteryStatus: &low, Timestamp: f.T2},
		db.DeviceReading{ID: 31, DeviceID: 3, Latitude: 52.1, Longitude: 5.1, Temperature: 7, BatteryLevel: 55, Timestamp: f.T1},
	)
	return f
}
