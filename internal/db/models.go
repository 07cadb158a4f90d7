package db

import (
	"time"

	"github.com/google/uuid"
)

// Client represents a top-level customer organisation
type Client struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsActive bool      `json:"is_active"`
}

// EndCustomer represents a customer of a client
type EndCustomer struct {
	ID       uuid.UUID `json:"id"`
	ClientID uuid.UUID `json:"client_id"`
	Name     string    `json:"name"`
	IsActive bool      `json:"is_active"`
}

// Project represents a project run for an end customer
type Project struct {
	ID            uuid.UUID `json:"id"`
	EndCustomerID uuid.UUID `json:"end_customer_id"`
	Name          string    `json:"name"`
	IsActive      bool      `json:"is_active"`
}

// Asset represents a tracked asset owned by a client
type Asset struct {
	ID               uuid.UUID  `json:"id"`
	ClientID         uuid.UUID  `json:"client_id"`
	CurrentProjectID *uuid.UUID `json:"current_project_id"`
	DeviceID         *int64     `json:"device_id"`
	Name             string     `json:"name"`
	AssetType        string     `json:"asset_type"`
	IsActive         bool       `json:"is_active"`
}

// Device represents a tracker device
type Device struct {
	ID        int64  `json:"id"`
	DeviceEUI string `json:"device_eui"`
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
}

// DeviceReading represents one telemetry row of a device
type DeviceReading struct {
	ID            int64     `json:"id"`
	DeviceID      int64     `json:"device_id"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Temperature   float64   `json:"temperature"`
	BatteryLevel  float64   `json:"battery_level"`
	BatteryStatus *string   `json:"battery_status"`
	Timestamp     time.Time `json:"timestamp"`
}

// User represents a dashboard user profile
type User struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	FirstName     *string    `json:"first_name"`
	LastName      *string    `json:"last_name"`
	Role          string     `json:"role"`
	ClientID      *uuid.UUID `json:"client_id"`
	EndCustomerID *uuid.UUID `json:"end_customer_id"`
	ProjectID     *uuid.UUID `json:"project_id"`
	Avatar        *string    `json:"avatar"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// ProfileRow is the writable subset of a user row
type ProfileRow struct {
	ID        uuid.UUID `json:"id"`
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Avatar    *string   `json:"avatar"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClientMembership is a row of user_client_access
type ClientMembership struct {
	UserID   uuid.UUID `json:"user_id"`
	ClientID uuid.UUID `json:"client_id"`
	IsActive bool      `json:"is_active"`
	Notes    *string   `json:"notes"`
}

// EndCustomerMembership is a row of user_end_customer_access
type EndCustomerMembership struct {
	UserID        uuid.UUID `json:"user_id"`
	EndCustomerID uuid.UUID `json:"end_customer_id"`
	IsActive      bool      `json:"is_active"`
}

// ProjectMembership is a row of user_project_access
type ProjectMembership struct {
	UserID    uuid.UUID `json:"user_id"`
	ProjectID uuid.UUID `json:"project_id"`
	IsActive  bool      `json:"is_active"`
}

// MonitoringRow is a row of the asset_monitoring_list view. The reading
// columns are null for assets without a reading.
type MonitoringRow struct {
	AssetID            string    `json:"asset_id"`
	AssetName          string    `json:"asset_name"`
	AssetType          string    `json:"asset_type"`
	CurrentProject     string    `json:"current_project"`
	LastLocationUpdate time.Time `json:"last_location_update"`
	BatteryLevel       *float64  `json:"battery_level"`
	Temperature        *float64  `json:"temperature"`
	Longitude          *float64  `json:"longitude"`
	Latitude           *float64  `json:"latitude"`
}

// UserDeviceRow is a row of the view_users_devices_detailed view
type UserDeviceRow struct {
	ID                int64     `json:"id"`
	DeviceID          int64     `json:"device_id"`
	DeviceEUI         string    `json:"device_eui"`
	DeviceName        string    `json:"device_name"`
	CompanyID         int64     `json:"company_id"`
	CompanyName       string    `json:"company_name"`
	DivisionID        int64     `json:"division_id"`
	DivisionName      string    `json:"division_name"`
	LastBatteryLevel  float64   `json:"last_battery_level"`
	LastBatteryStatus string    `json:"last_battery_status"`
	LastLatitude      float64   `json:"last_latitude"`
	LastLongitude     float64   `json:"last_longitude"`
	LastReportDate    time.Time `json:"last_report_date"`
	LastTemperature   float64   `json:"last_temperature"`
	UserEmail         string    `json:"user_email"`
	UserID            string    `json:"user_id"`
	UserRole          string    `json:"user_role"`
}
