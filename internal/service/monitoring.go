package service

import (
	"context"
	"sort"

	"github.com/septivank/asset-tracker/internal/db"
	"github.com/septivank/asset-tracker/internal/repository"
	"github.com/septivank/asset-tracker/internal/scope"
	"github.com/septivank/asset-tracker/internal/store"
	"github.com/septivank/asset-tracker/internal/telemetry"
)

// MonitoringSummary aggregates monitoring rows
type MonitoringSummary struct {
	Total       int                `json:"total"`
	LowBattery  []db.MonitoringRow `json:"low_battery"`
	ByAssetType map[string]int     `json:"by_asset_type"`
}

// MonitoringService reads the asset monitoring and user device views
type MonitoringService struct {
	repo       *repository.Repository
	classifier *telemetry.Classifier
}

// NewMonitoringService creates a new monitoring service
func NewMonitoringService(repo *repository.Repository, classifier *telemetry.Classifier) *MonitoringService {
	return &MonitoringService{repo: repo, classifier: classifier}
}

// List gets the monitoring rows of the caller's assets. A non-empty term
// matches asset name, asset type or current project.
func (s *MonitoringService) List(ctx context.Context, caller scope.Caller, term string) ([]db.MonitoringRow, error) {
	ctx = store.WithBearer(ctx, caller.Token)
	q := store.From(store.ViewAssetMonitoring)
	if term != "" {
		pattern := store.Contains(term)
		q.Or(
			store.ILikeOf("asset_name", pattern),
			store.ILikeOf("asset_type", pattern),
			store.ILikeOf("current_project", pattern),
		)
	}

	if !caller.IsAdmin() {
		scoped, ok := ScopeQuery(caller.Role, repository.ActiveAssets().Select("id"), AssetPaths)
		if !ok {
			return []db.MonitoringRow{}, nil
		}
		assets, err := s.repo.FindAssets(ctx, scoped)
		if err != nil {
			return nil, err
		}
		if len(assets) == 0 {
			return []db.MonitoringRow{}, nil
		}
		ids := make([]any, len(assets))
		for i, a := range assets {
			ids[i] = a.ID.String()
		}
		q.In("asset_id", ids)
	}

	return s.repo.MonitoringRows(ctx, q)
}

// Summary counts the caller's monitoring rows by asset type and lists the
// rows with a low battery. Rows without a battery level are never low.
func (s *MonitoringService) Summary(ctx context.Context, caller scope.Caller, term string) (MonitoringSummary, error) {
	rows, err := s.List(ctx, caller, term)
	if err != nil {
		return MonitoringSummary{}, err
	}

	summary := MonitoringSummary{
		Total:       len(rows),
		LowBattery:  []db.MonitoringRow{},
		ByAssetType: map[string]int{},
	}
	for _, r := range rows {
		summary.ByAssetType[r.AssetType]++
		if r.BatteryLevel != nil && s.classifier.IsLowBattery(*r.BatteryLevel) {
			summary.LowBattery = append(summary.LowBattery, r)
		}
	}
	sort.SliceStable(summary.LowBattery, func(i, j int) bool {
		return *summary.LowBattery[i].BatteryLevel < *summary.LowBattery[j].BatteryLevel
	})
	return summary, nil
}

// UserDevices gets the detailed device overview of the caller
func (s *MonitoringService) UserDevices(ctx context.Context, caller scope.Caller) ([]db.UserDeviceRow, error) {
	if _, denied := caller.Role.(scope.Denied); denied || caller.Role == nil {
		return []db.UserDeviceRow{}, nil
	}
	return s.repo.UserDevices(store.WithBearer(ctx, caller.Token), caller.UserID)
}
