package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/internal/db"
	"github.com/septivank/asset-tracker/internal/repository"
	"github.com/septivank/asset-tracker/internal/scope"
	"github.com/septivank/asset-tracker/internal/store"
	"github.com/septivank/asset-tracker/internal/telemetry"
	"github.com/septivank/asset-tracker/internal/validator"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EndCustomerView is an end customer with its client
type EndCustomerView struct {
	db.EndCustomer
	Client *db.Client `json:"client"`
}

// ProjectView is a project with its end customer chain
type ProjectView struct {
	db.Project
	EndCustomer *EndCustomerView `json:"end_customer"`
}

// DeviceView is a device with its latest reading and health
type DeviceView struct {
	db.Device
	LatestData *db.DeviceReading `json:"latest_data"`
	Health     telemetry.Health  `json:"health"`
}

// AssetView is an asset with its project chain and devices
type AssetView struct {
	db.Asset
	Project *ProjectView `json:"project"`
	Devices []DeviceView `json:"devices"`
}

// AssetSummary is an asset with its project chain, as embedded in a device
type AssetSummary struct {
	db.Asset
	Project *ProjectView `json:"project"`
}

// DeviceWithAsset is a device with its asset and latest reading
type DeviceWithAsset struct {
	DeviceView
	Asset *AssetSummary `json:"asset"`
}

// SearchResult holds the assets and devices matching a search term
type SearchResult struct {
	Assets  []db.Asset  `json:"assets"`
	Devices []db.Device `json:"devices"`
}

// AssetService runs the role-scoped composite asset and device reads.
//
// Composite reads fan out per-device latest-reading lookups and join them.
// If any lookup fails the whole read fails and completed lookups are
// discarded. Partial results are never returned.
type AssetService struct {
	repo       *repository.Repository
	classifier *telemetry.Classifier
	fanout     int
	now        func() time.Time
	logger     *zap.Logger
}

// NewAssetService creates a new asset service. fanout bounds concurrent
// latest-reading lookups; zero means unbounded.
func NewAssetService(repo *repository.Repository, classifier *telemetry.Classifier, fanout int, logger *zap.Logger) *AssetService {
	return &AssetService{
		repo:       repo,
		classifier: classifier,
		fanout:     fanout,
		now:        time.Now,
		logger:     logger,
	}
}

// AssetsWithDevices gets the caller's active assets with their project chain
// and their devices with latest readings
func (s *AssetService) AssetsWithDevices(ctx context.Context, caller scope.Caller) ([]AssetView, error) {
	q, ok := ScopeQuery(caller.Role, repository.ActiveAssets(), AssetPaths)
	if !ok {
		return []AssetView{}, nil
	}
	ctx = store.WithBearer(ctx, caller.Token)

	assets, err := s.repo.FindAssets(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.assemble(ctx, assets)
}

// AssetWithDevices gets one asset of the caller's scope. An asset outside the
// scope is reported as store.ErrNotFound.
func (s *AssetService) AssetWithDevices(ctx context.Context, caller scope.Caller, assetID uuid.UUID) (*AssetView, error) {
	q, ok := ScopeQuery(caller.Role, repository.ActiveAssets().Eq("id", assetID), AssetPaths)
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", assetID, store.ErrNotFound)
	}
	ctx = store.WithBearer(ctx, caller.Token)

	asset, err := s.repo.FindAsset(ctx, q)
	if err != nil {
		return nil, err
	}
	views, err := s.assemble(ctx, []db.Asset{*asset})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// DevicesWithLatest gets the caller's active devices with their asset chain
// and latest reading
func (s *AssetService) DevicesWithLatest(ctx context.Context, caller scope.Caller) ([]DeviceWithAsset, error) {
	q, ok := ScopeQuery(caller.Role, repository.ActiveDevices(), DevicePaths)
	if !ok {
		return []DeviceWithAsset{}, nil
	}
	ctx = store.WithBearer(ctx, caller.Token)

	devices, err := s.repo.FindDevices(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return []DeviceWithAsset{}, nil
	}

	ids := make([]int64, len(devices))
	for i, d := range devices {
		ids[i] = d.ID
	}

	var (
		assets  []db.Asset
		chains  map[uuid.UUID]*ProjectView
		latest  map[int64]*db.DeviceReading
		g, gctx = errgroup.WithContext(ctx)
	)
	g.Go(func() error {
		var err error
		assets, err = s.repo.FindAssets(gctx, repository.ActiveAssets().In("device_id", store.Values(ids)))
		if err != nil {
			return err
		}
		chains, err = s.projectChains(gctx, assets)
		return err
	})
	g.Go(func() error {
		var err error
		latest, err = s.latestReadings(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byDevice := make(map[int64]*AssetSummary, len(assets))
	for _, a := range assets {
		if a.DeviceID == nil {
			continue
		}
		summary := &AssetSummary{Asset: a}
		if a.CurrentProjectID != nil {
			summary.Project = chains[*a.CurrentProjectID]
		}
		byDevice[*a.DeviceID] = summary
	}

	now := s.now()
	out := make([]DeviceWithAsset, len(devices))
	for i, d := range devices {
		out[i] = DeviceWithAsset{
			DeviceView: s.deviceView(d, latest[d.ID], now),
			Asset:      byDevice[d.ID],
		}
	}
	return out, nil
}

// DeviceHistory gets the readings of a device of the caller's scope within r,
// oldest first
func (s *AssetService) DeviceHistory(ctx context.Context, caller scope.Caller, deviceID int64, r validator.HistoryRange) ([]db.DeviceReading, error) {
	if err := s.requireDevices(ctx, caller, []int64{deviceID}); err != nil {
		return nil, err
	}
	return s.repo.ReadingHistory(store.WithBearer(ctx, caller.Token), deviceID, r.From, r.To)
}

// LatestForDevices gets the most recent readings across the requested
// devices that lie in the caller's scope. Devices outside the scope are
// dropped silently.
func (s *AssetService) LatestForDevices(ctx context.Context, caller scope.Caller, deviceIDs []int64) ([]db.DeviceReading, error) {
	if len(deviceIDs) == 0 {
		return []db.DeviceReading{}, nil
	}
	q, ok := ScopeQuery(caller.Role, repository.ActiveDevices().Select("id").In("id", store.Values(deviceIDs)), DevicePaths)
	if !ok {
		return []db.DeviceReading{}, nil
	}
	ctx = store.WithBearer(ctx, caller.Token)

	visible, err := s.repo.FindDevices(ctx, q)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(visible))
	for i, d := range visible {
		ids[i] = d.ID
	}
	return s.repo.LatestReadings(ctx, ids)
}

// Search finds the caller's assets by name and devices by name or EUI. Both
// searches run concurrently; either failing fails the search.
func (s *AssetService) Search(ctx context.Context, caller scope.Caller, term string) (SearchResult, error) {
	pattern := store.Contains(term)
	assetQuery, ok := ScopeQuery(caller.Role, repository.ActiveAssets().ILike("name", pattern), AssetPaths)
	if !ok {
		return SearchResult{Assets: []db.Asset{}, Devices: []db.Device{}}, nil
	}
	deviceQuery, _ := ScopeQuery(caller.Role,
		repository.ActiveDevices().Or(store.ILikeOf("name", pattern), store.ILikeOf("device_eui", pattern)),
		DevicePaths)
	ctx = store.WithBearer(ctx, caller.Token)

	var result SearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		result.Assets, err = s.repo.FindAssets(gctx, assetQuery)
		return err
	})
	g.Go(func() error {
		var err error
		result.Devices, err = s.repo.FindDevices(gctx, deviceQuery)
		return err
	})
	if err := g.Wait(); err != nil {
		return SearchResult{}, fmt.Errorf("search %q: %w", term, err)
	}
	return result, nil
}

// requireDevices fails with store.ErrNotFound unless every device is in scope
func (s *AssetService) requireDevices(ctx context.Context, caller scope.Caller, ids []int64) error {
	q, ok := ScopeQuery(caller.Role, repository.ActiveDevices().Select("id").In("id", store.Values(ids)), DevicePaths)
	if !ok {
		return fmt.Errorf("device %v: %w", ids, store.ErrNotFound)
	}
	found, err := s.repo.FindDevices(store.WithBearer(ctx, caller.Token), q)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return fmt.Errorf("device %v: %w", ids, store.ErrNotFound)
	}
	return nil
}

// assemble attaches the project chain and devices to assets
func (s *AssetService) assemble(ctx context.Context, assets []db.Asset) ([]AssetView, error) {
	if len(assets) == 0 {
		return []AssetView{}, nil
	}

	var deviceIDs []int64
	for _, a := range assets {
		if a.DeviceID != nil {
			deviceIDs = append(deviceIDs, *a.DeviceID)
		}
	}

	var (
		chains  map[uuid.UUID]*ProjectView
		devices []db.Device
		latest  map[int64]*db.DeviceReading
		g, gctx = errgroup.WithContext(ctx)
	)
	g.Go(func() error {
		var err error
		chains, err = s.projectChains(gctx, assets)
		return err
	})
	g.Go(func() error {
		var err error
		if devices, err = s.repo.Devices(gctx, deviceIDs); err != nil {
			return err
		}
		latest, err = s.latestReadings(gctx, deviceIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[int64]db.Device, len(devices))
	for _, d := range devices {
		byID[d.ID] = d
	}

	now := s.now()
	out := make([]AssetView, len(assets))
	for i, a := range assets {
		view := AssetView{Asset: a, Devices: []DeviceView{}}
		if a.CurrentProjectID != nil {
			view.Project = chains[*a.CurrentProjectID]
		}
		if a.DeviceID != nil {
			if d, ok := byID[*a.DeviceID]; ok {
				view.Devices = append(view.Devices, s.deviceView(d, latest[d.ID], now))
			}
		}
		out[i] = view
	}
	return out, nil
}

func (s *AssetService) deviceView(d db.Device, latest *db.DeviceReading, now time.Time) DeviceView {
	return DeviceView{Device: d, LatestData: latest, Health: s.classifier.Classify(latest, now)}
}

// projectChains loads project → end customer → client for the assets'
// current projects
func (s *AssetService) projectChains(ctx context.Context, assets []db.Asset) (map[uuid.UUID]*ProjectView, error) {
	var projectIDs []uuid.UUID
	for _, a := range assets {
		if a.CurrentProjectID != nil {
			projectIDs = append(projectIDs, *a.CurrentProjectID)
		}
	}
	chains := map[uuid.UUID]*ProjectView{}
	if len(projectIDs) == 0 {
		return chains, nil
	}

	projects, err := s.repo.Projects(ctx, repository.Filter{IDs: projectIDs})
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return chains, nil
	}
	ecIDs := make([]uuid.UUID, 0, len(projects))
	for _, p := range projects {
		ecIDs = append(ecIDs, p.EndCustomerID)
	}
	endCustomers, err := s.repo.EndCustomers(ctx, repository.Filter{IDs: ecIDs})
	if err != nil {
		return nil, err
	}
	clientIDs := make([]uuid.UUID, 0, len(endCustomers))
	for _, ec := range endCustomers {
		clientIDs = append(clientIDs, ec.ClientID)
	}
	var clients []db.Client
	if len(clientIDs) > 0 {
		if clients, err = s.repo.Clients(ctx, clientIDs); err != nil {
			return nil, err
		}
	}

	clientByID := make(map[uuid.UUID]*db.Client, len(clients))
	for i := range clients {
		clientByID[clients[i].ID] = &clients[i]
	}
	ecByID := make(map[uuid.UUID]*EndCustomerView, len(endCustomers))
	for _, ec := range endCustomers {
		ecByID[ec.ID] = &EndCustomerView{EndCustomer: ec, Client: clientByID[ec.ClientID]}
	}
	for _, p := range projects {
		chains[p.ID] = &ProjectView{Project: p, EndCustomer: ecByID[p.EndCustomerID]}
	}
	return chains, nil
}

// latestReadings looks up the latest reading of every device concurrently
func (s *AssetService) latestReadings(ctx context.Context, ids []int64) (map[int64]*db.DeviceReading, error) {
	out := make(map[int64]*db.DeviceReading, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if s.fanout > 0 {
		g.SetLimit(s.fanout)
	}
	for _, id := range ids {
		id := id
		g.Go(func() error {
			reading, err := s.repo.LatestReading(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = reading
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("latest reading batch failed", zap.Int("devices", len(ids)), zap.Error(err))
		return nil, err
	}
	return out, nil
}
