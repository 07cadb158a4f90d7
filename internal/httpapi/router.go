// Package httpapi exposes the role-scoped reads as a JSON HTTP API
package httpapi

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/septivank/asset-tracker/internal/access"
	"github.com/septivank/asset-tracker/internal/auth"
	"github.com/septivank/asset-tracker/internal/service"
	"github.com/septivank/asset-tracker/internal/state"
	"github.com/septivank/asset-tracker/internal/validator"
	"go.uber.org/zap"
)

// Check reports whether a dependency is usable
type Check func(ctx context.Context) error

// API holds the services behind the HTTP handlers
type API struct {
	callers    *service.CallerService
	resolver   *access.Resolver
	hierarchy  *service.HierarchyService
	assets     *service.AssetService
	monitoring *service.MonitoringService
	profiles   *service.ProfileService
	workspaces *state.Registry
	validator  *validator.Validator
	logger     *zap.Logger

	mu     sync.Mutex
	checks map[string]Check
}

// NewAPI creates the handler set
func NewAPI(
	callers *service.CallerService,
	resolver *access.Resolver,
	hierarchy *service.HierarchyService,
	assets *service.AssetService,
	monitoring *service.MonitoringService,
	profiles *service.ProfileService,
	workspaces *state.Registry,
	validator *validator.Validator,
	logger *zap.Logger,
) *API {
	return &API{
		callers:    callers,
		resolver:   resolver,
		hierarchy:  hierarchy,
		assets:     assets,
		monitoring: monitoring,
		profiles:   profiles,
		workspaces: workspaces,
		validator:  validator,
		logger:     logger,
		checks:     map[string]Check{},
	}
}

// AddCheck registers a readiness check
func (a *API) AddCheck(name string, check Check) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checks[name] = check
}

// NewRouter builds the routes. Every /v1 route requires a session token.
func NewRouter(a *API, verifier *auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, requestLogger(a.logger))

	r.Group(func(protected chi.Router) {
		protected.Use(auth.RequireSession(verifier), a.resolveCaller)

		protected.Get("/v1/me", a.getProfile)
		protected.Patch("/v1/me", a.updateProfile)
		protected.Post("/v1/me/avatar", a.uploadAvatar)
		protected.Get("/v1/me/devices", a.userDevices)
		protected.Get("/v1/access", a.getAccess)

		protected.Get("/v1/clients", a.listClients)
		protected.Get("/v1/end-customers", a.listEndCustomers)
		protected.Get("/v1/projects", a.listProjects)
		protected.Get("/v1/assets", a.listAssets)
		protected.Get("/v1/assets/overview", a.assetsOverview)
		protected.Get("/v1/assets/{id}", a.getAsset)

		protected.Get("/v1/devices", a.listDevices)
		protected.Get("/v1/devices/latest", a.latestReadings)
		protected.Get("/v1/devices/{id}/history", a.deviceHistory)

		protected.Get("/v1/search", a.search)
		protected.Get("/v1/monitoring", a.monitoringList)
		protected.Get("/v1/monitoring/summary", a.monitoringSummary)

		protected.Get("/v1/workspace/{kind}", a.workspaceSnapshot)
		protected.Post("/v1/workspace/invalidate", a.invalidateWorkspace)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", a.ready)
	return r
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	checks := make(map[string]Check, len(a.checks))
	for name, c := range a.checks {
		checks[name] = c
	}
	a.mu.Unlock()

	status := http.StatusOK
	result := make(map[string]string, len(checks))
	for name, check := range checks {
		if err := check(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			result[name] = err.Error()
			continue
		}
		result[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	respondJSON(w, result)
}
