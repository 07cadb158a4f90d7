package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/internal/auth"
	"github.com/septivank/asset-tracker/internal/repository"
	"github.com/septivank/asset-tracker/internal/validator"
)

// filter reads the ids and parent-id query parameters of a list request
func (a *API) filter(r *http.Request, parentParam string) (repository.Filter, error) {
	ids, err := a.validator.ParseUUIDs("ids", r.URL.Query().Get("ids"))
	if err != nil {
		return repository.Filter{}, err
	}
	parents, err := a.validator.ParseUUIDs(parentParam, r.URL.Query().Get(parentParam))
	if err != nil {
		return repository.Filter{}, err
	}
	return repository.Filter{IDs: ids, ParentIDs: parents}, nil
}

func (a *API) listClients(w http.ResponseWriter, r *http.Request) {
	ids, err := a.validator.ParseUUIDs("ids", r.URL.Query().Get("ids"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	clients, err := a.hierarchy.Clients(r.Context(), auth.CallerFrom(r.Context()), ids)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, clients)
}

func (a *API) listEndCustomers(w http.ResponseWriter, r *http.Request) {
	f, err := a.filter(r, "client_ids")
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	rows, err := a.hierarchy.EndCustomers(r.Context(), auth.CallerFrom(r.Context()), f)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, rows)
}

func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	f, err := a.filter(r, "end_customer_ids")
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	rows, err := a.hierarchy.Projects(r.Context(), auth.CallerFrom(r.Context()), f)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, rows)
}

func (a *API) listAssets(w http.ResponseWriter, r *http.Request) {
	f, err := a.filter(r, "project_ids")
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	clientIDs, err := a.validator.ParseUUIDs("client_ids", r.URL.Query().Get("client_ids"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	rows, err := a.hierarchy.Assets(r.Context(), auth.CallerFrom(r.Context()), repository.AssetFilter{Filter: f, ClientIDs: clientIDs})
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, rows)
}

func (a *API) assetsOverview(w http.ResponseWriter, r *http.Request) {
	views, err := a.assets.AssetsWithDevices(r.Context(), auth.CallerFrom(r.Context()))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, views)
}

func (a *API) getAsset(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.respondError(w, r, &validator.ValidationError{Field: "id", Reason: "not a uuid"})
		return
	}
	view, err := a.assets.AssetWithDevices(r.Context(), auth.CallerFrom(r.Context()), id)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, view)
}

func (a *API) listDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := a.assets.DevicesWithLatest(r.Context(), auth.CallerFrom(r.Context()))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, devices)
}

func (a *API) latestReadings(w http.ResponseWriter, r *http.Request) {
	ids, err := a.validator.ParseDeviceIDs("ids", r.URL.Query().Get("ids"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	readings, err := a.assets.LatestForDevices(r.Context(), auth.CallerFrom(r.Context()), ids)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, readings)
}

func (a *API) deviceHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		a.respondError(w, r, &validator.ValidationError{Field: "id", Reason: "not a device id"})
		return
	}
	window, err := a.validator.ValidateHistoryRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	readings, err := a.assets.DeviceHistory(r.Context(), auth.CallerFrom(r.Context()), id, window)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, readings)
}

func (a *API) search(w http.ResponseWriter, r *http.Request) {
	term, err := a.validator.ValidateSearchTerm(r.URL.Query().Get("q"), true)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	result, err := a.assets.Search(r.Context(), auth.CallerFrom(r.Context()), term)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, result)
}

func (a *API) monitoringList(w http.ResponseWriter, r *http.Request) {
	term, err := a.validator.ValidateSearchTerm(r.URL.Query().Get("q"), false)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	rows, err := a.monitoring.List(r.Context(), auth.CallerFrom(r.Context()), term)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, rows)
}

func (a *API) monitoringSummary(w http.ResponseWriter, r *http.Request) {
	term, err := a.validator.ValidateSearchTerm(r.URL.Query().Get("q"), false)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	summary, err := a.monitoring.Summary(r.Context(), auth.CallerFrom(r.Context()), term)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, summary)
}

func (a *API) workspaceSnapshot(w http.ResponseWriter, r *http.Request) {
	refresh := false
	if raw := r.URL.Query().Get("refresh"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			a.respondError(w, r, &validator.ValidationError{Field: "refresh", Reason: fmt.Sprintf("%q is not a boolean", raw)})
			return
		}
		refresh = v
	}

	snap, err := a.workspaces.Snapshot(r.Context(), auth.CallerFrom(r.Context()), chi.URLParam(r, "kind"), refresh)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, snap)
}

func (a *API) invalidateWorkspace(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFrom(r.Context())
	if err := a.workspaces.Invalidate(r.Context(), caller.UserID); err != nil {
		a.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
