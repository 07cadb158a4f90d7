package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/internal/auth"
	"github.com/septivank/asset-tracker/internal/scope"
	"github.com/septivank/asset-tracker/internal/service"
)

type accessResponse struct {
	UserID     uuid.UUID      `json:"user_id"`
	Role       string         `json:"role"`
	Denied     bool           `json:"denied"`
	Grants     []scope.Record `json:"grants"`
	Visibility visibilityView `json:"visibility"`
}

type visibilityView struct {
	All            bool        `json:"all"`
	ClientIDs      []uuid.UUID `json:"client_ids"`
	EndCustomerIDs []uuid.UUID `json:"end_customer_ids"`
	ProjectIDs     []uuid.UUID `json:"project_ids"`
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	user, err := a.profiles.Get(r.Context(), auth.CallerFrom(r.Context()))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, user)
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req service.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, field := range []*string{req.FirstName, req.LastName} {
		if field != nil {
			*field = strings.TrimSpace(*field)
		}
	}

	user, err := a.profiles.Update(r.Context(), auth.CallerFrom(r.Context()), req)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, user)
}

func (a *API) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxAvatarBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, service.MaxAvatarBytes+1))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	url, err := a.profiles.UploadAvatar(r.Context(), auth.CallerFrom(r.Context()), header.Filename, contentType, data)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, map[string]string{"avatar": url})
}

func (a *API) userDevices(w http.ResponseWriter, r *http.Request) {
	rows, err := a.monitoring.UserDevices(r.Context(), auth.CallerFrom(r.Context()))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, rows)
}

// getAccess reports the caller's grants and the ids they make visible
func (a *API) getAccess(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFrom(r.Context())
	resp := accessResponse{
		UserID: caller.UserID,
		Grants: []scope.Record{},
		Visibility: visibilityView{
			ClientIDs:      []uuid.UUID{},
			EndCustomerIDs: []uuid.UUID{},
			ProjectIDs:     []uuid.UUID{},
		},
	}
	if caller.Role != nil {
		resp.Role = caller.Role.Name()
	}
	if _, denied := caller.Role.(scope.Denied); denied || caller.Role == nil {
		resp.Denied = true
		respondJSON(w, resp)
		return
	}

	v, err := a.resolver.Visibility(r.Context(), caller)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	grants := v.Grants
	if v.All {
		if grants, err = a.resolver.Resolve(r.Context(), caller.UserID); err != nil {
			a.respondError(w, r, err)
			return
		}
	}

	resp.Grants = append(resp.Grants, scope.Records(grants)...)
	resp.Visibility.All = v.All
	resp.Visibility.ClientIDs = append(resp.Visibility.ClientIDs, v.ClientIDs...)
	resp.Visibility.EndCustomerIDs = append(resp.Visibility.EndCustomerIDs, v.EndCustomerIDs...)
	resp.Visibility.ProjectIDs = append(resp.Visibility.ProjectIDs, v.ProjectIDs...)
	respondJSON(w, resp)
}
