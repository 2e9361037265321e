package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type addProspectRequest struct {
	ProspectID string `json:"prospect_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
}

type overrideStepRequest struct {
	StepIndex int `json:"step_index"`
}

func (a *api) handleListMemberships(w http.ResponseWriter, r *http.Request) {
	memberships, err := a.deps.Tracker.ListMemberships(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memberships)
}

func (a *api) handleAddProspect(w http.ResponseWriter, r *http.Request) {
	var req addProspectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	membership, err := a.deps.Tracker.AddProspect(r.Context(),
		chi.URLParam(r, "campaignID"), req.ProspectID, req.Name, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, membership)
}

func (a *api) handleGetMembership(w http.ResponseWriter, r *http.Request) {
	membership, err := a.deps.Tracker.GetMembership(r.Context(),
		chi.URLParam(r, "campaignID"), chi.URLParam(r, "prospectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, membership)
}

// handleOverrideStep is the operator escape hatch: it sets the step index
// directly, including backwards, bypassing the scheduler's monotonic guard.
func (a *api) handleOverrideStep(w http.ResponseWriter, r *http.Request) {
	var req overrideStepRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	membership, err := a.deps.Tracker.OverrideStep(r.Context(),
		chi.URLParam(r, "campaignID"), chi.URLParam(r, "prospectID"), req.StepIndex)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, membership)
}

// handleGetProspect resolves contact data across campaigns.
func (a *api) handleGetProspect(w http.ResponseWriter, r *http.Request) {
	prospect, err := a.deps.Store.GetProspect(r.Context(), chi.URLParam(r, "prospectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prospect)
}

func (a *api) handleRemoveProspect(w http.ResponseWriter, r *http.Request) {
	err := a.deps.Tracker.RemoveProspect(r.Context(),
		chi.URLParam(r, "campaignID"), chi.URLParam(r, "prospectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
