package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leadforge/leadforge/pkg/engine"
)

type createCampaignRequest struct {
	Name     string                `json:"name"`
	Sequence []engine.CampaignStep `json:"sequence"`
}

type setStatusRequest struct {
	Status engine.CampaignStatus `json:"status"`
}

func (a *api) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := a.deps.Campaigns.ListCampaigns(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaigns)
}

func (a *api) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	campaign, err := a.deps.Campaigns.CreateCampaign(r.Context(), req.Name, req.Sequence)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

type campaignDetail struct {
	*engine.CampaignDefinition
	Memberships []*engine.CampaignMembership `json:"memberships"`
}

func (a *api) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "campaignID")
	campaign, err := a.deps.Campaigns.GetCampaign(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	memberships, err := a.deps.Tracker.ListMemberships(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaignDetail{CampaignDefinition: campaign, Memberships: memberships})
}

func (a *api) handleSetCampaignStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	campaign, err := a.deps.Campaigns.SetStatus(r.Context(), chi.URLParam(r, "campaignID"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (a *api) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Campaigns.DeleteCampaign(r.Context(), chi.URLParam(r, "campaignID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
