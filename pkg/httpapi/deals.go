package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leadforge/leadforge/pkg/engine"
)

type moveDealRequest struct {
	FromStage engine.StageID `json:"from_stage"`
	ToStage   engine.StageID `json:"to_stage"`
}

func (a *api) handleListDeals(w http.ResponseWriter, r *http.Request) {
	var stage *engine.StageID
	if s := r.URL.Query().Get("stage"); s != "" {
		id := engine.StageID(s)
		if err := id.Validate(); err != nil {
			writeError(w, engine.NewPermanentError("invalid stage filter", err).WithCode(engine.ErrCodeValidation))
			return
		}
		stage = &id
	}

	deals, err := a.deps.Pipeline.ListDeals(r.Context(), stage)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deals)
}

func (a *api) handleCreateDeal(w http.ResponseWriter, r *http.Request) {
	var deal engine.Deal
	if err := decodeJSON(r, &deal); err != nil {
		writeError(w, err)
		return
	}

	created, err := a.deps.Pipeline.AddDeal(r.Context(), deal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *api) handleGetDeal(w http.ResponseWriter, r *http.Request) {
	deal, err := a.deps.Pipeline.GetDeal(r.Context(), chi.URLParam(r, "dealID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

func (a *api) handleMoveDeal(w http.ResponseWriter, r *http.Request) {
	var req moveDealRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	deal, err := a.deps.Pipeline.MoveDeal(r.Context(), chi.URLParam(r, "dealID"), req.FromStage, req.ToStage)
	if err != nil {
		writeError(w, err)
		return
	}

	if a.deps.Metrics != nil {
		a.deps.Metrics.RecordStageMove(string(req.FromStage), string(req.ToStage))
	}
	writeJSON(w, http.StatusOK, deal)
}

func (a *api) handleDeleteDeal(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Pipeline.DeleteDeal(r.Context(), chi.URLParam(r, "dealID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handlePipelineStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.deps.Pipeline.ComputeStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	if a.deps.Metrics != nil {
		a.deps.Metrics.SetPipelineValue(stats.TotalValue)
		for stage, count := range stats.DealsByStage {
			a.deps.Metrics.SetDealCount(string(stage), float64(count))
		}
	}
	writeJSON(w, http.StatusOK, stats)
}
