package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/leadforge/leadforge/pkg/engine"
	"github.com/leadforge/leadforge/pkg/stores"
	"github.com/leadforge/leadforge/pkg/telemetry"
)

// Deps bundles the collaborators the API serves.
type Deps struct {
	Logger    *telemetry.Logger
	Metrics   *telemetry.Metrics
	Campaigns *engine.CampaignManager
	Tracker   *engine.Tracker
	Pipeline  *engine.Pipeline
	Scheduler *engine.DripScheduler
	Store     stores.Store
}

type api struct {
	deps Deps
}

// NewRouter builds the HTTP handler for the LeadForge API.
func NewRouter(deps Deps) http.Handler {
	a := &api{deps: deps}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	if deps.Logger != nil {
		mux.Use(requestLogger(deps.Logger.NewComponentLogger("httpapi")))
	}

	mux.Get("/healthz", a.handleHealthz)
	mux.Get("/readyz", a.handleReadyz)
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics.Handler())
	}

	mux.Route("/api", func(r chi.Router) {
		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", a.handleListCampaigns)
			r.Post("/", a.handleCreateCampaign)
			r.Route("/{campaignID}", func(r chi.Router) {
				r.Get("/", a.handleGetCampaign)
				r.Patch("/", a.handleSetCampaignStatus)
				r.Delete("/", a.handleDeleteCampaign)

				r.Route("/prospects", func(r chi.Router) {
					r.Get("/", a.handleListMemberships)
					r.Post("/", a.handleAddProspect)
					r.Route("/{prospectID}", func(r chi.Router) {
						r.Get("/", a.handleGetMembership)
						r.Patch("/", a.handleOverrideStep)
						r.Delete("/", a.handleRemoveProspect)
					})
				})
			})
		})

		r.Route("/deals", func(r chi.Router) {
			r.Get("/", a.handleListDeals)
			r.Post("/", a.handleCreateDeal)
			r.Route("/{dealID}", func(r chi.Router) {
				r.Get("/", a.handleGetDeal)
				r.Patch("/", a.handleMoveDeal)
				r.Delete("/", a.handleDeleteDeal)
			})
		})

		r.Get("/prospects/{prospectID}", a.handleGetProspect)

		r.Get("/pipeline/stats", a.handlePipelineStats)
		r.Get("/activity", a.handleListActivity)
		r.Post("/scheduler/tick", a.handleTick)
	})

	return mux
}

func (a *api) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports readiness; a failing store health check returns 503.
func (a *api) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.deps.Store != nil {
		if err := a.deps.Store.HealthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleTick runs one scheduler pass on demand and returns the report.
func (a *api) handleTick(w http.ResponseWriter, r *http.Request) {
	if a.deps.Scheduler == nil {
		writeError(w, engine.NewPermanentError("scheduler not configured", nil).WithCode(engine.ErrCodeInternal))
		return
	}
	report, err := a.deps.Scheduler.Tick(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
