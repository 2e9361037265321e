package httpapi

import (
	"net/http"
	"strconv"
)

const (
	defaultActivityLimit = 100
	maxActivityLimit     = 1000
)

// handleListActivity serves the activity feed, newest first, with optional
// campaign and level filters.
func (a *api) handleListActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var campaignID *string
	if v := q.Get("campaign_id"); v != "" {
		campaignID = &v
	}
	var level *string
	if v := q.Get("level"); v != "" {
		level = &v
	}

	limit := defaultActivityLimit
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	activities, err := a.deps.Store.ListActivities(r.Context(), campaignID, level, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activities)
}
