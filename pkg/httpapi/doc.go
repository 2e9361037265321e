// Package httpapi exposes the LeadForge engine over a JSON HTTP API.
//
// The router serves campaign, membership, and pipeline management under
// /api, the activity feed, a manual scheduler trigger, and the operational
// endpoints /healthz, /readyz, and /metrics. Engine errors are mapped to
// HTTP statuses by their classification and code.
package httpapi
