// Package api is the HTTP surface of the member access service: the
// authenticated check endpoint plus the project, ruleset, event and
// analytics management API.
package api

import (
	"net/http"
	"time"

	"github.com/memberguard/memberguard/internal/chread"
	"github.com/memberguard/memberguard/internal/storage"
	"github.com/memberguard/memberguard/internal/store"
	"go.uber.org/zap"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Store    *store.Store
	Writer   storage.EventWriter
	Reader   *chread.Reader // nil if ClickHouse unavailable
	Logger   *zap.Logger
	CacheTTL time.Duration
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Check endpoint (auth required via Bearer mbg_ key)
	mux.HandleFunc("POST /v1/access", deps.authMiddleware(deps.handleCheck))

	// Project CRUD (no auth — dashboard auth added later)
	mux.HandleFunc("POST /api/memberguard/projects", deps.handleCreateProject)
	mux.HandleFunc("GET /api/memberguard/projects", deps.handleListProjects)
	mux.HandleFunc("GET /api/memberguard/projects/{project_id}", deps.handleGetProject)
	mux.HandleFunc("PATCH /api/memberguard/projects/{project_id}", deps.handleUpdateProject)
	mux.HandleFunc("DELETE /api/memberguard/projects/{project_id}", deps.handleDeleteProject)
	mux.HandleFunc("POST /api/memberguard/projects/{project_id}/rotate-key", deps.handleRotateKey)

	// Ruleset (no auth)
	mux.HandleFunc("GET /api/memberguard/projects/{project_id}/ruleset", deps.handleGetRuleset)
	mux.HandleFunc("PUT /api/memberguard/projects/{project_id}/ruleset", deps.handleReplaceRuleset)

	// Events & Analytics (no auth)
	mux.HandleFunc("GET /api/memberguard/events", deps.handleListEvents)
	mux.HandleFunc("GET /api/memberguard/events/{request_id}", deps.handleGetEvent)
	mux.HandleFunc("GET /api/memberguard/analytics", deps.handleGetAnalytics)

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
