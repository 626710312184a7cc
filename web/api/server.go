package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"appdeck/internal/repositories"
	"appdeck/internal/services"
)

// Orchestrator is the slice of the container orchestrator the API needs.
type Orchestrator interface {
	Status(ctx context.Context, projectID uint, sessionID, userID string) (services.InstanceStatus, error)
	Start(ctx context.Context, projectID uint, sessionID string, envVars map[string]string, userID string) (services.StartResult, error)
	Stop(ctx context.Context, projectID uint, sessionID string) error
}

// Reverter rewrites a session branch to a prior commit.
type Reverter interface {
	RevertToCommit(workspacePath, targetCommitSHA, credentialToken string) error
}

// Server is the HTTP API server
type Server struct {
	orchestrator Orchestrator
	reverter     Reverter
	registry     *services.SessionRegistry
	audits       repositories.RevertAuditRepository
	addr         string
	mux          *http.ServeMux
}

// NewServer creates a new API server
func NewServer(orchestrator Orchestrator, reverter Reverter, registry *services.SessionRegistry, audits repositories.RevertAuditRepository, addr string) *Server {
	s := &Server{
		orchestrator: orchestrator,
		reverter:     reverter,
		registry:     registry,
		audits:       audits,
		addr:         addr,
		mux:          http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/healthz", s.healthzHandler())
	s.mux.HandleFunc("GET /api/sessions/{project}/{session}/status", s.statusHandler())
	s.mux.HandleFunc("POST /api/sessions/{project}/{session}/start", s.startHandler())
	s.mux.HandleFunc("POST /api/sessions/{project}/{session}/stop", s.stopHandler())
	s.mux.HandleFunc("POST /api/revert", s.revertHandler())
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for tests and for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses. The
// raw error text stays server-side for anything not in the taxonomy.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, services.ErrBranchConflict):
		writeError(w, http.StatusConflict, "session branch is in a conflicting state")
	case errors.Is(err, services.ErrNotReachable):
		writeError(w, http.StatusUnprocessableEntity, "target commit is not part of this session's history")
	case errors.Is(err, services.ErrStartTimeout):
		writeError(w, http.StatusGatewayTimeout, "the preview did not start in time, please try again")
	case errors.Is(err, services.ErrResourceExhausted):
		writeError(w, http.StatusServiceUnavailable, "no capacity available right now, please try again shortly")
	case errors.Is(err, services.ErrPushRejected):
		writeError(w, http.StatusBadGateway, "the remote repository rejected the update")
	default:
		writeError(w, http.StatusInternalServerError, "something went wrong, please try again")
	}
}
