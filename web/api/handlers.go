package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"appdeck/internal/models"
)

// StatusResponse is the API response for an instance status check. URL is
// null while no instance is serving.
type StatusResponse struct {
	Running      bool    `json:"running"`
	URL          *string `json:"url"`
	IsResponding bool    `json:"isResponding"`
}

// StartResponse is the API response for a start request
type StartResponse struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

// RevertRequest is the request body for a revert
type RevertRequest struct {
	WorkspacePath string `json:"workspacePath"`
	CommitSHA     string `json:"commitSha"`
	MessageID     string `json:"messageId,omitempty"`
}

// RevertResponse is the API response for a revert
type RevertResponse struct {
	Success          bool   `json:"success"`
	RevertedToCommit string `json:"revertedToCommit"`
}

// sessionParams pulls the session key out of the route. The session segment
// is validated further down in the registry.
func sessionParams(r *http.Request) (uint, string, bool) {
	project, err := strconv.ParseUint(r.PathValue("project"), 10, 32)
	if err != nil {
		return 0, "", false
	}
	return uint(project), r.PathValue("session"), true
}

// userID returns the verified user identity injected by the upstream
// authentication layer. Opaque here.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}

func (s *Server) healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, sessionID, ok := sessionParams(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid project ID")
			return
		}

		status, err := s.orchestrator.Status(r.Context(), projectID, sessionID, userID(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := StatusResponse{Running: status.Running, IsResponding: status.IsResponding}
		if status.URL != "" {
			resp.URL = &status.URL
		}
		writeJSON(w, resp)
	}
}

func (s *Server) startHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, sessionID, ok := sessionParams(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid project ID")
			return
		}

		var envVars map[string]string
		if r.Body != nil && r.ContentLength != 0 {
			var body struct {
				EnvVars map[string]string `json:"envVars"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			envVars = body.EnvVars
		}

		result, err := s.orchestrator.Start(r.Context(), projectID, sessionID, envVars, userID(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, StartResponse{URL: result.URL, Status: result.Status})
	}
}

func (s *Server) stopHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, sessionID, ok := sessionParams(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid project ID")
			return
		}

		if err := s.orchestrator.Stop(r.Context(), projectID, sessionID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) revertHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RevertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.WorkspacePath == "" || req.CommitSHA == "" {
			writeError(w, http.StatusBadRequest, "workspacePath and commitSha are required")
			return
		}

		// The workspace path doubles as the session identity for the audit
		// trail; reject anything outside the workspace root.
		projectID, sessionID, err := s.registry.ParseWorkspacePath(req.WorkspacePath)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		sess, err := s.registry.Lookup(projectID, sessionID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		credentialToken := bearerToken(r)
		if err := s.reverter.RevertToCommit(req.WorkspacePath, req.CommitSHA, credentialToken); err != nil {
			writeServiceError(w, err)
			return
		}

		// Revert succeeded; the audit entry is recorded here, append-only.
		// The branch is already rewritten, so an audit failure must not
		// report the revert itself as failed.
		if err := s.audits.Append(&models.RevertAudit{
			SessionID:           sess.ID,
			CommitSHA:           req.CommitSHA,
			TriggeringMessageID: req.MessageID,
			RevertedAt:          time.Now(),
		}); err != nil {
			log.Printf("api: revert audit for session %d failed: %v", sess.ID, err)
		}
		writeJSON(w, RevertResponse{Success: true, RevertedToCommit: req.CommitSHA})
	}
}

// bearerToken extracts a credential token from the Authorization header.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
