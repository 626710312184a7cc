package services

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"appdeck/internal/models"
	"appdeck/internal/repositories"
)

// BranchPrefix is the fixed prefix of every session branch. Downstream flows
// (merge proposals on the git host) locate session branches by this exact
// convention, so it must never change.
const BranchPrefix = "appdeck/session/"

// sessionIDPattern is the allow-list for session keys. Session IDs end up in
// filesystem paths, branch names and container names, so anything outside
// lowercase alphanumerics and hyphens is rejected outright.
var sessionIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// BranchName derives the branch for a session key. Pure function; repeated
// calls with the same input return the identical string.
func BranchName(sessionID string) string {
	return BranchPrefix + sessionID
}

// ValidateSessionID rejects session keys that could not safely be used as a
// path segment or branch suffix.
func ValidateSessionID(sessionID string) error {
	if !sessionIDPattern.MatchString(sessionID) {
		return fmt.Errorf("invalid session ID %q", sessionID)
	}
	return nil
}

// SessionRegistry resolves a (project, session) identity to its workspace
// path and branch name, backed by the session table.
type SessionRegistry struct {
	sessions      repositories.SessionRepository
	workspaceRoot string
}

func NewSessionRegistry(sessions repositories.SessionRepository, workspaceRoot string) *SessionRegistry {
	return &SessionRegistry{sessions: sessions, workspaceRoot: workspaceRoot}
}

// Lookup returns the session row for the given key, or ErrNotFound.
func (r *SessionRegistry) Lookup(projectID uint, sessionID string) (*models.Session, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	sess, err := r.sessions.GetByKey(projectID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("look up session %d/%s: %w", projectID, sessionID, err)
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: %d/%s", ErrNotFound, projectID, sessionID)
	}
	return sess, nil
}

// ResolveWorkspacePath returns the deterministic, collision-free checkout
// location for a session. The session row must exist.
func (r *SessionRegistry) ResolveWorkspacePath(projectID uint, sessionID string) (string, error) {
	if _, err := r.Lookup(projectID, sessionID); err != nil {
		return "", err
	}
	return filepath.Join(r.workspaceRoot, fmt.Sprintf("p%d", projectID), sessionID), nil
}

// ParseWorkspacePath is the inverse of ResolveWorkspacePath. It rejects paths
// outside the workspace root.
func (r *SessionRegistry) ParseWorkspacePath(path string) (projectID uint, sessionID string, err error) {
	rel, err := filepath.Rel(r.workspaceRoot, filepath.Clean(path))
	if err != nil || strings.HasPrefix(rel, "..") {
		return 0, "", fmt.Errorf("%w: path %q is not a session workspace", ErrNotFound, path)
	}

	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) != 2 || !strings.HasPrefix(parts[0], "p") {
		return 0, "", fmt.Errorf("%w: path %q is not a session workspace", ErrNotFound, path)
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(parts[0], "p"), 10, 32)
	if err != nil {
		return 0, "", fmt.Errorf("%w: path %q is not a session workspace", ErrNotFound, path)
	}
	if err := ValidateSessionID(parts[1]); err != nil {
		return 0, "", err
	}
	return uint(id), parts[1], nil
}

// WorkspaceRoot exposes the configured root for sweep-time scans.
func (r *SessionRegistry) WorkspaceRoot() string {
	return r.workspaceRoot
}
