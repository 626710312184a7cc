package services

import (
	"time"

	"appdeck/internal/repositories"
)

// ActivityTracker records last-activity timestamps. Touch is called inline
// with every orchestration operation so activity is never recorded later
// than the enclosing request.
type ActivityTracker struct {
	sessions repositories.SessionRepository
	now      func() time.Time
}

func NewActivityTracker(sessions repositories.SessionRepository) *ActivityTracker {
	return &ActivityTracker{sessions: sessions, now: time.Now}
}

// Touch advances the session's LastActivityAt to now. The repository applies
// the update conditionally, so the timestamp never moves backwards.
func (t *ActivityTracker) Touch(projectID uint, sessionID string) error {
	return t.sessions.Touch(projectID, sessionID, t.now())
}
