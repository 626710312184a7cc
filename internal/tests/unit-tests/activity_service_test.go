package unit_tests

import (
	"testing"
	"time"

	"appdeck/internal/services"
	"appdeck/internal/tests/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityTracker_Touch_Delegates(t *testing.T) {
	var gotProject uint
	var gotSession string
	var gotAt time.Time

	sessions := &mocks.SessionRepositoryMock{}
	sessions.TouchFunc = func(projectID uint, sessionID string, at time.Time) error {
		gotProject = projectID
		gotSession = sessionID
		gotAt = at
		return nil
	}

	tracker := services.NewActivityTracker(sessions)
	before := time.Now()
	require.NoError(t, tracker.Touch(42, "s1"))

	assert.Equal(t, uint(42), gotProject)
	assert.Equal(t, "s1", gotSession)
	assert.False(t, gotAt.Before(before))
}
