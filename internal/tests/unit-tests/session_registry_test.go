package unit_tests

import (
	"errors"
	"path/filepath"
	"testing"

	"appdeck/internal/models"
	"appdeck/internal/services"
	"appdeck/internal/tests/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchName_IsStablePureFunction(t *testing.T) {
	first := services.BranchName("s1")
	second := services.BranchName("s1")

	assert.Equal(t, first, second)
	assert.Equal(t, services.BranchPrefix+"s1", first)
}

func TestValidateSessionID_AllowList(t *testing.T) {
	valid := []string{"s1", "feature-login", "a", "0abc", "x-1-y-2"}
	for _, id := range valid {
		assert.NoError(t, services.ValidateSessionID(id), id)
	}

	invalid := []string{
		"",
		"../etc/passwd",
		"a/b",
		"a b",
		"S1",
		"s1;rm -rf",
		"$(whoami)",
		"a..b/../..",
		"-leading-hyphen",
		"way-too-long-way-too-long-way-too-long-way-too-long-way-too-long-way",
	}
	for _, id := range invalid {
		assert.Error(t, services.ValidateSessionID(id), id)
	}
}

func TestSessionRegistry_ResolveWorkspacePath(t *testing.T) {
	sessions := &mocks.SessionRepositoryMock{}
	sessions.GetByKeyFunc = func(projectID uint, sessionID string) (*models.Session, error) {
		return &models.Session{ID: 1, ProjectID: projectID, SessionID: sessionID}, nil
	}
	registry := services.NewSessionRegistry(sessions, "/var/lib/appdeck/workspaces")

	path, err := registry.ResolveWorkspacePath(42, "s1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/var/lib/appdeck/workspaces", "p42", "s1"), path)

	// Same inputs, same path.
	again, err := registry.ResolveWorkspacePath(42, "s1")
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestSessionRegistry_Lookup_NotFound(t *testing.T) {
	registry := services.NewSessionRegistry(&mocks.SessionRepositoryMock{}, "/tmp/ws")

	_, err := registry.Lookup(42, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrNotFound))

	_, err = registry.ResolveWorkspacePath(42, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrNotFound))
}

func TestSessionRegistry_RejectsTraversal(t *testing.T) {
	sessions := &mocks.SessionRepositoryMock{}
	sessions.GetByKeyFunc = func(projectID uint, sessionID string) (*models.Session, error) {
		t.Fatalf("repository must not be consulted for invalid session ID %q", sessionID)
		return nil, nil
	}
	registry := services.NewSessionRegistry(sessions, "/tmp/ws")

	_, err := registry.ResolveWorkspacePath(42, "../../escape")
	assert.Error(t, err)
}

func TestSessionRegistry_ParseWorkspacePath(t *testing.T) {
	registry := services.NewSessionRegistry(&mocks.SessionRepositoryMock{}, "/var/lib/appdeck/workspaces")

	projectID, sessionID, err := registry.ParseWorkspacePath("/var/lib/appdeck/workspaces/p42/s1")
	require.NoError(t, err)
	assert.Equal(t, uint(42), projectID)
	assert.Equal(t, "s1", sessionID)

	_, _, err = registry.ParseWorkspacePath("/etc/passwd")
	assert.True(t, errors.Is(err, services.ErrNotFound))

	_, _, err = registry.ParseWorkspacePath("/var/lib/appdeck/workspaces/p42")
	assert.Error(t, err)

	_, _, err = registry.ParseWorkspacePath("/var/lib/appdeck/workspaces/q42/s1")
	assert.Error(t, err)
}
