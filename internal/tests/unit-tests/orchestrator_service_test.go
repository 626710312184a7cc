package unit_tests

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"appdeck/internal/models"
	"appdeck/internal/runtime"
	"appdeck/internal/services"
	"appdeck/internal/tests/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orchestratorFixture struct {
	orchestrator *services.ContainerOrchestrator
	runtime      *mocks.RuntimeFake
	touches      *int
}

func newOrchestratorFixture(t *testing.T, launchURL string, readyTimeout time.Duration) *orchestratorFixture {
	t.Helper()

	touches := 0
	sessions := &mocks.SessionRepositoryMock{}
	sessions.GetByKeyFunc = func(projectID uint, sessionID string) (*models.Session, error) {
		return &models.Session{ID: 7, ProjectID: projectID, SessionID: sessionID}, nil
	}
	sessions.TouchFunc = func(projectID uint, sessionID string, at time.Time) error {
		touches++
		return nil
	}

	projects := &mocks.ProjectRepositoryMock{}
	projects.GetByIDFunc = func(id uint) (*models.Project, error) {
		return &models.Project{ID: id, Name: "demo", RemoteURL: "https://git.example.com/demo.git"}, nil
	}
	projects.EnvVarsFunc = func(projectID uint) ([]models.ProjectEnvVar, error) {
		return []models.ProjectEnvVar{{ProjectID: projectID, Key: "API_BASE", Value: "https://api.example.com"}}, nil
	}

	workspaces := &mocks.WorkspaceEnsurerMock{}
	workspaces.EnsureFunc = func(projectID uint, sessionID string) (string, string, error) {
		return fmt.Sprintf("/ws/p%d/%s", projectID, sessionID), services.BranchName(sessionID), nil
	}

	fake := mocks.NewRuntimeFake(launchURL)
	registry := services.NewSessionRegistry(sessions, "/ws")
	activity := services.NewActivityTracker(sessions)

	orchestrator := services.NewContainerOrchestrator(services.OrchestratorConfig{
		Image:        "appdeck/preview:test",
		ReadyTimeout: readyTimeout,
		ProbeTimeout: time.Second,
	}, fake, workspaces, registry, projects, activity)

	return &orchestratorFixture{orchestrator: orchestrator, runtime: fake, touches: &touches}
}

func TestOrchestrator_Start_ProvisionsAndInjectsEnv(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := newOrchestratorFixture(t, server.URL, 5*time.Second)

	result, err := f.orchestrator.Start(context.Background(), 42, "s1", map[string]string{"FEATURE_FLAG": "on"}, "user_abc")
	require.NoError(t, err)
	assert.Equal(t, server.URL, result.URL)
	assert.Equal(t, "running", result.Status)
	assert.Equal(t, 1, f.runtime.LaunchCount)

	spec := f.runtime.LastSpec
	assert.Equal(t, runtime.InstanceName(42, "s1"), spec.Name)
	assert.Equal(t, "/ws/p42/s1", spec.WorkspacePath)
	assert.Equal(t, "on", spec.Env["FEATURE_FLAG"])
	assert.Equal(t, "https://api.example.com", spec.Env["API_BASE"])
	assert.Equal(t, "https://git.example.com/demo.git", spec.Env["APPDECK_REPO_URL"])
	assert.Equal(t, services.BranchName("s1"), spec.Env["APPDECK_BRANCH"])
	assert.Equal(t, "user_abc", spec.Env["APPDECK_USER_ID"])
	assert.NotEmpty(t, spec.Env["APPDECK_DATABASE_URL"])
	assert.True(t, *f.touches >= 1)
}

func TestOrchestrator_Start_ConcurrentCallsShareOneProvisioning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := newOrchestratorFixture(t, server.URL, 5*time.Second)

	const callers = 8
	urls := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := f.orchestrator.Start(context.Background(), 42, "s1", nil, "user_abc")
			urls[i], errs[i] = result.URL, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, server.URL, urls[i])
	}
	// Exactly one live instance and one provisioning sequence for the key.
	assert.Equal(t, 1, f.runtime.LaunchCount)
	live, err := f.runtime.List(context.Background(), runtime.NamePrefix)
	require.NoError(t, err)
	assert.Len(t, live, 1)
}

func TestOrchestrator_Start_IdempotentOnLiveInstance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := newOrchestratorFixture(t, server.URL, 5*time.Second)
	f.runtime.SetInstance(runtime.Instance{
		Name:  runtime.InstanceName(42, "s1"),
		URL:   server.URL,
		State: runtime.StateRunning,
	})

	result, err := f.orchestrator.Start(context.Background(), 42, "s1", nil, "user_abc")
	require.NoError(t, err)
	assert.Equal(t, server.URL, result.URL)
	assert.Equal(t, 0, f.runtime.LaunchCount)
}

func TestOrchestrator_Status_AutoStartsOnMiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := newOrchestratorFixture(t, server.URL, 5*time.Second)

	// A never-previewed session reports not running first.
	status, err := f.orchestrator.Status(context.Background(), 42, "s1", "user_abc")
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Empty(t, status.URL)

	// The auto-start path completes in the background; poll until it does.
	require.Eventually(t, func() bool {
		status, err := f.orchestrator.Status(context.Background(), 42, "s1", "user_abc")
		return err == nil && status.Running && status.URL != ""
	}, 5*time.Second, 25*time.Millisecond)

	assert.Equal(t, 1, f.runtime.LaunchCount)
}

func TestOrchestrator_Status_ReportsUnresponsiveInstance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := newOrchestratorFixture(t, server.URL, 5*time.Second)
	f.runtime.SetInstance(runtime.Instance{
		Name:  runtime.InstanceName(42, "s1"),
		URL:   server.URL,
		State: runtime.StateRunning,
	})

	status, err := f.orchestrator.Status(context.Background(), 42, "s1", "user_abc")
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, server.URL, status.URL)
	assert.False(t, status.IsResponding)
}

func TestOrchestrator_Start_TimeoutTearsDownInstance(t *testing.T) {
	// The instance never answers its probe.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := newOrchestratorFixture(t, server.URL, 400*time.Millisecond)

	_, err := f.orchestrator.Start(context.Background(), 42, "s1", nil, "user_abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrStartTimeout))

	// No orphaned instances are left behind.
	inst, err := f.runtime.Inspect(context.Background(), runtime.InstanceName(42, "s1"))
	require.NoError(t, err)
	assert.Nil(t, inst)
}

func TestOrchestrator_Start_MapsPoolExhaustion(t *testing.T) {
	f := newOrchestratorFixture(t, "http://127.0.0.1:0", time.Second)
	f.runtime.LaunchErr = fmt.Errorf("%w: engine full", runtime.ErrPoolExhausted)

	_, err := f.orchestrator.Start(context.Background(), 42, "s1", nil, "user_abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrResourceExhausted))
}

func TestOrchestrator_Status_InstanceWithoutURLDoesNotAutoStart(t *testing.T) {
	f := newOrchestratorFixture(t, "http://127.0.0.1:0", time.Second)
	// Created but no published port mapping yet.
	f.runtime.SetInstance(runtime.Instance{
		Name:  runtime.InstanceName(42, "s1"),
		State: runtime.StateStarting,
	})

	status, err := f.orchestrator.Status(context.Background(), 42, "s1", "user_abc")
	require.NoError(t, err)
	assert.False(t, status.Running)

	// The existing instance is coming up; no duplicate provisioning attempt
	// is spawned behind it.
	assert.Never(t, func() bool { return f.runtime.LaunchCount > 0 }, 300*time.Millisecond, 50*time.Millisecond)
}

func TestOrchestrator_Stop_Idempotent(t *testing.T) {
	f := newOrchestratorFixture(t, "http://127.0.0.1:0", time.Second)

	// Nothing is running; stop still succeeds.
	require.NoError(t, f.orchestrator.Stop(context.Background(), 42, "s1"))
	require.NoError(t, f.orchestrator.Stop(context.Background(), 42, "s1"))
}

func TestOrchestrator_Start_UnknownSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := newOrchestratorFixture(t, server.URL, time.Second)
	// Fixture returns rows for every key; build a registry that does not.
	sessions := &mocks.SessionRepositoryMock{}
	registry := services.NewSessionRegistry(sessions, "/ws")
	orchestrator := services.NewContainerOrchestrator(services.OrchestratorConfig{},
		f.runtime, &mocks.WorkspaceEnsurerMock{}, registry, &mocks.ProjectRepositoryMock{}, nil)

	_, err := orchestrator.Start(context.Background(), 42, "ghost", nil, "user_abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrNotFound))
}
